package models

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

type TokenType string

const (
	TokenTypeUnknown TokenType = "UNKNOWN"
	TokenTypeRun     TokenType = "RUN"
)

// Token is an API credential minted for a run when one of its tasks sets
// inject_api_token. Only its hash is ever persisted; the plaintext is
// handed to the secret store once and never read back from the token row.
type Token struct {
	ID         string
	Hash       string
	Created    int64
	TokenType  TokenType
	Namespaces []string
	Metadata   map[string]string
	Expires    int64
	Disabled   bool
}

// NewInjectedRunToken builds a token scoped to a single namespace/pipeline so
// a task cannot use its run's token to reach other pipelines. expiry is
// relative to now.
func NewInjectedRunToken(hash, namespace, pipeline string, runID int64, expiry time.Duration) *Token {
	now := time.Now()

	return &Token{
		ID:        generateTokenID(12),
		Hash:      hash,
		Created:   now.UnixMilli(),
		TokenType: TokenTypeRun,
		Namespaces: []string{namespace},
		Metadata: map[string]string{
			"kind":      "system_generated_run_token",
			"namespace": namespace,
			"pipeline":  pipeline,
			"run_id":    fmt.Sprint(runID),
		},
		Expires:  now.Add(expiry).UnixMilli(),
		Disabled: false,
	}
}

func (t *Token) ToStorage() *storage.Token {
	namespaces, err := json.Marshal(t.Namespaces)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	return &storage.Token{
		ID:         t.ID,
		Hash:       t.Hash,
		Created:    fmt.Sprint(t.Created),
		Kind:       string(t.TokenType),
		Namespaces: string(namespaces),
		Metadata:   string(metadata),
		Expires:    fmt.Sprint(t.Expires),
		Disabled:   t.Disabled,
	}
}

func TokenFromStorage(s *storage.Token) Token {
	var namespaces []string

	err := json.Unmarshal([]byte(s.Namespaces), &namespaces)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	var metadata map[string]string

	err = json.Unmarshal([]byte(s.Metadata), &metadata)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	created, err := strconv.ParseInt(s.Created, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	expires, err := strconv.ParseInt(s.Expires, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	return Token{
		ID:         s.ID,
		Hash:       s.Hash,
		Created:    created,
		TokenType:  TokenType(s.Kind),
		Namespaces: namespaces,
		Metadata:   metadata,
		Expires:    expires,
		Disabled:   s.Disabled,
	}
}

const tokenIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateTokenID(n int) string {
	out := make([]byte, n)

	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenIDAlphabet))))
		if err != nil {
			log.Fatal().Err(err).Msg("could not generate random id")
		}

		out[i] = tokenIDAlphabet[idx.Int64()]
	}

	return string(out)
}

// GenerateTokenSecret produces the 32-char alphanumeric plaintext handed to
// the caller and hashed before being stored as Token.Hash.
func GenerateTokenSecret() string {
	return generateTokenID(32)
}
