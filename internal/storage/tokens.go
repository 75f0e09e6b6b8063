package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

// Token is the storage row for an API credential. Only Hash is ever
// compared against an incoming request; the plaintext secret never
// reaches this table.
type Token struct {
	ID         string
	Hash       string
	Created    string
	Kind       string
	Namespaces string
	Metadata   string
	Expires    string
	Disabled   bool
}

func (db *DB) ListTokens(conn Queryable, offset, limit int) ([]Token, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("id", "hash", "created", "kind", "namespaces", "metadata", "expires", "disabled").
		From("tokens").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	tokens := []Token{}
	err := conn.Select(&tokens, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return tokens, nil
}

func (db *DB) InsertToken(conn Queryable, t *Token) error {
	_, err := qb.Insert("tokens").
		Columns("id", "hash", "created", "kind", "namespaces", "metadata", "expires", "disabled").
		Values(t.ID, t.Hash, t.Created, t.Kind, t.Namespaces, t.Metadata, t.Expires, t.Disabled).
		RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetToken(conn Queryable, id string) (Token, error) {
	query, args := qb.Select("id", "hash", "created", "kind", "namespaces", "metadata", "expires", "disabled").
		From("tokens").Where(qb.Eq{"id": id}).MustSql()

	token := Token{}
	err := conn.Get(&token, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Token{}, ErrEntityNotFound
		}

		return Token{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return token, nil
}

// GetTokenByHash is the lookup path request authentication uses: a request
// carries only the plaintext token, which is hashed and matched here.
func (db *DB) GetTokenByHash(conn Queryable, hash string) (Token, error) {
	query, args := qb.Select("id", "hash", "created", "kind", "namespaces", "metadata", "expires", "disabled").
		From("tokens").Where(qb.Eq{"hash": hash}).MustSql()

	token := Token{}
	err := conn.Get(&token, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Token{}, ErrEntityNotFound
		}

		return Token{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return token, nil
}

func (db *DB) EnableToken(conn Queryable, id string) error {
	_, err := qb.Update("tokens").Set("disabled", false).Where(qb.Eq{"id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntityNotFound
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DisableToken(conn Queryable, id string) error {
	_, err := qb.Update("tokens").Set("disabled", true).Where(qb.Eq{"id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntityNotFound
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteToken(conn Queryable, id string) error {
	_, err := qb.Delete("tokens").Where(qb.Eq{"id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
