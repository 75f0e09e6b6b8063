package models

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

// RequiredParentStatus constrains when a task is allowed to run relative to
// the terminal status of one of its parents in depends_on.
type RequiredParentStatus string

const (
	RequiredParentStatusUnknown RequiredParentStatus = "UNKNOWN"
	RequiredParentStatusAny     RequiredParentStatus = "ANY"
	RequiredParentStatusSuccess RequiredParentStatus = "SUCCESS"
	RequiredParentStatusFailure RequiredParentStatus = "FAILURE"
)

func RequiredParentStatusFromStr(s string) RequiredParentStatus {
	switch RequiredParentStatus(s) {
	case RequiredParentStatusAny, RequiredParentStatusSuccess, RequiredParentStatusFailure:
		return RequiredParentStatus(s)
	default:
		return RequiredParentStatusUnknown
	}
}

// Task is the static definition of one container invocation within a
// pipeline config version. It never changes once its config version is
// registered; the orchestrator only ever reads it.
type Task struct {
	ID           string                          `json:"id"`
	Description  string                          `json:"description"`
	Image        string                          `json:"image"`
	RegistryAuth *RegistryAuth                   `json:"registry_auth"`
	DependsOn    map[string]RequiredParentStatus `json:"depends_on"`
	Variables    map[string]string               `json:"variables"`
	Entrypoint   []string                        `json:"entrypoint"`
	Command      []string                        `json:"command"`

	// InjectAPIToken tells the orchestrator to mint a short-lived API token
	// for the run and expose it to this task as GOFER_TOKEN.
	InjectAPIToken bool `json:"inject_api_token"`

	// AlwaysPullNewestImage forces the scheduler to re-pull Image on every
	// container start instead of reusing a cached layer.
	AlwaysPullNewestImage bool `json:"always_pull_newest_image"`
}

func (t *Task) ToStorage(namespace, pipeline string, version int64) *storage.PipelineTask {
	dependsOn, err := json.Marshal(t.DependsOn)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	variables, err := json.Marshal(t.Variables)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	entrypoint, err := json.Marshal(t.Entrypoint)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	command, err := json.Marshal(t.Command)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	return &storage.PipelineTask{
		Namespace:             namespace,
		Pipeline:              pipeline,
		PipelineConfigVersion: version,
		ID:                    t.ID,
		Description:           t.Description,
		Image:                 t.Image,
		RegistryAuth:          t.RegistryAuth.ToStorage(),
		DependsOn:             string(dependsOn),
		Variables:             string(variables),
		Entrypoint:            string(entrypoint),
		Command:               string(command),
		InjectAPIToken:        t.InjectAPIToken,
		AlwaysPullNewestImage: t.AlwaysPullNewestImage,
	}
}

func TaskFromStorage(row *storage.PipelineTask) Task {
	dependsOn := map[string]RequiredParentStatus{}
	if row.DependsOn != "" {
		if err := json.Unmarshal([]byte(row.DependsOn), &dependsOn); err != nil {
			log.Fatal().Err(err).Msg("error in translating from storage")
		}
	}

	variables := map[string]string{}
	if row.Variables != "" {
		if err := json.Unmarshal([]byte(row.Variables), &variables); err != nil {
			log.Fatal().Err(err).Msg("error in translating from storage")
		}
	}

	var entrypoint []string
	if row.Entrypoint != "" {
		if err := json.Unmarshal([]byte(row.Entrypoint), &entrypoint); err != nil {
			log.Fatal().Err(err).Msg("error in translating from storage")
		}
	}

	var command []string
	if row.Command != "" {
		if err := json.Unmarshal([]byte(row.Command), &command); err != nil {
			log.Fatal().Err(err).Msg("error in translating from storage")
		}
	}

	return Task{
		ID:                    row.ID,
		Description:           row.Description,
		Image:                 row.Image,
		RegistryAuth:          registryAuthFromStorage(row.RegistryAuth),
		DependsOn:             dependsOn,
		Variables:             variables,
		Entrypoint:            entrypoint,
		Command:               command,
		InjectAPIToken:        row.InjectAPIToken,
		AlwaysPullNewestImage: row.AlwaysPullNewestImage,
	}
}
