// Package models contains the domain objects the orchestrator works with
// in memory, as opposed to their row representation in internal/storage.
//
// Keeping these separate from the storage package lets the storage layer use
// compact column names and JSON-encoded sub-fields while the rest of the
// orchestrator works with typed, already-decoded structs. Each model that
// round-trips through a table carries ToStorage/FromStorage methods that do
// that translation explicitly; Go does not catch a forgotten field on either
// side, so changes here should be made carefully.
package models

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// VariableSource records who set a given variable, so the Variable Resolver
// can be audited for where a value that ends up in a container's environment
// actually came from.
type VariableSource string

const (
	VariableSourceUnknown        VariableSource = "UNKNOWN"
	VariableSourcePipelineConfig VariableSource = "PIPELINE_CONFIG"
	VariableSourceSystem         VariableSource = "SYSTEM"
	VariableSourceRunOptions     VariableSource = "RUN_OPTIONS"
)

// Variable is a single resolved key/value pair destined for a task
// execution's container environment.
type Variable struct {
	Key    string         `json:"key"`
	Value  string         `json:"value"`
	Source VariableSource `json:"source"`
}

// RegistryAuth carries credentials for pulling a task's image from a private
// registry. It is stored JSON-encoded inside the task definition.
type RegistryAuth struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

func (r *RegistryAuth) ToStorage() string {
	if r == nil {
		return ""
	}

	raw, err := json.Marshal(r)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	return string(raw)
}

func registryAuthFromStorage(raw string) *RegistryAuth {
	if raw == "" {
		return nil
	}

	var auth RegistryAuth

	err := json.Unmarshal([]byte(raw), &auth)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	return &auth
}

// ContainerState is the Scheduler Adapter's coarse view of a container,
// translated from whatever vocabulary the backing engine uses (docker's
// "created"/"running"/"exited"/...).
type ContainerState string

const (
	ContainerStateUnknown   ContainerState = "UNKNOWN"
	ContainerStateRunning   ContainerState = "RUNNING"
	ContainerStateSuccess   ContainerState = "SUCCESS"
	ContainerStateFailed    ContainerState = "FAILED"
	ContainerStateCancelled ContainerState = "CANCELLED"
)
