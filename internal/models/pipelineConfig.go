package models

import (
	"time"

	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

type PipelineConfigState string

const (
	PipelineConfigStateUnknown    PipelineConfigState = "UNKNOWN"
	PipelineConfigStateUnreleased PipelineConfigState = "UNRELEASED"
	PipelineConfigStateLive       PipelineConfigState = "LIVE"
	PipelineConfigStateDeprecated PipelineConfigState = "DEPRECATED"
)

// PipelineConfig is one immutable, versioned configuration for a pipeline:
// its parallelism bound and the ordered set of tasks that make up its DAG.
// The orchestrator reads the latest (or a pinned) version and never mutates
// it.
type PipelineConfig struct {
	NamespaceID string
	PipelineID  string
	Version     int64
	Parallelism int64
	Name        string
	Description string
	State       PipelineConfigState
	Registered  int64
	Deprecated  int64
	Tasks       map[string]Task
}

func (pc *PipelineConfig) ToStorage() *storage.PipelineConfig {
	return &storage.PipelineConfig{
		Namespace:   pc.NamespaceID,
		Pipeline:    pc.PipelineID,
		Version:     pc.Version,
		Parallelism: pc.Parallelism,
		Name:        pc.Name,
		Description: pc.Description,
		Registered:  pc.Registered,
		Deprecated:  pc.Deprecated,
		State:       string(pc.State),
	}
}

func PipelineConfigFromStorage(s *storage.PipelineConfig, taskRows []storage.PipelineTask) PipelineConfig {
	tasks := map[string]Task{}

	for _, row := range taskRows {
		r := row
		tasks[row.ID] = TaskFromStorage(&r)
	}

	return PipelineConfig{
		NamespaceID: s.Namespace,
		PipelineID:  s.Pipeline,
		Version:     s.Version,
		Parallelism: s.Parallelism,
		Name:        s.Name,
		Description: s.Description,
		State:       PipelineConfigState(s.State),
		Registered:  s.Registered,
		Deprecated:  s.Deprecated,
		Tasks:       tasks,
	}
}

func NewPipelineConfig(namespace, pipeline string, version, parallelism int64, name, description string, tasks map[string]Task) *PipelineConfig {
	return &PipelineConfig{
		NamespaceID: namespace,
		PipelineID:  pipeline,
		Version:     version,
		Parallelism: parallelism,
		Name:        name,
		Description: description,
		State:       PipelineConfigStateUnreleased,
		Registered:  time.Now().UnixMilli(),
		Tasks:       tasks,
	}
}
