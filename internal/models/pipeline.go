package models

import (
	"time"

	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

// PipelineState controls whether the orchestrator will admit new runs for a
// pipeline. The orchestrator only ever reads this; it is written by the
// (out of scope) registration/deployment collaborator.
type PipelineState string

const (
	PipelineStateUnknown  PipelineState = "UNKNOWN"
	PipelineStateActive   PipelineState = "ACTIVE"
	PipelineStateDisabled PipelineState = "DISABLED"
)

// PipelineMetadata is the part of a pipeline that is not versioned: its
// identity and current admission state.
type PipelineMetadata struct {
	NamespaceID string
	ID          string
	Created     int64
	Modified    int64
	State       PipelineState
}

func (p *PipelineMetadata) ToStorage() *storage.PipelineMetadata {
	return &storage.PipelineMetadata{
		Namespace: p.NamespaceID,
		ID:        p.ID,
		Created:   p.Created,
		Modified:  p.Modified,
		State:     string(p.State),
	}
}

func PipelineMetadataFromStorage(s *storage.PipelineMetadata) PipelineMetadata {
	return PipelineMetadata{
		NamespaceID: s.Namespace,
		ID:          s.ID,
		Created:     s.Created,
		Modified:    s.Modified,
		State:       PipelineState(s.State),
	}
}

func NewPipelineMetadata(namespace, id string) *PipelineMetadata {
	now := time.Now().UnixMilli()

	return &PipelineMetadata{
		NamespaceID: namespace,
		ID:          id,
		Created:     now,
		Modified:    now,
		State:       PipelineStateActive,
	}
}
