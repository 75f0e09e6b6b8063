package models

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

// EventKind enumerates the event variants the Event Bus carries. Only the
// kinds the run orchestrator emits and consumes are modeled; the wider
// system (extensions, deployments) defines others outside this core.
type EventKind string

const (
	EventKindUnknown                        EventKind = "UNKNOWN"
	EventKindQueuedRun                       EventKind = "QUEUED_RUN"
	EventKindStartedRun                      EventKind = "STARTED_RUN"
	EventKindCompletedRun                    EventKind = "COMPLETED_RUN"
	EventKindStartedRunCancellation          EventKind = "STARTED_RUN_CANCELLATION"
	EventKindStartedTaskExecution            EventKind = "STARTED_TASK_EXECUTION"
	EventKindCompletedTaskExecution          EventKind = "COMPLETED_TASK_EXECUTION"
	EventKindStartedTaskExecutionCancellation EventKind = "STARTED_TASK_EXECUTION_CANCELLATION"
)

type EventDetails interface {
	Kind() EventKind
}

type EventQueuedRun struct {
	NamespaceID string `json:"namespace_id"`
	PipelineID  string `json:"pipeline_id"`
	RunID       int64  `json:"run_id"`
}

func (*EventQueuedRun) Kind() EventKind { return EventKindQueuedRun }

type EventStartedRun struct {
	NamespaceID string `json:"namespace_id"`
	PipelineID  string `json:"pipeline_id"`
	RunID       int64  `json:"run_id"`
}

func (*EventStartedRun) Kind() EventKind { return EventKindStartedRun }

type EventCompletedRun struct {
	NamespaceID string    `json:"namespace_id"`
	PipelineID  string    `json:"pipeline_id"`
	RunID       int64     `json:"run_id"`
	Status      RunStatus `json:"status"`
}

func (*EventCompletedRun) Kind() EventKind { return EventKindCompletedRun }

type EventStartedRunCancellation struct {
	NamespaceID string `json:"namespace_id"`
	PipelineID  string `json:"pipeline_id"`
	RunID       int64  `json:"run_id"`
}

func (*EventStartedRunCancellation) Kind() EventKind { return EventKindStartedRunCancellation }

type EventStartedTaskExecution struct {
	NamespaceID     string `json:"namespace_id"`
	PipelineID      string `json:"pipeline_id"`
	RunID           int64  `json:"run_id"`
	TaskExecutionID string `json:"task_execution_id"`
}

func (*EventStartedTaskExecution) Kind() EventKind { return EventKindStartedTaskExecution }

type EventCompletedTaskExecution struct {
	NamespaceID     string              `json:"namespace_id"`
	PipelineID      string              `json:"pipeline_id"`
	RunID           int64               `json:"run_id"`
	TaskExecutionID string              `json:"task_execution_id"`
	Status          TaskExecutionStatus `json:"status"`
}

func (*EventCompletedTaskExecution) Kind() EventKind { return EventKindCompletedTaskExecution }

type EventStartedTaskExecutionCancellation struct {
	NamespaceID     string `json:"namespace_id"`
	PipelineID      string `json:"pipeline_id"`
	RunID           int64  `json:"run_id"`
	TaskExecutionID string `json:"task_execution_id"`
	TimeoutSeconds  int64  `json:"timeout_seconds"`
}

func (*EventStartedTaskExecutionCancellation) Kind() EventKind {
	return EventKindStartedTaskExecutionCancellation
}

// newEventDetails returns a fresh pointer to the concrete details type for a
// given kind, so a decoder can unmarshal JSON into the right struct.
func newEventDetails(kind EventKind) EventDetails {
	switch kind {
	case EventKindQueuedRun:
		return &EventQueuedRun{}
	case EventKindStartedRun:
		return &EventStartedRun{}
	case EventKindCompletedRun:
		return &EventCompletedRun{}
	case EventKindStartedRunCancellation:
		return &EventStartedRunCancellation{}
	case EventKindStartedTaskExecution:
		return &EventStartedTaskExecution{}
	case EventKindCompletedTaskExecution:
		return &EventCompletedTaskExecution{}
	case EventKindStartedTaskExecutionCancellation:
		return &EventStartedTaskExecutionCancellation{}
	default:
		return nil
	}
}

// Event is a single, immutable occurrence on the event bus. ID is a UUIDv7
// string so it sorts lexically in publish order and doubles as a durable
// recovery cursor (§4.7).
type Event struct {
	ID      string
	Kind    EventKind
	Details EventDetails
	Emitted int64
}

func (e *Event) ToStorage() *storage.Event {
	details, err := json.Marshal(e.Details)
	if err != nil {
		log.Fatal().Err(err).Msg("could not marshal event details")
	}

	return &storage.Event{
		ID:      e.ID,
		Kind:    string(e.Kind),
		Details: string(details),
		Emitted: e.Emitted,
	}
}

func EventFromStorage(s *storage.Event) Event {
	details := newEventDetails(EventKind(s.Kind))

	if details != nil {
		err := json.Unmarshal([]byte(s.Details), details)
		if err != nil {
			log.Fatal().Err(err).Msg("could not unmarshal event details")
		}
	}

	return Event{
		ID:      s.ID,
		Kind:    EventKind(s.Kind),
		Details: details,
		Emitted: s.Emitted,
	}
}
