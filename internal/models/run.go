package models

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

type RunState string

const (
	RunStateUnknown  RunState = "UNKNOWN"
	RunStatePending  RunState = "PENDING"
	RunStateRunning  RunState = "RUNNING"
	RunStateComplete RunState = "COMPLETE"
)

type RunStatus string

const (
	RunStatusUnknown    RunStatus = "UNKNOWN"
	RunStatusFailed     RunStatus = "FAILED"
	RunStatusSuccessful RunStatus = "SUCCESSFUL"
	RunStatusCancelled  RunStatus = "CANCELLED"
)

type RunStatusReasonKind string

const (
	RunStatusReasonUnknown            RunStatusReasonKind = "UNKNOWN"
	RunStatusReasonAbnormalExit       RunStatusReasonKind = "ABNORMAL_EXIT"
	RunStatusReasonSchedulerError     RunStatusReasonKind = "SCHEDULER_ERROR"
	RunStatusReasonFailedPrecondition RunStatusReasonKind = "FAILED_PRECONDITION"
	RunStatusReasonUserCancelled      RunStatusReasonKind = "USER_CANCELLED"
	RunStatusReasonAdminCancelled     RunStatusReasonKind = "ADMIN_CANCELLED"
)

type RunStatusReason struct {
	Kind        RunStatusReasonKind `json:"kind"`
	Description string              `json:"description"`
}

func (r *RunStatusReason) ToJSON() string {
	if r == nil {
		return ""
	}

	raw, err := json.Marshal(r)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	return string(raw)
}

func runStatusReasonFromJSON(raw string) *RunStatusReason {
	if raw == "" {
		return nil
	}

	var reason RunStatusReason

	err := json.Unmarshal([]byte(raw), &reason)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	return &reason
}

type InitiatorType string

const (
	InitiatorUnknown InitiatorType = "UNKNOWN"
	InitiatorHuman   InitiatorType = "HUMAN"
	InitiatorBot     InitiatorType = "BOT"
)

type Initiator struct {
	Type   InitiatorType `json:"type"`
	Name   string        `json:"name"`
	Reason string        `json:"reason"`
}

// Run is one execution attempt of a pipeline config version. RunID is
// monotonically increasing per (namespace, pipeline) starting at 1.
type Run struct {
	NamespaceID           string
	PipelineID            string
	PipelineConfigVersion int64
	RunID                 int64
	Started               int64
	Ended                 int64
	State                 RunState
	Status                RunStatus
	StatusReason          *RunStatusReason
	Initiator             Initiator
	Variables             []Variable

	// TokenID references the token row minted for this run when any task
	// requested InjectAPIToken. Empty when no task did.
	TokenID string

	// StoreObjectsExpired is set true once the Expiry Sweeper has deleted
	// every run-scoped object store key belonging to this run.
	StoreObjectsExpired bool

	// EventID is the id of the QueuedRun event for this run; it is the
	// durable cursor recovery replays the event bus from.
	EventID string
}

func NewRun(namespace, pipeline string, configVersion, runID int64, initiator Initiator, variables []Variable) *Run {
	return &Run{
		NamespaceID:           namespace,
		PipelineID:            pipeline,
		PipelineConfigVersion: configVersion,
		RunID:                 runID,
		State:                 RunStatePending,
		Status:                RunStatusUnknown,
		Initiator:             initiator,
		Variables:             variables,
	}
}

func (r *Run) ToStorage() *storage.PipelineRun {
	initiatorJSON, err := json.Marshal(r.Initiator)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	variablesJSON, err := json.Marshal(r.Variables)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	return &storage.PipelineRun{
		Namespace:             r.NamespaceID,
		Pipeline:              r.PipelineID,
		PipelineConfigVersion: r.PipelineConfigVersion,
		ID:                    r.RunID,
		Started:               r.Started,
		Ended:                 r.Ended,
		State:                 string(r.State),
		Status:                string(r.Status),
		StatusReason:          r.StatusReason.ToJSON(),
		Initiator:             string(initiatorJSON),
		Variables:             string(variablesJSON),
		StoreObjectsExpired:   r.StoreObjectsExpired,
		TokenID:               r.TokenID,
		EventID:               r.EventID,
	}
}

func RunFromStorage(s *storage.PipelineRun) Run {
	var initiator Initiator

	err := json.Unmarshal([]byte(s.Initiator), &initiator)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	var variables []Variable

	err = json.Unmarshal([]byte(s.Variables), &variables)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	return Run{
		NamespaceID:           s.Namespace,
		PipelineID:            s.Pipeline,
		PipelineConfigVersion: s.PipelineConfigVersion,
		RunID:                 s.ID,
		Started:               s.Started,
		Ended:                 s.Ended,
		State:                 RunState(s.State),
		Status:                RunStatus(s.Status),
		StatusReason:          runStatusReasonFromJSON(s.StatusReason),
		Initiator:             initiator,
		Variables:             variables,
		StoreObjectsExpired:   s.StoreObjectsExpired,
		TokenID:               s.TokenID,
		EventID:               s.EventID,
	}
}

