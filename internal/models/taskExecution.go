package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

type TaskExecutionState string

const (
	TaskExecutionStateUnknown    TaskExecutionState = "UNKNOWN"
	TaskExecutionStateProcessing TaskExecutionState = "PROCESSING"
	TaskExecutionStateWaiting    TaskExecutionState = "WAITING"
	TaskExecutionStateRunning    TaskExecutionState = "RUNNING"
	TaskExecutionStateComplete   TaskExecutionState = "COMPLETE"
)

type TaskExecutionStatus string

const (
	TaskExecutionStatusUnknown    TaskExecutionStatus = "UNKNOWN"
	TaskExecutionStatusFailed     TaskExecutionStatus = "FAILED"
	TaskExecutionStatusSuccessful TaskExecutionStatus = "SUCCESSFUL"
	TaskExecutionStatusCancelled  TaskExecutionStatus = "CANCELLED"
	TaskExecutionStatusSkipped    TaskExecutionStatus = "SKIPPED"
)

type TaskExecutionStatusReasonKind string

const (
	TaskExecutionStatusReasonUnknown           TaskExecutionStatusReasonKind = "UNKNOWN"
	TaskExecutionStatusReasonAbnormalExit      TaskExecutionStatusReasonKind = "ABNORMAL_EXIT"
	TaskExecutionStatusReasonSchedulerError    TaskExecutionStatusReasonKind = "SCHEDULER_ERROR"
	TaskExecutionStatusReasonFailedPrecondition TaskExecutionStatusReasonKind = "FAILED_PRECONDITION"
	TaskExecutionStatusReasonCancelled         TaskExecutionStatusReasonKind = "CANCELLED"
	TaskExecutionStatusReasonOrphaned          TaskExecutionStatusReasonKind = "ORPHANED"
)

type TaskExecutionStatusReason struct {
	Kind        TaskExecutionStatusReasonKind `json:"kind"`
	Description string                        `json:"description"`
}

func (r *TaskExecutionStatusReason) ToJSON() string {
	if r == nil {
		return ""
	}

	raw, err := json.Marshal(r)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	return string(raw)
}

func taskExecutionStatusReasonFromJSON(raw string) *TaskExecutionStatusReason {
	if raw == "" {
		return nil
	}

	var reason TaskExecutionStatusReason

	err := json.Unmarshal([]byte(raw), &reason)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	return &reason
}

// TaskExecution is one container invocation, scoped to a single task within
// a single run. The orchestrator owns every mutation of this row; nothing
// else writes to it.
type TaskExecution struct {
	NamespaceID     string
	PipelineID      string
	Version         int64
	RunID           int64
	TaskExecutionID string
	Created         int64
	Started         int64
	Ended           int64
	ExitCode        *int64
	LogsExpired     bool
	LogsRemoved     bool
	State           TaskExecutionState
	Status          TaskExecutionStatus
	StatusReason    *TaskExecutionStatusReason
	Variables       []Variable
	Task            Task
}

func NewTaskExecution(namespace, pipeline string, version, run int64, task Task) *TaskExecution {
	return &TaskExecution{
		NamespaceID:     namespace,
		PipelineID:      pipeline,
		Version:         version,
		RunID:           run,
		TaskExecutionID: task.ID,
		Created:         time.Now().UnixMilli(),
		State:           TaskExecutionStateProcessing,
		Status:          TaskExecutionStatusUnknown,
		Variables:       []Variable{},
		Task:            task,
	}
}

func (t *TaskExecution) ToStorage() *storage.PipelineTaskExecution {
	variablesJSON, err := json.Marshal(t.Variables)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	taskJSON, err := json.Marshal(t.Task)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	var exitCode int64 = -1
	if t.ExitCode != nil {
		exitCode = *t.ExitCode
	}

	return &storage.PipelineTaskExecution{
		Namespace:    t.NamespaceID,
		Pipeline:     t.PipelineID,
		Version:      t.Version,
		Run:          t.RunID,
		ID:           t.TaskExecutionID,
		Task:         string(taskJSON),
		Created:      fmt.Sprint(t.Created),
		Started:      fmt.Sprint(t.Started),
		Ended:        fmt.Sprint(t.Ended),
		ExitCode:     exitCode,
		LogsExpired:  t.LogsExpired,
		LogsRemoved:  t.LogsRemoved,
		State:        string(t.State),
		Status:       string(t.Status),
		StatusReason: t.StatusReason.ToJSON(),
		Variables:    string(variablesJSON),
	}
}

func TaskExecutionFromStorage(s *storage.PipelineTaskExecution) TaskExecution {
	var variables []Variable

	err := json.Unmarshal([]byte(s.Variables), &variables)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	var task Task

	err = json.Unmarshal([]byte(s.Task), &task)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	created, err := strconv.ParseInt(s.Created, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	started, err := strconv.ParseInt(orEmpty(s.Started), 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	ended, err := strconv.ParseInt(orEmpty(s.Ended), 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	var exitCode *int64
	if s.ExitCode >= 0 {
		ec := s.ExitCode
		exitCode = &ec
	}

	return TaskExecution{
		NamespaceID:     s.Namespace,
		PipelineID:      s.Pipeline,
		Version:         s.Version,
		RunID:           s.Run,
		TaskExecutionID: s.ID,
		Created:         created,
		Started:         started,
		Ended:           ended,
		ExitCode:        exitCode,
		LogsExpired:     s.LogsExpired,
		LogsRemoved:     s.LogsRemoved,
		State:           TaskExecutionState(s.State),
		Status:          TaskExecutionStatus(s.Status),
		StatusReason:    taskExecutionStatusReasonFromJSON(s.StatusReason),
		Variables:       variables,
		Task:            task,
	}
}

func orEmpty(s string) string {
	if s == "" {
		return "0"
	}

	return s
}
