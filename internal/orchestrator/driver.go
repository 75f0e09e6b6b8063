package orchestrator

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clintjedwards/gofer-sub001/internal/models"
	"github.com/clintjedwards/gofer-sub001/internal/scheduler"
	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

// driver is the state machine owning a single task execution's lifecycle:
// Processing -> Waiting -> Processing -> Running -> Complete.
type driver struct {
	orc            *Orchestrator
	pipeline       models.PipelineMetadata
	pipelineConfig models.PipelineConfig
	run            models.Run
	task           models.Task

	// recoverCursor replays history from this event id during the gate
	// phase when non-empty; see Orchestrator.RecoverRuns.
	recoverCursor string

	// pendingParents holds each depends_on parent's terminal status, filled
	// in by gate and read by checkDependencies.
	pendingParents map[string]models.TaskExecutionStatus
}

func newDriver(orc *Orchestrator, pipeline models.PipelineMetadata, pipelineConfig models.PipelineConfig, run models.Run, task models.Task, recoverCursor string) *driver {
	return &driver{
		orc:            orc,
		pipeline:       pipeline,
		pipelineConfig: pipelineConfig,
		run:            run,
		task:           task,
		recoverCursor:  recoverCursor,
	}
}

// run drives the task execution from insertion through to its terminal
// CompletedTaskExecution publish. It arrives at barrier immediately after
// subscribing to the event bus, before doing anything that could itself
// publish an event the Monitor needs to see.
func (d *driver) run(barrier *Barrier) {
	exec := models.NewTaskExecution(d.pipeline.NamespaceID, d.pipeline.ID, d.pipelineConfig.Version, d.run.RunID, d.task)

	err := d.orc.db.InsertPipelineTaskExecution(d.orc.db, exec.ToStorage())
	if err != nil {
		if !errors.Is(err, storage.ErrEntityExists) {
			log.Error().Err(err).Str("task", d.task.ID).Msg("could not insert task execution")
			barrier.ArriveAndWait()
			return
		}

		if d.adoptOrphan(exec.TaskExecutionID, barrier) {
			return
		}
	}

	cancelled, err := d.gate(barrier)
	if err != nil {
		log.Error().Err(err).Str("task", d.task.ID).Msg("gate phase failed")
		return
	}
	if cancelled {
		d.complete(exec.TaskExecutionID, nil, models.TaskExecutionStatusCancelled, &models.TaskExecutionStatusReason{
			Kind:        models.TaskExecutionStatusReasonCancelled,
			Description: "task execution was cancelled",
		})
		return
	}

	if len(d.task.DependsOn) > 0 {
		if skipErr := d.checkDependencies(); skipErr != nil {
			d.complete(exec.TaskExecutionID, nil, models.TaskExecutionStatusSkipped, &models.TaskExecutionStatusReason{
				Kind:        models.TaskExecutionStatusReasonFailedPrecondition,
				Description: fmt.Sprintf("Task could not be run due to unmet dependencies; %v", skipErr),
			})
			return
		}
	}

	d.setState(exec.TaskExecutionID, models.TaskExecutionStateProcessing)

	variables, err := d.orc.resolveVariables(d.pipeline, d.run, d.task)
	if err != nil {
		d.complete(exec.TaskExecutionID, nil, models.TaskExecutionStatusFailed, &models.TaskExecutionStatusReason{
			Kind:        models.TaskExecutionStatusReasonFailedPrecondition,
			Description: fmt.Sprintf("Task could not be run due to inability to resolve variables; %v", err),
		})
		return
	}

	envVars := map[string]string{}
	for _, variable := range variables {
		envVars[variable.Key] = variable.Value
	}

	containerID := taskExecutionContainerID(d.pipeline.NamespaceID, d.pipeline.ID, d.run.RunID, d.task.ID)

	var entrypoint, command *[]string
	if len(d.task.Entrypoint) > 0 {
		entrypoint = &d.task.Entrypoint
	}
	if len(d.task.Command) > 0 {
		command = &d.task.Command
	}

	_, err = d.orc.scheduler.StartContainer(scheduler.StartContainerRequest{
		ID:               containerID,
		ImageName:        d.task.Image,
		EnvVars:          envVars,
		RegistryAuth:     d.task.RegistryAuth,
		Entrypoint:       entrypoint,
		Command:          command,
		AlwaysPull:       d.task.AlwaysPullNewestImage,
		EnableNetworking: true,
	})
	if err != nil {
		d.complete(exec.TaskExecutionID, nil, models.TaskExecutionStatusFailed, &models.TaskExecutionStatusReason{
			Kind:        models.TaskExecutionStatusReasonSchedulerError,
			Description: fmt.Sprintf("Task could not be run due to inability to be scheduled; %v", err),
		})
		return
	}

	if err := d.orc.db.UpdatePipelineTaskExecution(d.orc.db, d.pipeline.NamespaceID, d.pipeline.ID, d.run.RunID, exec.TaskExecutionID,
		storage.UpdatablePipelineTaskExecutionFields{
			State:   ptr(string(models.TaskExecutionStateRunning)),
			Started: ptr(fmt.Sprint(time.Now().UnixMilli())),
		}); err != nil {
		log.Error().Err(err).Str("task", d.task.ID).Msg("could not mark task execution running")
	}

	d.orc.events.Publish(&models.EventStartedTaskExecution{
		NamespaceID:     d.pipeline.NamespaceID,
		PipelineID:      d.pipeline.ID,
		RunID:           d.run.RunID,
		TaskExecutionID: exec.TaskExecutionID,
	})

	go d.pumpLogs(containerID, exec.TaskExecutionID)
	d.monitor(containerID, exec.TaskExecutionID)
}

// adoptOrphan is called when InsertPipelineTaskExecution finds a row already
// recorded for this task execution, meaning the orchestrator crashed and is
// now recovering it. If the row was left Running, the container that was
// driving it may have died along with the process that started it, or it may
// still be running happily on the scheduler. adoptOrphan asks the scheduler;
// if it has no record of the container, the task execution is marked
// Complete/Unknown(Orphaned) and true is returned so run() stops driving it
// further. Returns false when the row can be safely re-driven through the
// normal gate/run path (not Running, or the scheduler still has it).
func (d *driver) adoptOrphan(taskExecutionID string, barrier *Barrier) bool {
	row, err := d.orc.db.GetPipelineTaskExecution(d.orc.db, d.pipeline.NamespaceID, d.pipeline.ID, d.run.RunID, taskExecutionID)
	if err != nil {
		log.Error().Err(err).Str("task", d.task.ID).Msg("could not look up adopted task execution")
		barrier.ArriveAndWait()
		return true
	}

	if models.TaskExecutionState(row.State) != models.TaskExecutionStateRunning {
		return false
	}

	containerID := taskExecutionContainerID(d.pipeline.NamespaceID, d.pipeline.ID, d.run.RunID, d.task.ID)

	_, err = d.orc.scheduler.GetState(scheduler.GetStateRequest{SchedulerID: containerID})
	if err == nil {
		// The scheduler still has the container; fall through and let the
		// normal gate/monitor path re-attach to it.
		return false
	}

	if !errors.Is(err, scheduler.ErrNoSuchContainer) {
		log.Error().Err(err).Str("task", d.task.ID).Msg("could not query scheduler while adopting recovered task execution")
		barrier.ArriveAndWait()
		return true
	}

	barrier.ArriveAndWait()

	d.complete(taskExecutionID, nil, models.TaskExecutionStatusUnknown, &models.TaskExecutionStatusReason{
		Kind:        models.TaskExecutionStatusReasonOrphaned,
		Description: "the scheduler has no record of this task execution's container; it was likely lost when the orchestrator process was previously interrupted",
	})
	return true
}

// gate subscribes to the events the Waiting phase needs, arrives at the
// barrier, replays recovery history if any, then blocks until every parent
// in depends_on has completed or a cancellation for this task arrives.
// Returns true if the task was cancelled during the gate.
func (d *driver) gate(barrier *Barrier) (bool, error) {
	completedSub, err := d.orc.events.Subscribe(models.EventKindCompletedTaskExecution)
	if err != nil {
		return false, err
	}
	defer d.orc.events.Unsubscribe(completedSub)

	cancelSub, err := d.orc.events.Subscribe(models.EventKindStartedTaskExecutionCancellation)
	if err != nil {
		return false, err
	}
	defer d.orc.events.Unsubscribe(cancelSub)

	barrier.ArriveAndWait()

	parentStatus := map[string]models.TaskExecutionStatus{}

	if d.recoverCursor != "" {
		history, err := d.orc.events.Since(d.recoverCursor, 0)
		if err != nil {
			return false, err
		}
		for _, ev := range history {
			if details, ok := ev.Details.(*models.EventCompletedTaskExecution); ok && details.RunID == d.run.RunID {
				if _, exists := d.task.DependsOn[details.TaskExecutionID]; exists {
					if _, seen := parentStatus[details.TaskExecutionID]; !seen {
						parentStatus[details.TaskExecutionID] = details.Status
					}
				}
			}
			if details, ok := ev.Details.(*models.EventStartedTaskExecutionCancellation); ok &&
				details.RunID == d.run.RunID && details.TaskExecutionID == d.task.ID {
				return true, nil
			}
		}
	}

	if len(d.task.DependsOn) == 0 {
		return false, nil
	}

	d.setState(d.task.ID, models.TaskExecutionStateWaiting)

	for !d.allParentsRecorded(parentStatus) {
		select {
		case ev, ok := <-completedSub.Events:
			if !ok {
				return false, nil
			}
			details, isCompleted := ev.Details.(*models.EventCompletedTaskExecution)
			if !isCompleted || details.RunID != d.run.RunID {
				continue
			}
			if _, exists := d.task.DependsOn[details.TaskExecutionID]; !exists {
				continue
			}
			if _, seen := parentStatus[details.TaskExecutionID]; !seen {
				parentStatus[details.TaskExecutionID] = details.Status
			}

		case ev, ok := <-cancelSub.Events:
			if !ok {
				return false, nil
			}
			details, isCancel := ev.Details.(*models.EventStartedTaskExecutionCancellation)
			if isCancel && details.RunID == d.run.RunID && details.TaskExecutionID == d.task.ID {
				return true, nil
			}
		}
	}

	d.pendingParents = parentStatus
	return false, nil
}

func (d *driver) allParentsRecorded(parentStatus map[string]models.TaskExecutionStatus) bool {
	for parent := range d.task.DependsOn {
		if _, exists := parentStatus[parent]; !exists {
			return false
		}
	}
	return true
}

// checkDependencies verifies each parent's terminal status satisfies the
// required_parent_status this task declared for it. d.pendingParents is
// populated by gate().
func (d *driver) checkDependencies() error {
	for parent, required := range d.task.DependsOn {
		status, exists := d.pendingParents[parent]
		if !exists {
			return fmt.Errorf("could not find recorded status for parent %q", parent)
		}

		switch required {
		case models.RequiredParentStatusAny:
			if status != models.TaskExecutionStatusSuccessful &&
				status != models.TaskExecutionStatusFailed &&
				status != models.TaskExecutionStatusSkipped {
				return fmt.Errorf("parent %q has status %q, which does not satisfy required 'any' dependency", parent, status)
			}
		case models.RequiredParentStatusSuccess:
			if status != models.TaskExecutionStatusSuccessful {
				return fmt.Errorf("parent %q has status %q, which does not satisfy required 'success' dependency", parent, status)
			}
		case models.RequiredParentStatusFailure:
			if status != models.TaskExecutionStatusFailed {
				return fmt.Errorf("parent %q has status %q, which does not satisfy required 'failure' dependency", parent, status)
			}
		default:
			return fmt.Errorf("parent %q has an unknown required status", parent)
		}
	}

	return nil
}

// monitor polls the scheduler at 1 Hz for this task execution's container
// state and watches for a cancellation event, until the task reaches a
// terminal state.
func (d *driver) monitor(containerID, taskExecutionID string) {
	cancelSub, err := d.orc.events.Subscribe(models.EventKindStartedTaskExecutionCancellation)
	if err != nil {
		log.Error().Err(err).Msg("could not subscribe to cancellation events")
		return
	}
	defer d.orc.events.Unsubscribe(cancelSub)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-cancelSub.Events:
			if !ok {
				return
			}
			details, isCancel := ev.Details.(*models.EventStartedTaskExecutionCancellation)
			if !isCancel || details.RunID != d.run.RunID || details.TaskExecutionID != d.task.ID {
				continue
			}

			timeout := time.Duration(details.TimeoutSeconds) * time.Second
			if err := d.orc.scheduler.StopContainer(scheduler.StopContainerRequest{
				SchedulerID: containerID,
				Timeout:     timeout,
			}); err != nil {
				log.Error().Err(err).Str("task", d.task.ID).Msg("could not stop container for cancelled task execution")
			}

			d.complete(taskExecutionID, nil, models.TaskExecutionStatusCancelled, &models.TaskExecutionStatusReason{
				Kind:        models.TaskExecutionStatusReasonCancelled,
				Description: "a user cancelled the task execution",
			})
			return

		case <-ticker.C:
			response, err := d.orc.scheduler.GetState(scheduler.GetStateRequest{SchedulerID: containerID})
			if err != nil {
				d.complete(taskExecutionID, nil, models.TaskExecutionStatusUnknown, &models.TaskExecutionStatusReason{
					Kind:        models.TaskExecutionStatusReasonSchedulerError,
					Description: fmt.Sprintf("could not query the scheduler for task execution state; %v", err),
				})
				return
			}

			switch response.State {
			case models.ContainerStateRunning:
				continue
			case models.ContainerStateSuccess:
				exitCode := int64(response.ExitCode)
				d.complete(taskExecutionID, &exitCode, models.TaskExecutionStatusSuccessful, nil)
				return
			case models.ContainerStateFailed:
				exitCode := int64(response.ExitCode)
				d.complete(taskExecutionID, &exitCode, models.TaskExecutionStatusFailed, &models.TaskExecutionStatusReason{
					Kind:        models.TaskExecutionStatusReasonAbnormalExit,
					Description: "task execution exited with an abnormal exit code",
				})
				return
			case models.ContainerStateCancelled:
				d.complete(taskExecutionID, nil, models.TaskExecutionStatusCancelled, &models.TaskExecutionStatusReason{
					Kind:        models.TaskExecutionStatusReasonCancelled,
					Description: "the container was cancelled at the scheduler level",
				})
				return
			default:
				d.complete(taskExecutionID, nil, models.TaskExecutionStatusUnknown, &models.TaskExecutionStatusReason{
					Kind:        models.TaskExecutionStatusReasonSchedulerError,
					Description: "an unknown error occurred at the scheduler level",
				})
				return
			}
		}
	}
}

// pumpLogs consumes the scheduler's log stream for a container and appends
// it to the task execution's log file, finishing with the GOFER_EOF
// sentinel so readers can tell a finished file from one still being
// written to.
func (d *driver) pumpLogs(containerID, taskExecutionID string) {
	logs, err := d.orc.scheduler.GetLogs(scheduler.GetLogsRequest{SchedulerID: containerID})
	if err != nil {
		log.Error().Err(err).Str("task", d.task.ID).Msg("could not open scheduler log stream")
		return
	}

	path := taskExecutionLogPath(d.orc.config.TaskExecutionLogsDir, d.pipeline.NamespaceID, d.pipeline.ID, d.run.RunID, taskExecutionID)

	file, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("could not open task execution log file for writing")
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(logs)
	for scanner.Scan() {
		_, _ = file.WriteString(scanner.Text() + "\n")
	}

	_, _ = file.WriteString(LogEOF + "\n")

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Str("task", d.task.ID).Msg("error reading scheduler log stream")
	}
}

func (d *driver) setState(taskExecutionID string, state models.TaskExecutionState) {
	if err := d.orc.db.UpdatePipelineTaskExecution(d.orc.db, d.pipeline.NamespaceID, d.pipeline.ID, d.run.RunID, taskExecutionID,
		storage.UpdatablePipelineTaskExecutionFields{State: ptr(string(state))}); err != nil {
		log.Error().Err(err).Str("task", taskExecutionID).Msg("could not update task execution state")
	}
}

// complete marks a task execution Complete with a terminal status and
// publishes exactly one CompletedTaskExecution event.
func (d *driver) complete(taskExecutionID string, exitCode *int64, status models.TaskExecutionStatus, reason *models.TaskExecutionStatusReason) {
	err := d.orc.db.UpdatePipelineTaskExecution(d.orc.db, d.pipeline.NamespaceID, d.pipeline.ID, d.run.RunID, taskExecutionID,
		storage.UpdatablePipelineTaskExecutionFields{
			ExitCode:     exitCode,
			State:        ptr(string(models.TaskExecutionStateComplete)),
			Status:       ptr(string(status)),
			StatusReason: ptr(reason.ToJSON()),
			Ended:        ptr(fmt.Sprint(time.Now().UnixMilli())),
		})
	if err != nil {
		log.Error().Err(err).Str("task", taskExecutionID).Msg("could not mark task execution complete")
	}

	d.orc.events.Publish(&models.EventCompletedTaskExecution{
		NamespaceID:     d.pipeline.NamespaceID,
		PipelineID:      d.pipeline.ID,
		RunID:           d.run.RunID,
		TaskExecutionID: taskExecutionID,
		Status:          status,
	})
}
