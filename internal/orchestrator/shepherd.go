package orchestrator

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clintjedwards/gofer-sub001/internal/models"
	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

// shepherd owns one run from admission to terminal state: it spawns a
// Driver per task, spawns the Monitor that tallies their completion, and
// finalizes the run's status once every task has reached a terminal state.
type shepherd struct {
	orc            *Orchestrator
	pipeline       models.PipelineMetadata
	pipelineConfig models.PipelineConfig
	run            models.Run
	permit         *permit

	// recoverCursor is the event id Drivers and the Monitor replay history
	// from during recovery. Empty means this is a fresh run: no replay,
	// subscribe live only.
	recoverCursor string
}

func newShepherd(orc *Orchestrator, pipeline models.PipelineMetadata, pipelineConfig models.PipelineConfig, run models.Run, perm *permit) *shepherd {
	return &shepherd{
		orc:            orc,
		pipeline:       pipeline,
		pipelineConfig: pipelineConfig,
		run:            run,
		permit:         perm,
	}
}

// startRun begins a brand new run: announce it, spawn its Drivers and
// Monitor behind a rendezvous barrier, and block until the run finalizes.
func (s *shepherd) startRun() {
	go s.orc.sweepRunObjects(s.pipeline, s.run)
	go s.orc.sweepRunLogs(s.pipeline, s.run)

	s.orc.incrInProgress(s.pipeline.NamespaceID, s.pipeline.ID)

	s.orc.events.Publish(&models.EventStartedRun{
		NamespaceID: s.pipeline.NamespaceID,
		PipelineID:  s.pipeline.ID,
		RunID:       s.run.RunID,
	})

	if err := s.orc.db.UpdatePipelineRun(s.orc.db, s.pipeline.NamespaceID, s.pipeline.ID, s.run.RunID,
		storage.UpdatablePipelineRunFields{State: ptr(string(models.RunStateRunning))},
	); err != nil {
		log.Error().Err(err).Int64("run", s.run.RunID).Msg("could not mark run running")
	}

	s.run.State = models.RunStateRunning

	s.runTasks()
}

// recoverRun re-enters a run that was in-flight when the process last
// exited. Expiry sweepers are not re-spawned for a recovered run: if the
// original sweeper hadn't fired yet, the next run for this pipeline spawns
// one that covers it. Drivers and the Monitor replay from the run's durable
// QueuedRun cursor.
func (s *shepherd) recoverRun() {
	s.recoverCursor = s.run.EventID
	s.runTasks()
}

// runTasks spawns one Driver per task plus the Monitor, lined up behind a
// barrier so the Monitor can never miss a CompletedTaskExecution from a
// Driver that finishes unusually fast.
func (s *shepherd) runTasks() {
	tasks := s.pipelineConfig.Tasks

	barrier := NewBarrier(len(tasks) + 1)

	for _, task := range tasks {
		task := task
		driver := newDriver(s.orc, s.pipeline, s.pipelineConfig, s.run, task, s.recoverCursor)
		go driver.run(barrier)
	}

	s.runMonitor(barrier)
}

// runMonitor tallies CompletedTaskExecution events for this run until every
// task has reached a terminal state, translates run-level cancellation into
// per-task cancellation, then finalizes the run.
func (s *shepherd) runMonitor(barrier *Barrier) {
	sub, err := s.orc.events.Subscribe(models.EventKindCompletedTaskExecution)
	if err != nil {
		log.Error().Err(err).Msg("monitor could not subscribe to completed task execution events")
		return
	}
	defer s.orc.events.Unsubscribe(sub)

	cancelSub, err := s.orc.events.Subscribe(models.EventKindStartedRunCancellation)
	if err != nil {
		log.Error().Err(err).Msg("monitor could not subscribe to run cancellation events")
		return
	}
	defer s.orc.events.Unsubscribe(cancelSub)

	taskCancelSub, err := s.orc.events.Subscribe(models.EventKindStartedTaskExecutionCancellation)
	if err != nil {
		log.Error().Err(err).Msg("monitor could not subscribe to task cancellation events")
		return
	}
	defer s.orc.events.Unsubscribe(taskCancelSub)

	completed := map[string]models.TaskExecutionStatus{}
	isCancelled := false
	isFailed := false

	if s.recoverCursor != "" {
		s.replayMonitorHistory(s.recoverCursor, completed, &isCancelled)
	}

	barrier.ArriveAndWait()

	totalTasks := len(s.pipelineConfig.Tasks)

	for len(completed) < totalTasks {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			s.applyCompletedEvent(ev, completed)

		case ev, ok := <-cancelSub.Events:
			if !ok {
				return
			}
			details, isRunCancel := ev.Details.(*models.EventStartedRunCancellation)
			if !isRunCancel || details.RunID != s.run.RunID {
				continue
			}
			isCancelled = true
			s.cancelAllTasks()

		case ev, ok := <-taskCancelSub.Events:
			if !ok {
				return
			}
			details, isTaskCancel := ev.Details.(*models.EventStartedTaskExecutionCancellation)
			if !isTaskCancel || details.RunID != s.run.RunID {
				continue
			}
			isCancelled = true
		}
	}

	for _, status := range completed {
		if status == models.TaskExecutionStatusFailed || status == models.TaskExecutionStatusUnknown {
			isFailed = true
		}
	}

	s.finalize(isCancelled, isFailed)
}

func (s *shepherd) applyCompletedEvent(ev models.Event, completed map[string]models.TaskExecutionStatus) {
	details, ok := ev.Details.(*models.EventCompletedTaskExecution)
	if !ok || details.RunID != s.run.RunID {
		return
	}

	// Keep only the first observation for a given task.
	if _, exists := completed[details.TaskExecutionID]; exists {
		return
	}

	completed[details.TaskExecutionID] = details.Status
}

// replayMonitorHistory backfills tallying state from events published
// before this Monitor subscribed, starting at the run's durable cursor.
func (s *shepherd) replayMonitorHistory(cursor string, completed map[string]models.TaskExecutionStatus, isCancelled *bool) {
	history, err := s.orc.events.Since(cursor, 0)
	if err != nil {
		log.Error().Err(err).Msg("could not replay event history for recovery")
		return
	}

	for _, ev := range history {
		switch details := ev.Details.(type) {
		case *models.EventCompletedTaskExecution:
			if details.RunID != s.run.RunID {
				continue
			}
			if _, exists := completed[details.TaskExecutionID]; !exists {
				completed[details.TaskExecutionID] = details.Status
			}
		case *models.EventStartedRunCancellation:
			if details.RunID == s.run.RunID {
				*isCancelled = true
			}
		case *models.EventStartedTaskExecutionCancellation:
			if details.RunID == s.run.RunID {
				*isCancelled = true
			}
		}
	}
}

func (s *shepherd) cancelAllTasks() {
	timeout := s.orc.config.Orchestrator.TaskExecutionStopTimeout

	for taskID := range s.pipelineConfig.Tasks {
		s.orc.events.Publish(&models.EventStartedTaskExecutionCancellation{
			NamespaceID:     s.pipeline.NamespaceID,
			PipelineID:      s.pipeline.ID,
			RunID:           s.run.RunID,
			TaskExecutionID: taskID,
			TimeoutSeconds:  int64(timeout.Seconds()),
		})
	}
}

// finalize sets the run's terminal status, publishes CompletedRun, releases
// the run's global permit, and decrements the per-pipeline in-progress
// count.
func (s *shepherd) finalize(isCancelled, isFailed bool) {
	var status models.RunStatus
	var reason *models.RunStatusReason

	switch {
	case isCancelled:
		status = models.RunStatusCancelled
		reason = &models.RunStatusReason{
			Kind:        models.RunStatusReasonAbnormalExit,
			Description: "One or more task executions were cancelled during execution",
		}
	case isFailed:
		status = models.RunStatusFailed
		reason = &models.RunStatusReason{
			Kind:        models.RunStatusReasonAbnormalExit,
			Description: "One or more task executions failed during execution",
		}
	default:
		status = models.RunStatusSuccessful
	}

	err := s.orc.db.UpdatePipelineRun(s.orc.db, s.pipeline.NamespaceID, s.pipeline.ID, s.run.RunID, storage.UpdatablePipelineRunFields{
		State:        ptr(string(models.RunStateComplete)),
		Status:       ptr(string(status)),
		StatusReason: ptr(reason.ToJSON()),
		Ended:        ptr(time.Now().UnixMilli()),
	})
	if err != nil {
		log.Error().Err(err).Int64("run", s.run.RunID).Msg("could not finalize run")
	}

	s.orc.events.Publish(&models.EventCompletedRun{
		NamespaceID: s.pipeline.NamespaceID,
		PipelineID:  s.pipeline.ID,
		RunID:       s.run.RunID,
		Status:      status,
	})

	s.orc.decrInProgress(s.pipeline.NamespaceID, s.pipeline.ID)
	s.permit.release()
}
