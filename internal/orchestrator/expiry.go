package orchestrator

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clintjedwards/gofer-sub001/internal/models"
	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

// sweepRunObjects waits for the run that retention now pushes out of the
// window to finish, then deletes its run-scoped objects (and, if it minted
// one, its injected token) exactly once. One sweeper is spawned per new run;
// the limit is a count of most-recent runs to keep, so a pipeline with fewer
// runs than the limit has nothing to expire yet.
func (o *Orchestrator) sweepRunObjects(pipeline models.PipelineMetadata, _ models.Run) {
	limit := o.config.ObjectStore.RunObjectExpiry

	runs, err := o.db.ListPipelineRuns(o.db, 0, limit+1, pipeline.NamespaceID, pipeline.ID)
	if err != nil {
		log.Error().Err(err).Msg("could not list runs for object expiry")
		return
	}

	if limit > len(runs) || len(runs) == 0 {
		return
	}

	expiredRun := models.RunFromStorage(&runs[len(runs)-1])

	expiredRun = o.waitForRunComplete(pipeline, expiredRun)
	if expiredRun.RunID == 0 {
		return
	}

	if expiredRun.StoreObjectsExpired {
		return
	}

	if expiredRun.TokenID != "" {
		if err := o.secretStore.DeleteSecret(injectedTokenSecretKey(expiredRun.RunID)); err != nil {
			log.Error().Err(err).Msg("could not delete injected token secret during object expiry")
		}
		if err := o.db.DeleteSecretStorePipelineKey(o.db, pipeline.NamespaceID, pipeline.ID, injectedTokenSecretKey(expiredRun.RunID)); err != nil {
			log.Error().Err(err).Msg("could not delete injected token secret key row during object expiry")
		}
		if err := o.db.DeleteToken(o.db, expiredRun.TokenID); err != nil {
			log.Error().Err(err).Msg("could not delete injected token row during object expiry")
		}
	}

	keys, err := o.db.ListObjectStoreRunKeys(o.db, pipeline.NamespaceID, pipeline.ID, expiredRun.RunID)
	if err != nil {
		log.Error().Err(err).Msg("could not list run object keys during object expiry")
		return
	}

	for _, key := range keys {
		if err := o.objectStore.DeleteObject(runObjectKey(pipeline.NamespaceID, pipeline.ID, expiredRun.RunID, key.Key)); err != nil {
			log.Error().Err(err).Msg("could not delete run object during object expiry")
			continue
		}
		if err := o.db.DeleteObjectStoreRunKey(o.db, pipeline.NamespaceID, pipeline.ID, expiredRun.RunID, key.Key); err != nil {
			log.Error().Err(err).Msg("could not delete run object key row during object expiry")
		}
	}

	if err := o.db.UpdatePipelineRun(o.db, pipeline.NamespaceID, pipeline.ID, expiredRun.RunID,
		storage.UpdatablePipelineRunFields{StoreObjectsExpired: ptr(true)}); err != nil {
		log.Error().Err(err).Msg("could not mark run objects expired")
	}
}

// sweepRunLogs waits for the run that retention now pushes out of the window,
// and every one of its task executions, to finish, then deletes each task
// execution's on-disk log file exactly once.
func (o *Orchestrator) sweepRunLogs(pipeline models.PipelineMetadata, _ models.Run) {
	limit := o.config.RunLogExpiry

	runs, err := o.db.ListPipelineRuns(o.db, 0, limit+1, pipeline.NamespaceID, pipeline.ID)
	if err != nil {
		log.Error().Err(err).Msg("could not list runs for log expiry")
		return
	}

	if limit > len(runs) || len(runs) == 0 {
		return
	}

	expiredRun := models.RunFromStorage(&runs[len(runs)-1])

	expiredRun = o.waitForRunComplete(pipeline, expiredRun)
	if expiredRun.RunID == 0 {
		return
	}

	executions := o.waitForTaskExecutionsComplete(pipeline, expiredRun.RunID)

	for _, execution := range executions {
		if execution.LogsExpired || execution.LogsRemoved {
			continue
		}

		path := taskExecutionLogPath(o.config.TaskExecutionLogsDir, pipeline.NamespaceID, pipeline.ID, expiredRun.RunID, execution.ID)

		if err := os.Remove(path); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("could not remove task execution log file")
		}

		if err := o.db.UpdatePipelineTaskExecution(o.db, pipeline.NamespaceID, pipeline.ID, expiredRun.RunID, execution.ID,
			storage.UpdatablePipelineTaskExecutionFields{
				LogsExpired: ptr(true),
				LogsRemoved: ptr(true),
			}); err != nil {
			log.Error().Err(err).Str("task_execution", execution.ID).Msg("could not mark task execution logs removed")
		}
	}
}

// waitForRunComplete polls until the given run reaches the Complete state,
// returning the zero Run if the run disappears or a store error occurs.
func (o *Orchestrator) waitForRunComplete(pipeline models.PipelineMetadata, run models.Run) models.Run {
	for run.State != models.RunStateComplete {
		time.Sleep(time.Second)

		raw, err := o.db.GetPipelineRun(o.db, pipeline.NamespaceID, pipeline.ID, run.RunID)
		if err != nil {
			log.Error().Err(err).Msg("could not poll run state during expiry")
			return models.Run{}
		}

		run = models.RunFromStorage(&raw)
	}

	return run
}

// waitForTaskExecutionsComplete polls until every task execution belonging
// to run is Complete, returning the final listing.
func (o *Orchestrator) waitForTaskExecutionsComplete(pipeline models.PipelineMetadata, run int64) []storage.PipelineTaskExecution {
	for {
		executions, err := o.db.ListPipelineTaskExecutions(o.db, 0, 0, pipeline.NamespaceID, pipeline.ID, run)
		if err != nil {
			log.Error().Err(err).Msg("could not list task executions during log expiry")
			return nil
		}

		allComplete := true
		for _, execution := range executions {
			if models.TaskExecutionState(execution.State) != models.TaskExecutionStateComplete {
				allComplete = false
				break
			}
		}

		if allComplete {
			return executions
		}

		time.Sleep(500 * time.Millisecond)
	}
}
