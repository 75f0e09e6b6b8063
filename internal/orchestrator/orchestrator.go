// Package orchestrator owns a pipeline run from admission through terminal
// state: it gates new runs against global and per-pipeline concurrency
// limits, drives each run's task DAG to completion, and replays in-flight
// runs back into memory after a restart.
package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clintjedwards/gofer-sub001/internal/config"
	"github.com/clintjedwards/gofer-sub001/internal/eventbus"
	"github.com/clintjedwards/gofer-sub001/internal/models"
	"github.com/clintjedwards/gofer-sub001/internal/objectStore"
	"github.com/clintjedwards/gofer-sub001/internal/scheduler"
	"github.com/clintjedwards/gofer-sub001/internal/secretStore"
	"github.com/clintjedwards/gofer-sub001/internal/storage"
	"github.com/clintjedwards/gofer-sub001/internal/syncmap"
)

var (
	ErrPipelineRunIgnored       = errors.New("orchestrator: pipeline is configured to ignore new run events")
	ErrPipelineMetadataNotFound = errors.New("orchestrator: pipeline metadata not found")
	ErrPipelineInactive         = errors.New("orchestrator: pipeline is not active")
	ErrPipelineConfigNotFound   = errors.New("orchestrator: pipeline has no registered config")
)

const injectedTokenExpiry = time.Hour * 24 * 21 // 3 weeks

// Orchestrator is the top-level admission and recovery coordinator. It owns
// the global run semaphore and the per-pipeline in-progress counters; the
// actual per-run work is delegated to a Shepherd.
type Orchestrator struct {
	db          storage.DB
	events      *eventbus.EventBus
	scheduler   scheduler.Engine
	objectStore objectStore.Engine
	secretStore secretStore.Engine
	config      *config.Config

	// ignorePipelineRunEvents is a global kill switch; when set, admission
	// fails fast instead of queueing new runs.
	ignorePipelineRunEvents bool

	globalPermits chan struct{}

	// inProgressRuns tracks, per "{namespace}/{pipeline}", how many runs are
	// currently not in a Complete state. Guards the per-pipeline parallelism
	// gate in launchNewRun.
	inProgressRuns syncmap.Syncmap[string, int64]
}

// New constructs an Orchestrator. It does not start recovery; call
// RecoverRuns once collaborators are fully wired.
func New(
	db storage.DB,
	events *eventbus.EventBus,
	sched scheduler.Engine,
	objStore objectStore.Engine,
	secStore secretStore.Engine,
	cfg *config.Config,
) *Orchestrator {
	limit := cfg.Orchestrator.MaxConcurrentGlobalRuns
	if limit <= 0 {
		limit = 1
	}

	return &Orchestrator{
		db:             db,
		events:         events,
		scheduler:      sched,
		objectStore:    objStore,
		secretStore:    secStore,
		config:         cfg,
		globalPermits:  make(chan struct{}, limit),
		inProgressRuns: syncmap.New[string, int64](),
	}
}

// SetIgnorePipelineRunEvents toggles the global admission kill switch.
func (o *Orchestrator) SetIgnorePipelineRunEvents(ignore bool) {
	o.ignorePipelineRunEvents = ignore
}

// permit represents one held slot of the global run semaphore. It must be
// released exactly once, by the Shepherd, at run finalization.
type permit struct {
	ch       chan struct{}
	released bool
}

func (o *Orchestrator) acquirePermit() *permit {
	o.globalPermits <- struct{}{}
	return &permit{ch: o.globalPermits}
}

func (p *permit) release() {
	if p.released {
		return
	}
	p.released = true
	<-p.ch
}

func inProgressKey(namespace, pipeline string) string {
	return fmt.Sprintf("%s/%s", namespace, pipeline)
}

func (o *Orchestrator) incrInProgress(namespace, pipeline string) {
	key := inProgressKey(namespace, pipeline)
	_ = o.inProgressRuns.Swap(key, func(v int64, _ bool) (int64, error) {
		return v + 1, nil
	})
}

func (o *Orchestrator) decrInProgress(namespace, pipeline string) {
	key := inProgressKey(namespace, pipeline)
	_ = o.inProgressRuns.Swap(key, func(v int64, _ bool) (int64, error) {
		if v <= 0 {
			return 0, nil
		}
		return v - 1, nil
	})
}

func (o *Orchestrator) countInProgress(namespace, pipeline string) int64 {
	v, _ := o.inProgressRuns.Get(inProgressKey(namespace, pipeline))
	return v
}

// LaunchNewRun admits a new run for (namespace, pipeline) if the pipeline is
// active and the global/per-pipeline concurrency gates allow it, then hands
// the run off to a freshly spawned Shepherd. It returns as soon as the run
// is durably queued; the Shepherd continues the run in the background.
func (o *Orchestrator) LaunchNewRun(namespace, pipelineID string, initiator models.Initiator, callerVars []models.Variable) (models.Run, error) {
	if o.ignorePipelineRunEvents {
		return models.Run{}, ErrPipelineRunIgnored
	}

	perm := o.acquirePermit()

	tx, err := o.db.Beginx()
	if err != nil {
		perm.release()
		return models.Run{}, fmt.Errorf("could not open transaction: %w", err)
	}

	run, pipeline, pipelineConfig, err := o.admitRun(tx, namespace, pipelineID, initiator, callerVars)
	if err != nil {
		_ = tx.Rollback()
		perm.release()
		return models.Run{}, err
	}

	if err := tx.Commit(); err != nil {
		perm.release()
		return models.Run{}, fmt.Errorf("could not commit transaction: %w", err)
	}

	o.waitForPipelineParallelism(pipeline.NamespaceID, pipeline.ID, pipelineConfig.Parallelism)

	shepherd := newShepherd(o, pipeline, pipelineConfig, run, perm)
	go shepherd.startRun()

	return run, nil
}

// admitRun performs every admission step that must happen inside a single
// write transaction: reading pipeline state, minting an injected token if
// any task needs one, and inserting + announcing the new run row.
func (o *Orchestrator) admitRun(
	conn storage.Queryable,
	namespace, pipelineID string,
	initiator models.Initiator,
	callerVars []models.Variable,
) (models.Run, models.PipelineMetadata, models.PipelineConfig, error) {
	metaRow, err := o.db.GetPipelineMetadata(conn, namespace, pipelineID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return models.Run{}, models.PipelineMetadata{}, models.PipelineConfig{}, ErrPipelineMetadataNotFound
		}
		return models.Run{}, models.PipelineMetadata{}, models.PipelineConfig{}, err
	}

	pipeline := models.PipelineMetadataFromStorage(&metaRow)
	if pipeline.State != models.PipelineStateActive {
		return models.Run{}, models.PipelineMetadata{}, models.PipelineConfig{}, ErrPipelineInactive
	}

	configRow, err := o.db.GetLatestPipelineConfig(conn, namespace, pipelineID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return models.Run{}, models.PipelineMetadata{}, models.PipelineConfig{}, ErrPipelineConfigNotFound
		}
		return models.Run{}, models.PipelineMetadata{}, models.PipelineConfig{}, err
	}

	taskRows, err := o.db.ListPipelineTasks(conn, namespace, pipelineID, configRow.Version)
	if err != nil {
		return models.Run{}, models.PipelineMetadata{}, models.PipelineConfig{}, err
	}

	pipelineConfig := models.PipelineConfigFromStorage(&configRow, taskRows)

	latestRun, err := o.db.GetLatestPipelineRun(conn, namespace, pipelineID)
	newRunID := int64(1)
	if err == nil {
		newRunID = latestRun.ID + 1
	} else if !errors.Is(err, storage.ErrEntityNotFound) {
		return models.Run{}, models.PipelineMetadata{}, models.PipelineConfig{}, err
	}

	run := models.NewRun(namespace, pipelineID, pipelineConfig.Version, newRunID, initiator, callerVars)

	needsToken := false
	for _, task := range pipelineConfig.Tasks {
		if task.InjectAPIToken {
			needsToken = true
			break
		}
	}

	if needsToken {
		tokenID, err := o.mintInjectedToken(conn, namespace, pipelineID, newRunID)
		if err != nil {
			return models.Run{}, models.PipelineMetadata{}, models.PipelineConfig{}, fmt.Errorf("could not mint injected token: %w", err)
		}
		run.TokenID = tokenID
	}

	if err := o.db.InsertPipelineRun(conn, run.ToStorage()); err != nil {
		return models.Run{}, models.PipelineMetadata{}, models.PipelineConfig{}, fmt.Errorf("could not insert run: %w", err)
	}

	queuedEvent := o.events.Publish(&models.EventQueuedRun{
		NamespaceID: namespace,
		PipelineID:  pipelineID,
		RunID:       newRunID,
	})
	run.EventID = queuedEvent.ID

	if err := o.db.UpdatePipelineRun(conn, namespace, pipelineID, newRunID, storage.UpdatablePipelineRunFields{
		EventID: ptr(queuedEvent.ID),
	}); err != nil {
		return models.Run{}, models.PipelineMetadata{}, models.PipelineConfig{}, fmt.Errorf("could not record event cursor: %w", err)
	}

	return *run, pipeline, pipelineConfig, nil
}

// mintInjectedToken generates a run-scoped API token, persists its hash,
// and stores the plaintext as a pipeline secret under a run-specific key so
// the Variable Resolver can hand it to tasks that request GOFER_TOKEN.
func (o *Orchestrator) mintInjectedToken(conn storage.Queryable, namespace, pipeline string, run int64) (string, error) {
	secret := models.GenerateTokenSecret()
	sum := sha256.Sum256([]byte(secret))
	hash := hex.EncodeToString(sum[:])

	token := models.NewInjectedRunToken(hash, namespace, pipeline, run, injectedTokenExpiry)

	if err := o.db.InsertToken(conn, token.ToStorage()); err != nil {
		return "", err
	}

	key := injectedTokenSecretKey(run)

	if err := o.db.InsertSecretStorePipelineKey(conn, namespace, pipeline, &storage.SecretStoreKey{
		Key:     key,
		Created: time.Now().UnixMilli(),
	}, true); err != nil {
		return "", err
	}

	if err := o.secretStore.PutSecret(pipelineSecretKey(namespace, pipeline, key), secret, true); err != nil {
		return "", err
	}

	return token.ID, nil
}

// waitForPipelineParallelism blocks until the pipeline's in-progress run
// count is under its effective parallelism limit: min(non-zero values) of
// the pipeline's own `parallelism` and the orchestrator's configured
// default; 0 on both sides means unlimited.
func (o *Orchestrator) waitForPipelineParallelism(namespace, pipeline string, pipelineParallelism int64) {
	limit := pipelineParallelism
	globalDefault := o.config.Orchestrator.PipelineRunConcurrencyLimit

	switch {
	case limit == 0:
		limit = globalDefault
	case globalDefault != 0 && globalDefault < limit:
		limit = globalDefault
	}

	if limit == 0 {
		return
	}

	for o.countInProgress(namespace, pipeline) >= limit {
		time.Sleep(time.Second)
	}
}

// CancelRun publishes a StartedRunCancellation event; the Monitor for the
// named run translates this into per-task cancellations.
func (o *Orchestrator) CancelRun(namespace, pipeline string, run int64) {
	o.events.Publish(&models.EventStartedRunCancellation{
		NamespaceID: namespace,
		PipelineID:  pipeline,
		RunID:       run,
	})
}

// CancelTaskExecution publishes a StartedTaskExecutionCancellation event for
// a single task execution.
func (o *Orchestrator) CancelTaskExecution(namespace, pipeline string, run int64, task string, waitForSeconds int64) {
	o.events.Publish(&models.EventStartedTaskExecutionCancellation{
		NamespaceID:     namespace,
		PipelineID:      pipeline,
		RunID:           run,
		TaskExecutionID: task,
		TimeoutSeconds:  waitForSeconds,
	})
}

// RecoverRuns reconstructs in-memory Shepherds for every run left in a
// non-Complete state when the process last exited. Drivers and the Monitor
// for each recovered run subscribe to the event bus starting at the run's
// QueuedRun cursor, so they re-observe any CompletedTaskExecution events
// that preceded the crash.
func (o *Orchestrator) RecoverRuns() error {
	unfinished, err := o.listUnfinishedRuns()
	if err != nil {
		return fmt.Errorf("could not list unfinished runs for recovery: %w", err)
	}

	for _, runRow := range unfinished {
		run := models.RunFromStorage(&runRow)

		metaRow, err := o.db.GetPipelineMetadata(o.db, run.NamespaceID, run.PipelineID)
		if err != nil {
			log.Error().Err(err).Str("namespace", run.NamespaceID).Str("pipeline", run.PipelineID).
				Msg("could not recover run; pipeline metadata missing")
			continue
		}
		pipeline := models.PipelineMetadataFromStorage(&metaRow)

		configRow, err := o.db.GetPipelineConfig(o.db, run.NamespaceID, run.PipelineID, run.PipelineConfigVersion)
		if err != nil {
			log.Error().Err(err).Int64("run", run.RunID).Msg("could not recover run; pipeline config missing")
			continue
		}

		taskRows, err := o.db.ListPipelineTasks(o.db, run.NamespaceID, run.PipelineID, configRow.Version)
		if err != nil {
			log.Error().Err(err).Int64("run", run.RunID).Msg("could not recover run; could not list tasks")
			continue
		}
		pipelineConfig := models.PipelineConfigFromStorage(&configRow, taskRows)

		perm := o.acquirePermit()

		o.incrInProgress(pipeline.NamespaceID, pipeline.ID)

		shepherd := newShepherd(o, pipeline, pipelineConfig, run, perm)
		go shepherd.recoverRun()

		log.Info().Int64("run", run.RunID).Str("pipeline", run.PipelineID).Msg("recovering in-flight run")
	}

	return nil
}

// listUnfinishedRuns scans every namespace/pipeline pair for runs not in a
// Complete state. The store doesn't expose a cross-pipeline query, so this
// walks pipeline metadata first.
func (o *Orchestrator) listUnfinishedRuns() ([]storage.PipelineRun, error) {
	out := []storage.PipelineRun{}

	namespaces, err := o.distinctNamespaces()
	if err != nil {
		return nil, err
	}

	for _, namespace := range namespaces {
		pipelines, err := o.db.ListPipelineMetadata(o.db, 0, 0, namespace)
		if err != nil {
			return nil, err
		}

		for _, pipelineRow := range pipelines {
			runs, err := o.db.ListPipelineRuns(o.db, 0, 0, namespace, pipelineRow.ID)
			if err != nil {
				return nil, err
			}

			for _, run := range runs {
				if run.State != string(models.RunStateComplete) {
					out = append(out, run)
				}
			}
		}
	}

	return out, nil
}

func (o *Orchestrator) distinctNamespaces() ([]string, error) {
	rows, err := o.db.ListNamespaces(o.db, 0, 0)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ID)
	}

	return out, nil
}
