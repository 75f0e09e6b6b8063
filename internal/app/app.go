// Package app wires together storage, the scheduler, the object/secret
// stores, and the event bus into a running Orchestrator, then blocks until a
// shutdown signal arrives.
package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clintjedwards/gofer-sub001/internal/config"
	"github.com/clintjedwards/gofer-sub001/internal/eventbus"
	"github.com/clintjedwards/gofer-sub001/internal/objectStore"
	objectStoreSqlite "github.com/clintjedwards/gofer-sub001/internal/objectStore/sqlite"
	"github.com/clintjedwards/gofer-sub001/internal/orchestrator"
	"github.com/clintjedwards/gofer-sub001/internal/scheduler"
	"github.com/clintjedwards/gofer-sub001/internal/scheduler/docker"
	"github.com/clintjedwards/gofer-sub001/internal/secretStore"
	secretStoreSqlite "github.com/clintjedwards/gofer-sub001/internal/secretStore/sqlite"
	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

// Event history only needs to outlive the longest plausible recovery replay
// window; pruning runs on this interval.
const (
	eventRetention     = 7 * 24 * time.Hour
	eventPruneInterval = time.Hour
)

// StartOrchestrator initializes every collaborator, recovers any runs left
// in flight by a previous process, and blocks until SIGINT or SIGTERM.
func StartOrchestrator(cfg *config.Config) {
	db, err := initStorage(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("could not init storage")
	}
	log.Info().Str("path", cfg.Database.Path).Msg("storage initialized")

	sched, err := initScheduler(cfg.Scheduler)
	if err != nil {
		log.Fatal().Err(err).Msg("could not init scheduler")
	}
	log.Info().Str("engine", cfg.Scheduler.Engine).Msg("scheduler initialized")

	objStore, err := initObjectStore(cfg.ObjectStore)
	if err != nil {
		log.Fatal().Err(err).Msg("could not init object store")
	}
	log.Info().Str("engine", cfg.ObjectStore.Engine).Msg("object store initialized")

	secStore, err := initSecretStore(cfg.SecretStore)
	if err != nil {
		log.Fatal().Err(err).Msg("could not init secret store")
	}
	log.Info().Str("engine", cfg.SecretStore.Engine).Msg("secret store initialized")

	events, err := eventbus.New(db, eventRetention, eventPruneInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("could not init event bus")
	}

	orc := orchestrator.New(db, events, sched, objStore, secStore, cfg)

	if err := orc.RecoverRuns(); err != nil {
		log.Error().Err(err).Msg("could not recover in-flight runs")
	}

	log.Info().Msg("run orchestrator started")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
	<-c

	log.Info().Msg("shutdown signal received; finishing in-flight runs is not interrupted, exiting")
}

func initStorage(cfg *config.Database) (storage.DB, error) {
	return storage.New(cfg.Path, cfg.MaxResultsLimit)
}

func initScheduler(cfg *config.Scheduler) (scheduler.Engine, error) {
	switch cfg.Engine {
	case "docker":
		engine, err := docker.New(cfg.Docker.Prune, cfg.Docker.PruneInterval)
		if err != nil {
			return nil, err
		}
		return &engine, nil
	default:
		return nil, fmt.Errorf("scheduler backend %q not implemented", cfg.Engine)
	}
}

func initObjectStore(cfg *config.ObjectStore) (objectStore.Engine, error) {
	switch cfg.Engine {
	case "sqlite":
		store, err := objectStoreSqlite.New(cfg.Sqlite.Path)
		if err != nil {
			return nil, err
		}
		return &store, nil
	default:
		return nil, fmt.Errorf("object store backend %q not implemented", cfg.Engine)
	}
}

func initSecretStore(cfg *config.SecretStore) (secretStore.Engine, error) {
	switch cfg.Engine {
	case "sqlite":
		store, err := secretStoreSqlite.New(cfg.Sqlite.Path, cfg.Sqlite.EncryptionKey)
		if err != nil {
			return nil, err
		}
		return &store, nil
	default:
		return nil, fmt.Errorf("secret store backend %q not implemented", cfg.Engine)
	}
}
