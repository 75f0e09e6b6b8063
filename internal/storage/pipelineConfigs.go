package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type PipelineConfig struct {
	Namespace   string
	Pipeline    string
	Version     int64
	Parallelism int64
	Name        string
	Description string
	Registered  int64
	Deprecated  int64
	State       string
}

func (db *DB) InsertPipelineConfig(conn Queryable, config *PipelineConfig) error {
	_, err := qb.Insert("pipeline_configs").Columns("namespace", "pipeline", "version", "parallelism", "name",
		"description", "registered", "deprecated", "state").
		Values(config.Namespace, config.Pipeline, config.Version, config.Parallelism, config.Name,
			config.Description, config.Registered, config.Deprecated, config.State).
		RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred; could not insert pipeline to DB: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetPipelineConfig(conn Queryable, namespace, pipeline string, version int64) (PipelineConfig, error) {
	query, args := qb.Select("namespace", "pipeline", "version", "parallelism", "name", "description", "registered",
		"deprecated", "state").
		From("pipeline_configs").Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "version": version}).
		MustSql()

	config := PipelineConfig{}
	err := conn.Get(&config, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PipelineConfig{}, ErrEntityNotFound
		}

		return PipelineConfig{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return config, nil
}

func (db *DB) GetLatestPipelineConfig(conn Queryable, namespace, pipeline string) (PipelineConfig, error) {
	query, args := qb.Select("namespace", "pipeline", "version", "parallelism", "name", "description", "registered",
		"deprecated", "state").
		From("pipeline_configs").
		OrderBy("version DESC").
		Limit(1).
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).
		MustSql()

	pipelineConfigs := []PipelineConfig{}
	err := conn.Select(&pipelineConfigs, query, args...)
	if err != nil {
		return PipelineConfig{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	if len(pipelineConfigs) != 1 {
		return PipelineConfig{}, ErrEntityNotFound
	}

	return pipelineConfigs[0], nil
}

