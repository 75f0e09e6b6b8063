package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

func (db *DB) ListObjectStoreRunKeys(conn Queryable, namespace, pipeline string, run int64) ([]ObjectStoreKey, error) {
	query, args := qb.Select("key", "created").
		From("object_store_run_keys").
		OrderBy("created ASC").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run}).MustSql()

	keys := []ObjectStoreKey{}
	err := conn.Select(&keys, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return keys, nil
}

func (db *DB) InsertObjectStoreRunKey(conn Queryable, namespace, pipeline string, run int64, objectKey *ObjectStoreKey) error {
	_, err := qb.Insert("object_store_run_keys").Columns("namespace", "pipeline", "run", "key", "created").Values(
		namespace, pipeline, run, objectKey.Key, objectKey.Created).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

// DeleteObjectStoreRunKeys removes every key belonging to a run in one
// statement; the Expiry Sweeper uses this once a run's objects expire.
func (db *DB) DeleteObjectStoreRunKeys(conn Queryable, namespace, pipeline string, run int64) error {
	_, err := qb.Delete("object_store_run_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteObjectStoreRunKey(conn Queryable, namespace, pipeline string, run int64, key string) error {
	_, err := qb.Delete("object_store_run_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run, "key": key}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
