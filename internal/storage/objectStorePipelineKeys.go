package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

// ObjectStoreKey is one entry in a pipeline- or run-scoped object store
// key index; the blob itself lives in the object store engine, not here.
type ObjectStoreKey struct {
	Key     string
	Created int64
}

func (db *DB) ListObjectStorePipelineKeys(conn Queryable, namespace, pipeline string) ([]ObjectStoreKey, error) {
	query, args := qb.Select("key", "created").
		From("object_store_pipeline_keys").
		OrderBy("created ASC").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).MustSql()

	keys := []ObjectStoreKey{}
	err := conn.Select(&keys, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return keys, nil
}

func (db *DB) InsertObjectStorePipelineKey(conn Queryable, namespace, pipeline string, objectKey *ObjectStoreKey) error {
	_, err := qb.Insert("object_store_pipeline_keys").Columns("namespace", "pipeline", "key", "created").Values(
		namespace, pipeline, objectKey.Key, objectKey.Created).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteObjectStorePipelineKey(conn Queryable, namespace, pipeline string, key string) error {
	_, err := qb.Delete("object_store_pipeline_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "key": key}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
