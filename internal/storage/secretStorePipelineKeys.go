package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

// SecretStoreKey is one entry in a pipeline's secret store key index; the
// secret value itself lives in the secret store engine, not here.
type SecretStoreKey struct {
	Key     string
	Created int64
}

func (db *DB) ListSecretStorePipelineKeys(conn Queryable, namespace, pipeline string) ([]SecretStoreKey, error) {
	query, args := qb.Select("key", "created").
		From("secret_store_pipeline_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).MustSql()

	keys := []SecretStoreKey{}
	err := conn.Select(&keys, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return keys, nil
}

func (db *DB) GetSecretStorePipelineKey(conn Queryable, namespace, pipeline, key string) (SecretStoreKey, error) {
	query, args := qb.Select("key", "created").
		From("secret_store_pipeline_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "key": key}).MustSql()

	secretKey := SecretStoreKey{}
	err := conn.Get(&secretKey, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SecretStoreKey{}, ErrEntityNotFound
		}

		return SecretStoreKey{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return secretKey, nil
}

// InsertSecretStorePipelineKey inserts a new key, or, when force is set and
// the key already exists, refreshes its created timestamp in place.
func (db *DB) InsertSecretStorePipelineKey(conn Queryable, namespace, pipeline string, secretKey *SecretStoreKey, force bool) error {
	_, err := qb.Insert("secret_store_pipeline_keys").Columns("namespace", "pipeline", "key", "created").Values(
		namespace, pipeline, secretKey.Key, secretKey.Created).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") && !force {
			return ErrEntityExists
		}

		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			_, err = qb.Update("secret_store_pipeline_keys").
				Set("created", secretKey.Created).
				Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "key": secretKey.Key}).
				RunWith(conn).Exec()
			if err != nil {
				return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
			}

			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteSecretStorePipelineKey(conn Queryable, namespace, pipeline string, key string) error {
	_, err := qb.Delete("secret_store_pipeline_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "key": key}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
