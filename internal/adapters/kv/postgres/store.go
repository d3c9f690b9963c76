package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
	_ "github.com/lib/pq"
)

const (
	defaultTableName   = "taskwatch_kv"
	defaultNamespace   = "default"
	operationTimeout   = 5 * time.Second
	postgresDriverName = "postgres"
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Store keeps one namespace of the key-value area in a Postgres table so that
// several agents can share a database.
type Store struct {
	dsn       string
	tableName string
	namespace string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

var _ ports.KeyValueStore = (*Store)(nil)

func NewStore(dsn string, namespace string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is empty", domain.ErrInvalidInput)
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = defaultNamespace
	}

	return &Store{
		dsn:       dsn,
		tableName: defaultTableName,
		namespace: namespace,
		openDB:    sql.Open,
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := s.ensureReady(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT value FROM %s WHERE namespace = $1 AND key = $2", quoteIdentifier(s.tableName))
	var value string
	err := s.db.QueryRowContext(ctx, query, s.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get key %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value string) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, quoteIdentifier(s.tableName))
	if _, err := s.db.ExecContext(ctx, query, s.namespace, key, value); err != nil {
		return fmt.Errorf("set key %q: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove: %w", err)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE namespace = $1 AND key = $2", quoteIdentifier(s.tableName))
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, query, s.namespace, key); err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				return fmt.Errorf("remove key %q and rollback: %w", key, errors.Join(err, rollbackErr))
			}
			return fmt.Errorf("remove key %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove: %w", err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT key FROM %s WHERE namespace = $1 ORDER BY key", quoteIdentifier(s.tableName))
	rows, err := s.db.QueryContext(ctx, query, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureReady(ctx context.Context) error {
	s.initOnce.Do(func() {
		db, err := s.openDB(postgresDriverName, s.dsn)
		if err != nil {
			s.initErr = fmt.Errorf("open postgres store: %w", err)
			return
		}
		initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), operationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				namespace TEXT NOT NULL,
				key TEXT NOT NULL,
				value TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (namespace, key)
			)`, quoteIdentifier(s.tableName))
		if _, err := db.ExecContext(initCtx, query); err != nil {
			_ = db.Close()
			s.initErr = fmt.Errorf("create postgres kv table: %w", err)
			return
		}
		s.db = db
	})
	return s.initErr
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
