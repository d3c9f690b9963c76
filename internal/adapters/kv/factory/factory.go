package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	filestore "github.com/bnema/taskwatch/internal/adapters/kv/file"
	memorystore "github.com/bnema/taskwatch/internal/adapters/kv/memory"
	pgstore "github.com/bnema/taskwatch/internal/adapters/kv/postgres"
	sqlitestore "github.com/bnema/taskwatch/internal/adapters/kv/sqlite"
	"github.com/bnema/taskwatch/internal/ports"
)

var ErrWatchUnsupported = errors.New("store backend does not support change notifications")

type Options struct {
	Namespace string
	Logger    *slog.Logger
}

// Backend is an opened key-value store plus its lifecycle hooks.
type Backend struct {
	Store  ports.KeyValueStore
	Scheme string
	closer func() error
	file   *filestore.Store
}

func (b Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// Watch blocks until ctx is done, calling onChange whenever another writer
// touches the store. Only file backends support it.
func (b Backend) Watch(ctx context.Context, logger *slog.Logger, onChange func()) error {
	if b.file == nil {
		return ErrWatchUnsupported
	}
	return b.file.Watch(ctx, logger, onChange)
}

// Open selects a backend from the DSN scheme: file (default), memory, sqlite or
// postgres.
func Open(dsn string, opts Options) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return Backend{}, errors.New("store dsn is empty")
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return Backend{}, fmt.Errorf("parse store dsn: %w", err)
	}

	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	switch scheme {
	case "", "file":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return Backend{}, err
		}
		store, err := filestore.NewStore(path)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: store, Scheme: "file", file: store}, nil
	case "memory", "mem":
		return Backend{Store: memorystore.NewStore(), Scheme: "memory"}, nil
	case "sqlite", "sqlite3":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return Backend{}, err
		}
		store, err := sqlitestore.Open(sqlitestore.Config{Path: path, Logger: opts.Logger})
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: store, Scheme: "sqlite", closer: store.Close}, nil
	case "postgres", "postgresql":
		store, err := pgstore.NewStore(dsn, opts.Namespace)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: store, Scheme: "postgres", closer: store.Close}, nil
	default:
		return Backend{}, fmt.Errorf("unsupported store backend scheme: %s", scheme)
	}
}

func dsnPath(parsed *url.URL, raw string) (string, error) {
	path := parsed.Path
	if parsed.Opaque != "" {
		path = parsed.Opaque
	}
	if parsed.Scheme == "" {
		path = raw
	}
	if parsed.Host != "" && parsed.Host != "localhost" {
		path = parsed.Host + path
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("store dsn %q has no path", raw)
	}
	return path, nil
}
