package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/autobuild/internal/config"
	"github.com/phrazzld/autobuild/internal/platform/etcd"
	"github.com/phrazzld/autobuild/internal/platform/filestore"
	"github.com/phrazzld/autobuild/internal/platform/migrations"
	"github.com/phrazzld/autobuild/internal/platform/postgres"
	"github.com/phrazzld/autobuild/internal/platform/redis"
	"github.com/phrazzld/autobuild/internal/platform/sqlite"
	"github.com/phrazzld/autobuild/internal/store"
	"github.com/phrazzld/autobuild/internal/task"
)

// Storage backends
const (
	backendFile     = "file"
	backendPostgres = "postgres"
	backendSQLite   = "sqlite"
	backendRedis    = "redis"
	backendEtcd     = "etcd"
)

// errNoDatabase is returned by migrate for backends without a schema.
var errNoDatabase = errors.New("storage backend has no SQL schema to migrate")

// storage bundles the durable slot, the applied-marker guard and the
// change feed of one backend.
type storage struct {
	slot    store.Slot
	guard   task.Guard
	source  task.ChangeSource
	closers []func() error
}

// openStorage connects to the configured backend. SQL schemas are migrated
// first when storage.migrate_on_start is set.
func openStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*storage, error) {
	s := &storage{}

	switch cfg.Backend {
	case backendFile:
		slot, err := filestore.NewSlot(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		guard, err := filestore.NewGuard(cfg.MarkerDir)
		if err != nil {
			return nil, err
		}
		s.slot, s.guard = slot, guard
		s.source = filestore.NewWatcher(cfg.FilePath, logger)

	case backendPostgres, backendSQLite:
		db, dialect, err := openDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)

		if cfg.MigrateOnStart {
			if err := migrations.Up(ctx, db, dialect, logger); err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("failed to migrate %s schema: %w", cfg.Backend, err)
			}
		}

		if cfg.Backend == backendPostgres {
			s.slot = postgres.NewSlot(db, cfg.SlotKey)
			s.guard = postgres.NewGuard(db)
			s.source = postgres.NewWatcher(cfg.DatabaseURL, cfg.SlotKey, logger)
		} else {
			slot := sqlite.NewSlot(db, cfg.SlotKey)
			s.slot = slot
			s.guard = sqlite.NewGuard(db)
			s.source = sqlite.NewWatcher(slot, cfg.PollInterval, logger)
		}

	case backendRedis:
		client := redis.NewClient(cfg.RedisAddr, cfg.DialTimeout)
		s.closers = append(s.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		if err := redis.Ping(pingCtx, client); err != nil {
			_ = s.Close()
			return nil, err
		}

		s.slot = redis.NewSlot(client, cfg.SlotKey)
		s.guard = redis.NewGuard(client)
		s.source = redis.NewWatcher(client, cfg.SlotKey, logger)

	case backendEtcd:
		client, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.DialTimeout)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)

		s.slot = etcd.NewSlot(client, cfg.SlotKey)
		s.guard = etcd.NewGuard(client)
		s.source = etcd.NewWatcher(client, cfg.SlotKey, logger)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	logger.Info("storage opened", "backend", cfg.Backend, "slot_key", cfg.SlotKey)
	return s, nil
}

// openDatabase opens the SQL database behind a postgres or sqlite backend
// and returns the goose dialect for it.
func openDatabase(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*sql.DB, string, error) {
	switch cfg.Backend {
	case backendPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.DialTimeout, logger)
		return db, migrations.DialectPostgres, err
	case backendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		return db, migrations.DialectSQLite, err
	default:
		return nil, "", fmt.Errorf("%w: %s", errNoDatabase, cfg.Backend)
	}
}

// Close releases every connection the backend opened.
func (s *storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
