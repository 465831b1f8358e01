// Package app opens the stores and feed selected by configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/httpapi"
	"rollcall/internal/logging"
	"rollcall/internal/scanfeed"
	"rollcall/internal/store"
)

// Repository is everything the pipeline and the read API need from storage.
type Repository interface {
	attendance.Directory
	attendance.Timetable
	attendance.LedgerStore
	ListRecords(ctx context.Context) ([]attendance.Record, error)
}

// Resources holds the process-wide connections built once at startup.
type Resources struct {
	Repo  Repository
	Feed  scanfeed.Feed
	DB    *store.DB
	Redis *store.Redis
}

// Open connects the configured backends.
func Open(ctx context.Context, cfg config.App, logger *slog.Logger) (*Resources, error) {
	res := &Resources{}

	switch cfg.StoreBackend {
	case "memory":
		mem := attendance.NewMemoryRepository()
		if cfg.SeedFile != "" {
			seed, err := LoadSeed(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := seed.Apply(mem); err != nil {
				return nil, err
			}
			logger.Info("memory store seeded", "file", cfg.SeedFile,
				"students", len(seed.Students), "rooms", len(seed.Rooms), "sessions", len(seed.Sessions))
		}
		res.Repo = mem
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL, store.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if cfg.Migrate {
			if err := db.Migrate(ctx); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		res.DB = db
		res.Repo = attendance.NewPostgresRepository(db.Client)
	}

	switch cfg.FeedBackend {
	case "memory":
		res.Feed = scanfeed.NewInMemory(64)
	default:
		res.Redis = store.NewRedis(cfg.RedisAddr)
		res.Feed = scanfeed.NewRedisFeed(res.Redis.Client, cfg.FeedKey, logging.Named(logger, "scanfeed"))
	}
	return res, nil
}

// HealthChecks returns one check per network backend in use.
func (r *Resources) HealthChecks() map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{}
	if r.DB != nil {
		checks["db"] = r.DB.Healthy
	}
	if r.Redis != nil {
		checks["redis"] = r.Redis.Healthy
	}
	return checks
}

// Close releases every connection.
func (r *Resources) Close() error {
	return errors.Join(r.DB.Close(), r.Redis.Close())
}
