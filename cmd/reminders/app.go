package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/reminder-calls/internal/cache"
	"github.com/LeventeLantos/reminder-calls/internal/client"
	"github.com/LeventeLantos/reminder-calls/internal/config"
	"github.com/LeventeLantos/reminder-calls/internal/lifecycle"
	"github.com/LeventeLantos/reminder-calls/internal/repo"
	"github.com/LeventeLantos/reminder-calls/internal/scheduler"
	"github.com/LeventeLantos/reminder-calls/internal/service"
)

// app holds the wired components shared by serve and scan.
type app struct {
	store   *repo.SQLReminderRepo
	scanner *service.Scanner
	sched   *scheduler.Scheduler

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	db, store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	a.store = store

	if err := store.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}

	policy, err := lifecycle.NewRetryPolicy(cfg.Scheduler.MaxRetryAttempts)
	if err != nil {
		a.Close()
		return nil, err
	}

	vapi := client.NewVapiClient(client.VapiConfig{
		BaseURL:        cfg.Vapi.BaseURL,
		APIKey:         cfg.Vapi.APIKey,
		PhoneNumberID:  cfg.Vapi.PhoneNumberID,
		CallsPerSecond: cfg.Vapi.CallsPerSecond,
	})

	dispatcher := service.NewDispatcher(vapi)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()

		if err != nil {
			slog.Warn("redis unavailable, placed calls will not be remembered", "addr", cfg.Redis.Address, "error", err)
			_ = rdb.Close()
		} else {
			a.closers = append(a.closers, rdb.Close)
			dispatcher.WithLedger(cache.NewRedisCache(rdb, cfg.Redis.TTL))
			slog.Info("redis call ledger enabled", "addr", cfg.Redis.Address, "ttl", cfg.Redis.TTL.String())
		}
	}

	a.scanner = service.NewScanner(store, dispatcher, policy,
		service.WithLogger(slog.Default()),
		service.WithPersistTimeout(cfg.Scheduler.PersistTimeout),
	)

	a.sched, err = scheduler.New(cfg.Scheduler.Interval, a.scanner.Tick, scheduler.WithLogger(slog.Default()))
	if err != nil {
		a.Close()
		return nil, err
	}

	slog.Info("reminder service ready",
		"driver", store.Driver(),
		"interval", cfg.Scheduler.Interval.String(),
		"max_attempts", policy.MaxAttempts,
		"redis", cfg.Redis.Enabled,
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closing resource", "error", err)
		}
	}
	a.closers = nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, *repo.SQLReminderRepo, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := repo.OpenPostgres(ctx, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		return db, repo.NewPostgresReminderRepo(db), nil
	case config.DriverSQLite:
		db, err := repo.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, repo.NewSQLiteReminderRepo(db), nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
