// Package app opens the store and locker selected by configuration and
// assembles the clinic services on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-ops/internal/appointment"
	"github.com/hackgods/clinic-ops/internal/billing"
	"github.com/hackgods/clinic-ops/internal/config"
	"github.com/hackgods/clinic-ops/internal/db"
	"github.com/hackgods/clinic-ops/internal/inventory"
	"github.com/hackgods/clinic-ops/internal/query"
	redisclient "github.com/hackgods/clinic-ops/internal/redis"
	"github.com/hackgods/clinic-ops/internal/scheduling"
	"github.com/hackgods/clinic-ops/internal/store"
	"github.com/hackgods/clinic-ops/internal/store/pgstore"
	"github.com/hackgods/clinic-ops/internal/store/sqlitestore"
)

type Runtime struct {
	Config config.Config
	Log    zerolog.Logger
	Store  store.Store
	// Redis is nil unless LOCK_BACKEND=redis.
	Redis  *redis.Client
	Locker redisclient.Locker

	closers []func() error
}

// Open connects everything cfg asks for. On error whatever was already opened
// is closed again.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (rt *Runtime, err error) {
	rt = &Runtime{Config: cfg, Log: logger}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	if err := rt.openStore(ctx); err != nil {
		return nil, err
	}
	if err := rt.openLocker(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context) error {
	cfg := rt.Config
	switch cfg.StoreDriver {
	case config.StoreMemory:
		rt.Store = store.NewMemory()
		rt.Log.Warn().Msg("using in-memory store, data is lost on exit")

	case config.StoreSQLite:
		st, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		rt.Store = st
		rt.closers = append(rt.closers, st.Close)
		rt.Log.Info().Str("path", st.Path()).Msg("opened sqlite store")

	case config.StorePostgres:
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN, 0)
		cancel()
		if err != nil {
			return fmt.Errorf("postgres connection: %w", err)
		}
		st := pgstore.New(pool)
		rt.Store = st
		rt.closers = append(rt.closers, st.Close)
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		rt.Log.Info().Msg("connected to Postgres")

	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return nil
}

func (rt *Runtime) openLocker(ctx context.Context) error {
	cfg := rt.Config
	if cfg.LockBackend != config.LockRedis {
		rt.Locker = redisclient.NewLocalLocker(cfg.LockWait)
		return nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.ClientConfig{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	rt.Redis = rdb
	rt.closers = append(rt.closers, rdb.Close)
	rt.Locker = redisclient.NewRedisLocker(rdb, redisclient.LockOptions{
		TTL:           cfg.LockTTL,
		Wait:          cfg.LockWait,
		RetryInterval: cfg.LockRetryInterval,
	})
	rt.Log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	return nil
}

// Close releases connections in reverse opening order.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

type Services struct {
	Appointments *appointment.Service
	Scheduling   *scheduling.Service
	Inventory    *inventory.Service
	Billing      *billing.Service
	Query        *query.Service
}

func (rt *Runtime) Services() Services {
	inv := inventory.NewService(rt.Store, rt.Locker, rt.Log)
	return Services{
		Appointments: appointment.NewService(rt.Store, rt.Locker, rt.Config, rt.Log),
		Scheduling:   scheduling.NewService(rt.Store, rt.Log),
		Inventory:    inv,
		Billing:      billing.NewService(rt.Store, inv, rt.Log),
		Query:        query.NewService(rt.Store),
	}
}
