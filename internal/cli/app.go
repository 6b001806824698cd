package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/seantiz/timelock/internal/auth"
	"github.com/seantiz/timelock/internal/clock"
	"github.com/seantiz/timelock/internal/config"
	"github.com/seantiz/timelock/internal/engine"
	"github.com/seantiz/timelock/internal/notify"
	"github.com/seantiz/timelock/internal/store"
)

// app is the set of components a command runs against.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	drivers   *store.Registry
	store     store.Store
	engine    *engine.Engine
	journal   *notify.Journal
	broker    *notify.Broker
	validator *auth.JWTValidator

	closers []func() error
}

type appOptions struct {
	// sinks enables the journal, broker, and Redis notification sinks.
	sinks bool
	// clock overrides the system clock.
	clock clock.Clock
}

// newApp opens the configured store and wires the engine. The caller must
// Close the app.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, drivers: store.DefaultRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.store, err = a.drivers.Open(ctx, cfg.Store.Driver, cfg.Store.Options())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	a.closers = append(a.closers, a.store.Close)

	if cfg.Auth.JWTSecret != "" {
		a.validator, err = auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			return nil, err
		}
	}

	var publisher notify.Publisher
	if opts.sinks {
		fanout, err := a.openSinks(ctx)
		if err != nil {
			return nil, err
		}
		publisher = fanout
	}

	c := opts.clock
	if c == nil {
		c = clock.NewSystem()
	}

	a.engine, err = engine.NewEngine(a.store, c, auth.ContextAuthorizer{}, publisher, logger, cfg.EngineOptions())
	if err != nil {
		return nil, err
	}
	return a, nil
}

// openSinks builds the notification fanout: journal first so the durable
// record exists before live observers hear about it.
func (a *app) openSinks(ctx context.Context) (*notify.Fanout, error) {
	var sinks []notify.Sink

	if a.cfg.Journal.Path != "" {
		j, err := notify.NewJournal(a.cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
		a.closers = append(a.closers, j.Close)
		sinks = append(sinks, notify.Sink{Name: "journal", Publisher: j})
	}

	a.broker = notify.NewBroker()
	a.closers = append(a.closers, func() error { a.broker.Close(); return nil })
	sinks = append(sinks, notify.Sink{Name: "broker", Publisher: a.broker})

	if a.cfg.Notify.RedisChannel != "" {
		if a.cfg.Store.RedisAddr == "" {
			return nil, errors.New("notify.redis_channel requires store.redis_addr")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Store.RedisAddr,
			Password: a.cfg.Store.RedisPassword,
			DB:       a.cfg.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis for notifications: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		sinks = append(sinks, notify.Sink{Name: "redis", Publisher: notify.NewRedisPublisher(client, a.cfg.Notify.RedisChannel)})
	}

	return notify.NewFanout(a.logger, sinks...), nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
