package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/timelock/internal/api"
	"github.com/seantiz/timelock/internal/config"
	"github.com/seantiz/timelock/internal/tracing"
)

const tracingShutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the timelock HTTP API against the configured store.

If an administrator is configured (admin / TIMELOCK_ADMIN), the store is
initialized with it on startup. Startup fails if the store already holds a
different administrator.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return f.Fail("load config", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "timelockd",
		Endpoint:    cfg.Tracing.OTLPEndpoint,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return f.Fail("init tracing", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("tracing shutdown", "error", err)
		}
	}()

	logger.Info("timelockd: starting",
		"listen_addr", cfg.ListenAddr,
		"store", cfg.Store.Driver,
		"journal", cfg.Journal.Path,
		"min_delay", cfg.MinDelay,
		"max_delay", cfg.MaxDelay,
	)

	a, err := newApp(ctx, cfg, logger, appOptions{sinks: true})
	if err != nil {
		return f.Fail("start", err)
	}
	defer a.Close()

	if cfg.Admin != "" {
		created, err := a.engine.Bootstrap(ctx, cfg.Admin)
		if err != nil {
			return f.Fail("bootstrap administrator", err)
		}
		logger.Info("administrator ready", "admin", cfg.Admin, "created", created)
	}
	if a.validator == nil {
		logger.Warn("auth.jwt_secret not set: every caller is anonymous and mutations will be rejected")
	}

	srv := api.NewServer(cfg.ListenAddr, api.Deps{
		Engine:    a.engine,
		Journal:   a.journal,
		Broker:    a.broker,
		Drivers:   a.drivers,
		Validator: a.validator,
	}, logger)

	if err := srv.Run(ctx); err != nil {
		return f.Fail("serve", err)
	}
	return nil
}
