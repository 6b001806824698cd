// devserver starts a timelock API server over an in-memory store with a
// manually advanced clock, for local development and E2E testing.
// Usage: go run ./cmd/devserver
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/seantiz/timelock/internal/api"
	"github.com/seantiz/timelock/internal/auth"
	"github.com/seantiz/timelock/internal/clock"
	"github.com/seantiz/timelock/internal/config"
	"github.com/seantiz/timelock/internal/engine"
	"github.com/seantiz/timelock/internal/notify"
	"github.com/seantiz/timelock/internal/store"
)

const (
	// devAdmin is the administrator the dev server initializes.
	devAdmin = "dev-admin"
	// devIssuer matches the default auth.jwt_issuer of timelockd.
	devIssuer     = "timelockd"
	defaultSecret = "dev-secret"
)

type advanceRequest struct {
	Seconds uint64 `json:"seconds"`
}

type advanceResponse struct {
	Now uint64 `json:"now"`
}

func main() {
	logger := config.NewLogger(os.Stdout, slog.LevelInfo)
	if err := run(logger); err != nil {
		logger.Error("devserver: exiting", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	addr := ":8080"
	if v := os.Getenv("TIMELOCK_LISTEN_ADDR"); v != "" {
		addr = v
	}
	secret := defaultSecret
	if v := os.Getenv("TIMELOCK_AUTH_JWT_SECRET"); v != "" {
		secret = v
	}

	journal, err := notify.NewJournal(":memory:")
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()

	broker := notify.NewBroker()
	pub := notify.NewFanout(logger,
		notify.Sink{Name: "journal", Publisher: journal},
		notify.Sink{Name: "broker", Publisher: broker},
	)

	c := clock.NewManual(uint64(time.Now().Unix()))
	eng, err := engine.NewEngine(store.NewMemoryStore(), c, auth.ContextAuthorizer{}, pub, logger, engine.DefaultOptions())
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	if err := eng.Initialize(context.Background(), devAdmin); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	validator, err := auth.NewJWTValidator(secret, devIssuer)
	if err != nil {
		return fmt.Errorf("create validator: %w", err)
	}
	token, err := validator.Issue(devAdmin, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	srv := api.NewServer(addr, api.Deps{
		Engine:    eng,
		Journal:   journal,
		Broker:    broker,
		Drivers:   store.DefaultRegistry(),
		Validator: validator,
	}, logger)

	srv.Router().Post("/dev/clock/advance", func(w http.ResponseWriter, r *http.Request) {
		var req advanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		now := c.Advance(req.Seconds)
		logger.Info("clock advanced", "seconds", req.Seconds, "now", now)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(advanceResponse{Now: now})
	})
	srv.Router().Get("/dev/clock", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(advanceResponse{Now: c.Now()})
	})

	logger.Info("devserver: starting", "addr", addr, "admin", devAdmin, "now", c.Now(), "token", token)
	return srv.Run(context.Background())
}
