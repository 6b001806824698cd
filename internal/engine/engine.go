package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/seantiz/timelock/internal/auth"
	"github.com/seantiz/timelock/internal/clock"
	"github.com/seantiz/timelock/internal/model"
	"github.com/seantiz/timelock/internal/notify"
	"github.com/seantiz/timelock/internal/store"
	"github.com/seantiz/timelock/internal/tracing"
)

// Default delay bounds in seconds, inclusive.
const (
	DefaultMinDelay uint64 = 60
	DefaultMaxDelay uint64 = 86400
)

const (
	opInitialize = "initialize"
	opQueue      = "queue"
	opExecute    = "execute"
	opCancel     = "cancel"
	opState      = "state"
	opExecuteAt  = "execute_at"
	opAdmin      = "admin"
)

// Options configures an Engine.
type Options struct {
	MinDelay uint64
	MaxDelay uint64
}

// DefaultOptions returns the default delay bounds.
func DefaultOptions() Options {
	return Options{MinDelay: DefaultMinDelay, MaxDelay: DefaultMaxDelay}
}

// Validate checks that the delay bounds form a non-empty range.
func (o Options) Validate() error {
	if o.MinDelay > o.MaxDelay {
		return fmt.Errorf("min delay %d exceeds max delay %d", o.MinDelay, o.MaxDelay)
	}
	return nil
}

// Engine is the operation registry. It is safe for concurrent use.
type Engine struct {
	store     store.Store
	clock     clock.Clock
	authz     auth.Authorizer
	publisher notify.Publisher
	logger    *slog.Logger
	opts      Options

	// mu serializes calls within the process; the store transaction makes
	// each call atomic with respect to other processes.
	mu sync.Mutex
}

// NewEngine creates an engine. A nil publisher discards notifications and a
// nil logger discards logs.
func NewEngine(s store.Store, c clock.Clock, a auth.Authorizer, p notify.Publisher, logger *slog.Logger, opts Options) (*Engine, error) {
	if s == nil {
		return nil, errors.New("engine: store is required")
	}
	if c == nil {
		return nil, errors.New("engine: clock is required")
	}
	if a == nil {
		return nil, errors.New("engine: authorizer is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if p == nil {
		p = notify.Discard
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:     s,
		clock:     c,
		authz:     a,
		publisher: p,
		logger:    logger,
		opts:      opts,
	}, nil
}

// Options returns the engine's delay bounds.
func (e *Engine) Options() Options {
	return e.opts
}

// Initialize records admin as the administrator. It succeeds at most once per
// store; later calls fail with ErrAlreadyInitialized whatever the principal.
func (e *Engine) Initialize(ctx context.Context, admin string) (err error) {
	ctx, span := tracing.StartOperation(ctx, opInitialize, "")
	defer func() { e.finish(opInitialize, "", err); tracing.End(span, err) }()

	if admin == "" {
		return newError(KindInvalidPrincipal, opInitialize, errors.New("empty principal"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err = e.store.Update(ctx, func(kv store.KV) error {
		ok, err := kv.Has(ctx, adminKey)
		if err != nil {
			return fmt.Errorf("read admin: %w", err)
		}
		if ok {
			return newError(KindAlreadyInitialized, opInitialize, nil)
		}
		return kv.Set(ctx, adminKey, []byte(admin))
	})
	if err != nil {
		return classify(opInitialize, err)
	}

	e.logger.Info("timelock initialized", "admin", admin)
	return nil
}

// Bootstrap initializes admin unless the store already has an
// administrator. It reports whether this call performed the initialization,
// and fails when the stored administrator differs from admin.
func (e *Engine) Bootstrap(ctx context.Context, admin string) (bool, error) {
	err := e.Initialize(ctx, admin)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrAlreadyInitialized) {
		return false, err
	}

	current, err := e.Admin(ctx)
	if err != nil {
		return false, err
	}
	if current != admin {
		return false, errorf(KindAlreadyInitialized, opInitialize, "store administrator is %q, configured %q", current, admin)
	}
	return false, nil
}

// Admin returns the administrator principal.
func (e *Engine) Admin(ctx context.Context) (string, error) {
	var admin string
	err := e.store.View(ctx, func(kv store.KV) error {
		a, err := readAdmin(ctx, kv, opAdmin)
		admin = a
		return err
	})
	if err != nil {
		return "", classify(opAdmin, err)
	}
	return admin, nil
}

// Queue schedules id for execution delay seconds from now and returns the
// scheduled time.
func (e *Engine) Queue(ctx context.Context, id model.OperationID, delay uint64) (executeAt uint64, err error) {
	ctx, span := tracing.StartOperation(ctx, opQueue, id.Hex())
	defer func() { e.finish(opQueue, id.Hex(), err, "delay", delay); tracing.End(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	err = e.store.Update(ctx, func(kv store.KV) error {
		if err := e.authorize(ctx, kv, opQueue); err != nil {
			return err
		}
		if err := validateID(opQueue, id); err != nil {
			return err
		}
		if delay < e.opts.MinDelay || delay > e.opts.MaxDelay {
			return errorf(KindDelayOutOfRange, opQueue, "%d not in [%d, %d]", delay, e.opts.MinDelay, e.opts.MaxDelay)
		}
		if delay > math.MaxUint64-now {
			return errorf(KindDelayOutOfRange, opQueue, "%d overflows scheduled time at %d", delay, now)
		}

		key := store.OperationKey(id)
		queued, err := kv.Has(ctx, key)
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}
		if queued {
			return newError(KindAlreadyQueued, opQueue, nil)
		}

		executeAt = now + delay
		return kv.Set(ctx, key, encodeExecuteAt(executeAt))
	})
	if err != nil {
		return 0, classify(opQueue, err)
	}

	e.logger.Info("operation queued", "operation_id", id.Hex(), "execute_at", executeAt, "now", now)
	e.publish(ctx, model.NewQueued(id, executeAt, now))
	return executeAt, nil
}

// Execute consumes a ready operation and returns the time it was executed.
// The record is removed, so a second Execute fails with ErrNotFound.
func (e *Engine) Execute(ctx context.Context, id model.OperationID) (executedAt uint64, err error) {
	ctx, span := tracing.StartOperation(ctx, opExecute, id.Hex())
	defer func() { e.finish(opExecute, id.Hex(), err); tracing.End(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	err = e.store.Update(ctx, func(kv store.KV) error {
		if err := e.authorize(ctx, kv, opExecute); err != nil {
			return err
		}
		if err := validateID(opExecute, id); err != nil {
			return err
		}

		key := store.OperationKey(id)
		executeAt, found, err := readExecuteAt(ctx, kv, key)
		if err != nil {
			return err
		}
		if !found {
			return newError(KindNotFound, opExecute, nil)
		}
		if now < executeAt {
			return errorf(KindTooEarly, opExecute, "ready at %d, now %d", executeAt, now)
		}
		return kv.Delete(ctx, key)
	})
	if err != nil {
		return 0, classify(opExecute, err)
	}

	e.logger.Info("operation executed", "operation_id", id.Hex(), "executed_at", now)
	e.publish(ctx, model.NewExecuted(id, now))
	return now, nil
}

// Cancel removes a queued operation, pending or ready. The id may be queued
// again afterwards.
func (e *Engine) Cancel(ctx context.Context, id model.OperationID) (err error) {
	ctx, span := tracing.StartOperation(ctx, opCancel, id.Hex())
	defer func() { e.finish(opCancel, id.Hex(), err); tracing.End(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	err = e.store.Update(ctx, func(kv store.KV) error {
		if err := e.authorize(ctx, kv, opCancel); err != nil {
			return err
		}
		if err := validateID(opCancel, id); err != nil {
			return err
		}

		key := store.OperationKey(id)
		queued, err := kv.Has(ctx, key)
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}
		if !queued {
			return newError(KindNotFound, opCancel, nil)
		}
		return kv.Delete(ctx, key)
	})
	if err != nil {
		return classify(opCancel, err)
	}

	e.logger.Info("operation cancelled", "operation_id", id.Hex())
	e.publish(ctx, model.NewCancelled(id, now))
	return nil
}

// Lookup returns the state and scheduled time of id as of now. An absent
// operation is StateUnknown with a zero ExecuteAt.
func (e *Engine) Lookup(ctx context.Context, id model.OperationID) (model.Operation, error) {
	op := model.Operation{ID: id.Hex(), State: model.StateUnknown}
	if err := validateID(opState, id); err != nil {
		return op, err
	}

	var found bool
	now := e.clock.Now()
	err := e.store.View(ctx, func(kv store.KV) error {
		var err error
		op.ExecuteAt, found, err = readExecuteAt(ctx, kv, store.OperationKey(id))
		return err
	})
	if err != nil {
		return op, classify(opState, err)
	}
	op.State = model.StateAt(op.ExecuteAt, now, found)
	return op, nil
}

// State returns the lifecycle state of id.
func (e *Engine) State(ctx context.Context, id model.OperationID) (model.State, error) {
	op, err := e.Lookup(ctx, id)
	if err != nil {
		return model.StateUnknown, err
	}
	return op.State, nil
}

// ExecuteAt returns the scheduled time of id, or 0 when it is not queued.
func (e *Engine) ExecuteAt(ctx context.Context, id model.OperationID) (uint64, error) {
	if err := validateID(opExecuteAt, id); err != nil {
		return 0, err
	}
	var executeAt uint64
	err := e.store.View(ctx, func(kv store.KV) error {
		var err error
		executeAt, _, err = readExecuteAt(ctx, kv, store.OperationKey(id))
		return err
	})
	if err != nil {
		return 0, classify(opExecuteAt, err)
	}
	return executeAt, nil
}

// authorize checks that the engine is initialized and that the caller is the
// administrator, in that order.
func (e *Engine) authorize(ctx context.Context, kv store.KV, op string) error {
	admin, err := readAdmin(ctx, kv, op)
	if err != nil {
		return err
	}
	if err := e.authz.Require(ctx, admin); err != nil {
		return newError(KindUnauthorized, op, err)
	}
	return nil
}

// publish delivers n after commit. Failures are logged and never reach the
// caller; the transition has already happened.
func (e *Engine) publish(ctx context.Context, n model.Notification) {
	if err := e.publisher.Publish(context.WithoutCancel(ctx), n); err != nil {
		e.logger.Warn("notification publish failed",
			"action", n.Action(),
			"operation_id", n.OperationID,
			"notification_id", n.ID,
			"error", err,
		)
	}
}

// finish records metrics and logs rejected calls.
func (e *Engine) finish(op, operationID string, err error, attrs ...any) {
	observe(op, err)
	if err == nil {
		return
	}
	args := append([]any{"op", op, "operation_id", operationID, "code", string(KindOf(err)), "error", err}, attrs...)
	switch KindOf(err) {
	case KindInternal:
		e.logger.Error("engine call failed", args...)
	case KindConflict:
		e.logger.Warn("engine call lost a store conflict", args...)
	default:
		e.logger.Debug("engine call rejected", args...)
	}
}

func readAdmin(ctx context.Context, kv store.KV, op string) (string, error) {
	b, err := kv.Get(ctx, adminKey)
	if errors.Is(err, store.ErrNotFound) {
		return "", newError(KindNotInitialized, op, nil)
	}
	if err != nil {
		return "", fmt.Errorf("read admin: %w", err)
	}
	return string(b), nil
}

// readExecuteAt returns the scheduled time stored at key and whether a
// record exists.
func readExecuteAt(ctx context.Context, kv store.KV, key store.Key) (uint64, bool, error) {
	b, err := kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read record: %w", err)
	}
	t, err := decodeExecuteAt(b)
	return t, err == nil, err
}

func validateID(op string, id model.OperationID) error {
	if len(id) == 0 {
		return errorf(KindInvalidOperationID, op, "empty id")
	}
	if len(id) > MaxOperationIDLen {
		return errorf(KindInvalidOperationID, op, "%d bytes exceeds %d", len(id), MaxOperationIDLen)
	}
	return nil
}

// classify returns err unchanged if it already carries a Kind. A store
// conflict becomes KindConflict and anything else an internal failure of op.
func classify(op string, err error) error {
	if errors.Is(err, store.ErrConflict) {
		return newError(KindConflict, op, err)
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(KindInternal, op, err)
}
