package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Built-in driver names.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Options carries the connection settings a driver may need. Each driver
// reads only its own fields.
type Options struct {
	SQLitePath    string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Opener opens a Store from Options.
type Opener func(ctx context.Context, opts Options) (Store, error)

// DriverInfo describes a registered driver.
type DriverInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type driver struct {
	description string
	open        Opener
}

// Registry holds named store drivers and opens stores by name.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]driver
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]driver),
	}
}

// DefaultRegistry returns a registry with the memory, sqlite, postgres and
// redis drivers registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(DriverMemory, "process-local map, lost on exit", func(context.Context, Options) (Store, error) {
		return NewMemoryStore(), nil
	})
	r.Register(DriverSQLite, "single-file SQLite database", func(_ context.Context, o Options) (Store, error) {
		if o.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite driver: path is required")
		}
		return NewSQLiteStore(o.SQLitePath)
	})
	r.Register(DriverPostgres, "PostgreSQL with serializable transactions", func(ctx context.Context, o Options) (Store, error) {
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver: dsn is required")
		}
		return NewPostgresStore(ctx, o.PostgresDSN)
	})
	r.Register(DriverRedis, "Redis with WATCH/MULTI optimistic transactions", func(ctx context.Context, o Options) (Store, error) {
		if o.RedisAddr == "" {
			return nil, fmt.Errorf("redis driver: addr is required")
		}
		return NewRedisStore(ctx, o.RedisAddr, o.RedisPassword, o.RedisDB)
	})
	return r
}

// Register adds a driver under the given name, replacing any existing one.
func (r *Registry) Register(name, description string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = driver{description: description, open: open}
}

// Open opens a store with the named driver.
func (r *Registry) Open(ctx context.Context, name string, opts Options) (Store, error) {
	r.mu.RLock()
	d, ok := r.drivers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store driver %q is not registered", name)
	}
	s, err := d.open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", name, err)
	}
	return s, nil
}

// Has reports whether a driver is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.drivers[name]
	return ok
}

// List returns all registered drivers, sorted by name for a stable API response.
func (r *Registry) List() []DriverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]DriverInfo, 0, len(r.drivers))
	for name, d := range r.drivers {
		infos = append(infos, DriverInfo{
			Name:        name,
			Description: d.description,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
