package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "timelock:"

// Compile-time interface satisfaction check.
var _ Store = (*RedisStore)(nil)

// RedisStore implements Store on Redis. Update uses optimistic locking: every
// key read inside the transaction is WATCHed and the buffered writes are
// applied in one MULTI/EXEC. A concurrent change to a watched key aborts the
// transaction with ErrConflict.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// View runs fn against direct reads. Writes fail.
func (s *RedisStore) View(ctx context.Context, fn func(KV) error) error {
	return fn(&redisView{client: s.client})
}

// Update runs fn with watched reads and buffered writes.
func (s *RedisStore) Update(ctx context.Context, fn func(KV) error) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		rtx := &redisTx{tx: tx, writes: make(map[Key][]byte)}
		if err := fn(rtx); err != nil {
			return err
		}
		if len(rtx.writes) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, v := range rtx.writes {
				if v == nil {
					pipe.Del(ctx, redisKey(k))
					continue
				}
				pipe.Set(ctx, redisKey(k), v, 0)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("exec: %w", ErrConflict)
	}
	return err
}

func redisKey(k Key) string {
	return redisKeyPrefix + string(k)
}

type redisView struct {
	client *redis.Client
}

func (v *redisView) Has(ctx context.Context, key Key) (bool, error) {
	n, err := v.client.Exists(ctx, redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return n > 0, nil
}

func (v *redisView) Get(ctx context.Context, key Key) ([]byte, error) {
	b, err := v.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return b, nil
}

func (v *redisView) Set(context.Context, Key, []byte) error { return ErrReadOnly }

func (v *redisView) Delete(context.Context, Key) error { return ErrReadOnly }

// redisTx buffers writes; a nil value marks a deletion.
type redisTx struct {
	tx     *redis.Tx
	writes map[Key][]byte
}

func (t *redisTx) watch(ctx context.Context, key Key) error {
	if err := t.tx.Watch(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("watch %s: %w", key, err)
	}
	return nil
}

func (t *redisTx) Has(ctx context.Context, key Key) (bool, error) {
	if v, ok := t.writes[key]; ok {
		return v != nil, nil
	}
	if err := t.watch(ctx, key); err != nil {
		return false, err
	}
	n, err := t.tx.Exists(ctx, redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return n > 0, nil
}

func (t *redisTx) Get(ctx context.Context, key Key) ([]byte, error) {
	if v, ok := t.writes[key]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return append([]byte(nil), v...), nil
	}
	if err := t.watch(ctx, key); err != nil {
		return nil, err
	}
	b, err := t.tx.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return b, nil
}

func (t *redisTx) Set(_ context.Context, key Key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	t.writes[key] = v
	return nil
}

func (t *redisTx) Delete(_ context.Context, key Key) error {
	t.writes[key] = nil
	return nil
}
