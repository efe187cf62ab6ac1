package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	conversationPrefix = "turnero:session:"
	maxTxAttempts      = 5
)

// RedisStore keeps sessions as JSON documents in Redis. LoadOrCreate and Sweep
// run as WATCH/MULTI transactions so a stale session is replaced or removed
// only if nobody wrote it in between.
type RedisStore[T Entry[T]] struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisStore returns a RedisStore. retention is the Redis key TTL; it
// should outlive the longest session timeout so expiry is decided here.
func NewRedisStore[T Entry[T]](client *redis.Client, namespace string, retention time.Duration) *RedisStore[T] {
	return &RedisStore[T]{
		client:    client,
		prefix:    conversationPrefix + namespace + ":",
		retention: retention,
	}
}

func (s *RedisStore[T]) key(k Key) string {
	return s.prefix + k.String()
}

func (s *RedisStore[T]) decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode session: %w", err)
	}
	return v, nil
}

func (s *RedisStore[T]) LoadOrCreate(ctx context.Context, key Key, now time.Time, ttl time.Duration, fresh func() T) (T, State, error) {
	rk := s.key(key)
	var (
		out   T
		state State
	)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, rk).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			state = Fresh
		case err != nil:
			return err
		default:
			cur, err := s.decode(data)
			if err != nil {
				return err
			}
			if !IsExpired(cur.Touched(), now, ttl) {
				out, state = cur, Existing
				return nil
			}
			state = Expired
		}

		out = fresh()
		b, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, b, s.retention)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := s.client.Watch(ctx, txf, rk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			var zero T
			return zero, 0, fmt.Errorf("load session %s: %w", key, err)
		}
		return out, state, nil
	}
	var zero T
	return zero, 0, fmt.Errorf("load session %s: %w", key, redis.TxFailedErr)
}

func (s *RedisStore[T]) Load(ctx context.Context, key Key) (T, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		var zero T
		return zero, ErrNotFound
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load session %s: %w", key, err)
	}
	return s.decode(data)
}

func (s *RedisStore[T]) Save(ctx context.Context, key Key, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(key), b, s.retention).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore[T]) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore[T]) Sweep(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rk := iter.Val()
		gone := false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, rk).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			cur, err := s.decode(data)
			if err != nil {
				return err
			}
			if !IsExpired(cur.Touched(), now, ttl) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, rk)
				return nil
			})
			gone = err == nil
			return err
		}, rk)
		// A failed transaction means the session was touched meanwhile.
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("sweep sessions: %w", err)
		}
		if gone {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("sweep sessions: %w", err)
	}
	return removed, nil
}
