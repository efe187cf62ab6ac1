// Package session keeps per-(tenant, phone) conversation state behind one
// expiring store abstraction with a Redis and an in-process backend.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when no session exists for a key.
var ErrNotFound = errors.New("session not found")

// Key partitions sessions by tenant and phone.
type Key struct {
	TenantID string
	Phone    string
}

func (k Key) String() string { return k.TenantID + ":" + k.Phone }

// State tells the caller how LoadOrCreate resolved a key.
type State int

const (
	// Existing means a live session was loaded.
	Existing State = iota
	// Fresh means no session existed and a new one was stored.
	Fresh
	// Expired means a stale session was replaced by a new one.
	Expired
)

func (s State) String() string {
	switch s {
	case Existing:
		return "existing"
	case Fresh:
		return "fresh"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// Entry is the contract for values kept in a Store.
type Entry[T any] interface {
	Touched() time.Time
	Clone() T
}

// Store is a keyed, expiring session store. ttl <= 0 disables expiry.
type Store[T Entry[T]] interface {
	// LoadOrCreate returns the live session for key, or atomically stores and
	// returns fresh() when none exists or the existing one is older than ttl.
	LoadOrCreate(ctx context.Context, key Key, now time.Time, ttl time.Duration, fresh func() T) (T, State, error)
	Load(ctx context.Context, key Key) (T, error)
	Save(ctx context.Context, key Key, v T) error
	Delete(ctx context.Context, key Key) error
	// Sweep removes every session older than ttl and reports how many went.
	Sweep(ctx context.Context, now time.Time, ttl time.Duration) (int, error)
}

// IsExpired is the expiry predicate shared by LoadOrCreate and Sweep.
func IsExpired(touched, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(touched) > ttl
}
