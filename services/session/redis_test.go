package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"turnero/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newRedisStore(t *testing.T) (*RedisStore[*models.ConversationSession], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore[*models.ConversationSession](client, "booking", time.Hour), mr
}

func TestRedisStoreLoadOrCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newRedisStore(t)
	key := Key{TenantID: "t1", Phone: "5491100000000"}
	ttl := 10 * time.Minute

	s, state, err := store.LoadOrCreate(ctx, key, t0, ttl, freshConversation(key, t0))
	if err != nil || state != Fresh {
		t.Fatalf("first load: state = %v err = %v", state, err)
	}
	if !mr.Exists("turnero:session:booking:" + key.String()) {
		t.Fatalf("keys = %v", mr.Keys())
	}
	if got := mr.TTL("turnero:session:booking:" + key.String()); got != time.Hour {
		t.Fatalf("redis ttl = %v, want the retention", got)
	}

	s.Step = "seleccionar_fecha"
	s.LastActivity = t0.Add(time.Minute)
	if err := store.Save(ctx, key, s); err != nil {
		t.Fatal(err)
	}

	got, state, err := store.LoadOrCreate(ctx, key, t0.Add(5*time.Minute), ttl, freshConversation(key, t0))
	if err != nil || state != Existing {
		t.Fatalf("second load: state = %v err = %v", state, err)
	}
	if got.Step != "seleccionar_fecha" || !got.LastActivity.Equal(t0.Add(time.Minute)) {
		t.Fatalf("session = %+v", got)
	}

	later := t0.Add(12 * time.Minute)
	got, state, err = store.LoadOrCreate(ctx, key, later, ttl, freshConversation(key, later))
	if err != nil || state != Expired {
		t.Fatalf("stale load: state = %v err = %v", state, err)
	}
	if got.Step != "inicio" {
		t.Fatalf("expired session not replaced: step = %q", got.Step)
	}
	stored, err := store.Load(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Step != "inicio" || !stored.StartedAt.Equal(later) {
		t.Fatalf("replacement not persisted: %+v", stored)
	}
}

func TestRedisStoreLoadAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newRedisStore(t)
	key := Key{TenantID: "t1", Phone: "1"}

	if _, err := store.Load(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load of a missing session = %v, want ErrNotFound", err)
	}
	if _, _, err := store.LoadOrCreate(ctx, key, t0, time.Minute, freshConversation(key, t0)); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after Delete = %v, want ErrNotFound", err)
	}
}

func TestRedisStoreSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newRedisStore(t)
	ttl := 10 * time.Minute
	now := t0.Add(time.Hour)

	stale := Key{TenantID: "t1", Phone: "1"}
	edge := Key{TenantID: "t1", Phone: "2"}
	recent := Key{TenantID: "t2", Phone: "1"}
	for key, touched := range map[Key]time.Time{
		stale:  now.Add(-ttl - time.Second),
		edge:   now.Add(-ttl),
		recent: now.Add(-time.Minute),
	} {
		if err := store.Save(ctx, key, freshConversation(key, touched)()); err != nil {
			t.Fatal(err)
		}
	}
	// Keys outside the namespace are left alone.
	if err := mr.Set("turnero:session:confirmation:t1:1", "{}"); err != nil {
		t.Fatal(err)
	}

	removed, err := store.Sweep(ctx, now, ttl)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := store.Load(ctx, stale); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale session survived: %v", err)
	}
	for _, key := range []Key{edge, recent} {
		if _, err := store.Load(ctx, key); err != nil {
			t.Fatalf("session %s swept: %v", key, err)
		}
	}
	if !mr.Exists("turnero:session:confirmation:t1:1") {
		t.Fatal("sweep crossed namespaces")
	}
}
