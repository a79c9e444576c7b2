package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryLockStore struct {
	values map[string]string
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryLockStore) LockKey(name string) string { return "campus:lock:" + name }

func TestRedisLockExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	a, err := NewRedisLock(store, "cron-worker", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	b, _ := NewRedisLock(store, "cron-worker", 0)

	if ok, err := a.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected a to acquire, ok=%v err=%v", ok, err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatal("expected b to be refused while a holds the lock")
	}
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release by non-holder: %v", err)
	}
	if _, ok := store.values[a.Key()]; !ok {
		t.Fatal("non-holder release must not delete the key")
	}
	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatal("expected b to acquire after release")
	}
}

func TestRedisLockLeavesTakenOverLease(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	lock, _ := NewRedisLock(store, "cron-worker", time.Minute)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	// lease expired and another instance took it
	store.values[lock.Key()] = "other-host:token"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values[lock.Key()] != "other-host:token" {
		t.Fatal("expected the foreign lease to survive")
	}
}

func TestRedisLockKeyAndToken(t *testing.T) {
	lock, err := NewRedisLock(newMemoryLockStore(), "cron-worker", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if lock.Key() != "campus:lock:cron-worker" {
		t.Fatalf("unexpected key %q", lock.Key())
	}
	if !strings.Contains(holderToken(), ":") {
		t.Fatal("expected host-prefixed token")
	}
	if _, err := NewRedisLock(newMemoryLockStore(), "", 0); err == nil {
		t.Fatal("expected error for empty name")
	}
}
