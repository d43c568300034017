package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"estate/api/internal/store"
	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })
	return sessions, mr
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("://nope"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := sessions.SaveRefreshSession(ctx, "hash-1", "usr_1", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	user, err := sessions.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if user.ID != "usr_1" {
		t.Errorf("expected usr_1, got %s", user.ID)
	}
	if !mr.Exists(keyPrefix + "hash-1") {
		t.Errorf("expected key under %s prefix", keyPrefix)
	}
	if ttl := mr.TTL(keyPrefix + "hash-1"); ttl <= 0 || ttl > 24*time.Hour {
		t.Errorf("unexpected ttl %v", ttl)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := sessions.SaveRefreshSession(ctx, "hash-exp", "usr_2", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := sessions.LookupRefreshSession(ctx, "hash-exp"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestPastExpiryFallsBackToDefaultTTL(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	if err := sessions.SaveRefreshSession(context.Background(), "hash-past", "usr_3", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if ttl := mr.TTL(keyPrefix + "hash-past"); ttl != defaultTTL {
		t.Errorf("expected default ttl, got %v", ttl)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, hash := range []string{"hash-a", "hash-b"} {
		if err := sessions.SaveRefreshSession(ctx, hash, "usr_"+hash, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("SaveRefreshSession %s failed: %v", hash, err)
		}
	}
	if err := sessions.RevokeRefreshSession(ctx, "hash-a"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}

	if _, err := sessions.LookupRefreshSession(ctx, "hash-a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected revoked token to be gone, got %v", err)
	}
	user, err := sessions.LookupRefreshSession(ctx, "hash-b")
	if err != nil || user.ID != "usr_hash-b" {
		t.Errorf("expected hash-b to survive, got %+v %v", user, err)
	}
	if err := sessions.RevokeRefreshSession(ctx, "never-issued"); err != nil {
		t.Errorf("revoking an unknown token should not fail: %v", err)
	}
}

func TestLookupCorruptPayload(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	if err := mr.Set(keyPrefix+"hash-bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := sessions.LookupRefreshSession(context.Background(), "hash-bad")
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
