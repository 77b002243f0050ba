package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisStore(t *testing.T) *RedisRefreshTokenStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisRefreshTokenStore(client, "")
}

func TestRedisRefreshTokenStoreLifecycle(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	expiresAt := time.Now().Add(time.Hour)
	if err := store.Save(ctx, 1, "jti-1", expiresAt); err != nil {
		t.Fatalf("save: %v", err)
	}

	ok, err := store.Exists(ctx, 1, "jti-1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Fatalf("token should exist after save")
	}

	// 不同用户或不同 jti 不会互相命中。
	if ok, _ := store.Exists(ctx, 2, "jti-1"); ok {
		t.Fatalf("token leaked across users")
	}
	if ok, _ := store.Exists(ctx, 1, "jti-2"); ok {
		t.Fatalf("unknown jti reported as existing")
	}

	if err := store.Delete(ctx, 1, "jti-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := store.Exists(ctx, 1, "jti-1"); ok {
		t.Fatalf("token should be gone after delete")
	}

	// 删除不存在的令牌是幂等的。
	if err := store.Delete(ctx, 1, "jti-1"); err != nil {
		t.Fatalf("repeated delete: %v", err)
	}
}

func TestRedisRefreshTokenStoreEmptyTokenID(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, 1, "", time.Now().Add(time.Hour)); err == nil {
		t.Fatalf("empty token id should be rejected")
	}
	if ok, err := store.Exists(ctx, 1, ""); err != nil || ok {
		t.Fatalf("empty token id should not exist: ok=%v err=%v", ok, err)
	}
}

func TestMemoryRefreshTokenStoreExpiry(t *testing.T) {
	store := NewMemoryRefreshTokenStore()
	ctx := context.Background()

	if err := store.Save(ctx, 1, "live", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save live: %v", err)
	}
	if err := store.Save(ctx, 1, "stale", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("save stale: %v", err)
	}

	if ok, _ := store.Exists(ctx, 1, "live"); !ok {
		t.Fatalf("live token should exist")
	}
	// 已过期的令牌在检查时被清理。
	if ok, _ := store.Exists(ctx, 1, "stale"); ok {
		t.Fatalf("expired token should be treated as revoked")
	}

	if err := store.Delete(ctx, 1, "live"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := store.Exists(ctx, 1, "live"); ok {
		t.Fatalf("deleted token should be gone")
	}
}
