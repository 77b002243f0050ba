package captcha

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupManager(t *testing.T, opts Options) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewManager(client, opts), mr
}

func TestCaptchaGenerateAndVerify(t *testing.T) {
	manager, mr := setupManager(t, Options{})
	ctx := context.Background()

	id, image, err := manager.Generate(ctx, "127.0.0.1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if id == "" || !strings.HasPrefix(image, "data:image") {
		t.Fatalf("unexpected captcha output: id=%q image prefix=%q", id, image[:min(len(image), 16)])
	}

	// 从存储侧取出答案模拟用户输入。
	answer, err := mr.Get(defaultPrefix + ":" + id)
	if err != nil {
		t.Fatalf("read stored answer: %v", err)
	}

	if err := manager.Verify(ctx, id, answer); err != nil {
		t.Fatalf("verify correct answer: %v", err)
	}

	// 验证码一次性生效，重复校验视为过期。
	if err := manager.Verify(ctx, id, answer); !errors.Is(err, ErrCaptchaNotFound) {
		t.Fatalf("expected ErrCaptchaNotFound on replay, got %v", err)
	}
}

func TestCaptchaVerifyMismatchConsumesCode(t *testing.T) {
	manager, mr := setupManager(t, Options{})
	ctx := context.Background()

	id, _, err := manager.Generate(ctx, "127.0.0.1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := manager.Verify(ctx, id, "definitely-wrong"); !errors.Is(err, ErrCaptchaMismatch) {
		t.Fatalf("expected ErrCaptchaMismatch, got %v", err)
	}

	// 答错同样消费掉验证码，防止暴力尝试。
	if _, err := mr.Get(defaultPrefix + ":" + id); err == nil {
		t.Fatalf("captcha answer should be deleted after mismatch")
	}
}

func TestCaptchaVerifyUnknownID(t *testing.T) {
	manager, _ := setupManager(t, Options{})

	if err := manager.Verify(context.Background(), "no-such-id", "123"); !errors.Is(err, ErrCaptchaNotFound) {
		t.Fatalf("expected ErrCaptchaNotFound, got %v", err)
	}
	if err := manager.Verify(context.Background(), "", "123"); !errors.Is(err, ErrCaptchaNotFound) {
		t.Fatalf("empty id should be ErrCaptchaNotFound, got %v", err)
	}
}

func TestCaptchaRateLimit(t *testing.T) {
	manager, _ := setupManager(t, Options{
		RateLimitPerMin: 2,
		RateLimitWindow: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := manager.Generate(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}
	if _, _, err := manager.Generate(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// 其他 IP 不受影响。
	if _, _, err := manager.Generate(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("different ip should pass: %v", err)
	}
}
