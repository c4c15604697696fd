package app

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// unreachableRedis fails every command quickly.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisRateLimiterKey(t *testing.T) {
	tests := []struct {
		prefix  string
		scope   string
		subject string
		want    string
	}{
		{prefix: "portal", scope: "login", subject: "555-0100", want: "portal:rate_limit:login:555-0100"},
		{prefix: " bank: ", scope: " login ", subject: " ABC@Example ", want: "bank:rate_limit:login:abc@example"},
		{prefix: "", scope: "login", subject: "555", want: "portal:rate_limit:login:555"},
	}
	for _, tc := range tests {
		limiter := NewRedisRateLimiter(nil, tc.prefix)
		got, ok := limiter.key(tc.scope, tc.subject)
		if !ok || got != tc.want {
			t.Fatalf("key(%q, %q) with prefix %q: expected %q, got %q ok=%t", tc.scope, tc.subject, tc.prefix, tc.want, got, ok)
		}
	}

	limiter := NewRedisRateLimiter(nil, "portal")
	if _, ok := limiter.key("login", "   "); ok {
		t.Fatalf("expected blank subject to have no key")
	}
	if _, ok := limiter.key(" ", "555"); ok {
		t.Fatalf("expected blank scope to have no key")
	}
}

func TestRedisRateLimiterDisabledCountsNothing(t *testing.T) {
	ctx := context.Background()
	var nilLimiter *RedisRateLimiter
	if count, retry, err := nilLimiter.ConsumeRateLimit(ctx, "login", "555", 5, time.Minute); count != 0 || retry != 0 || err != nil {
		t.Fatalf("expected nil limiter to allow, got %d %d %v", count, retry, err)
	}

	// None of these may reach redis, which would fail.
	limiter := NewRedisRateLimiter(unreachableRedis(t), "portal")
	cases := []struct {
		name    string
		subject string
		limit   int
		window  time.Duration
	}{
		{name: "no limit", subject: "555", limit: 0, window: time.Minute},
		{name: "no window", subject: "555", limit: 5, window: 0},
		{name: "blank subject", subject: "  ", limit: 5, window: time.Minute},
	}
	for _, tc := range cases {
		count, retry, err := limiter.ConsumeRateLimit(ctx, "login", tc.subject, tc.limit, tc.window)
		if count != 0 || retry != 0 || err != nil {
			t.Fatalf("%s: expected nothing counted, got %d %d %v", tc.name, count, retry, err)
		}
	}
}

func TestRedisRateLimiterReportsRedisFailure(t *testing.T) {
	limiter := NewRedisRateLimiter(unreachableRedis(t), "portal")
	if _, _, err := limiter.ConsumeRateLimit(context.Background(), "login", "555", 5, time.Minute); err == nil {
		t.Fatalf("expected an error from an unreachable redis")
	}
}
