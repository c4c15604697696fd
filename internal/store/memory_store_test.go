package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/transfa/portal-service/internal/domain"
)

func TestMemorySessionStoreRoundTripAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(time.Minute)

	user := domain.User{UserID: "7", UserName: "Asha"}
	if err := s.Set(ctx, "sid-1", domain.KeyUserData, user); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}

	var got domain.User
	if err := s.Get(ctx, "sid-1", domain.KeyUserData, &got); err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if got != user {
		t.Fatalf("expected %+v, got %+v", user, got)
	}

	if err := s.Get(ctx, "sid-2", domain.KeyUserData, &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other session, got %v", err)
	}

	if err := s.Clear(ctx, "sid-1"); err != nil {
		t.Fatalf("unexpected clear error: %v", err)
	}
	if err := s.Get(ctx, "sid-1", domain.KeyUserData, &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestMemorySessionStoreExpiresIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewMemorySessionStore(time.Minute)
	s.now = func() time.Time { return now }

	if err := s.Set(ctx, "sid", "k", "v"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}

	now = now.Add(59 * time.Second)
	var v string
	if err := s.Get(ctx, "sid", "k", &v); err != nil || v != "v" {
		t.Fatalf("expected value before ttl, got %q err=%v", v, err)
	}

	now = now.Add(2 * time.Second)
	if err := s.Get(ctx, "sid", "k", &v); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", err)
	}
}

func TestMemorySessionStoreDeleteKeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(time.Minute)
	_ = s.Set(ctx, "sid", "a", 1)
	_ = s.Set(ctx, "sid", "b", 2)

	if err := s.Delete(ctx, "sid", "a"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	var n int
	if err := s.Get(ctx, "sid", "a", &n); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted key to be missing, got %v", err)
	}
	if err := s.Get(ctx, "sid", "b", &n); err != nil || n != 2 {
		t.Fatalf("expected b=2, got %d err=%v", n, err)
	}
}

func TestMemoryRememberStoreDeleteExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	s := NewMemoryRememberStore()
	_ = s.Save(ctx, domain.RememberedLogin{Selector: "old", ExpiresAt: now.Add(-time.Hour)})
	_ = s.Save(ctx, domain.RememberedLogin{Selector: "edge", ExpiresAt: now})
	_ = s.Save(ctx, domain.RememberedLogin{Selector: "fresh", ExpiresAt: now.Add(time.Hour)})

	removed, err := s.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, err := s.FindBySelector(ctx, "fresh"); err != nil {
		t.Fatalf("expected fresh login to survive, got %v", err)
	}
	if _, err := s.FindBySelector(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old login to be removed, got %v", err)
	}
}

func TestMemorySessionStoreWriteSlidesTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewMemorySessionStore(time.Minute)
	s.now = func() time.Time { return now }

	if err := s.Set(ctx, "sid", "k", "v"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}

	now = now.Add(50 * time.Second)
	if err := s.Set(ctx, "sid", "activity", "touched"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}

	now = now.Add(50 * time.Second)
	var v string
	if err := s.Get(ctx, "sid", "k", &v); err != nil || v != "v" {
		t.Fatalf("expected written session to survive, got %q err=%v", v, err)
	}

	now = now.Add(61 * time.Second)
	if err := s.Get(ctx, "sid", "k", &v); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected idle session to expire, got %v", err)
	}
}
