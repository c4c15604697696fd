package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/transfa/portal-service/internal/store"
)

func TestRememberManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	rememberStore := store.NewMemoryRememberStore()
	manager := NewRememberManager(rememberStore, 7*24*time.Hour, clock)

	token, expiresAt, err := manager.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}
	selector, validator, ok := strings.Cut(token, ":")
	if !ok || selector == "" || validator == "" {
		t.Fatalf("expected selector:validator token, got %q", token)
	}
	if !expiresAt.Equal(clock.Now().Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	stored, err := rememberStore.FindBySelector(ctx, selector)
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if strings.Contains(stored.ValidatorHash, validator) {
		t.Fatalf("expected validator to be stored hashed")
	}
	if stored.User.Token != "" || bytes.Contains(stored.SealedToken, []byte(testUser.Token)) {
		t.Fatalf("expected bearer token to be stored sealed, got %+v", stored)
	}

	user, err := manager.Resolve(ctx, token)
	if err != nil || user.UserID != testUser.UserID || user.Token != testUser.Token {
		t.Fatalf("expected remembered user with its bearer token, got %+v err=%v", user, err)
	}

	if _, err := manager.Resolve(ctx, selector+":wrong"); !errors.Is(err, ErrRememberTokenInvalid) {
		t.Fatalf("expected mismatched validator to fail, got %v", err)
	}
	if _, err := manager.Resolve(ctx, "no-separator"); !errors.Is(err, ErrRememberTokenInvalid) {
		t.Fatalf("expected malformed token to fail, got %v", err)
	}

	clock.Advance(7 * 24 * time.Hour)
	if _, err := manager.Resolve(ctx, token); !errors.Is(err, ErrRememberTokenInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
	if _, err := rememberStore.FindBySelector(ctx, selector); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected expired credential to be deleted, got %v", err)
	}
}

func TestRememberManagerRejectsTamperedSealedToken(t *testing.T) {
	ctx := context.Background()
	rememberStore := store.NewMemoryRememberStore()
	manager := NewRememberManager(rememberStore, time.Hour, newFakeClock())

	token, _, err := manager.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}
	selector, _, _ := strings.Cut(token, ":")
	stored, err := rememberStore.FindBySelector(ctx, selector)
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	stored.SealedToken[len(stored.SealedToken)-1] ^= 0xff
	if err := rememberStore.Save(ctx, *stored); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	if _, err := manager.Resolve(ctx, token); !errors.Is(err, ErrRememberTokenInvalid) {
		t.Fatalf("expected tampered credential to fail, got %v", err)
	}
}

func TestRememberManagerPurgeExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	manager := NewRememberManager(store.NewMemoryRememberStore(), time.Hour, clock)

	if _, _, err := manager.Issue(ctx, testUser); err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}
	clock.Advance(30 * time.Minute)
	fresh, _, err := manager.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}

	clock.Advance(45 * time.Minute)
	removed, err := manager.PurgeExpired(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("expected one purged credential, got %d err=%v", removed, err)
	}
	if _, err := manager.Resolve(ctx, fresh); err != nil {
		t.Fatalf("expected fresh credential to survive, got %v", err)
	}
}
