/**
 * @description
 * This file defines the storage contracts used by the portal. Session storage holds
 * ephemeral UI state per browser session; remember storage holds long-lived
 * "remember me" credentials with an explicit expiry.
 *
 * @dependencies
 * - internal/domain: remembered login model.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/transfa/portal-service/internal/domain"
)

var (
	ErrNotFound     = errors.New("store: key not found")
	ErrInvalidValue = errors.New("store: value could not be decoded")
)

// SessionStore is a key-value store scoped to a browser session id. Values are
// JSON encoded. Every write refreshes the session's time to live.
type SessionStore interface {
	Get(ctx context.Context, sid, key string, out any) error
	Set(ctx context.Context, sid, key string, value any) error
	Delete(ctx context.Context, sid, key string) error
	Clear(ctx context.Context, sid string) error
}

// RememberStore persists remember-me credentials.
type RememberStore interface {
	Save(ctx context.Context, login domain.RememberedLogin) error
	FindBySelector(ctx context.Context, selector string) (*domain.RememberedLogin, error)
	DeleteBySelector(ctx context.Context, selector string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
