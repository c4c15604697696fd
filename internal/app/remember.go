package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/portal-service/internal/domain"
	"github.com/transfa/portal-service/internal/store"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const sealedTokenInfo = "portal remember-me bearer token"

// ErrRememberTokenInvalid is returned for malformed, unknown, expired or
// mismatched remember-me tokens.
var ErrRememberTokenInvalid = errors.New("remember-me token invalid")

// RememberManager issues and resolves "remember me" credentials. The browser
// holds "selector:validator"; the store keeps a bcrypt hash of the validator and
// the bearer token sealed with a key derived from the validator.
type RememberManager struct {
	store store.RememberStore
	ttl   time.Duration
	clock Clock
}

func NewRememberManager(rememberStore store.RememberStore, ttl time.Duration, clock Clock) *RememberManager {
	if clock == nil {
		clock = SystemClock
	}
	return &RememberManager{store: rememberStore, ttl: ttl, clock: clock}
}

// Issue stores a new credential for user and returns the browser token.
func (m *RememberManager) Issue(ctx context.Context, user domain.User) (token string, expiresAt time.Time, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate remember validator: %w", err)
	}
	validator := base64.RawURLEncoding.EncodeToString(raw)
	hash, err := bcrypt.GenerateFromPassword([]byte(validator), bcrypt.DefaultCost)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to hash remember validator: %w", err)
	}

	sealed, err := sealToken(raw, user.Token)
	if err != nil {
		return "", time.Time{}, err
	}

	now := m.clock.Now().UTC()
	user.Token = ""
	login := domain.RememberedLogin{
		Selector:      uuid.NewString(),
		ValidatorHash: string(hash),
		User:          user,
		SealedToken:   sealed,
		ExpiresAt:     now.Add(m.ttl),
		CreatedAt:     now,
	}
	if err := m.store.Save(ctx, login); err != nil {
		return "", time.Time{}, err
	}
	return login.Selector + ":" + validator, login.ExpiresAt, nil
}

// Resolve returns the user remembered by token. Expired credentials are deleted.
func (m *RememberManager) Resolve(ctx context.Context, token string) (*domain.User, error) {
	selector, validator, ok := strings.Cut(strings.TrimSpace(token), ":")
	if !ok || selector == "" || validator == "" {
		return nil, ErrRememberTokenInvalid
	}

	login, err := m.store.FindBySelector(ctx, selector)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRememberTokenInvalid
		}
		return nil, err
	}
	if login.Expired(m.clock.Now()) {
		_ = m.store.DeleteBySelector(ctx, selector)
		return nil, ErrRememberTokenInvalid
	}
	if bcrypt.CompareHashAndPassword([]byte(login.ValidatorHash), []byte(validator)) != nil {
		return nil, ErrRememberTokenInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(validator)
	if err != nil {
		return nil, ErrRememberTokenInvalid
	}
	bearer, err := openToken(raw, login.SealedToken)
	if err != nil {
		return nil, ErrRememberTokenInvalid
	}
	user := login.User
	user.Token = bearer
	return &user, nil
}

func tokenKey(validator []byte) (*[32]byte, error) {
	var key [32]byte
	if _, err := io.ReadFull(hkdf.New(sha256.New, validator, nil, []byte(sealedTokenInfo)), key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive remember key: %w", err)
	}
	return &key, nil
}

// sealToken encrypts bearer under the validator. The nonce prefixes the box.
func sealToken(validator []byte, bearer string) ([]byte, error) {
	key, err := tokenKey(validator)
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate remember nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(bearer), &nonce, key), nil
}

func openToken(validator, sealed []byte) (string, error) {
	if len(sealed) < 24 {
		return "", errors.New("sealed token too short")
	}
	key, err := tokenKey(validator)
	if err != nil {
		return "", err
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	opened, ok := secretbox.Open(nil, sealed[24:], &nonce, key)
	if !ok {
		return "", errors.New("sealed token does not open")
	}
	return string(opened), nil
}

// Revoke deletes the credential behind token, if any.
func (m *RememberManager) Revoke(ctx context.Context, token string) error {
	selector, _, ok := strings.Cut(strings.TrimSpace(token), ":")
	if !ok || selector == "" {
		return nil
	}
	return m.store.DeleteBySelector(ctx, selector)
}

// PurgeExpired removes every expired credential.
func (m *RememberManager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, m.clock.Now())
}
