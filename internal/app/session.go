/**
 * @description
 * This file contains the SessionController, which owns the authenticated user of
 * each browser session. It handles login, registration, logout, remember-me
 * restoration, and the inactivity timeout.
 *
 * Key features:
 * - Login is rate limited per phone number when a limiter is configured.
 * - Qualifying activity (pointer, key, scroll) resets a per-session idle timer.
 *   When it fires the session is marked expiring and logged out after a short grace.
 * - Remote logout is best effort; the local session is always cleared.
 *
 * @dependencies
 * - internal/store: session and remember-me storage.
 * - pkg/rabbitmq: audit events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/portal-service/internal/domain"
	"github.com/transfa/portal-service/internal/store"
	"github.com/transfa/portal-service/pkg/rabbitmq"
)

const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultGracePeriod = 3 * time.Second

	loginRateLimitScope  = "login"
	loginRateLimitWindow = time.Minute
	backgroundOpTimeout  = 10 * time.Second
)

// ActivityKind classifies browser activity.
type ActivityKind string

const (
	ActivityPointer ActivityKind = "pointer"
	ActivityKey     ActivityKind = "key"
	ActivityScroll  ActivityKind = "scroll"
)

// ParseActivity maps a browser event name to its activity class. Only pointer,
// key and scroll classes reset the idle timer.
func ParseActivity(raw string) (ActivityKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pointer", "click", "mousemove", "mousedown", "touchstart":
		return ActivityPointer, true
	case "key", "keypress", "keydown":
		return ActivityKey, true
	case "scroll", "wheel":
		return ActivityScroll, true
	default:
		return "", false
	}
}

// Navbar is the presentation of the top navigation bar.
type Navbar struct {
	Authenticated bool   `json:"authenticated"`
	BrandText     string `json:"brand_text"`
	BrandHref     string `json:"brand_href"`
	UserName      string `json:"user_name,omitempty"`
}

// NavbarFor renders the navbar for user, which may be nil.
func NavbarFor(user *domain.User) Navbar {
	if user == nil {
		return Navbar{BrandText: "Online Bank", BrandHref: "/"}
	}
	return Navbar{Authenticated: true, BrandText: "Dashboard", BrandHref: "/dashboard", UserName: user.UserName}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	// SessionID is the session opened by the login. It replaces the session
	// id the request arrived with.
	SessionID       string
	User            domain.User
	RememberToken   string
	RememberExpires time.Time
}

// SessionOptions tunes a SessionController.
type SessionOptions struct {
	IdleTimeout             time.Duration
	GracePeriod             time.Duration
	LoginRateLimitPerMinute int
}

// SessionController owns the current user of each browser session.
type SessionController struct {
	bank      BankAPI
	sessions  store.SessionStore
	remember  *RememberManager
	publisher rabbitmq.Publisher
	limiter   RateLimiter
	clock     Clock
	opts      SessionOptions

	mu         sync.Mutex
	timers     map[string]idleTimer
	generation uint64
}

type idleTimer struct {
	timer      Timer
	generation uint64
}

func NewSessionController(
	bank BankAPI,
	sessions store.SessionStore,
	remember *RememberManager,
	publisher rabbitmq.Publisher,
	clock Clock,
	opts SessionOptions,
) *SessionController {
	if clock == nil {
		clock = SystemClock
	}
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{}
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	return &SessionController{
		bank:      bank,
		sessions:  sessions,
		remember:  remember,
		publisher: publisher,
		clock:     clock,
		opts:      opts,
		timers:    make(map[string]idleTimer),
	}
}

// SetRateLimiter enables per-phone login rate limiting.
func (c *SessionController) SetRateLimiter(limiter RateLimiter) {
	c.limiter = limiter
}

// CurrentUser returns the session's user, or nil when anonymous. A session idle
// for longer than the timeout plus grace is ended here, which covers sessions
// whose idle timer lives in another process.
func (c *SessionController) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	user, err := c.storedUser(ctx, sid)
	if err != nil || user == nil {
		return user, err
	}
	if c.idleExpired(ctx, sid) {
		c.stopTimer(sid)
		if err := c.logout(ctx, sid, "", domain.EventSessionExpired, "idle_timeout"); err != nil {
			log.Printf("level=warn component=session msg=\"expired session clear failed\" err=%v", err)
		}
		if err := c.sessions.Set(ctx, sid, domain.KeySessionExpiring, true); err != nil {
			log.Printf("level=warn component=session msg=\"failed to keep expiry notice\" err=%v", err)
		}
		return nil, nil
	}
	return user, nil
}

func (c *SessionController) storedUser(ctx context.Context, sid string) (*domain.User, error) {
	var user domain.User
	if err := c.sessions.Get(ctx, sid, domain.KeyUserData, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session user: %w", err)
	}
	return &user, nil
}

// idleExpired compares the stored last activity against the idle deadline.
// Sessions without a recorded activity are treated as active.
func (c *SessionController) idleExpired(ctx context.Context, sid string) bool {
	var last time.Time
	if err := c.sessions.Get(ctx, sid, domain.KeyLastActivity, &last); err != nil {
		return false
	}
	return c.clock.Now().Sub(last) >= c.opts.IdleTimeout+c.opts.GracePeriod
}

// ReplaceUser swaps the session user, e.g. after a profile update.
func (c *SessionController) ReplaceUser(ctx context.Context, sid string, user domain.User) error {
	return c.sessions.Set(ctx, sid, domain.KeyUserData, user)
}

// Login validates the form, authenticates against the banking API and opens
// the session.
func (c *SessionController) Login(ctx context.Context, sid string, form LoginForm) (*LoginResult, error) {
	if err := newValidationError(ValidateLogin(form)); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(form.PhoneNumber)

	if c.limiter != nil && c.opts.LoginRateLimitPerMinute > 0 {
		count, retryAfter, err := c.limiter.ConsumeRateLimit(ctx, loginRateLimitScope, phone, c.opts.LoginRateLimitPerMinute, loginRateLimitWindow)
		if err != nil {
			log.Printf("level=warn component=session msg=\"login rate limiter unavailable; allowing attempt\" err=%v", err)
		} else if count > c.opts.LoginRateLimitPerMinute {
			return nil, &RateLimitError{RetryAfterSeconds: retryAfter}
		}
	}

	user, err := c.bank.Login(ctx, domain.LoginRequest{PhoneNumber: phone, Password: form.Password})
	if err != nil {
		return nil, err
	}
	if user.PhoneNumber == "" {
		user.PhoneNumber = phone
	}

	newSID, err := c.openSession(ctx, sid, *user)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{SessionID: newSID, User: *user}
	if form.Remember && c.remember != nil {
		token, expiresAt, err := c.remember.Issue(ctx, *user)
		if err != nil {
			log.Printf("level=warn component=session msg=\"remember-me issue failed\" user_id=%s err=%v", user.UserID, err)
		} else {
			result.RememberToken = token
			result.RememberExpires = expiresAt
		}
	}

	log.Printf("level=info component=session msg=\"user logged in\" user_id=%s remember=%t", user.UserID, result.RememberToken != "")
	c.publishSessionEvent(ctx, domain.EventUserLoggedIn, *user, "login")
	return result, nil
}

// RestoreRemembered opens a session from a remember-me token. It returns nil
// when the token does not resolve.
func (c *SessionController) RestoreRemembered(ctx context.Context, sid, token string) (*LoginResult, error) {
	if c.remember == nil || strings.TrimSpace(token) == "" {
		return nil, nil
	}
	user, err := c.remember.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRememberTokenInvalid) {
			return nil, nil
		}
		return nil, err
	}
	newSID, err := c.openSession(ctx, sid, *user)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=session msg=\"session restored from remember-me\" user_id=%s", user.UserID)
	return &LoginResult{SessionID: newSID, User: *user}, nil
}

// openSession stores user under a freshly minted session id and discards the
// state of previousSID, so a session id handed out before authentication never
// becomes authenticated.
func (c *SessionController) openSession(ctx context.Context, previousSID string, user domain.User) (string, error) {
	c.stopTimer(previousSID)
	if previousSID != "" {
		if err := c.sessions.Clear(ctx, previousSID); err != nil {
			return "", err
		}
	}

	sid := uuid.NewString()
	if err := c.sessions.Set(ctx, sid, domain.KeyUserData, user); err != nil {
		return "", err
	}
	if err := c.sessions.Set(ctx, sid, domain.KeyLastActivity, c.clock.Now().UTC()); err != nil {
		return "", err
	}
	c.resetTimer(sid)
	return sid, nil
}

// Register validates the form and creates the user with the banking API.
func (c *SessionController) Register(ctx context.Context, form RegisterForm) error {
	if err := newValidationError(ValidateRegistration(form)); err != nil {
		return err
	}
	return c.bank.Register(ctx, domain.RegisterRequest{
		UserName:    strings.TrimSpace(form.Name),
		PhoneNumber: strings.TrimSpace(form.PhoneNumber),
		Password:    form.Password,
	})
}

// Logout ends the session. The remote logout is best effort and never blocks
// clearing local state.
func (c *SessionController) Logout(ctx context.Context, sid, rememberToken string) error {
	return c.logout(ctx, sid, rememberToken, domain.EventUserLoggedOut, "logout")
}

func (c *SessionController) logout(ctx context.Context, sid, rememberToken, eventType, reason string) error {
	user, err := c.storedUser(ctx, sid)
	if err != nil {
		log.Printf("level=warn component=session msg=\"session user unreadable during logout\" err=%v", err)
	}

	if user != nil {
		if err := c.bank.Logout(ctx, user.Token); err != nil {
			log.Printf("level=warn component=session msg=\"remote logout failed; clearing local session\" user_id=%s err=%v", user.UserID, err)
		}
	}

	c.stopTimer(sid)
	clearErr := c.sessions.Clear(ctx, sid)

	if rememberToken != "" && c.remember != nil {
		if err := c.remember.Revoke(ctx, rememberToken); err != nil {
			log.Printf("level=warn component=session msg=\"remember-me revoke failed\" err=%v", err)
		}
	}

	if user != nil {
		log.Printf("level=info component=session msg=\"user logged out\" user_id=%s reason=%s", user.UserID, reason)
		c.publishSessionEvent(ctx, eventType, *user, reason)
	}
	return clearErr
}

// Touch records browser activity for an authenticated session. Only qualifying
// activity resets the idle timer.
func (c *SessionController) Touch(ctx context.Context, sid string, kind ActivityKind) {
	switch kind {
	case ActivityPointer, ActivityKey, ActivityScroll:
	default:
		return
	}
	c.resetTimer(sid)
	// Setting the activity also slides the session TTL.
	if err := c.sessions.Set(ctx, sid, domain.KeyLastActivity, c.clock.Now().UTC()); err != nil {
		log.Printf("level=warn component=session msg=\"session activity store failed\" err=%v", err)
	}
}

// ExpiryNotice reports whether the session was marked expiring. The notice is
// consumed once the session is anonymous.
func (c *SessionController) ExpiryNotice(ctx context.Context, sid string) bool {
	var expiring bool
	if err := c.sessions.Get(ctx, sid, domain.KeySessionExpiring, &expiring); err != nil || !expiring {
		return false
	}
	if user, _ := c.storedUser(ctx, sid); user == nil {
		_ = c.sessions.Delete(ctx, sid, domain.KeySessionExpiring)
	}
	return true
}

func (c *SessionController) resetTimer(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.timers[sid]; ok {
		entry.timer.Stop()
	}
	c.generation++
	generation := c.generation
	c.timers[sid] = idleTimer{
		timer:      c.clock.AfterFunc(c.opts.IdleTimeout, func() { c.expire(sid, generation) }),
		generation: generation,
	}
}

func (c *SessionController) stopTimer(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.timers[sid]; ok {
		entry.timer.Stop()
		delete(c.timers, sid)
	}
}

// expire runs when the idle timer of sid fires. A timer that was replaced after
// it fired is ignored.
func (c *SessionController) expire(sid string, generation uint64) {
	c.mu.Lock()
	entry, ok := c.timers[sid]
	if !ok || entry.generation != generation {
		c.mu.Unlock()
		return
	}
	delete(c.timers, sid)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
	defer cancel()
	if err := c.sessions.Set(ctx, sid, domain.KeySessionExpiring, true); err != nil {
		log.Printf("level=warn component=session msg=\"failed to mark session expiring\" err=%v", err)
	}
	log.Printf("level=info component=session msg=\"session idle timeout; logging out after grace\" grace=%s", c.opts.GracePeriod)

	c.clock.AfterFunc(c.opts.GracePeriod, func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
		defer cancel()
		if err := c.logout(ctx, sid, "", domain.EventSessionExpired, "idle_timeout"); err != nil {
			log.Printf("level=warn component=session msg=\"expired session clear failed\" err=%v", err)
		}
		if err := c.sessions.Set(ctx, sid, domain.KeySessionExpiring, true); err != nil {
			log.Printf("level=warn component=session msg=\"failed to keep expiry notice\" err=%v", err)
		}
	})
}

func (c *SessionController) publishSessionEvent(ctx context.Context, eventType string, user domain.User, reason string) {
	event := domain.SessionEvent{
		EventID:    uuid.NewString(),
		UserID:     user.UserID,
		UserName:   user.UserName,
		Reason:     reason,
		OccurredAt: c.clock.Now().UTC(),
	}
	if err := c.publisher.PublishSessionEvent(ctx, eventType, event); err != nil {
		log.Printf("level=warn component=session msg=\"session event publish failed\" event=%s err=%v", eventType, err)
	}
}
