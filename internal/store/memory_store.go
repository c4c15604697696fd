package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/transfa/portal-service/internal/domain"
)

type memorySession struct {
	values    map[string][]byte
	expiresAt time.Time
}

// MemorySessionStore keeps session state in process memory. It is used when no
// redis is configured and in tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*memorySession
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*memorySession),
	}
}

// live returns the session if present and not expired. Callers must hold mu.
func (s *MemorySessionStore) live(sid string) *memorySession {
	session, ok := s.sessions[sid]
	if !ok {
		return nil
	}
	if s.ttl > 0 && !session.expiresAt.After(s.now()) {
		delete(s.sessions, sid)
		return nil
	}
	return session
}

func (s *MemorySessionStore) Get(_ context.Context, sid, key string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.live(sid)
	if session == nil {
		return ErrNotFound
	}
	raw, ok := session.values[key]
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}

func (s *MemorySessionStore) Set(_ context.Context, sid, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode session value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.live(sid)
	if session == nil {
		session = &memorySession{values: make(map[string][]byte)}
		s.sessions[sid] = session
	}
	session.values[key] = raw
	session.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sid, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session := s.live(sid); session != nil {
		delete(session.values, key)
	}
	return nil
}

func (s *MemorySessionStore) Clear(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sid)
	return nil
}

// MemoryRememberStore is the in-process RememberStore.
type MemoryRememberStore struct {
	mu     sync.Mutex
	logins map[string]domain.RememberedLogin
}

func NewMemoryRememberStore() *MemoryRememberStore {
	return &MemoryRememberStore{logins: make(map[string]domain.RememberedLogin)}
}

func (s *MemoryRememberStore) Save(_ context.Context, login domain.RememberedLogin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins[login.Selector] = login
	return nil
}

func (s *MemoryRememberStore) FindBySelector(_ context.Context, selector string) (*domain.RememberedLogin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	login, ok := s.logins[selector]
	if !ok {
		return nil, ErrNotFound
	}
	return &login, nil
}

func (s *MemoryRememberStore) DeleteBySelector(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logins, selector)
	return nil
}

func (s *MemoryRememberStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for selector, login := range s.logins {
		if login.Expired(now) {
			delete(s.logins, selector)
			removed++
		}
	}
	return removed, nil
}
