package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/portal-service/internal/domain"
	"github.com/transfa/portal-service/internal/store"
	"github.com/transfa/portal-service/pkg/bankclient"
)

type bankStub struct {
	BankAPI

	mu sync.Mutex

	loginFn            func(req domain.LoginRequest) (*domain.User, error)
	logoutErr          error
	logoutCalls        int
	registerCalls      int
	userAccountsFn     func() ([]domain.Account, error)
	userAccountsCalls  int
	allAccountsFn      func() ([]domain.Account, error)
	initiateFn         func(req domain.TransferRequest) (*domain.TransferInitiation, error)
	initiateCalls      int
	verifyFn           func(req domain.VerifyOTPRequest) (*domain.TransferReceipt, error)
	verifyCalls        int
	createAccountCalls int
}

func (s *bankStub) Login(_ context.Context, req domain.LoginRequest) (*domain.User, error) {
	return s.loginFn(req)
}

func (s *bankStub) Register(context.Context, domain.RegisterRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerCalls++
	return nil
}

func (s *bankStub) Logout(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCalls++
	return s.logoutErr
}

func (s *bankStub) UserAccounts(context.Context, string, domain.ID) ([]domain.Account, error) {
	s.mu.Lock()
	s.userAccountsCalls++
	s.mu.Unlock()
	return s.userAccountsFn()
}

func (s *bankStub) AllAccounts(context.Context, string) ([]domain.Account, error) {
	return s.allAccountsFn()
}

func (s *bankStub) CreateAccount(_ context.Context, _ string, req domain.CreateAccountRequest) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createAccountCalls++
	return &domain.Account{AccountID: "new", AccountName: req.AccountName, AccountType: req.AccountType, Balance: req.Balance}, nil
}

func (s *bankStub) InitiateTransfer(_ context.Context, _ string, req domain.TransferRequest) (*domain.TransferInitiation, error) {
	s.mu.Lock()
	s.initiateCalls++
	s.mu.Unlock()
	return s.initiateFn(req)
}

func (s *bankStub) VerifyOTP(_ context.Context, _ string, req domain.VerifyOTPRequest) (*domain.TransferReceipt, error) {
	s.mu.Lock()
	s.verifyCalls++
	s.mu.Unlock()
	return s.verifyFn(req)
}

type publishedEvent struct {
	routingKey string
	session    *domain.SessionEvent
	transfer   *domain.TransferEvent
}

type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *publisherStub) PublishSessionEvent(_ context.Context, routingKey string, event domain.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{routingKey: routingKey, session: &event})
	return nil
}

func (p *publisherStub) PublishTransferEvent(_ context.Context, routingKey string, event domain.TransferEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{routingKey: routingKey, transfer: &event})
	return nil
}

func (p *publisherStub) Close() {}

func (p *publisherStub) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, event := range p.events {
		keys = append(keys, event.routingKey)
	}
	return keys
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock fires due timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, timer)
	return timer
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, timer := range c.timers {
			if timer.stopped || timer.fired || timer.at.After(target) {
				continue
			}
			if next == nil || timer.at.Before(next.at) {
				next = timer
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func account(id, number, name, accountType, balance string) domain.Account {
	return domain.Account{
		AccountID:     domain.ID(id),
		AccountNumber: number,
		AccountName:   name,
		AccountType:   accountType,
		Balance:       decimal.RequireFromString(balance),
	}
}

var testUser = domain.User{UserID: "42", UserName: "Meera", PhoneNumber: "555-0100", Token: "bearer-token"}

func noWaitRetry() bankclient.RetryPolicy {
	return bankclient.RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond}
}

func newSessions() *store.MemorySessionStore {
	return store.NewMemorySessionStore(time.Hour)
}
