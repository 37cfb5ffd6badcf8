package goSession

import (
	"context"
	"sync"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)
	cfg.Cache.SweepInterval = -1
	return cfg
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testUser struct {
	password string
	roles    []string
}

type testResolver struct {
	mu    sync.Mutex
	users map[string]testUser
	err   error
	calls int
}

func newTestResolver() *testResolver {
	return &testResolver{users: map[string]testUser{
		"john":  {password: "password123", roles: []string{"USER"}},
		"asraf": {password: "mypassword", roles: []string{"USER"}},
		"admin": {password: "adminpass", roles: []string{"ADMIN", "USER"}},
	}}
}

func (r *testResolver) ResolveIdentity(_ context.Context, creds Credentials) (Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return Principal{}, r.err
	}
	u, ok := r.users[creds.UserID]
	if !ok || u.password != creds.Password {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{Identity: creds.UserID, Roles: u.roles}, nil
}

func (r *testResolver) LookupIdentity(_ context.Context, identity string) (Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Principal{}, r.err
	}
	u, ok := r.users[identity]
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{Identity: identity, Roles: u.roles}, nil
}

func (r *testResolver) setRoles(identity string, roles ...string) {
	r.mu.Lock()
	u := r.users[identity]
	u.roles = roles
	r.users[identity] = u
	r.mu.Unlock()
}

type engineOptions struct {
	mutate func(*Config)
	sink   AuditSink
}

func newTestEngine(t *testing.T, clock *testClock, opts engineOptions) (*Engine, *testResolver) {
	t.Helper()

	cfg := testConfig()
	if opts.mutate != nil {
		opts.mutate(&cfg)
	}
	resolver := newTestResolver()
	b := New().
		WithConfig(cfg).
		WithIdentityResolver(resolver).
		WithClock(clock.Now)
	if opts.sink != nil {
		b = b.WithAuditSink(opts.sink)
	}

	e, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(e.Close)
	return e, resolver
}
