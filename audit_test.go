package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	e, _ := newTestEngine(t, newTestClock(), engineOptions{sink: sink})
	ctx := context.Background()

	if _, err := e.Login(ctx, Credentials{UserID: "john", Password: "password123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	e.Invalidate(ctx, "john")
	e.Close()

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no audit events while disabled, got %d", got)
	}
}

func TestAuditJSONSinkCarriesRequestContextWithoutSecrets(t *testing.T) {
	var buf bytes.Buffer
	e, _ := newTestEngine(t, newTestClock(), engineOptions{
		mutate: func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.DropIfFull = false
		},
		sink: NewJSONWriterSink(&buf),
	})

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.4"), "curl/8.5")
	res, err := e.Login(ctx, Credentials{UserID: "admin", Password: "adminpass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := e.Login(ctx, Credentials{UserID: "admin", Password: "not-the-password"}); err == nil {
		t.Fatal("expected failed login")
	}
	e.Close()

	out := buf.String()
	if strings.Contains(out, res.Token) {
		t.Fatal("audit output must not contain encoded tokens")
	}
	if strings.Contains(out, "adminpass") || strings.Contains(out, "not-the-password") {
		t.Fatal("audit output must not contain passwords")
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected token_issued, login_success and login_failed lines, got %d:\n%s", len(lines), out)
	}
	for _, line := range lines {
		var ev AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad JSON line %q: %v", line, err)
		}
		if ev.IP != "198.51.100.4" || ev.UserAgent != "curl/8.5" {
			t.Fatalf("event %s missing request context: %+v", ev.EventType, ev)
		}
		if ev.EventType == auditEventTokenIssued && ev.TokenID == "" {
			t.Fatal("token_issued must carry the jti")
		}
	}
}

func TestAuditTokenRejected(t *testing.T) {
	sink := NewChannelSink(16)
	e, _ := newTestEngine(t, newTestClock(), engineOptions{
		mutate: func(c *Config) { c.Audit.Enabled = true },
		sink:   sink,
	})
	ctx := context.Background()

	tok, err := e.GetOrCreate(ctx, "asraf")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if _, err := e.Authenticate(ctx, "not.a.token", ModeJWTOnly); err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
	e.Invalidate(ctx, "asraf")
	if _, err := e.Authenticate(ctx, tok.Token, ModeStrict); err == nil {
		t.Fatal("expected revoked token to be rejected")
	}
	e.Close()

	var statuses []string
	for len(sink.Events()) > 0 {
		ev := <-sink.Events()
		if ev.EventType != auditEventTokenRejected {
			continue
		}
		statuses = append(statuses, ev.Metadata["status"])
		if ev.Metadata["status"] == "revoked" && ev.TokenID != tok.TokenID {
			t.Fatalf("revoked event must name the token, got %q", ev.TokenID)
		}
	}
	if len(statuses) != 2 || statuses[0] != "malformed" || statuses[1] != "revoked" {
		t.Fatalf("unexpected rejection statuses %v", statuses)
	}
}

func TestAuditErrorCodes(t *testing.T) {
	cases := map[error]AuditErrorCode{
		nil:                    "",
		ErrInvalidCredentials:  auditErrInvalidCredentials,
		ErrLoginThrottled:      auditErrThrottled,
		ErrTokenExpired:        auditErrTokenExpired,
		ErrTokenMalformed:      auditErrTokenMalformed,
		ErrCacheUnavailable:    auditErrCacheUnavailable,
		ErrIdentityUnavailable: auditErrUnavailable,
		context.Canceled:       auditErrInternal,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
}
