package goSession

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/tokencache"
	"github.com/rs/zerolog"
)

// TokenType is the scheme clients put in front of the token in the
// Authorization header.
const TokenType = "Bearer"

// Login result messages.
const (
	MessageCachedToken    = "Existing token returned from cache"
	MessageNewToken       = "New token generated"
	MessageRefreshedToken = "New token generated (forced refresh)"
)

// Credentials are the user id and plaintext password presented at login.
type Credentials struct {
	UserID   string
	Password string
}

// Principal is an authenticated identity and the roles copied into its tokens.
type Principal struct {
	Identity string
	Roles    []string
}

// IdentityResolver connects the Engine to a user directory.
//
// ResolveIdentity verifies credentials and must return an error wrapping
// ErrInvalidCredentials for unknown users and wrong passwords alike.
// LookupIdentity reloads a known identity without a password and is used by
// RefreshToken; an unknown identity is also ErrInvalidCredentials.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, creds Credentials) (Principal, error)
	LookupIdentity(ctx context.Context, identity string) (Principal, error)
}

// LoginResult is returned by [Engine.Login] and [Engine.RefreshToken].
type LoginResult struct {
	Token     string
	TokenType string
	UserID    string
	Roles     []string
	// ExpiresIn is the remaining lifetime in whole seconds at the time of the call.
	ExpiresIn int64
	ExpiresAt time.Time
	Cached    bool
	Message   string
}

// TokenResult is returned by the token-level operations GetOrCreate and Refresh.
type TokenResult struct {
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Previous is the cache state of the identity before the call.
	Previous TokenState
	Cached   bool
	// Stored is false when the cache was unavailable; the token is valid but untracked.
	Stored bool
}

// AuthResult is returned by [Engine.Authenticate].
type AuthResult struct {
	UserID    string
	Roles     []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Mode      ValidationMode
}

// TokenState is the lifecycle state of an identity's cached token.
type TokenState = tokencache.State

const (
	StateAbsent  = tokencache.StateAbsent
	StateFresh   = tokencache.StateFresh
	StateStale   = tokencache.StateStale
	StateExpired = tokencache.StateExpired
)

// VerifyStatus classifies a presented token.
type VerifyStatus = jwt.Status

const (
	StatusValid            = jwt.StatusValid
	StatusExpired          = jwt.StatusExpired
	StatusMalformed        = jwt.StatusMalformed
	StatusSignatureInvalid = jwt.StatusSignatureInvalid
)

// TokenOutcome is the tagged result of [Engine.Classify].
type TokenOutcome = jwt.Outcome

// VerifiedToken is the decoded content of an authentic token.
type VerifiedToken = jwt.Verified

// CacheStats is a point-in-time view of cache activity.
type CacheStats = tokencache.Stats

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON lines to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// LoggerSink is an [AuditSink] that writes events through zerolog.
type LoggerSink = internalaudit.LoggerSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLoggerSink creates a [LoggerSink] on top of logger.
func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return internalaudit.NewLoggerSink(logger)
}
