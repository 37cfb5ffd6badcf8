package goSession

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
)

const (
	auditEventTokenIssued      = internalaudit.EventTokenIssued
	auditEventTokenReused      = internalaudit.EventTokenReused
	auditEventTokenRefreshed   = internalaudit.EventTokenRefreshed
	auditEventTokenInvalidated = internalaudit.EventTokenInvalidated
	auditEventLoginSuccess     = internalaudit.EventLoginSuccess
	auditEventLoginFailed      = internalaudit.EventLoginFailed
	auditEventLogout           = internalaudit.EventLogout
	auditEventTokenRejected    = internalaudit.EventTokenRejected
)

// AuditErrorCode is the stable error label written to [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrThrottled          AuditErrorCode = "login_throttled"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenMalformed     AuditErrorCode = "token_malformed"
	auditErrTokenSignature     AuditErrorCode = "token_signature_invalid"
	auditErrCacheUnavailable   AuditErrorCode = "cache_unavailable"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrEmptyIdentity      AuditErrorCode = "empty_identity"
	auditErrCodec              AuditErrorCode = "codec_error"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginThrottled):
		return auditErrThrottled
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenSignatureInvalid):
		return auditErrTokenSignature
	case errors.Is(err, ErrTokenMalformed):
		return auditErrTokenMalformed
	case errors.Is(err, ErrCacheUnavailable):
		return auditErrCacheUnavailable
	case errors.Is(err, ErrIdentityUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrEmptyIdentity):
		return auditErrEmptyIdentity
	case errors.Is(err, ErrCodec):
		return auditErrCodec
	default:
		return auditErrInternal
	}
}
