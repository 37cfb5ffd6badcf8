package jwt

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm used by a [Codec].
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 over a shared secret. It is the default.
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 signs with HMAC-SHA384 over a shared secret.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 signs with HMAC-SHA512 over a shared secret.
	MethodHS512 SigningMethod = "hs512"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// MinSecretLength is the smallest HMAC secret accepted by [NewCodec], in bytes.
const MinSecretLength = 32

var (
	// ErrCodec reports a codec that cannot sign or verify with its configuration.
	ErrCodec = errors.New("token codec misconfigured")
	// ErrTokenMalformed reports a token that cannot be decoded into claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignatureInvalid reports a decodable token whose signature or algorithm does not match.
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired reports an authentic token whose expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrEmptySubject is returned by Issue for an empty subject.
	ErrEmptySubject = errors.New("token subject is empty")
)

var registeredClaims = map[string]struct{}{
	"sub": {},
	"iat": {},
	"exp": {},
	"nbf": {},
	"jti": {},
	"iss": {},
	"aud": {},
}

// Config configures a [Codec].
//
// Secret is used by the HMAC methods. PrivateKey and PublicKey are used by
// MethodEd25519, either as raw key bytes or PEM. A codec with only a public key
// can verify but not issue.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	Validity      time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	Now           func() time.Time
}

// Token is an issued, signed token together with the values encoded in it.
type Token struct {
	Encoded   string
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    map[string]any
}

// Verified holds the claims of an authentic token.
type Verified struct {
	Subject   string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    map[string]any
}

// Codec creates and verifies signed session tokens.
//
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	config    Config
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	parser    *jwt.Parser
}

// NewCodec validates cfg and builds a Codec. Every configuration problem is
// reported as an error wrapping [ErrCodec].
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	if cfg.Validity <= 0 {
		return nil, fmt.Errorf("%w: validity must be > 0", ErrCodec)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway must be within [0, 2m]", ErrCodec)
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, fmt.Errorf("%w: invalid MaxFutureIAT", ErrCodec)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	c := &Codec{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256, MethodHS384, MethodHS512:
		if len(cfg.Secret) == 0 {
			return nil, fmt.Errorf("%w: %s requires a secret", ErrCodec, cfg.SigningMethod)
		}
		if len(cfg.Secret) < MinSecretLength {
			return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrCodec, MinSecretLength)
		}
		secret := append([]byte(nil), cfg.Secret...)
		c.signKey = secret
		c.verifyKey = secret
		switch cfg.SigningMethod {
		case MethodHS384:
			c.method = jwt.SigningMethodHS384
		case MethodHS512:
			c.method = jwt.SigningMethodHS512
		default:
			c.method = jwt.SigningMethodHS256
		}
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCodec, err)
			}
			c.signKey = priv
			c.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCodec, err)
			}
			c.verifyKey = pub
		}
		if c.verifyKey == nil {
			return nil, fmt.Errorf("%w: ed25519 requires a private or public key", ErrCodec)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrCodec, cfg.SigningMethod)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	c.parser = jwt.NewParser(options...)

	return c, nil
}

// Validity returns the configured token lifetime.
func (c *Codec) Validity() time.Duration {
	return c.config.Validity
}

// Now returns the current time of the codec clock.
func (c *Codec) Now() time.Time {
	return c.config.Now()
}

// Issue signs a new token for subject. The token carries iat = now (whole
// seconds), exp = iat + validity, a random jti and the given custom claims.
// Custom claims that collide with registered names are ignored.
func (c *Codec) Issue(subject string, claims map[string]any) (*Token, error) {
	if subject == "" {
		return nil, ErrEmptySubject
	}
	if c.signKey == nil {
		return nil, fmt.Errorf("%w: no signing key configured", ErrCodec)
	}

	now := c.config.Now().Truncate(time.Second)
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(c.config.Validity))
	id := uuid.NewString()

	custom := make(map[string]any, len(claims))
	mapClaims := jwt.MapClaims{}
	for k, v := range claims {
		if _, reserved := registeredClaims[k]; reserved {
			continue
		}
		custom[k] = v
		mapClaims[k] = v
	}
	mapClaims["sub"] = subject
	mapClaims["iat"] = issuedAt
	mapClaims["exp"] = expiresAt
	mapClaims["jti"] = id
	if c.config.Issuer != "" {
		mapClaims["iss"] = c.config.Issuer
	}
	if c.config.Audience != "" {
		mapClaims["aud"] = c.config.Audience
	}

	token := jwt.NewWithClaims(c.method, mapClaims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}

	encoded, err := token.SignedString(c.signKey)
	if err != nil {
		return nil, fmt.Errorf("%w: sign: %v", ErrCodec, err)
	}

	return &Token{
		Encoded:   encoded,
		ID:        id,
		Subject:   subject,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
		Claims:    custom,
	}, nil
}

// Verify checks the signature and claims of encoded.
//
// The returned error wraps exactly one of [ErrTokenMalformed],
// [ErrTokenSignatureInvalid] or [ErrTokenExpired]. For an expired token the
// decoded claims are returned together with ErrTokenExpired.
func (c *Codec) Verify(encoded string) (*Verified, error) {
	token, err := c.parser.ParseWithClaims(encoded, jwt.MapClaims{}, c.keyFunc)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
		case errors.Is(err, jwt.ErrTokenInvalidIssuer),
			errors.Is(err, jwt.ErrTokenInvalidAudience),
			errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
			errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			if token == nil {
				return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
			}
			verified, extractErr := extractVerified(token)
			if extractErr != nil {
				return nil, extractErr
			}
			return verified, fmt.Errorf("%w: expired at %s", ErrTokenExpired, verified.ExpiresAt.UTC().Format(time.RFC3339))
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	verified, err := extractVerified(token)
	if err != nil {
		return nil, err
	}
	if !verified.IssuedAt.IsZero() && c.config.MaxFutureIAT > 0 {
		if verified.IssuedAt.After(c.config.Now().Add(c.config.MaxFutureIAT)) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrTokenMalformed)
		}
	}
	return verified, nil
}

// IsValidFor reports whether encoded is authentic, unexpired and issued to
// identity. Subjects are compared byte-for-byte.
func (c *Codec) IsValidFor(encoded, identity string) bool {
	verified, err := c.Verify(encoded)
	if err != nil {
		return false
	}
	return verified.Subject == identity
}

// Expiry returns the expiry of an authentic token, including an expired one.
func (c *Codec) Expiry(encoded string) (time.Time, error) {
	verified, err := c.Verify(encoded)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return time.Time{}, err
	}
	return verified.ExpiresAt, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return c.verifyKey, nil
}

func extractVerified(token *jwt.Token) (*Verified, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenMalformed
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrTokenMalformed)
	}
	v := &Verified{
		Subject:   subject,
		ExpiresAt: exp.Time,
		Claims:    make(map[string]any),
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		v.IssuedAt = iat.Time
	}
	if jti, ok := claims["jti"].(string); ok {
		v.TokenID = jti
	}
	for k, val := range claims {
		if _, reserved := registeredClaims[k]; reserved {
			continue
		}
		v.Claims[k] = val
	}
	return v, nil
}

// DecodeSecret decodes a base64 signing secret. Standard and URL alphabets
// are accepted, with or without padding.
func DecodeSecret(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrCodec)
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if secret, err := enc.DecodeString(encoded); err == nil {
			return secret, nil
		}
	}
	return nil, fmt.Errorf("%w: secret is not valid base64", ErrCodec)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
