package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

type authResultContextKey struct{}

// UnauthorizedMessage is the only message sent for a rejected bearer token.
// The precise reason is logged by the Engine.
const UnauthorizedMessage = "Invalid or expired token"

// AuthResultFromContext returns the result stored by [Guard].
func AuthResultFromContext(ctx context.Context) (*goSession.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goSession.AuthResult)
	return res, ok
}

// WithAuthResult stores res in ctx the way Guard does. Useful in handler tests.
func WithAuthResult(ctx context.Context, res *goSession.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard authenticates the bearer token on every request and stores the
// result in the request context. Missing, malformed, expired and
// badly-signed tokens all get the same 401 response.
func Guard(engine *goSession.Engine, routeMode goSession.ValidationMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			ctx := goSession.WithUserAgent(r.Context(), r.UserAgent())
			res, err := engine.Authenticate(ctx, token, routeMode)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(ctx, res)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    any    `json:"data"`
	}{Success: false, Message: UnauthorizedMessage})
}
