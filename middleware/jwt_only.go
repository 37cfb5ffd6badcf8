package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// RequireJWTOnly returns middleware that accepts any authentic, unexpired
// token, whatever the cache holds for its subject.
func RequireJWTOnly(engine *goSession.Engine) func(http.Handler) http.Handler {
	return Guard(engine, goSession.ModeJWTOnly)
}
