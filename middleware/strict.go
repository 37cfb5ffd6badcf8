package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// RequireStrict returns middleware that also rejects tokens superseded by
// logout or refresh.
func RequireStrict(engine *goSession.Engine) func(http.Handler) http.Handler {
	return Guard(engine, goSession.ModeStrict)
}
