package httpapi

import (
	"net/http"

	"github.com/MrEthical07/goSession/middleware"
)

const (
	MessageProtectedData = "Protected data retrieved successfully"
	MessageProfile       = "User profile retrieved successfully"
)

// authorities renders roles the way role-based frameworks name them.
func authorities(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, "ROLE_"+role)
	}
	return out
}

func rolesOrEmpty(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}

func (a *API) ProtectedData(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, middleware.UnauthorizedMessage, nil)
		return
	}
	a.logger(r.Context()).Info().Msg("protected data requested")

	writeOK(w, map[string]any{
		"message": "This is protected data",
		"user":    res.UserID,
		"roles":   rolesOrEmpty(res.Roles),
	}, MessageProtectedData)
}

func (a *API) Profile(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, middleware.UnauthorizedMessage, nil)
		return
	}
	a.logger(r.Context()).Info().Msg("profile requested")

	writeOK(w, map[string]any{
		"username":    res.UserID,
		"authorities": authorities(res.Roles),
		"enabled":     true,
		"roles":       rolesOrEmpty(res.Roles),
		"expiresAt":   res.ExpiresAt.UTC(),
	}, MessageProfile)
}
