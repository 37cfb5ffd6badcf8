package httpapi

import (
	"errors"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
)

const (
	MessageLoginCached    = "Login successful - returning cached token"
	MessageLoginNew       = "Login successful - new token generated"
	MessageLogout         = "Logout successful"
	MessageNoSession      = "No Active session"
	MessageRefreshed      = "Token refreshed successfully"
	MessageNoUser         = "No authenticated user"
	MessageUserNotFound   = "User not found"
	MessageHealthy        = "Service is up and running"
	MessageUnavailable    = "Service temporarily unavailable"
	validationNotBlankMsg = "must not be blank"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// LoginResponse is the data of a successful login or refresh.
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresIn int64  `json:"expiresIn"`
	UserID    string `json:"userId"`
	Cached    bool   `json:"cached"`
	Message   string `json:"message"`
}

func newLoginResponse(res *goSession.LoginResult) LoginResponse {
	return LoginResponse{
		Token:     res.Token,
		TokenType: res.TokenType,
		ExpiresIn: res.ExpiresIn,
		UserID:    res.UserID,
		Cached:    res.Cached,
		Message:   res.Message,
	}
}

func (req LoginRequest) validate() map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(req.UserID) == "" {
		fields["userId"] = validationNotBlankMsg
	}
	if req.Password == "" {
		fields["password"] = validationNotBlankMsg
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(&req, w, r) {
		return
	}
	if fields := req.validate(); fields != nil {
		writeError(w, http.StatusBadRequest, MessageValidationFailed, fields)
		return
	}

	a.log.Info().Str("user_id", req.UserID).Msg("login request received")

	res, err := a.engine.Login(r.Context(), goSession.Credentials{UserID: req.UserID, Password: req.Password})
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}

	msg := MessageLoginNew
	if res.Cached {
		msg = MessageLoginCached
	}
	writeOK(w, newLoginResponse(res), msg)
}

func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeOK(w, nil, MessageNoSession)
		return
	}

	existed, err := a.engine.Logout(r.Context(), res.UserID)
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	if !existed {
		writeOK(w, nil, MessageNoSession)
		return
	}
	writeOK(w, nil, MessageLogout)
}

func (a *API) RefreshToken(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, MessageNoUser, nil)
		return
	}

	a.logger(r.Context()).Info().Msg("token refresh request received")

	out, err := a.engine.RefreshToken(r.Context(), res.UserID)
	if err != nil {
		if errors.Is(err, goSession.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, MessageUserNotFound, nil)
			return
		}
		a.writeEngineError(w, r, err)
		return
	}
	writeOK(w, newLoginResponse(out), MessageRefreshed)
}

func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, "ok", MessageHealthy)
}

// writeEngineError maps Engine errors to responses. Credential failures are
// reported uniformly; anything unexpected is logged and hidden.
func (a *API) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, goSession.ErrInvalidCredentials):
		a.logger(r.Context()).Warn().Err(err).Msg("bad credentials")
		writeError(w, http.StatusUnauthorized, MessageInvalidCredentials, nil)
	case errors.Is(err, goSession.ErrLoginThrottled):
		writeError(w, http.StatusTooManyRequests, MessageThrottled, nil)
	case errors.Is(err, goSession.ErrEmptyIdentity):
		writeError(w, http.StatusBadRequest, MessageValidationFailed, nil)
	case errors.Is(err, goSession.ErrIdentityUnavailable),
		errors.Is(err, goSession.ErrEngineClosed),
		errors.Is(err, goSession.ErrEngineNotReady):
		a.logger(r.Context()).Error().Err(err).Msg("engine unavailable")
		writeError(w, http.StatusServiceUnavailable, MessageUnavailable, nil)
	default:
		a.logger(r.Context()).Error().Err(err).Msg("unexpected error")
		writeError(w, http.StatusInternalServerError, MessageUnexpected, nil)
	}
}
