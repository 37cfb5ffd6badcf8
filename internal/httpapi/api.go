package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
)

// Response messages shared by several handlers.
const (
	MessageInvalidCredentials = "Invalid userId or password"
	MessageValidationFailed   = "Validation failed"
	MessageMalformedBody      = "Malformed request body"
	MessageThrottled          = "Too many failed login attempts. Please try again later."
	MessageUnexpected         = "An unexpected error occurred. Please try again later."
	MessageNotFound           = "Resource not found"
	MessageMethodNotAllowed   = "Method not allowed"
)

const maxBodyBytes = 1 << 16

// Envelope is the body of every response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Options configures an API.
type Options struct {
	Logger *zerolog.Logger
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// TrustForwardedFor takes the client IP from the first X-Forwarded-For
	// entry. Enable only behind a proxy that sets the header.
	TrustForwardedFor bool
	// Mode is the validation mode of guarded routes. Zero means the
	// engine's configured default.
	Mode goSession.ValidationMode
}

// API serves the HTTP routes over an Engine.
type API struct {
	engine  *goSession.Engine
	log     zerolog.Logger
	metrics http.Handler
	trustFF bool
	mode    goSession.ValidationMode
}

func New(engine *goSession.Engine, opts Options) *API {
	a := &API{
		engine:  engine,
		log:     zerolog.Nop(),
		metrics: opts.Metrics,
		trustFF: opts.TrustForwardedFor,
		mode:    opts.Mode,
	}
	if opts.Logger != nil {
		a.log = opts.Logger.With().Str("component", "httpapi").Logger()
	}
	if a.mode == 0 {
		a.mode = goSession.ModeInherit
	}
	return a
}

// Router builds the route table.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.requestContext)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, MessageNotFound, nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, MessageMethodNotAllowed, nil)
	})

	guard := middleware.Guard(a.engine, a.mode)

	// Routes stay on the root router so method mismatches reach
	// MethodNotAllowedHandler.
	r.HandleFunc("/api/auth/login", a.Login).Methods(http.MethodPost)
	r.Handle("/api/auth/logout", guard(http.HandlerFunc(a.Logout))).Methods(http.MethodPost)
	r.Handle("/api/auth/refresh-token", guard(http.HandlerFunc(a.RefreshToken))).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/health", a.Health).Methods(http.MethodGet)

	r.Handle("/api/protected/data", guard(http.HandlerFunc(a.ProtectedData))).Methods(http.MethodGet)
	r.Handle("/api/protected/profile", guard(http.HandlerFunc(a.Profile))).Methods(http.MethodGet)

	if a.metrics != nil {
		r.Handle("/metrics", a.metrics).Methods(http.MethodGet)
	}

	return r
}

// requestContext copies the client address and user agent into the request
// context for throttling and audit, and logs the request once it completes.
func (a *API) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := a.clientIP(r)
		ctx := goSession.WithClientIP(r.Context(), ip)
		ctx = goSession.WithUserAgent(ctx, r.UserAgent())

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		a.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("ip", ip).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (a *API) clientIP(r *http.Request) string {
	if a.trustFF {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) logger(ctx context.Context) *zerolog.Logger {
	l := a.log.With().Logger()
	if res, ok := middleware.AuthResultFromContext(ctx); ok {
		l = l.With().Str("user_id", res.UserID).Logger()
	}
	return &l
}

func decodeRequest[T any](req *T, w http.ResponseWriter, r *http.Request) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, MessageMalformedBody, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: false, Message: message, Data: data})
}
