// Package httpapi is the JSON HTTP surface of the gosession server.
//
// Every response uses the envelope {"success", "message", "data"}. Routes
// are registered on a gorilla/mux router:
//
//	POST /api/auth/login          credentials in, bearer token out
//	POST /api/auth/logout         guarded; drops the caller's cached token
//	POST /api/auth/refresh-token  guarded; forces a new token
//	GET  /api/auth/health
//	GET  /api/protected/data      guarded
//	GET  /api/protected/profile   guarded
//	GET  /metrics                 when a metrics handler is configured
package httpapi
