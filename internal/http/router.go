package httpx

import (
	"net/http"

	"log/slog"

	"codeblocks/internal/app"
	"codeblocks/internal/store"
	"codeblocks/internal/ws"
	"codeblocks/pkg/auth"
	"codeblocks/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, logger *slog.Logger, hub *ws.Hub, db *store.Postgres) http.Handler {
	mw := NewMiddleware(cfg)
	api := &CodeBlocksAPI{DB: db}
	authAPI := &AuthAPI{DB: db, JWT: auth.New(cfg.JWTSecret)}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint
	mux.Handle("/ws", http.HandlerFunc(hub.ServeWS))

	// Admin auth endpoints (codeblock authoring only)
	mux.Handle("/api/auth/register", http.HandlerFunc(authAPI.Register))
	mux.Handle("/api/auth/login", http.HandlerFunc(authAPI.Login))
	mux.Handle("/api/auth/me", mw.Auth(http.HandlerFunc(authAPI.Me)))

	// Codeblock endpoints: reads are public (the room page fetches its seed
	// and solution directly), writes need an admin token
	mux.Handle("/api/codeblocks", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.List(w, r)
		case http.MethodPost:
			mw.Auth(http.HandlerFunc(api.Create)).ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	mux.Handle("/api/codeblocks/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.Get(w, r)
		case http.MethodPut:
			mw.Auth(http.HandlerFunc(api.Update)).ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	// CORS + rate limit applied globally
	return mw.Wrap(mux)
}
