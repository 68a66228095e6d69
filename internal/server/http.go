package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/webfolio/authd/internal/config"
	"github.com/webfolio/authd/internal/crypto"
	"github.com/webfolio/authd/internal/idp"
	"github.com/webfolio/authd/internal/log"
	"github.com/webfolio/authd/internal/storage"
	"golang.org/x/time/rate"
)

// HealthHandler handles health check requests
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler for health checks
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// NewRouter builds the full handler tree: auth routes, admin routes,
// health, wrapped in the middleware chain.
func NewRouter(cfg config.Config, providers map[string]idp.Provider, store storage.Store, tokens *crypto.TokenSource) http.Handler {
	auth := NewAuthHandlers(cfg, providers, store, store, store, tokens)
	admin := NewAdminHandlers(cfg, store)

	mux := http.NewServeMux()
	mux.Handle("GET /health", NewHealthHandler())
	mux.HandleFunc("GET /auth/verify", auth.VerifyHandler)
	mux.HandleFunc("POST /auth/logout", auth.LogoutHandler)
	mux.HandleFunc("GET /auth/whitelist", admin.GetWhitelistHandler)
	mux.HandleFunc("PUT /auth/whitelist", admin.PutWhitelistHandler)
	mux.HandleFunc("GET /auth/{provider}", auth.InitiateHandler)
	mux.HandleFunc("GET /auth/{provider}/callback", auth.CallbackHandler)

	return ChainMiddleware(mux,
		NewRateLimitMiddleware(rate.Limit(10), 30),
		NewSecurityHeadersMiddleware(),
		NewCORSMiddleware(cfg.AllowedOrigins),
		NewLoggerMiddleware(),
		NewRecoveryMiddleware(),
	)
}

// HTTPServer manages the HTTP server lifecycle
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates a new HTTP server with the given handler and address
func NewHTTPServer(handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	log.LogInfoWithFields("http", "HTTP server starting", map[string]any{
		"addr": h.server.Addr,
	})

	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	log.LogInfoWithFields("http", "HTTP server stopping", map[string]any{
		"addr": h.server.Addr,
	})

	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
