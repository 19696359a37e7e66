package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/groundchat/groundchat/internal/api/static"
	"github.com/groundchat/groundchat/internal/chat"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Store       *chat.Store   // Required
	Service     *chat.Service // Required
	CORSOrigins []string      // Allowed origins for CORS
	TrustProxy  bool          // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Service == nil {
		return nil, errors.New("chat service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sh := &sessionHandler{
		store:   cfg.Store,
		service: cfg.Service,
		logger:  logger,
	}
	ch := &chatHandler{
		store:   cfg.Store,
		service: cfg.Service,
		logger:  logger,
	}

	mux := http.NewServeMux()

	// Application state
	mux.HandleFunc("GET /api/v1/state", sh.getState)

	// Session CRUD
	mux.HandleFunc("POST /api/v1/sessions", sh.createSession)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}", sh.patchSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.deleteSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/activate", sh.activateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/export", sh.exportSession)

	// Chat (SSE response)
	mux.HandleFunc("POST /api/v1/chat", ch.sendChat)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS
	// headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps health probes and the embedded UI outside the
	// middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/api/", final)
	topMux.Handle("/", static.Handler())

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
