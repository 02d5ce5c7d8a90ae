// Package httpapi is the development backend: it serves the analysis and
// market-data endpoints the dashboard talks to from local or cached bars.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"insights/internal/marketdata"
)

// Options configures a Server. Zero fields take defaults.
type Options struct {
	Host string
	Port int

	// AnalysisMonths is how much history each symbol is loaded with for a
	// review; it must cover the 200-day moving average.
	AnalysisMonths int
	// LoadWorkers caps concurrent bar loads per review.
	LoadWorkers int
	// Positions is what GET /v1/portfolio/positions reports.
	Positions []Position

	Logger *slog.Logger
	Now    func() time.Time
}

// Position is one holding of the stub portfolio service.
type Position struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Qty    int    `json:"qty" yaml:"qty"`
}

// DefaultPositions mirror the demo account.
var DefaultPositions = []Position{{Symbol: "AAPL", Qty: 10}, {Symbol: "MSFT", Qty: 5}}

func (o *Options) setDefaults() {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.Port == 0 {
		o.Port = 8000
	}
	if o.AnalysisMonths <= 0 {
		o.AnalysisMonths = 18
	}
	if o.LoadWorkers <= 0 {
		o.LoadWorkers = 8
	}
	if o.Positions == nil {
		o.Positions = DefaultPositions
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Server serves the development API.
type Server struct {
	source marketdata.Provider
	opts   Options
	log    *slog.Logger
	router *chi.Mux
	server *http.Server
}

// New creates a server reading bars from source.
func New(source marketdata.Provider, opts Options) *Server {
	opts.setDefaults()
	s := &Server{
		source: source,
		opts:   opts,
		log:    opts.Logger.With("component", "httpapi"),
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/analysis/portfolio/keep_or_replace", s.handleKeepOrReplace)
		r.Get("/md/bars", s.handleBars)
		r.Get("/portfolio/positions", s.handlePositions)
	})
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.router }

// Addr is the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start serves until Shutdown. It returns http.ErrServerClosed after a clean
// shutdown.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
			"clientRequestID", r.Header.Get("X-Request-ID"),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("account_id") == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]Position{"positions": s.opts.Positions})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// writeError replies with a plain-text body; clients show it verbatim.
func writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}
