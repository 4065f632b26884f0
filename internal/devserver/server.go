// Package devserver is an in-memory implementation of the Investory backend
// contract for local play and integration tests.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/market"
)

// APIVersion is reported by /health.
const APIVersion = "1.2.0"

// Config configures a Server.
type Config struct {
	// Secret verifies HS256 bearer tokens. Required.
	Secret string

	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string

	// TickInterval is how often quotes move while ListenAndServe runs.
	TickInterval time.Duration

	// Seed makes the quote random walk reproducible. Zero picks a random seed.
	Seed uint64

	// Log receives one line per request. Nil means os.Stderr; use io.Discard
	// to silence.
	Log io.Writer
}

// Server holds every learner's state in memory.
type Server struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	accounts map[string]*account

	book *quoteBook
	hub  *hub
}

// New creates a server with the default quote universe.
func New(cfg Config) (*Server, error) {
	if cfg.Secret == "" {
		return nil, errors.New("devserver: secret is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 2 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = os.Stderr
	}
	return &Server{
		cfg:      cfg,
		now:      time.Now,
		accounts: make(map[string]*account),
		book:     newQuoteBook(cfg.Seed),
		hub:      newHub(),
	}, nil
}

// Handler returns the routed, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	protected := r.PathPrefix("/").Subrouter()
	protected.Use(s.requireAuth)

	protected.HandleFunc("/progress", s.getProgress).Methods(http.MethodGet)
	protected.HandleFunc("/progress/level/{id:[0-9]+}", s.updateLevel).Methods(http.MethodPut)
	protected.HandleFunc("/progress/level/{id:[0-9]+}/reset", s.resetLevel).Methods(http.MethodPut)
	protected.HandleFunc("/progress/level/{id:[0-9]+}/complete", s.completeLevel).Methods(http.MethodPost)

	protected.HandleFunc("/market/quotes", s.quotes).Methods(http.MethodGet)
	protected.HandleFunc(market.StreamPath, s.stream)

	protected.HandleFunc("/watchlist", s.getWatchlist).Methods(http.MethodGet)
	protected.HandleFunc("/watchlist", s.addToWatchlist).Methods(http.MethodPost)
	protected.HandleFunc("/watchlist/{symbol}", s.removeFromWatchlist).Methods(http.MethodDelete)

	protected.HandleFunc("/chat", s.chat).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", api.IdempotencyHeader},
	})
	return c.Handler(r)
}

// ListenAndServe serves on addr and moves quotes every TickInterval until
// ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.runTicker(ctx)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) runTicker(ctx context.Context) {
	t := time.NewTicker(s.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick()
		}
	}
}

// Tick moves every quote one step and broadcasts the new values.
func (s *Server) Tick() {
	for _, e := range s.book.step(s.now()) {
		s.hub.broadcast(e)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.Health{Status: "ok", APIVersion: APIVersion})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The stream is hijacked, so it cannot be wrapped.
		if r.URL.Path == market.StreamPath {
			fmt.Fprintf(s.cfg.Log, "devserver: %s %s (stream)\n", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		fmt.Fprintf(s.cfg.Log, "devserver: %s %s %d %s\n", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"message": fmt.Sprintf(format, args...)})
}
