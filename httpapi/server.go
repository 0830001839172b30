// Package httpapi serves the mesh over HTTP:
//
//	POST /run      {"text": "...", "session_id": "..."} -> {"answer": "..."}
//	GET  /healthz  liveness
//	GET  /metrics  Prometheus metrics
//
// /run is rate limited per client IP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/logging"
	"github.com/hupe1980/legalmesh/metrics"
)

const maxBodyBytes = 1 << 20

// Asker answers one query in a session.
type Asker interface {
	Ask(ctx context.Context, sessionID, query string) (string, error)
}

// RunRequest is the body of POST /run. A missing session id starts a new
// session.
type RunRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

// RunResponse is the success body of POST /run.
type RunResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

// ErrorResponse is the body of every error status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Options configure the API.
type Options struct {
	RateLimit float64
	RateBurst int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Metrics *metrics.Collector
	Logger  logging.Logger
}

func defaultOptions() Options {
	return Options{
		RateLimit:    2,
		RateBurst:    5,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		Logger:       logging.NoOpLogger{},
	}
}

// NewHandler returns the routed and wrapped API handler. ctx bounds the
// rate limiter's background cleanup.
func NewHandler(ctx context.Context, asker Asker, optFns ...func(o *Options)) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return newHandler(ctx, asker, opts)
}

func newHandler(ctx context.Context, asker Asker, opts Options) http.Handler {
	mux := http.NewServeMux()

	limit := RateLimiter(ctx, opts.RateLimit, opts.RateBurst, opts.Logger)
	mux.Handle("POST /run", limit(runHandler(asker, opts.Logger)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	return Chain(mux, Recovery(opts.Logger), RequestLogger(opts.Logger, opts.Metrics))
}

func runHandler(asker Asker, logger logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RunRequest

		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		text := strings.TrimSpace(req.Text)
		if text == "" {
			writeError(w, http.StatusBadRequest, "text must be a non-empty string")
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = core.NewID()
		}

		answer, err := asker.Ask(r.Context(), sessionID, text)
		if err != nil {
			logger.Error("http.run.failed", "session_id", sessionID, "error", err.Error())
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, RunResponse{Answer: answer, SessionID: sessionID})
	})
}

// Server is the HTTP server of the API.
type Server struct {
	http *http.Server
	opts Options
}

// NewServer creates a server for addr.
func NewServer(ctx context.Context, addr string, asker Asker, optFns ...func(o *Options)) *Server {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           newHandler(ctx, asker, opts),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
		},
		opts: opts,
	}
}

// Handler returns the wrapped handler.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// ListenAndServe listens on the configured address and serves until
// Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}

	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. A graceful shutdown is
// not an error.
func (s *Server) Serve(ln net.Listener) error {
	s.opts.Logger.Info("http.server.start", "addr", ln.Addr().String())

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
