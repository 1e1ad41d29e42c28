// Package server exposes the scrubbed calendars over HTTP. Each configured
// path serves the transformed version of one upstream feed; the pipeline per
// request is fetch → parse → transform → serialize with nothing shared
// between requests except the configuration snapshot taken at the start.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/calmux/icalmask/config"
	"github.com/calmux/icalmask/internal/upstream"
	"github.com/calmux/icalmask/scrub"
)

// Upstream obtains the raw feed body for a calendar.
type Upstream interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Server is the HTTP front of the proxy. It is safe for concurrent use; the
// configuration is swapped atomically so in-flight requests keep the
// snapshot they started with.
type Server struct {
	logger  *slog.Logger
	fetcher Upstream
	metrics *Metrics
	cfg     atomic.Pointer[config.Config]
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server serving the calendars in cfg through fetcher.
func New(cfg *config.Config, fetcher Upstream, opts ...Option) *Server {
	s := &Server{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		fetcher: fetcher,
		metrics: NewMetrics(),
	}
	s.cfg.Store(cfg)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateConfig swaps in a new configuration for subsequent requests.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthz":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
		return
	case "/metrics":
		s.metrics.Handler().ServeHTTP(w, r)
		return
	}
	s.serveCalendar(w, r)
}

func (s *Server) serveCalendar(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()
	w.Header().Set("X-Request-Id", requestID)
	logger := s.logger.With(
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path)

	path := strings.Trim(r.URL.Path, "/")
	cal, ok := s.cfg.Load().Calendars[path]
	label := path
	if !ok {
		label = unmatchedPath
	}

	status := s.handle(w, r, logger, path, cal, ok)

	s.metrics.requestsTotal.WithLabelValues(label, strconv.Itoa(status)).Inc()
	s.metrics.requestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	logger.Info("request served",
		"status", status,
		"duration", time.Since(start))
}

// handle runs the request and returns the response status it wrote.
func (s *Server) handle(w http.ResponseWriter, r *http.Request, logger *slog.Logger, path string, cal config.Calendar, found bool) int {
	if r.Method != http.MethodGet {
		return s.plainError(w, http.StatusMethodNotAllowed, "only GET is supported\n")
	}
	if !found {
		return s.plainError(w, http.StatusNotFound, fmt.Sprintf("path %s is not configured\n", path))
	}

	raw, err := s.fetcher.Fetch(r.Context(), cal.URL)
	if err != nil {
		s.metrics.upstreamFetches.WithLabelValues("error").Inc()
		logger.Warn("upstream fetch failed", "error", err)
		return s.plainError(w, http.StatusBadGateway, "error fetching the upstream calendar, see the logs for details\n")
	}
	s.metrics.upstreamFetches.WithLabelValues("ok").Inc()

	var out []byte
	switch cal.Mode {
	case config.ModeFilter:
		out, err = scrub.Filter(raw, cal.FilterConfig())
	default:
		out, err = scrub.Anonymize(raw, cal.AnonymizeConfig())
	}
	if err != nil {
		s.metrics.scrubFailures.WithLabelValues(scrubFailureKind(err)).Inc()
		logger.Warn("scrubbing the upstream calendar failed", "error", err)
		return s.plainError(w, http.StatusInternalServerError, "error generating the calendar, see the logs for details\n")
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
	return http.StatusOK
}

func (s *Server) plainError(w http.ResponseWriter, status int, body string) int {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
	return status
}

func scrubFailureKind(err error) string {
	if errors.Is(err, scrub.ErrUnknownProperty) {
		return "unknown_property"
	}
	return "parse"
}

// The compile-time check keeps the fetcher implementing the interface the
// server consumes.
var _ Upstream = (*upstream.Fetcher)(nil)
