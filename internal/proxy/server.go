// Package proxy relays the academic-affairs notice endpoints so the session source can run from
// networks the upstream blocks. Routes:
//   - /findInformNotice.do forwards to the paginated notice search.
//   - /toPosts.do forwards to the landing page that issues the session cookie.
//   - GET /healthz and /metrics for health checks and scraping.
//
// Every relayed response carries permissive CORS headers; OPTIONS is answered locally.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/StanHuanng/anthropo-reader/internal/clock/system"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/metrics"
)

const (
	defaultUpstream = "https://jw.scut.edu.cn"
	defaultTimeout  = 15 * time.Second
	noticePath      = "/zhinan/cms/article/v2/findInformNotice.do"
	landingPath     = "/zhinan/cms/toPosts.do"
	browserUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodyBytes    = 8 << 20
)

// Config configures the relay.
type Config struct {
	Upstream string
	Timeout  time.Duration
}

// Server relays requests to the upstream site.
type Server struct {
	router     chi.Router
	upstream   string
	httpClient *http.Client
	clock      ingest.Clock
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes. rec may be nil.
func NewServer(cfg Config, clock ingest.Clock, rec *metrics.Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.Clock{}
	}
	upstream := strings.TrimRight(cfg.Upstream, "/")
	if upstream == "" {
		upstream = defaultUpstream
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := &Server{
		upstream:   upstream,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clock,
		logger:     logger.Named("proxy"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	if rec != nil {
		r.Use(rec.Middleware)
		r.Handle("/metrics", rec.Handler())
	}
	r.Get("/healthz", healthz)
	r.HandleFunc("/*", s.relay)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
}

// target maps the request path to the upstream URL, matching on substring like the
// deployed relay did.
func (s *Server) target(path string) (string, bool) {
	switch {
	case strings.Contains(path, "/findInformNotice.do"):
		return s.upstream + noticePath, true
	case strings.Contains(path, "/toPosts.do"):
		return s.upstream + landingPath, true
	default:
		return "", false
	}
}

func (s *Server) relay(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	target, ok := s.target(r.URL.Path)
	if !ok {
		http.Error(w, "Invalid endpoint. Use /findInformNotice.do or /toPosts.do", http.StatusBadRequest)
		return
	}

	status, contentType, body, err := s.forward(r.Context(), r.Method, target, r.Body)
	if err != nil {
		s.logger.Warn("relay failed", zap.String("target", target), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":     "Proxy failed",
			"message":   err.Error(),
			"timestamp": s.clock.Now().UTC().Format(time.RFC3339Nano),
		})
		return
	}
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("write relay body failed", zap.Error(err))
	}
}

func (s *Server) forward(ctx context.Context, method, target string, in io.Reader) (int, string, []byte, error) {
	var payload io.Reader
	if method == http.MethodPost {
		raw, err := io.ReadAll(io.LimitReader(in, maxBodyBytes))
		if err != nil {
			return 0, "", nil, fmt.Errorf("read request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return 0, "", nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", s.upstream+landingPath)
	req.Header.Set("Origin", s.upstream)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, "", nil, fmt.Errorf("read upstream body: %w", err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), body, nil
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
