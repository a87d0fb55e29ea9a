package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/cashback-scout/internal/config"
	"github.com/jonathan/cashback-scout/internal/db"
	"github.com/jonathan/cashback-scout/internal/fetch"
	"github.com/jonathan/cashback-scout/internal/logging"
	"github.com/jonathan/cashback-scout/internal/metrics"
	"github.com/jonathan/cashback-scout/internal/orchestrator"
	"github.com/jonathan/cashback-scout/internal/server/middleware"
	"github.com/jonathan/cashback-scout/internal/server/ratelimit"
)

const component = "http"

// maxBodyBytes bounds request bodies; the extension may post a full DOM.
const maxBodyBytes = 8 << 20

// DetectionLister reads recorded detections.
type DetectionLister interface {
	ListDetections(ctx context.Context, f db.ListFilter) ([]db.Detection, error)
	TopBrands(ctx context.Context, limit int) ([]db.BrandCount, error)
}

// Config wires a Server. Only Orchestrator is required.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Source       fetch.Source
	Detections   DetectionLister
	Metrics      *metrics.Metrics
	Logger       logging.Logger
	Server       config.ServerConfig
	Auth         config.AuthConfig
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	handler      http.Handler
	orchestrator *orchestrator.Orchestrator
	source       fetch.Source
	detections   DetectionLister
	metrics      *metrics.Metrics
	logger       logging.Logger
	rateLimiter  *ratelimit.Limiter
	jwtService   *JWTService
	origins      map[string]bool
	anyOrigin    bool
	trusted      []netip.Prefix
	validate     *validator.Validate

	catalogMu sync.Mutex
	catalog   *orchestrator.PageContext
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("server requires an orchestrator")
	}

	s := &Server{
		orchestrator: cfg.Orchestrator,
		source:       cfg.Source,
		detections:   cfg.Detections,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		origins:      make(map[string]bool),
		catalog:      orchestrator.NewPageContext("", ""),
		validate:     newValidator(),
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.source == nil {
		s.source = fetch.NewHTTPSource(s.logger)
	}
	for _, o := range cfg.Server.AllowedOrigins {
		if o == "*" {
			s.anyOrigin = true
		}
		s.origins[strings.TrimRight(o, "/")] = true
	}

	trusted, err := parseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}
	s.trusted = trusted

	s.rateLimiter = ratelimit.NewLimiter(ratelimit.NewConfig(cfg.Server.RateLimit, cfg.Server.RateBurst))

	protect := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.Auth.Enabled {
		s.jwtService = NewJWTService(cfg.Auth)
		auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
		protect = func(h http.HandlerFunc) http.Handler { return auth(h) }
	}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/detect", protect(s.handleDetect))
	mux.Handle("POST /v1/debug", protect(s.handleDebug))
	mux.Handle("POST /v1/tabs/{tab_id}/navigate", protect(s.handleNavigate))
	mux.Handle("DELETE /v1/tabs/{tab_id}", protect(s.handleResetTab))

	// /v1/brands/lookup takes a query parameter so it cannot collide with a
	// future /v1/brands/{key} route.
	mux.Handle("GET /v1/brands", protect(s.handleListBrands))
	mux.Handle("GET /v1/brands/lookup", protect(s.handleLookupBrand))

	mux.Handle("GET /v1/detections", protect(s.handleListDetections))
	mux.Handle("GET /v1/detections/top-brands", protect(s.handleTopBrands))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))

	readTimeout := cfg.Server.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.Server.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout, // Run may wait out the retry delay
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens until ctx is done or the process receives SIGINT/SIGTERM,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Log(logging.LevelInfo, component, "server starting", map[string]any{"addr": s.httpServer.Addr})
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.rateLimiter.Stop()
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Log(logging.LevelInfo, component, "shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.rateLimiter.Stop()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Log(logging.LevelInfo, component, "server stopped", nil)
	return nil
}

// withCORS adds CORS headers for the configured origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case s.anyOrigin:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && s.origins[strings.TrimRight(origin, "/")]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// withLogging logs each request and counts it by route pattern.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequest(route, rec.status)
		s.logger.Log(logging.LevelInfo, component, "request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"remote":      r.RemoteAddr,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

// withRateLimit rejects clients that exhausted their bucket.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID keys clients by peer address. X-Forwarded-For is only
// believed when the peer is a trusted proxy; the client is then the
// rightmost hop that is not itself a trusted proxy.
func (s *Server) extractClientID(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !s.isTrustedProxy(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !s.isTrustedProxy(hop) {
			return hop
		}
	}
	return peer
}

func (s *Server) isTrustedProxy(ip string) bool {
	if len(s.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parseTrustedProxies accepts bare IPs and CIDR ranges.
func parseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	body := map[string]any{
		"error": (&ErrRateLimited{}).Error(),
		"limit": info.Limit,
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds() + 0.999)
		body["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	s.logger.Log(logging.LevelWarn, component, "rate limit exceeded", map[string]any{
		"limit":       info.Limit,
		"retry_after": info.RetryAfter.String(),
	})
	s.jsonResponse(w, http.StatusTooManyRequests, body)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Log(logging.LevelWarn, component, "failed to encode response", map[string]any{"error": err.Error()})
	}
}

// errorResponse writes err with the status HTTPStatus maps it to.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Log(logging.LevelError, component, "request failed", map[string]any{"error": err.Error()})
	}
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
