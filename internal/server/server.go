// Package server exposes the HTTP API: dashboard reads, simulation
// control, human approval decisions, and a live event stream.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/logging"
	"github.com/supplystack/chaincommand/internal/orchestrator"
)

// Server wraps the HTTP API over an initialized orchestrator.
type Server struct {
	cfg  config.ServerConfig
	orch *orchestrator.Orchestrator
	log  *logging.Logger

	limiter *ipLimiter
	httpSrv *http.Server
}

// New builds the server and its routes.
func New(cfg config.ServerConfig, orch *orchestrator.Orchestrator, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NopLogger()
	}
	s := &Server{
		cfg:     cfg,
		orch:    orch,
		log:     log.WithComponent("server"),
		limiter: newIPLimiter(cfg.RateLimitPerMinute),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/kpi/current", s.handleKPICurrent)
	mux.HandleFunc("GET /api/kpi/history", s.handleKPIHistory)
	mux.HandleFunc("GET /api/inventory/status", s.handleInventoryStatus)
	mux.HandleFunc("GET /api/agents/status", s.handleAgentsStatus)
	mux.HandleFunc("GET /api/events/recent", s.handleRecentEvents)
	mux.HandleFunc("GET /api/forecast/{product_id}", s.handleForecast)
	mux.HandleFunc("GET /api/approvals/pending", s.handlePendingApprovals)
	mux.HandleFunc("POST /api/approval/{request_id}/decide", s.handleDecideApproval)

	mux.HandleFunc("POST /api/simulation/start", s.handleSimulationStart)
	mux.HandleFunc("POST /api/simulation/stop", s.handleSimulationStop)
	mux.HandleFunc("POST /api/simulation/speed", s.handleSimulationSpeed)
	mux.HandleFunc("GET /api/simulation/status", s.handleSimulationStatus)
	mux.HandleFunc("POST /api/agents/{agent_name}/trigger", s.handleTriggerAgent)

	mux.HandleFunc("GET /api/backend/kpi-trend/{metric}", s.handleBackendKPITrend)
	mux.HandleFunc("GET /api/backend/events", s.handleBackendEvents)

	mux.HandleFunc("GET /events/live", s.handleEventStream)

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// middleware applies CORS, API key auth, and per-IP rate limiting.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Health stays open for probes.
		if r.URL.Path != "/health" {
			if !s.authorized(r) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid or missing API key"})
				return
			}
			if !s.limiter.allow(clientIP(r)) {
				writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limit exceeded"})
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// authorized checks the X-API-Key header. An empty configured key
// leaves the API open.
func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.APIKey == "" {
		return true
	}
	key := r.Header.Get("X-API-Key")
	// SSE clients cannot set headers from EventSource; accept the query
	// parameter there.
	if key == "" && strings.HasPrefix(r.URL.Path, "/events/") {
		key = r.URL.Query().Get("api_key")
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIKey)) == 1
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origins := s.cfg.CORSOrigins
	if origins == "" {
		return
	}
	origin := r.Header.Get("Origin")
	allowed := ""
	if origins == "*" {
		allowed = "*"
	} else {
		for _, o := range strings.Split(origins, ",") {
			if strings.TrimSpace(o) == origin {
				allowed = origin
				break
			}
		}
	}
	if allowed != "" {
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	}
}

// ipLimiter tracks one token bucket per client IP.
type ipLimiter struct {
	mu       sync.Mutex
	perMin   int
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(perMinute int) *ipLimiter {
	l := &ipLimiter{perMin: perMinute, visitors: make(map[string]*visitor)}
	return l
}

func (l *ipLimiter) allow(ip string) bool {
	if l.perMin <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(float64(l.perMin)/60.0), l.perMin)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()

	// Opportunistic cleanup of stale entries.
	if len(l.visitors) > 1000 {
		cutoff := time.Now().Add(-3 * time.Minute)
		for k, vv := range l.visitors {
			if vv.lastSeen.Before(cutoff) {
				delete(l.visitors, k)
			}
		}
	}
	return v.limiter.Allow()
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = strings.Trim(r.RemoteAddr, "[]")
	}
	return ip
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func readJSON(r *http.Request, into any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(into)
}
