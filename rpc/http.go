package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"paylane/core"
	"paylane/observability"
)

const (
	maxRequestBytes = 1 << 20 // 1 MiB
	ratePerSecond   = 20
	rateBurst       = 40
)

const authTokenEnv = "PAYLANE_RPC_TOKEN"

// Server exposes the settlement ledger over JSON-RPC 2.0. Mutating methods
// require the bearer token when one is configured; every method is rate
// limited per source address.
type Server struct {
	ledger    *core.Ledger
	authToken string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer wires a server around the given ledger, picking up the auth token
// from the environment.
func NewServer(ledger *core.Ledger) *Server {
	return &Server{
		ledger:    ledger,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// SetAuthToken overrides the bearer token, primarily for tests.
func (s *Server) SetAuthToken(token string) {
	s.authToken = strings.TrimSpace(token)
}

// Router builds the HTTP surface: the RPC endpoint plus health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	slog.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) limiterFor(remote string) *rate.Limiter {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), rateBurst)
		s.limiters[host] = limiter
	}
	return limiter
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid bearer token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if !s.limiterFor(r.RemoteAddr).Allow() {
		writeError(w, http.StatusTooManyRequests, 0, codeRateLimited, "rate_limited", "too many requests")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "parse_error", "unable to read request body")
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, 0, codeInvalidRequest, "invalid_request", "request body too large")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "unsupported jsonrpc version")
		return
	}

	started := time.Now()
	outcome := s.dispatch(w, r, &req)
	observability.RPC().Observe(req.Method, outcome, time.Since(started).Seconds())
}

// dispatch routes the request and reports the outcome label for metrics.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	switch req.Method {
	case "payments_registerMerchant":
		return s.handleRegisterMerchant(w, r, req)
	case "payments_createSession":
		return s.handleCreateSession(w, r, req)
	case "payments_settleNative":
		return s.handleSettleNative(w, r, req)
	case "payments_settleToken":
		return s.handleSettleToken(w, r, req)
	case "payments_cancelSession":
		return s.handleCancelSession(w, r, req)
	case "payments_getMerchant":
		return s.handleGetMerchant(w, req)
	case "payments_getSession":
		return s.handleGetSession(w, req)
	case "payments_getBalance":
		return s.handleGetBalance(w, req)
	case "payments_listEvents":
		return s.handleListEvents(w, req)
	case "payments_mint":
		return s.handleMint(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		return "error"
	}
}

func writeResult(w http.ResponseWriter, id int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status, id, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}
