// Package server exposes the gateway engine over HTTP. Relayers submit
// batches to /execute, actors bridge through /bridge/*, destination
// applications self-verify through /validate/*, and the owner administers
// the registries through /admin/*.
package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/interop-labs/gateway-go/pkg/gateway"
)

// Server handles HTTP requests for the gateway node
type Server struct {
	gateway    *gateway.Gateway
	logger     *zap.Logger
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer creates a server for the given engine. rateLimit is the
// request budget in requests per second; zero disables limiting.
func NewServer(gw *gateway.Gateway, logger *zap.Logger, port int, rateLimit float64) *Server {
	s := &Server{
		gateway: gw,
		logger:  logger,
	}
	if rateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rateLimit), int(rateLimit)+1)
	}

	mux := http.NewServeMux()

	// Relayer batch submission
	mux.HandleFunc("/execute", s.handleExecute)

	// Direct bridge operations
	mux.HandleFunc("/bridge/in", s.handleBridgeIn)
	mux.HandleFunc("/bridge/out", s.handleBridgeOut)

	// Validation queries for destination applications
	mux.HandleFunc("/validate/contract-call", s.handleValidateContractCall)
	mux.HandleFunc("/validate/contract-call-mint", s.handleValidateContractCallMint)

	// Owner administration
	mux.HandleFunc("/admin/relayers", s.handleRelayers)
	mux.HandleFunc("/admin/chains", s.handleChains)
	mux.HandleFunc("/admin/tokens", s.handleTokens)

	// Read-only state surface
	mux.HandleFunc("/chains/id", s.handleGetChainID)
	mux.HandleFunc("/chains/name", s.handleGetChainName)
	mux.HandleFunc("/balance", s.handleGetBalance)
	mux.HandleFunc("/nonce", s.handleGetNonce)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.rateLimited(mux),
	}

	return s
}

// rateLimited rejects requests over the configured budget with 429
func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
