package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	// MCPPath is the streamable-http MCP endpoint.
	MCPPath = "/mcp"

	DefaultHTTPAddr = ":8080"
)

// HTTPServer serves the provisioning API, the streamable-http MCP endpoint
// and the health endpoints on one listener.
type HTTPServer struct {
	sc         *ServerContext
	mcpServer  *mcpserver.MCPServer
	health     *HealthChecker
	httpServer *http.Server
	listener   net.Listener
}

// NewHTTPServer creates an HTTP server. mcpServer may be nil to serve the
// API only.
func NewHTTPServer(sc *ServerContext, mcpServer *mcpserver.MCPServer, health *HealthChecker) (*HTTPServer, error) {
	if sc == nil {
		return nil, fmt.Errorf("server context is required")
	}
	if health == nil {
		health = NewHealthChecker(sc)
	}
	return &HTTPServer{
		sc:        sc,
		mcpServer: mcpServer,
		health:    health,
	}, nil
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle(SessionsPath, instrument(s.sc.Metrics(), SessionsPath, SessionsHandler(s.sc)))

	if s.mcpServer != nil {
		streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath(MCPPath),
			mcpserver.WithHTTPContextFunc(HTTPContextFunc),
		)
		mux.Handle(MCPPath, instrument(s.sc.Metrics(), MCPPath, streamable))
	}

	s.health.RegisterHealthEndpoints(mux)

	return securityHeaders(mux)
}

// Start listens on addr and serves until Shutdown. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *HTTPServer) Start(addr string) error {
	if addr == "" {
		addr = DefaultHTTPAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *HTTPServer) Serve(ln net.Listener) error {
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Streamable MCP responses can stay open longer than the API
		// calls, which are bounded by the upstream timeout.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return s.sc.Context()
		},
	}

	s.sc.Logger().Info("starting HTTP server", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Addr returns the listening address once started.
func (s *HTTPServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.Drain()
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// securityHeaders sets headers appropriate for a JSON API
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
