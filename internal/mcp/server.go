// ABOUTME: HTTP server exposing the tool registry over JSON-RPC 2.0 (MCP) and legacy REST.
// ABOUTME: Every adapter shares one Dispatcher and one session store.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/2389/tool-gateway/internal/session"
	"github.com/2389/tool-gateway/internal/store"
	"github.com/2389/tool-gateway/internal/toolbox"
)

// DefaultProtocolVersion is advertised by initialize when the client names none.
const DefaultProtocolVersion = "2025-11-25"

// DefaultMaxBodyBytes is the request body limit used when Config leaves it unset (1MB).
const DefaultMaxBodyBytes = 1 << 20

// Protocol labels passed to the dispatcher.
const (
	ProtocolJSONRPC = "jsonrpc"
	ProtocolREST    = "rest"
)

// errBodyTooLarge is returned by readBody when the limit is exceeded.
var errBodyTooLarge = errors.New("request body too large")

// InvocationLister reads the invocation log.
type InvocationLister interface {
	ListInvocations(ctx context.Context, f store.InvocationFilter) ([]store.Invocation, error)
}

// Config holds configuration for the MCP server.
type Config struct {
	Dispatcher      *toolbox.Dispatcher
	Sessions        *session.Store
	Logger          *slog.Logger
	Info            ServerInfo
	ProtocolVersion string           // default for initialize; DefaultProtocolVersion if empty
	MaxBodyBytes    int64            // DefaultMaxBodyBytes if zero
	CORSOrigin      string           // "*" if empty
	Invocations     InvocationLister // optional; /mcp/invocations is 404 without it
}

// Server implements the gateway's HTTP endpoints.
type Server struct {
	dispatcher      *toolbox.Dispatcher
	sessions        *session.Store
	logger          *slog.Logger
	info            ServerInfo
	protocolVersion string
	maxBodyBytes    int64
	corsOrigin      string
	invocations     InvocationLister
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info := cfg.Info
	if info.Name == "" {
		info.Name = "tool-gateway"
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}

	protocolVersion := cfg.ProtocolVersion
	if protocolVersion == "" {
		protocolVersion = DefaultProtocolVersion
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	return &Server{
		dispatcher:      cfg.Dispatcher,
		sessions:        cfg.Sessions,
		logger:          logger.With("component", "mcp"),
		info:            info,
		protocolVersion: protocolVersion,
		maxBodyBytes:    maxBody,
		corsOrigin:      origin,
		invocations:     cfg.Invocations,
	}, nil
}

// RegisterRoutes registers every gateway endpoint on the given ServeMux.
// Wrap the mux with CORS to get preflight handling.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/mcp/", s.handleMCP)
	mux.HandleFunc("/mcp/manifest", s.handleManifest)
	mux.HandleFunc("/mcp/session", s.handleSession)
	mux.HandleFunc("/mcp/invoke", s.handleInvoke)
	mux.HandleFunc("/mcp/invocations", s.handleInvocations)
	mux.HandleFunc("/mcp/docs", s.handleDocs)
	mux.HandleFunc("/{$}", s.handleRoot)
}

// Handler returns an http.Handler with all routes and CORS handling wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.CORS(mux)
}

// handleMCP is the JSON-RPC endpoint. Only the bare /mcp and /mcp/ paths are served.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/mcp" && r.URL.Path != "/mcp/" {
		s.sendError(w, http.StatusNotFound, "Not Found")
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		// No server-initiated SSE stream is offered
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// readBody reads at most maxBodyBytes from the request.
func (s *Server) readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if int64(len(body)) > s.maxBodyBytes {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// writeJSON writes v with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// sendError writes a REST error body.
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
