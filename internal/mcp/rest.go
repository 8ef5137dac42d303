// ABOUTME: Legacy REST invoke adapter plus manifest, session, root and invocation-log endpoints.
// ABOUTME: Errors are rendered as {"error": message} with an HTTP status per error kind.

package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/2389/tool-gateway/internal/store"
	"github.com/2389/tool-gateway/internal/toolbox"
)

// handleInvoke serves POST /mcp/invoke with a {tool, input} body.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		s.sendError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	body, err := s.readBody(r)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			s.sendError(w, http.StatusBadRequest, "Request body too large")
			return
		}
		s.sendError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	var req InvokeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Tool == "" {
		s.sendError(w, http.StatusBadRequest, "Tool name required in 'tool' field")
		return
	}

	sessionID := s.resolveSession(w, r, req.SessionID)

	args, err := decodeArguments(req.Input)
	if err != nil {
		// Report an unknown tool ahead of malformed input.
		if !s.dispatcher.HasTool(req.Tool) {
			s.sendError(w, http.StatusNotFound, fmt.Sprintf("Tool '%s' not found", req.Tool))
			return
		}
		s.sendError(w, http.StatusBadRequest, "Tool input must be a JSON object")
		return
	}

	res := s.dispatcher.Invoke(r.Context(), toolbox.Request{
		ToolName:  req.Tool,
		Arguments: args,
		Protocol:  ProtocolREST,
		SessionID: sessionID,
	})
	if !res.OK() {
		status, message := restError(req.Tool, res.Err)
		s.sendError(w, status, message)
		return
	}

	s.writeJSON(w, http.StatusOK, InvokeResponse{Result: res.Value})
}

// restError maps a dispatcher error onto an HTTP status and message.
func restError(toolName string, err *toolbox.Error) (int, string) {
	if toolbox.KindOf(err) == toolbox.KindUnknownTool {
		return http.StatusNotFound, fmt.Sprintf("Tool '%s' not found", toolName)
	}
	return http.StatusInternalServerError, "Tool execution failed: " + err.Message
}

// handleManifest serves GET /mcp/manifest.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, OPTIONS")
		s.sendError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	sessionID := s.resolveSession(w, r, "")
	tools := s.dispatcher.Registry().Manifest()

	s.logger.Debug("manifest requested", "session_id", sessionID, "count", len(tools))
	s.writeJSON(w, http.StatusOK, Manifest{
		Name:        s.info.Name,
		Description: s.info.Description,
		Tools:       tools,
	})
}

// handleSession serves POST /mcp/session, which opens a session, and
// GET /mcp/session, which describes the caller's session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		id := s.sessions.Create(nil)
		s.logger.Info("session created", "session_id", id)
		s.writeJSON(w, http.StatusOK, SessionResponse{SessionID: id})
	case http.MethodGet:
		id := sessionCandidate(r, "")
		if id == "" {
			s.sendError(w, http.StatusBadRequest, "session id required")
			return
		}
		sess, ok := s.sessions.Get(id)
		if !ok {
			s.sendError(w, http.StatusNotFound, fmt.Sprintf("Session '%s' not found", id))
			return
		}
		s.writeJSON(w, http.StatusOK, SessionInfo{
			SessionID: sess.ID,
			Metadata:  sess.Metadata,
			LastSeen:  sess.LastSeen,
		})
	default:
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		s.sendError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// handleRoot serves GET / with a short description of the server.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, OPTIONS")
		s.sendError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, RootInfo{
		Message: "MCP " + s.info.Name,
		Endpoints: []string{
			"POST /mcp",
			"GET /mcp/manifest",
			"POST /mcp/session",
			"GET /mcp/session",
			"POST /mcp/invoke",
			"GET /mcp/docs",
		},
		Status: "running",
	})
}

// handleInvocations serves GET /mcp/invocations?limit=N&tool=NAME.
func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, OPTIONS")
		s.sendError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	if s.invocations == nil {
		s.sendError(w, http.StatusNotFound, "Invocation log is disabled")
		return
	}

	filter := store.InvocationFilter{ToolName: r.URL.Query().Get("tool")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.sendError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	invocations, err := s.invocations.ListInvocations(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list invocations", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Internal server error: failed to list invocations")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"invocations": invocations})
}
