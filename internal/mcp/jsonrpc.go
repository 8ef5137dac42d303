// ABOUTME: JSON-RPC 2.0 adapter implementing the MCP handshake, tools/list and tools/call.
// ABOUTME: Maps dispatcher error kinds onto JSON-RPC error codes.

package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/2389/tool-gateway/internal/toolbox"
)

// handlePost processes one JSON-RPC message sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("JSON-RPC handler panicked",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			s.sendJSONRPCErrorStatus(w, http.StatusInternalServerError, nil,
				JSONRPCInternalError, fmt.Sprintf("Internal error: %v", rec))
		}
	}()

	body, err := s.readBody(r)
	if err != nil {
		s.sendJSONRPCErrorStatus(w, http.StatusBadRequest, nil, JSONRPCParseError, "Parse error: "+err.Error())
		return
	}
	if !json.Valid(body) {
		s.sendJSONRPCErrorStatus(w, http.StatusBadRequest, nil, JSONRPCParseError, "Parse error: Invalid JSON")
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendJSONRPCErrorStatus(w, http.StatusBadRequest, nil, JSONRPCInvalidRequest, "Invalid Request: expected a JSON object")
		return
	}
	if req.Method == "" {
		s.sendJSONRPCErrorStatus(w, http.StatusBadRequest, req.ID, JSONRPCInvalidRequest, "Invalid Request: method required")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != JSONRPCVersion {
		s.sendJSONRPCErrorStatus(w, http.StatusBadRequest, req.ID, JSONRPCInvalidRequest, "Invalid Request: unsupported jsonrpc version")
		return
	}

	s.logger.Debug("JSON-RPC request",
		"method", req.Method,
		"session_id", r.Header.Get(headerMCPSessionID),
	)

	// Notifications expect no reply payload, only an empty success status.
	if strings.HasPrefix(req.Method, notificationPrefix) {
		if req.Method == MethodInitialized {
			s.logger.Info("MCP handshake complete", "session_id", r.Header.Get(headerMCPSessionID))
		} else {
			s.logger.Debug("accepted MCP notification", "method", req.Method)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch req.Method {
	case MethodInitialize:
		s.handleInitialize(w, req)
	case MethodToolsList:
		s.handleToolsList(w, req)
	case MethodToolsCall:
		s.handleToolsCall(w, r, req)
	default:
		s.sendJSONRPCError(w, req.ID, JSONRPCMethodNotFound, "Method not found: "+req.Method)
	}
}

// handleInitialize answers the MCP handshake and opens a session.
func (s *Server) handleInitialize(w http.ResponseWriter, req JSONRPCRequest) {
	var params InitializeParams
	if hasParams(req.Params) {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params: "+err.Error())
			return
		}
	}

	protocolVersion := params.ProtocolVersion
	if protocolVersion == "" {
		protocolVersion = s.protocolVersion
	}

	sessionID := s.sessions.Create(map[string]any{
		"protocol_version": protocolVersion,
		"client_name":      params.ClientInfo.Name,
	})

	s.logger.Info("MCP session created",
		"session_id", sessionID,
		"protocol_version", protocolVersion,
		"client_name", params.ClientInfo.Name,
	)

	w.Header().Set(headerMCPSessionID, sessionID)
	s.sendJSONRPCResult(w, req.ID, InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
		ServerInfo: s.info,
	})
}

// handleToolsList returns the manifest.
func (s *Server) handleToolsList(w http.ResponseWriter, req JSONRPCRequest) {
	tools := s.dispatcher.Registry().Manifest()
	s.logger.Debug("tools/list", "count", len(tools))
	s.sendJSONRPCResult(w, req.ID, ListToolsResult{Tools: tools})
}

// handleToolsCall delegates to the dispatcher and wraps the result as text content.
func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	var params CallToolParams
	if hasParams(req.Params) {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params: params must be an object")
			return
		}
	}
	if params.Name == "" {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params: tool name required")
		return
	}

	args, err := decodeArguments(params.Arguments)
	if err != nil {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params: "+err.Error())
		return
	}

	res := s.dispatcher.Invoke(r.Context(), toolbox.Request{
		ToolName:  params.Name,
		Arguments: args,
		Protocol:  ProtocolJSONRPC,
		SessionID: requestSessionID(r),
	})
	if !res.OK() {
		code, message := jsonrpcError(params.Name, res.Err)
		s.sendJSONRPCError(w, req.ID, code, message)
		return
	}

	text, err := contentText(res.Value)
	if err != nil {
		s.logger.Warn("failed to encode tool result", "tool_name", params.Name, "error", err)
		s.sendJSONRPCError(w, req.ID, JSONRPCInternalError, "Internal error: "+err.Error())
		return
	}
	s.sendJSONRPCResult(w, req.ID, CallToolResult{
		Content: []Content{{Type: "text", Text: text}},
	})
}

// jsonrpcError maps a dispatcher error onto a JSON-RPC code and message.
func jsonrpcError(toolName string, err *toolbox.Error) (int, string) {
	if toolbox.KindOf(err) == toolbox.KindUnknownTool {
		return JSONRPCMethodNotFound, "Method not found: " + toolName
	}
	return JSONRPCInternalError, "Internal error: " + err.Message
}

// contentText renders a serialized value for a text content block. Strings are
// sent verbatim; everything else is JSON-encoded.
func contentText(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// hasParams reports whether raw holds something other than JSON null.
func hasParams(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// errArgumentsNotObject is returned when tool arguments are not a JSON object.
var errArgumentsNotObject = errors.New("arguments must be a JSON object")

// decodeArguments decodes tool arguments. Absent or null arguments yield an empty map.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if !hasParams(raw) {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, errArgumentsNotObject
	}
	return args, nil
}

// sendJSONRPCResult sends a successful JSON-RPC response.
func (s *Server) sendJSONRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	s.writeJSON(w, http.StatusOK, JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	})
}

// sendJSONRPCError sends a JSON-RPC error response with HTTP 200.
func (s *Server) sendJSONRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	s.sendJSONRPCErrorStatus(w, http.StatusOK, id, code, message)
}

// sendJSONRPCErrorStatus sends a JSON-RPC error response with the given HTTP status.
func (s *Server) sendJSONRPCErrorStatus(w http.ResponseWriter, status int, id json.RawMessage, code int, message string) {
	s.writeJSON(w, status, JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	})
}
