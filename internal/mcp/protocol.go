// ABOUTME: JSON-RPC 2.0 and MCP wire types used by the gateway's protocol adapters.
// ABOUTME: Error codes follow the JSON-RPC 2.0 reserved range.

package mcp

import (
	"encoding/json"
	"time"

	"github.com/2389/tool-gateway/internal/toolbox"
)

// JSONRPCVersion is the only version string accepted in requests.
const JSONRPCVersion = "2.0"

// JSONRPCRequest represents a JSON-RPC 2.0 request or notification.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response. ID is always emitted,
// as null when the request carried none.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MCP method names
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"

	notificationPrefix = "notifications/"
)

// ServerInfo identifies the gateway in initialize results and the manifest.
type ServerInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"-"`
}

// InitializeParams are the params for initialize. Unknown fields are ignored.
type InitializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

// InitializeResult is the result for initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []toolbox.ManifestEntry `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the result for tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
}

// Content is one content block in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Manifest is the document served by GET /mcp/manifest.
type Manifest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Tools       []toolbox.ManifestEntry `json:"tools"`
}

// InvokeRequest is the legacy REST invoke body.
type InvokeRequest struct {
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// InvokeResponse is the legacy REST invoke success body.
type InvokeResponse struct {
	Result any `json:"result"`
}

// ErrorResponse is the body of every REST error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionResponse is returned by POST /mcp/session.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// SessionInfo is returned by GET /mcp/session.
type SessionInfo struct {
	SessionID string         `json:"session_id"`
	Metadata  map[string]any `json:"metadata"`
	LastSeen  time.Time      `json:"last_seen"`
}

// RootInfo is returned by GET /.
type RootInfo struct {
	Message   string   `json:"message"`
	Endpoints []string `json:"endpoints"`
	Status    string   `json:"status"`
}
