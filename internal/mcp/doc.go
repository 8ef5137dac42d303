// Package mcp implements the gateway's HTTP protocol adapters.
//
// # Overview
//
// Three adapters share a single toolbox.Dispatcher, so they always agree on
// which tools exist and how they behave:
//
//   - JSON-RPC 2.0 (MCP) on POST /mcp and POST /mcp/
//   - legacy REST invoke on POST /mcp/invoke
//   - discovery on GET /mcp/manifest and GET /mcp/docs
//
// # JSON-RPC
//
// Supported methods are initialize, notifications/initialized, tools/list and
// tools/call. Notifications receive HTTP 204 with no body. Malformed JSON is
// answered with -32700 and HTTP 400; a missing method with -32600 and HTTP 400.
// Other errors are returned with HTTP 200:
//
//	{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found: x"}}
//
// tools/call wraps the tool's value as a single text content block:
//
//	{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"hi"}]}}
//
// # REST
//
// POST /mcp/invoke takes {"tool": name, "input": {...}} and returns
// {"result": value} or {"error": message} with 400, 404 or 500.
//
// # Sessions
//
// initialize opens a session and returns it in the Mcp-Session-Id header.
// The manifest and invoke endpoints read X-Session-ID, then the sessionId query
// parameter, then the session_id cookie, minting a temporary session when all
// are absent, and echo the result in X-Session-ID.
package mcp
