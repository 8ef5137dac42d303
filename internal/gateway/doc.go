// Package gateway orchestrates the tool-gateway server components.
//
// # Overview
//
// The gateway package is the composition root. It builds the tool registry
// once, seals it, and wires the shared dispatcher into the MCP and REST
// adapters. It owns the session store, the optional SQLite audit log, the
// telemetry providers and every listener.
//
// # Startup
//
//  1. Connect to MongoDB (New) or accept an existing traffic.Source (NewWithSource)
//  2. Register the traffic tools and seal the registry
//  3. Open the audit log and telemetry, attach them as dispatcher observers
//  4. Build the MCP server and mount it next to the health endpoints
//  5. Optionally create a gRPC server carrying the standard health service
//
// # HTTP Endpoints
//
//   - POST /mcp - JSON-RPC 2.0 (initialize, tools/list, tools/call, notifications/*)
//   - GET /mcp/manifest - Tool manifest
//   - POST /mcp/session - Create a session
//   - POST /mcp/invoke - Legacy REST invocation
//   - GET /mcp/invocations - Recent invocations (audit log only)
//   - GET /mcp/docs - HTML tool reference
//   - GET / - Server info
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (registry sealed and MongoDB reachable)
//
// # Listeners
//
// With Tailscale disabled the gateway listens on server.http_addr and, when
// set, server.grpc_addr. With Tailscale enabled it joins the tailnet through
// tsnet and serves HTTP on :80, HTTPS on :443 (tailscale.https) or Funnel
// (tailscale.funnel), plus gRPC health on :50051.
//
// # Shutdown
//
// Run blocks until its context is canceled, then stops the servers with a
// five second grace period and closes the session store, audit log,
// telemetry providers and MongoDB client.
package gateway
