// Package config handles configuration loading for tool-gateway.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Missing fields receive defaults and the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TOOL_GATEWAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/tool-gateway/gateway.yaml
//  3. ~/.config/tool-gateway/gateway.yaml
//
// Files ending in .toml are decoded as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	mongo:
//	  uri: "${MONGO_URI}"
//
// Unset variables expand to the empty string, which then picks up the default.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  ttl: "30m"
//	mongo:
//	  query_timeout: "30s"
//
// # Sections
//
//   - server: HTTP and gRPC listen addresses, timeouts, body limit, CORS origin
//   - tailscale: optional tsnet listener
//   - mongo: document store URI, databases and per-query timeout
//   - sessions: session TTL and capacity
//   - mcp: server name, version, description and protocol version
//   - audit: SQLite invocation log path (empty disables)
//   - telemetry: OpenTelemetry trace export
//   - logging: level and format
package config
