// ABOUTME: Package telemetry wires OpenTelemetry into the gateway.
// ABOUTME: It provides the invocation observer and the provider lifecycle.

// Package telemetry records tool invocations as OpenTelemetry metrics and spans.
package telemetry
