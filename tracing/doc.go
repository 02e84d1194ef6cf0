// Package tracing wraps OpenTelemetry so that the agent records one span per
// pulled message and nested spans for its stages. Without Init the global
// no-op provider is used and spans cost nothing.
package tracing
