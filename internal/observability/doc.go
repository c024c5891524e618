// Package observability provides the runtime's ambient logging and
// metrics surface: a redacting slog wrapper, context-propagated
// correlation ids, and the Prometheus counters/gauges the Agent Manager
// and Tool Dispatcher publish to.
package observability
