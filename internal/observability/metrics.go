package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the runtime's Prometheus surface: the Agent Manager
// publishes registry size, shell command counts and evict/reap counts,
// the Tool Dispatcher publishes call counts, and the Conversation Driver
// publishes LLM request, retry and backup-switch counts.
// ActiveContainers, ShellCommandDuration and ToolCallDuration are
// registered, but nothing in the runtime updates them.
type Metrics struct {
	// ActiveContainers is the current count of Container Agents in the
	// Running state.
	ActiveContainers prometheus.Gauge

	// RegisteredAgents is the current Agent Manager registry size
	// (any lifecycle state).
	RegisteredAgents prometheus.Gauge

	// ShellCommands counts shell executions by outcome (ok|error).
	ShellCommands *prometheus.CounterVec

	// ShellCommandDuration measures exec latency in seconds.
	ShellCommandDuration prometheus.Histogram

	// ToolCalls counts dispatcher invocations by tool id and outcome
	// (ok, unknown_tool, schema_violation, the rterr kind of a provider
	// error, or error for a provider error without a kind).
	ToolCalls *prometheus.CounterVec

	// ToolCallDuration measures dispatch-to-result latency in seconds.
	ToolCallDuration *prometheus.HistogramVec

	// LLMRequests counts Conversation Driver LLM calls by model and
	// outcome (success|failure).
	LLMRequests *prometheus.CounterVec

	// LLMRetries counts retry attempts by model.
	LLMRetries *prometheus.CounterVec

	// BackupModelSwitches counts how many LLM calls fell over to the
	// backup model.
	BackupModelSwitches prometheus.Counter

	// AgentsEvicted counts Agent Manager admission-overflow evictions.
	AgentsEvicted prometheus.Counter

	// AgentsReaped counts idle-reaper stops.
	AgentsReaped prometheus.Counter
}

// NewMetrics registers and returns the runtime's metrics. Call once at
// startup.
func NewMetrics() *Metrics {
	return &Metrics{
		ActiveContainers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "agentrt_active_containers",
			Help: "Container Agents currently in the Running lifecycle state.",
		}),
		RegisteredAgents: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "agentrt_registered_agents",
			Help: "Container Agents currently registered with the Agent Manager, any state.",
		}),
		ShellCommands: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrt_shell_commands_total",
			Help: "Shell commands executed, by outcome.",
		}, []string{"outcome"}),
		ShellCommandDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentrt_shell_command_duration_seconds",
			Help:    "Shell command exec latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		ToolCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrt_tool_calls_total",
			Help: "Tool dispatches, by tool id and outcome.",
		}, []string{"tool_id", "outcome"}),
		ToolCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentrt_tool_call_duration_seconds",
			Help:    "Tool dispatch latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"tool_id"}),
		LLMRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrt_llm_requests_total",
			Help: "LLM calls, by model and outcome.",
		}, []string{"model", "outcome"}),
		LLMRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrt_llm_retries_total",
			Help: "LLM call retry attempts, by model.",
		}, []string{"model"}),
		BackupModelSwitches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentrt_llm_backup_switches_total",
			Help: "LLM calls that switched to the backup model.",
		}),
		AgentsEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentrt_agents_evicted_total",
			Help: "Agent Manager admission-overflow evictions.",
		}),
		AgentsReaped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentrt_agents_reaped_total",
			Help: "Idle-reaper stops.",
		}),
	}
}
