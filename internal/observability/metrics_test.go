package observability

import "testing"

func TestNewMetricsPopulatesAllFields(t *testing.T) {
	m := NewMetrics()
	if m.ActiveContainers == nil || m.RegisteredAgents == nil {
		t.Fatal("expected gauges to be initialized")
	}
	if m.ShellCommands == nil || m.ToolCalls == nil || m.LLMRequests == nil || m.LLMRetries == nil {
		t.Fatal("expected counter vecs to be initialized")
	}
	if m.BackupModelSwitches == nil || m.AgentsEvicted == nil || m.AgentsReaped == nil {
		t.Fatal("expected counters to be initialized")
	}

	// Exercise the metrics so a vet/race run would catch label
	// cardinality mistakes.
	m.ShellCommands.WithLabelValues("ok").Inc()
	m.ToolCalls.WithLabelValues("list_files", "ok").Inc()
	m.ToolCallDuration.WithLabelValues("list_files").Observe(0.01)
	m.LLMRequests.WithLabelValues("claude-primary", "ok").Inc()
	m.LLMRetries.WithLabelValues("claude-primary").Inc()
	m.BackupModelSwitches.Inc()
	m.AgentsEvicted.Inc()
	m.AgentsReaped.Inc()
	m.ActiveContainers.Set(1)
	m.RegisteredAgents.Set(1)
	m.ShellCommandDuration.Observe(0.02)
}
