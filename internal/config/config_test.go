package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AGENTRT_PRIMARY_MODEL", "AGENTRT_BACKUP_MODEL",
		"AGENTRT_INITIAL_BACKOFF_SECONDS", "AGENTRT_MAX_BACKOFF_SECONDS",
		"AGENTRT_BACKOFF_MULTIPLIER", "AGENTRT_FALLBACK_RETRY_COUNT",
		"AGENTRT_MAX_AGENTS", "AGENTRT_IDLE_DEADLINE_SECONDS",
		"AGENTRT_RUNTIME_DIR", "AGENTRT_CONTAINER_IMAGE",
		"AGENTRT_LLM_RATE_LIMIT_RPS",
		"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENTRT_PRIMARY_MODEL", "claude-primary")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxAgents != defaultMaxAgents {
		t.Errorf("expected default max agents, got %d", cfg.MaxAgents)
	}
	if cfg.InitialBackoff != 100*time.Millisecond {
		t.Errorf("expected default initial backoff 100ms, got %v", cfg.InitialBackoff)
	}
	if cfg.IdleDeadline != defaultIdleDeadlineSeconds*time.Second {
		t.Errorf("expected default idle deadline, got %v", cfg.IdleDeadline)
	}
	if cfg.LLMRateLimitRPS != defaultLLMRateLimitRPS {
		t.Errorf("expected default LLM rate limit, got %v", cfg.LLMRateLimitRPS)
	}
}

func TestLoadRateLimitZeroDisablesThrottling(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENTRT_PRIMARY_MODEL", "claude-primary")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("AGENTRT_LLM_RATE_LIMIT_RPS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLMRateLimitRPS != 0 {
		t.Errorf("expected rate limit 0, got %v", cfg.LLMRateLimitRPS)
	}
}

func TestLoadRequiresPrimaryModel(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing primary model")
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENTRT_PRIMARY_MODEL", "claude-primary")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestLoadIdleDeadlineZeroDisablesReap(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENTRT_PRIMARY_MODEL", "claude-primary")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("AGENTRT_IDLE_DEADLINE_SECONDS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IdleDeadline != 0 {
		t.Errorf("expected idle deadline 0, got %v", cfg.IdleDeadline)
	}
}

func TestLoadAggregatesMultipleIssues(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENTRT_BACKOFF_MULTIPLIER", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Issues) < 2 {
		t.Fatalf("expected multiple aggregated issues, got %d: %v", len(verr.Issues), verr.Issues)
	}
}

func TestLoadRejectsMalformedNumericEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENTRT_PRIMARY_MODEL", "claude-primary")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("AGENTRT_MAX_AGENTS", "not-an-int")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed AGENTRT_MAX_AGENTS")
	}
}
