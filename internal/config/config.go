// Package config loads the runtime's environment-variable surface
// (spec §6 "CLI surface ... Environment variables").
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the runtime's full environment-derived configuration.
type Config struct {
	PrimaryModel string
	BackupModel  string

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	FallbackRetryCount int

	MaxAgents    int
	IdleDeadline time.Duration // 0 disables reaping

	RuntimeDir string

	AnthropicAPIKey  string
	AnthropicBaseURL string

	ContainerImage string

	// LLMRateLimitRPS caps outbound completion requests per second
	// ahead of the retry/backoff loop; 0 disables limiting.
	LLMRateLimitRPS float64
}

// defaults mirror the "typical values" spec §4.5 names for backoff, plus
// the teacher's own fallback constants for anything the spec leaves to
// the operator.
const (
	defaultInitialBackoffSeconds = 0.1
	defaultMaxBackoffSeconds     = 3.0
	defaultBackoffMultiplier     = 2.0
	defaultFallbackRetryCount    = 10
	defaultMaxAgents             = 50
	defaultIdleDeadlineSeconds   = 600
	defaultRuntimeDir            = "/var/lib/agentrt"
	defaultContainerImage        = "python:3.11-slim"
	defaultLLMRateLimitRPS       = 2.0
)

// Load builds a Config from the process environment, applying defaults
// for anything unset and returning a ValidationError aggregating every
// problem found (spec §7 "ConfigFatal ... surface immediately, do not
// start").
func Load() (Config, error) {
	cfg := Config{
		PrimaryModel:       strings.TrimSpace(os.Getenv("AGENTRT_PRIMARY_MODEL")),
		BackupModel:        strings.TrimSpace(os.Getenv("AGENTRT_BACKUP_MODEL")),
		FallbackRetryCount: defaultFallbackRetryCount,
		MaxAgents:          defaultMaxAgents,
		RuntimeDir:         defaultRuntimeDir,
		AnthropicAPIKey:    strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicBaseURL:   strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")),
		ContainerImage:     defaultContainerImage,
		LLMRateLimitRPS:    defaultLLMRateLimitRPS,
	}

	initialBackoff := defaultInitialBackoffSeconds
	maxBackoff := defaultMaxBackoffSeconds
	multiplier := defaultBackoffMultiplier
	idleDeadline := defaultIdleDeadlineSeconds

	var issues []string

	if v := strings.TrimSpace(os.Getenv("AGENTRT_INITIAL_BACKOFF_SECONDS")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			issues = append(issues, "AGENTRT_INITIAL_BACKOFF_SECONDS: "+err.Error())
		} else {
			initialBackoff = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("AGENTRT_MAX_BACKOFF_SECONDS")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			issues = append(issues, "AGENTRT_MAX_BACKOFF_SECONDS: "+err.Error())
		} else {
			maxBackoff = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("AGENTRT_BACKOFF_MULTIPLIER")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			issues = append(issues, "AGENTRT_BACKOFF_MULTIPLIER: "+err.Error())
		} else {
			multiplier = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("AGENTRT_FALLBACK_RETRY_COUNT")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			issues = append(issues, "AGENTRT_FALLBACK_RETRY_COUNT: "+err.Error())
		} else {
			cfg.FallbackRetryCount = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("AGENTRT_MAX_AGENTS")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			issues = append(issues, "AGENTRT_MAX_AGENTS: "+err.Error())
		} else {
			cfg.MaxAgents = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("AGENTRT_IDLE_DEADLINE_SECONDS")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			issues = append(issues, "AGENTRT_IDLE_DEADLINE_SECONDS: "+err.Error())
		} else {
			idleDeadline = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("AGENTRT_RUNTIME_DIR")); v != "" {
		cfg.RuntimeDir = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTRT_CONTAINER_IMAGE")); v != "" {
		cfg.ContainerImage = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTRT_LLM_RATE_LIMIT_RPS")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			issues = append(issues, "AGENTRT_LLM_RATE_LIMIT_RPS: "+err.Error())
		} else {
			cfg.LLMRateLimitRPS = parsed
		}
	}

	cfg.InitialBackoff = secondsToDuration(initialBackoff)
	cfg.MaxBackoff = secondsToDuration(maxBackoff)
	cfg.BackoffMultiplier = multiplier
	cfg.IdleDeadline = time.Duration(idleDeadline) * time.Second

	if cfg.PrimaryModel == "" {
		issues = append(issues, "AGENTRT_PRIMARY_MODEL is required")
	}
	if cfg.AnthropicAPIKey == "" {
		issues = append(issues, "ANTHROPIC_API_KEY is required")
	}
	if cfg.MaxAgents <= 0 {
		issues = append(issues, "AGENTRT_MAX_AGENTS must be positive")
	}
	if cfg.BackoffMultiplier < 1 {
		issues = append(issues, "AGENTRT_BACKOFF_MULTIPLIER must be >= 1")
	}

	if len(issues) > 0 {
		return Config{}, &ValidationError{Issues: issues}
	}
	return cfg, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// ValidationError aggregates every configuration problem found by Load,
// so an operator sees the whole list in one failure rather than one
// error per restart (spec §7 ConfigFatal: "surface immediately").
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "configuration invalid:\n- " + strings.Join(e.Issues, "\n- ")
}
