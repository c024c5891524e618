package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLoggerRedactsAPIKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})
	logger.Info(context.Background(), "starting up", "api_key", "sk-ant-"+strings.Repeat("a", 100))

	out := buf.String()
	if strings.Contains(out, "sk-ant-aaaa") {
		t.Fatalf("expected api key to be redacted, got: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("expected redaction marker in output: %s", out)
	}
}

func TestLoggerIncludesContextCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	ctx := AddConversationID(context.Background(), "conv-123")
	ctx = AddContainerID(ctx, "container-abc")
	logger.Info(ctx, "container started")

	out := buf.String()
	if !strings.Contains(out, "conv-123") || !strings.Contains(out, "container-abc") {
		t.Fatalf("expected correlation ids in output: %s", out)
	}
}

func TestContextHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = AddRunID(ctx, "run-1")
	ctx = AddToolCallID(ctx, "tc-1")

	if GetRunID(ctx) != "run-1" {
		t.Fatalf("expected run-1, got %q", GetRunID(ctx))
	}
	if GetToolCallID(ctx) != "tc-1" {
		t.Fatalf("expected tc-1, got %q", GetToolCallID(ctx))
	}
	if GetConversationID(ctx) != "" {
		t.Fatalf("expected empty conversation id, got %q", GetConversationID(ctx))
	}
}
