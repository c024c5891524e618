package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fenwick-ai/agentrt/pkg/models"
)

func TestLoggingSinkEmitsToolEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})
	sink := NewLoggingSink(logger)

	sink.EmitToolEvent(context.Background(), models.ToolEvent{
		ConversationID: "conv-1",
		ToolID:         "list_files",
		ToolName:       "List Files",
		Stage:          models.ToolEventSucceeded,
	})

	out := buf.String()
	if !strings.Contains(out, "list_files") || !strings.Contains(out, "conv-1") {
		t.Fatalf("expected tool event fields in output: %s", out)
	}
}

func TestNopSinkDoesNotPanic(t *testing.T) {
	var sink NopSink
	sink.EmitToolEvent(context.Background(), models.ToolEvent{ToolID: "x"})
}

func TestLoggingSinkNilSafe(t *testing.T) {
	var sink *LoggingSink
	sink.EmitToolEvent(context.Background(), models.ToolEvent{ToolID: "x"})
}
