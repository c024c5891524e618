package observability

import (
	"context"

	"github.com/fenwick-ai/agentrt/pkg/models"
)

// ToolEventSink receives the dispatcher's best-effort "tool call" event
// (spec §4.4). Implementations must not block the caller meaningfully;
// EmitToolEvent failures are swallowed by the dispatcher by design.
type ToolEventSink interface {
	EmitToolEvent(ctx context.Context, event models.ToolEvent)
}

// LoggingSink is a ToolEventSink that writes one log line per event.
// It is the default sink wired by cmd/agentrt when no richer sink is
// configured.
type LoggingSink struct {
	Logger *Logger
}

func NewLoggingSink(logger *Logger) *LoggingSink {
	return &LoggingSink{Logger: logger}
}

func (s *LoggingSink) EmitToolEvent(ctx context.Context, event models.ToolEvent) {
	if s == nil || s.Logger == nil {
		return
	}
	args := []any{
		"conversation_id", event.ConversationID,
		"tool_id", event.ToolID,
		"tool_name", event.ToolName,
		"stage", string(event.Stage),
	}
	if event.Error != "" {
		args = append(args, "error", event.Error)
	}
	s.Logger.Info(ctx, "tool call", args...)
}

// NopSink discards every event. Useful for tests that don't care about
// observability wiring.
type NopSink struct{}

func (NopSink) EmitToolEvent(context.Context, models.ToolEvent) {}
