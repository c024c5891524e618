// Package llm is the runtime's LLM provider boundary: the Conversation
// Driver calls Complete and consumes a stream of chunks, independent of
// which model vendor backs it (spec §4.5, §6).
package llm

import (
	"context"

	"github.com/fenwick-ai/agentrt/pkg/models"
)

// CompletionRequest is one turn sent to the model.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []models.Message
	Tools     []models.Tool
	MaxTokens int
}

// Chunk is one piece of a streamed completion. Exactly one of Text,
// ToolUse, Done, or Error is meaningful per chunk.
type Chunk struct {
	Text    string
	ToolUse *models.Block // populated, fully assembled, when a tool_use block completes

	// Done is set on the final chunk; StopReason carries why the model
	// stopped ("end_turn", "tool_use", "max_tokens", ...).
	Done       bool
	StopReason string

	Error error
}

// Provider is the Conversation Driver's view of an LLM backend.
type Provider interface {
	// Complete streams a completion. The returned channel is closed when
	// the stream ends, whether by completion or by error; at most one
	// Error chunk is ever sent, always last.
	Complete(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)
}
