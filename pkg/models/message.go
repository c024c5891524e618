// Package models holds the wire-level conversation and tool types shared
// across the runtime: messages built from tagged content blocks, tool
// descriptors with a recursive parameter schema, and the tool-event shape
// emitted to observability.
package models

import (
	"encoding/json"
	"fmt"
)

// Role is the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates the Block tagged union.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockImage      BlockType = "image"
	BlockServerTool BlockType = "server_tool_use" // opaque passthrough
)

// Block is one element of a Message's content array. Exactly the fields
// relevant to Type are populated; json.RawMessage fields carry nested
// structure the runtime never needs to interpret (tool input, opaque
// server-tool payloads).
type Block struct {
	Type BlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ToolUseID string          `json:"id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	ToolInput json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseResultID string `json:"tool_use_id,omitempty"`
	IsError         bool   `json:"is_error,omitempty"`
	// Content holds the tool_result payload. It is either a plain string
	// or a []Block (the image + text-acknowledgement case described in
	// spec §4.5); ContentBlocks is populated instead of Content when so.
	Content       string  `json:"content,omitempty"`
	ContentBlocks []Block `json:"content_blocks,omitempty"`

	// image
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`

	// opaque server-tool blocks: preserved verbatim
	Raw json.RawMessage `json:"-"`
}

// TextBlock builds a plain text content block.
func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) Block {
	return Block{Type: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResultBlock builds a text tool_result content block.
func ToolResultBlock(toolUseID, content string, isError bool) Block {
	return Block{Type: BlockToolResult, ToolUseResultID: toolUseID, Content: content, IsError: isError}
}

// ImageToolResultBlock packages an image tool result as the two-element
// content array spec §4.5 describes: an image block followed by a short
// text acknowledgement, so the model's vision-input contract is met.
func ImageToolResultBlock(toolUseID, mediaType, base64Data, ack string) Block {
	return Block{
		Type:            BlockToolResult,
		ToolUseResultID: toolUseID,
		ContentBlocks: []Block{
			{Type: BlockImage, MediaType: mediaType, Data: base64Data},
			{Type: BlockText, Text: ack},
		},
	}
}

// Message is one turn in a Conversation's history.
type Message struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// ToolUseBlocks returns the tool_use blocks within the message, in
// order.
func (m Message) ToolUseBlocks() []Block {
	var out []Block
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Text concatenates the text blocks of the message.
func (m Message) Text() string {
	var s string
	for _, b := range m.Content {
		if b.Type == BlockText {
			s += b.Text
		}
	}
	return s
}

// ValidatePairing checks the invariant from spec §3: every tool_use
// block in an assistant message must be answered by exactly one
// tool_result block with a matching ToolUseID, in the same order, in the
// immediately following message.
func ValidatePairing(assistant, followUp Message) error {
	uses := assistant.ToolUseBlocks()
	if len(uses) == 0 {
		return nil
	}
	var results []Block
	for _, b := range followUp.Content {
		if b.Type == BlockToolResult {
			results = append(results, b)
		}
	}
	if len(results) != len(uses) {
		return fmt.Errorf("tool_use/tool_result count mismatch: %d tool_use blocks, %d tool_result blocks", len(uses), len(results))
	}
	for i, u := range uses {
		if results[i].ToolUseResultID != u.ToolUseID {
			return fmt.Errorf("tool_result %d has id %q, expected %q", i, results[i].ToolUseResultID, u.ToolUseID)
		}
	}
	return nil
}

// ToolEventStage is the lifecycle stage reported to observability for a
// single tool dispatch.
type ToolEventStage string

const (
	ToolEventRequested ToolEventStage = "requested"
	ToolEventSucceeded ToolEventStage = "succeeded"
	ToolEventFailed    ToolEventStage = "failed"
)

// ToolEvent is the observability side-effect the dispatcher emits on
// every dispatch (spec §4.4): conversation id, tool id, display name —
// never arguments.
type ToolEvent struct {
	ConversationID string
	ToolID         string
	ToolName       string
	Stage          ToolEventStage
	Error          string
}
