package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fenwick-ai/agentrt/pkg/models"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
}

// AnthropicProvider implements Provider against Anthropic's Messages
// API, streaming content blocks and reassembling tool_use arguments
// across delta events.
type AnthropicProvider struct {
	client anthropic.Client
}

func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...)}, nil
}

// maxEmptyStreamEvents bounds how many consecutive events may carry no
// observable content before the stream is treated as malformed.
const maxEmptyStreamEvents = 300

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (<-chan Chunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		stream := p.client.Messages.NewStreaming(ctx, params)
		processStream(stream, out, req.Model)
	}()
	return out, nil
}

func (p *AnthropicProvider) buildParams(req CompletionRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
	}
	return params, nil
}

// convertMessages maps the runtime's Block-tagged-union messages onto
// Anthropic's content-block params (spec §3 Message/Block model).
func convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		for _, b := range msg.Content {
			switch b.Type {
			case models.BlockText:
				content = append(content, anthropic.NewTextBlock(b.Text))
			case models.BlockToolUse:
				var input map[string]any
				if len(b.ToolInput) > 0 {
					if err := json.Unmarshal(b.ToolInput, &input); err != nil {
						return nil, fmt.Errorf("invalid tool_use input for %s: %w", b.ToolName, err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
			case models.BlockToolResult:
				if len(b.ContentBlocks) > 0 {
					content = append(content, toolResultWithBlocks(b))
				} else {
					content = append(content, anthropic.NewToolResultBlock(b.ToolUseResultID, b.Content, b.IsError))
				}
			}
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

// toolResultWithBlocks packages the image+ack two-element tool_result
// content (spec §4.5) as a real tool_result whose content array carries
// an actual image block alongside the acknowledgement text, the way a
// vision-capable turn requires — not a text block holding a data: URL.
func toolResultWithBlocks(b models.Block) anthropic.ContentBlockParamUnion {
	var text string
	var mediaType, data string
	for _, inner := range b.ContentBlocks {
		switch inner.Type {
		case models.BlockImage:
			mediaType, data = inner.MediaType, inner.Data
		case models.BlockText:
			text = inner.Text
		}
	}

	toolBlock := anthropic.ToolResultBlockParam{ToolUseID: b.ToolUseResultID}
	if b.IsError {
		toolBlock.IsError = anthropic.Bool(true)
	}

	var content []anthropic.ToolResultBlockParamContentUnion
	if mt, ok := imageSourceMediaType(mediaType); ok && data != "" {
		content = append(content, anthropic.ToolResultBlockParamContentUnion{
			OfImage: &anthropic.ImageBlockParam{
				Source: anthropic.ImageBlockParamSourceUnion{
					OfBase64: &anthropic.Base64ImageSourceParam{
						Data:      data,
						MediaType: mt,
					},
				},
			},
		})
	}
	if text != "" {
		content = append(content, anthropic.ToolResultBlockParamContentUnion{
			OfText: &anthropic.TextBlockParam{Text: text},
		})
	}
	toolBlock.Content = content

	return anthropic.ContentBlockParamUnion{OfToolResult: &toolBlock}
}

// imageSourceMediaType maps a MIME type to the SDK's constrained media
// type enum; an unrecognized MIME type drops the image block rather
// than sending a request the API will reject.
func imageSourceMediaType(mediaType string) (anthropic.Base64ImageSourceMediaType, bool) {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return anthropic.Base64ImageSourceMediaTypeImageJPEG, true
	case "image/png":
		return anthropic.Base64ImageSourceMediaTypeImagePNG, true
	case "image/gif":
		return anthropic.Base64ImageSourceMediaTypeImageGIF, true
	case "image/webp":
		return anthropic.Base64ImageSourceMediaTypeImageWebP, true
	default:
		return "", false
	}
}

// convertTools declares each tool to Anthropic under its ID, not its
// display Name: the dispatcher looks tool_use blocks up by the wire
// name the model echoes back, and the registry keys its catalog by
// tool.ID (spec §4.4).
func convertTools(tools []models.Tool) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		schemaJSON, err := json.Marshal(tool.Parameters.ToJSONSchema())
		if err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", tool.ID, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(schemaJSON, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", tool.ID, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.ID)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(tool.Description)
		}
		result = append(result, param)
	}
	return result, nil
}

type rawEventStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}

func processStream(stream rawEventStream, out chan<- Chunk, model string) {
	var toolUseID, toolName string
	var toolInput strings.Builder
	inToolUse := false
	emptyEvents := 0
	stopReason := ""

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				tu := block.AsToolUse()
				toolUseID, toolName = tu.ID, tu.Name
				toolInput.Reset()
				inToolUse = true
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- Chunk{Text: delta.Text}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					toolInput.WriteString(delta.PartialJSON)
					processed = true
				}
			}

		case "content_block_stop":
			if inToolUse {
				block := models.ToolUseBlock(toolUseID, toolName, json.RawMessage(toolInput.String()))
				out <- Chunk{ToolUse: &block}
				inToolUse = false
				processed = true
			}

		case "message_delta":
			if reason := string(event.AsMessageDelta().Delta.StopReason); reason != "" {
				stopReason = reason
			}
			processed = true

		case "message_stop":
			out <- Chunk{Done: true, StopReason: stopReason}
			return

		case "error":
			out <- Chunk{Error: NewProviderError(model, errors.New("anthropic stream error"))}
			return
		}

		if processed {
			emptyEvents = 0
		} else if emptyEvents++; emptyEvents >= maxEmptyStreamEvents {
			out <- Chunk{Error: NewProviderError(model, fmt.Errorf("stream malformed: %d consecutive empty events", emptyEvents))}
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- Chunk{Error: NewProviderError(model, err)}
	}
}
