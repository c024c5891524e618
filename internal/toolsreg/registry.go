// Package toolsreg implements the Tool Registry & Dispatcher (spec §4.4):
// providers register a schema once at startup, and every tool_use block
// from the model is validated against that schema, dispatched to its
// provider, and turned into a tool_result with a best-effort
// observability event alongside it.
package toolsreg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fenwick-ai/agentrt/internal/observability"
	"github.com/fenwick-ai/agentrt/internal/rterr"
	"github.com/fenwick-ai/agentrt/pkg/models"
)

// Result is what a Provider returns for one invocation.
type Result struct {
	// Text is the tool_result content when the tool returns plain text.
	Text string

	// ImageBase64/ImageMediaType are set instead of Text when the tool
	// returns an image (spec §4.4 "tool_result content may be text or a
	// two-element image array"). ImageAck is the short text
	// acknowledgement block that accompanies the image. Ignored when
	// IsError is true: error results are always plain text.
	ImageBase64    string
	ImageMediaType string
	ImageAck       string

	IsError bool
}

// Provider implements one tool: its catalog entry (name/description/
// schema) and its invocation. The Dispatcher passes the conversation id
// to Invoke as a parameter; it stamps no reserved keys onto the
// arguments and passes no workspace path, so a provider that needs the
// workspace looks it up from the conversation id.
type Provider interface {
	Tool() models.Tool
	Invoke(ctx context.Context, conversationID string, args map[string]any) (Result, error)
}

type registered struct {
	provider Provider
	schema   *jsonschema.Schema
}

// Dispatcher is the Tool Registry & Dispatcher: one instance per
// process, shared across conversations.
type Dispatcher struct {
	mu    sync.RWMutex
	tools map[string]registered

	sink    observability.ToolEventSink
	metrics *observability.Metrics
}

// NewDispatcher builds an empty dispatcher. sink may be nil, in which
// case observability events are dropped.
func NewDispatcher(sink observability.ToolEventSink, metrics *observability.Metrics) *Dispatcher {
	if sink == nil {
		sink = observability.NopSink{}
	}
	return &Dispatcher{tools: map[string]registered{}, sink: sink, metrics: metrics}
}

// Register compiles a provider's schema and adds it to the catalog.
// Registering a duplicate tool id is a startup-time configuration error
// (spec §4.4 "duplicate tool ids are fatal at registration").
func (d *Dispatcher) Register(p Provider) error {
	tool := p.Tool()
	if strings.TrimSpace(tool.ID) == "" {
		return rterr.New(rterr.ConfigFatal, "tool registered with an empty id")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.tools[tool.ID]; exists {
		return rterr.New(rterr.ConfigFatal, fmt.Sprintf("duplicate tool id %q", tool.ID))
	}

	schema, err := compileSchema(tool.ID, tool.Parameters)
	if err != nil {
		return rterr.Wrap(rterr.ConfigFatal, fmt.Sprintf("invalid schema for tool %q", tool.ID), err)
	}

	d.tools[tool.ID] = registered{provider: p, schema: schema}
	return nil
}

func compileSchema(toolID string, schema *models.Schema) (*jsonschema.Schema, error) {
	var raw map[string]any
	if schema != nil {
		raw = schema.ToJSONSchema()
	} else {
		raw = map[string]any{"type": "object"}
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	resourceURL := "mem://tools/" + toolID + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, strings.NewReader(string(body))); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceURL)
}

// Catalog returns every registered tool's wire descriptor, for the
// Conversation Driver to pass to the LLM provider.
func (d *Dispatcher) Catalog() []models.Tool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Tool, 0, len(d.tools))
	for _, r := range d.tools {
		out = append(out, r.provider.Tool())
	}
	return out
}

// Dispatch validates a tool_use block's arguments against the
// registered schema, invokes the provider, and returns the matching
// tool_result block (spec §4.4). It never returns an error for a bad
// tool call: schema violations, unknown tool ids, and provider failures
// all become an IsError tool_result so the model can see and
// self-correct, per the invariant that a single bad tool call must not
// abort the conversation loop.
func (d *Dispatcher) Dispatch(ctx context.Context, conversationID string, toolUse models.Block) models.Block {
	d.mu.RLock()
	r, ok := d.tools[toolUse.ToolName]
	d.mu.RUnlock()

	toolID, displayName := toolUse.ToolName, toolUse.ToolName
	if ok {
		displayName = r.provider.Tool().Name
	}
	d.emit(ctx, conversationID, toolID, displayName, models.ToolEventRequested, nil)
	if !ok {
		err := rterr.New(rterr.SchemaViolation, fmt.Sprintf("unknown tool %q", toolUse.ToolName))
		d.emit(ctx, conversationID, toolID, displayName, models.ToolEventFailed, err)
		d.countToolCall(toolUse.ToolName, "unknown_tool")
		return models.ToolResultBlock(toolUse.ToolUseID, err.Error(), true)
	}

	var args map[string]any
	if len(toolUse.ToolInput) > 0 {
		if err := json.Unmarshal(toolUse.ToolInput, &args); err != nil {
			wrapped := rterr.Wrap(rterr.SchemaViolation, "tool arguments are not valid JSON", err)
			d.emit(ctx, conversationID, toolID, displayName, models.ToolEventFailed, wrapped)
			d.countToolCall(toolUse.ToolName, "schema_violation")
			return models.ToolResultBlock(toolUse.ToolUseID, wrapped.Error(), true)
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := r.schema.Validate(args); err != nil {
		wrapped := rterr.Wrap(rterr.SchemaViolation, "tool arguments failed schema validation", err)
		d.emit(ctx, conversationID, toolID, displayName, models.ToolEventFailed, wrapped)
		d.countToolCall(toolUse.ToolName, "schema_violation")
		return models.ToolResultBlock(toolUse.ToolUseID, wrapped.Error(), true)
	}

	result, err := r.provider.Invoke(ctx, conversationID, args)
	if err != nil {
		d.emit(ctx, conversationID, toolID, displayName, models.ToolEventFailed, err)
		d.countToolCall(toolUse.ToolName, outcomeFor(err))
		return models.ToolResultBlock(toolUse.ToolUseID, err.Error(), true)
	}

	d.emit(ctx, conversationID, toolID, displayName, models.ToolEventSucceeded, nil)
	d.countToolCall(toolUse.ToolName, "ok")

	if !result.IsError && result.ImageBase64 != "" {
		return models.ImageToolResultBlock(toolUse.ToolUseID, result.ImageMediaType, result.ImageBase64, result.ImageAck)
	}
	return models.ToolResultBlock(toolUse.ToolUseID, result.Text, result.IsError)
}

func outcomeFor(err error) string {
	if kind, ok := rterr.Of(err); ok {
		return string(kind)
	}
	return "error"
}

func (d *Dispatcher) countToolCall(toolName, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.ToolCalls.WithLabelValues(toolName, outcome).Inc()
}

func (d *Dispatcher) emit(ctx context.Context, conversationID, toolID, toolName string, stage models.ToolEventStage, err error) {
	event := models.ToolEvent{
		ConversationID: conversationID,
		ToolID:         toolID,
		ToolName:       toolName,
		Stage:          stage,
	}
	if err != nil {
		event.Error = err.Error()
	}
	d.sink.EmitToolEvent(ctx, event)
}
