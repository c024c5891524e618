// Package driver implements the Conversation Driver: the LLM↔tool loop
// for a single user turn (spec §4.5).
package driver

import (
	"context"
	"strings"

	"github.com/fenwick-ai/agentrt/internal/backoff"
	"github.com/fenwick-ai/agentrt/internal/llm"
	"github.com/fenwick-ai/agentrt/internal/observability"
	"github.com/fenwick-ai/agentrt/internal/toolsreg"
	"github.com/fenwick-ai/agentrt/pkg/models"
)

// Config controls model selection, token budget, and the retry/fallback
// shape of a single LLM call (spec §4.5, §6 env surface).
type Config struct {
	PrimaryModel string
	BackupModel  string // empty disables backup fallback

	InitialBackoffMs   float64
	MaxBackoffMs       float64
	BackoffMultiplier  float64
	FallbackRetryCount int // failed attempts on primary before switching; 0 disables switching

	System    string
	MaxTokens int
}

func (c Config) policy() backoff.BackoffPolicy {
	return backoff.BackoffPolicy{
		InitialMs: c.InitialBackoffMs,
		MaxMs:     c.MaxBackoffMs,
		Factor:    c.BackoffMultiplier,
		Jitter:    0.1,
	}
}

// Driver runs the Conversation Driver loop against one LLM provider and
// tool dispatcher.
type Driver struct {
	provider   llm.Provider
	dispatcher *toolsreg.Dispatcher
	cfg        Config
	logger     *observability.Logger
	metrics    *observability.Metrics
}

func New(provider llm.Provider, dispatcher *toolsreg.Dispatcher, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Driver {
	return &Driver{provider: provider, dispatcher: dispatcher, cfg: cfg, logger: logger, metrics: metrics}
}

// reportInterval is how often, once past reportThreshold iterations, the
// driver logs a benign note that a turn is still running (spec §4.5.3).
const (
	reportThreshold = 50
	reportInterval  = 10
)

// RunTurn appends prompt to history and iterates the LLM↔tool loop until
// the assistant produces a response with no tool_use blocks. It returns
// the assistant's concatenated text and the updated history.
func (d *Driver) RunTurn(ctx context.Context, conversationID string, history []models.Message, prompt string) (string, []models.Message, error) {
	working := append(append([]models.Message{}, history...), models.Message{
		Role:    models.RoleUser,
		Content: []models.Block{models.TextBlock(prompt)},
	})

	for iteration := 1; ; iteration++ {
		if iteration > reportThreshold && iteration%reportInterval == 0 {
			d.logger.Info(ctx, "conversation turn still running", "conversation_id", conversationID, "iteration", iteration)
		}

		blocks, err := d.completeWithRetry(ctx, conversationID, working)
		if err != nil {
			return "", working, err
		}

		assistant := models.Message{Role: models.RoleAssistant, Content: blocks}
		working = append(working, assistant)

		toolUses := assistant.ToolUseBlocks()
		if len(toolUses) == 0 {
			return assistant.Text(), working, nil
		}

		results := make([]models.Block, len(toolUses))
		for i, tu := range toolUses {
			results[i] = d.dispatcher.Dispatch(ctx, conversationID, tu)
		}
		working = append(working, models.Message{Role: models.RoleUser, Content: results})
	}
}

// completeWithRetry wraps one LLM call in the retry/backup-switch loop
// described in spec §4.5: unbounded retries on retryable failures,
// a single switch to the backup model after FallbackRetryCount attempts
// on the primary, backoff counter reset on switch.
func (d *Driver) completeWithRetry(ctx context.Context, conversationID string, working []models.Message) ([]models.Block, error) {
	model := d.cfg.PrimaryModel
	policy := d.cfg.policy()
	attempt := 0
	switched := false

	for {
		attempt++
		blocks, err := d.completeOnce(ctx, model, working)
		if err == nil {
			d.countRequest(model, "success")
			if switched {
				d.logger.Info(ctx, "backup model succeeded", "conversation_id", conversationID, "model", model)
			}
			return blocks, nil
		}

		d.countRequest(model, "failure")

		if !llm.IsRetryable(err) {
			return nil, err
		}

		d.logger.Warn(ctx, "llm call failed, retrying", "conversation_id", conversationID, "model", model, "attempt", attempt, "error", err.Error())
		if d.metrics != nil {
			d.metrics.LLMRetries.WithLabelValues(model).Inc()
		}

		if !switched && d.cfg.FallbackRetryCount > 0 && d.cfg.BackupModel != "" && attempt >= d.cfg.FallbackRetryCount {
			switched = true
			model = d.cfg.BackupModel
			attempt = 0
			d.logger.Warn(ctx, strings.Repeat("=", 60)+"\nprimary model exhausted retries, switching to backup model\n"+strings.Repeat("=", 60),
				"conversation_id", conversationID, "backup_model", model)
			if d.metrics != nil {
				d.metrics.BackupModelSwitches.Inc()
			}
			continue
		}

		if sleepErr := backoff.SleepWithContext(ctx, backoff.ComputeBackoff(policy, attempt)); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

func (d *Driver) countRequest(model, outcome string) {
	if d.metrics != nil {
		d.metrics.LLMRequests.WithLabelValues(model, outcome).Inc()
	}
}

// completeOnce drives a single streamed completion to its end, assembling
// text-deltas into one text block per run and passing through each
// fully-formed tool_use block the provider emits. The driver never
// exposes a partial response to its caller (spec §4.5 "streaming
// protocol").
func (d *Driver) completeOnce(ctx context.Context, model string, working []models.Message) ([]models.Block, error) {
	ch, err := d.provider.Complete(ctx, llm.CompletionRequest{
		Model:     model,
		System:    d.cfg.System,
		Messages:  working,
		Tools:     d.dispatcher.Catalog(),
		MaxTokens: d.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var blocks []models.Block
	var text strings.Builder
	flushText := func() {
		if text.Len() > 0 {
			blocks = append(blocks, models.TextBlock(text.String()))
			text.Reset()
		}
	}

	for chunk := range ch {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
		}
		if chunk.ToolUse != nil {
			flushText()
			blocks = append(blocks, *chunk.ToolUse)
		}
		if chunk.Done {
			flushText()
		}
	}
	return blocks, nil
}
