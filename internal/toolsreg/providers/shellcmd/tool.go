// Package shellcmd implements the execute_shell_command tool: the
// Stateful Shell Emulator's entry point from the model's perspective
// (spec §4.1, §4.4).
package shellcmd

import (
	"context"
	"strconv"
	"time"

	"github.com/fenwick-ai/agentrt/internal/container"
	"github.com/fenwick-ai/agentrt/internal/rterr"
	"github.com/fenwick-ai/agentrt/internal/toolsreg"
	"github.com/fenwick-ai/agentrt/pkg/models"
)

// Executor runs a shell command for a conversation, satisfied by
// *agentmanager.Manager.
type Executor interface {
	Execute(ctx context.Context, conversationID, command string, timeout time.Duration) (container.ExecResult, error)
}

// Provider implements toolsreg.Provider for execute_shell_command.
type Provider struct {
	Executor       Executor
	DefaultTimeout time.Duration
}

func New(executor Executor, defaultTimeout time.Duration) *Provider {
	return &Provider{Executor: executor, DefaultTimeout: defaultTimeout}
}

func (p *Provider) Tool() models.Tool {
	return models.Tool{
		ID:          "execute_shell_command",
		Name:        "Execute Shell Command",
		Description: "Run a shell command in the conversation's persistent sandboxed shell. Working directory, environment variables, and aliases carry over between calls.",
		Parameters: models.ObjectSchema(map[string]*models.Schema{
			"command":         models.StringParam("the shell command to run"),
			"timeout_seconds": models.IntegerParam("optional timeout in seconds; defaults to the runtime's standard command timeout"),
		}, "command"),
	}
}

func (p *Provider) Invoke(ctx context.Context, conversationID string, args map[string]any) (toolsreg.Result, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return toolsreg.Result{}, rterr.New(rterr.SchemaViolation, "command must be a non-empty string")
	}

	timeout := p.DefaultTimeout
	if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	result, err := p.Executor.Execute(ctx, conversationID, command, timeout)
	if err != nil {
		if rterr.Is(err, rterr.CommandTimeout) {
			return toolsreg.Result{Text: "command timed out", IsError: true}, nil
		}
		return toolsreg.Result{}, err
	}

	return toolsreg.Result{Text: formatResult(result)}, nil
}

func formatResult(result container.ExecResult) string {
	out := result.Stdout
	if result.Stderr != "" {
		out += "\n[stderr]\n" + result.Stderr
	}
	if result.ExitCode != 0 {
		out += "\n[exit code " + strconv.Itoa(result.ExitCode) + "]"
	}
	return out
}
