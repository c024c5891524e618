package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenwick-ai/agentrt/internal/agentmanager"
	"github.com/fenwick-ai/agentrt/internal/config"
	"github.com/fenwick-ai/agentrt/internal/container"
	"github.com/fenwick-ai/agentrt/internal/driver"
	"github.com/fenwick-ai/agentrt/internal/llm"
	"github.com/fenwick-ai/agentrt/internal/observability"
	"github.com/fenwick-ai/agentrt/internal/toolsreg"
	"github.com/fenwick-ai/agentrt/internal/toolsreg/providers/listfiles"
	"github.com/fenwick-ai/agentrt/internal/toolsreg/providers/shellcmd"
	"github.com/fenwick-ai/agentrt/pkg/models"
)

const (
	defaultCommandTimeout = 30 * time.Second
	systemPrompt          = "You are an agent with a persistent sandboxed shell and filesystem access under /mnt. Use the available tools to accomplish the user's request."
)

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the Conversation Driver loop, reading {conversation_id, prompt} lines from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd.Context())
		},
	}
}

func runLoop(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
	metrics := observability.NewMetrics()

	docker, err := container.NewDockerSDKClient()
	if err != nil {
		return fmt.Errorf("connect to container daemon: %w", err)
	}

	manager := agentmanager.New(agentmanager.Options{
		MaxAgents:      cfg.MaxAgents,
		IdleDeadline:   cfg.IdleDeadline,
		RuntimeRoot:    cfg.RuntimeDir,
		ContainerImage: cfg.ContainerImage,
		Docker:         docker,
		Logger:         logger,
		Metrics:        metrics,
	})
	defer manager.Close()

	dispatcher := toolsreg.NewDispatcher(observability.NewLoggingSink(logger), metrics)
	if err := dispatcher.Register(listfiles.New(manager)); err != nil {
		return fmt.Errorf("register list_files: %w", err)
	}
	if err := dispatcher.Register(shellcmd.New(manager, defaultCommandTimeout)); err != nil {
		return fmt.Errorf("register execute_shell_command: %w", err)
	}

	anthropicProvider, err := llm.NewAnthropicProvider(llm.AnthropicConfig{APIKey: cfg.AnthropicAPIKey, BaseURL: cfg.AnthropicBaseURL})
	if err != nil {
		return fmt.Errorf("build LLM provider: %w", err)
	}
	provider := llm.NewRateLimitedProvider(anthropicProvider, cfg.LLMRateLimitRPS)

	conv := driver.New(provider, dispatcher, driver.Config{
		PrimaryModel:       cfg.PrimaryModel,
		BackupModel:        cfg.BackupModel,
		InitialBackoffMs:   float64(cfg.InitialBackoff.Milliseconds()),
		MaxBackoffMs:       float64(cfg.MaxBackoff.Milliseconds()),
		BackoffMultiplier:  cfg.BackoffMultiplier,
		FallbackRetryCount: cfg.FallbackRetryCount,
		System:             systemPrompt,
		MaxTokens:          4096,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "agentrt runtime starting", "runtime_dir", cfg.RuntimeDir, "max_agents", cfg.MaxAgents)

	histories := map[string][]models.Message{}
	lines := make(chan string)
	go readStdinLines(lines)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			conversationID, prompt, ok := strings.Cut(strings.TrimSpace(line), " ")
			if !ok || conversationID == "" {
				continue
			}
			text, history, err := conv.RunTurn(ctx, conversationID, histories[conversationID], prompt)
			if err != nil {
				logger.Error(ctx, "conversation turn failed", "conversation_id", conversationID, "error", err.Error())
				fmt.Printf("[%s] error: %v\n", conversationID, err)
				continue
			}
			histories[conversationID] = history
			fmt.Printf("[%s] %s\n", conversationID, text)
		}
	}
}

func readStdinLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}
