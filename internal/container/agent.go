package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fenwick-ai/agentrt/internal/backoff"
	"github.com/fenwick-ai/agentrt/internal/rterr"
	"github.com/fenwick-ai/agentrt/internal/shellstate"
)

// Phase is the Container Agent's lifecycle state (spec §4.2).
type Phase string

const (
	PhaseNotCreated Phase = "not_created"
	PhaseStarting   Phase = "starting"
	PhaseRunning    Phase = "running"
	PhaseIdle       Phase = "idle"
	PhaseStopping   Phase = "stopping"
	PhaseStopped    Phase = "stopped"
	PhaseError      Phase = "error"
)

// ExecResult is what one shell command yields to its caller.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Agent owns one container for one conversation: lazy creation on first
// use, a persistent shell-state illusion over stateless execs, idle
// reaping, and self-healing if the container is lost (spec §4.2).
type Agent struct {
	conversationID string
	cfg            Config
	docker         DockerClient

	// idleDeadline is how long the agent may sit unused before the
	// owner reaps it. Zero disables reaping (spec §4.2, §8).
	idleDeadline time.Duration

	mu           sync.Mutex
	phase        Phase
	containerID  string
	shell        *shellstate.State
	createdAt    time.Time
	lastActivity time.Time
	commandCount int
	startErr     error

	// executing is true for the span of a ContainerExec call, which runs
	// with a.mu released. The idle reaper and Shutdown both consult it
	// so a command in flight is never interrupted (spec §4.3: the reaper
	// "acquires the agent's lock and is a no-op if a command is
	// mid-flight").
	executing bool

	// ready is closed when a concurrent Starting transition completes,
	// letting other callers wait instead of racing a second create.
	ready chan struct{}
}

// NewAgent constructs an agent in NotCreated phase; no container exists
// until the first Execute call (spec §4.2 "lazily created").
func NewAgent(conversationID string, cfg Config, docker DockerClient, idleDeadline time.Duration) *Agent {
	return &Agent{
		conversationID: conversationID,
		cfg:            cfg,
		docker:         docker,
		idleDeadline:   idleDeadline,
		phase:          PhaseNotCreated,
		shell:          shellstate.New(),
	}
}

func (a *Agent) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// IdleFor reports how long the agent has sat unused while Running; it
// returns false if the agent isn't currently eligible for idle reaping,
// including while a command is mid-flight.
func (a *Agent) IdleFor(now time.Time) (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.executing {
		return 0, false
	}
	if a.phase != PhaseRunning && a.phase != PhaseIdle {
		return 0, false
	}
	return now.Sub(a.lastActivity), true
}

// Execute runs one shell command, creating the container on first call
// and self-healing if it was previously lost. It serializes concurrent
// callers on the same agent through a readiness wait rather than
// double-checked locking (spec §4.2 "concurrent calls ... serialize on
// container creation").
func (a *Agent) Execute(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	if err := a.ensureReady(ctx); err != nil {
		return ExecResult{}, err
	}

	a.mu.Lock()
	script, ok := a.shell.Build(command)
	if !ok {
		a.phase = PhaseRunning
		a.lastActivity = time.Now()
		a.mu.Unlock()
		return ExecResult{}, nil
	}
	containerID := a.containerID
	a.phase = PhaseRunning
	a.lastActivity = time.Now()
	a.executing = true
	a.mu.Unlock()

	execCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := a.docker.ContainerExec(execCtx, containerID, ExecRequest{
		Cmd:  shellstate.Encode(script),
		User: a.cfg.User,
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	a.executing = false
	a.commandCount++
	a.lastActivity = time.Now()

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return ExecResult{}, rterr.Wrap(rterr.CommandTimeout, "command exceeded its timeout", err)
		}
		a.phase = PhaseError
		a.startErr = err
		return ExecResult{}, rterr.Wrap(rterr.ContainerLost, "exec failed against container", err)
	}

	result := a.shell.Parse(resp.Stdout, resp.ExitCode)
	result.Stderr = shellstate.CleanStderr(resp.Stderr)
	a.phase = PhaseRunning

	return ExecResult{ExitCode: result.ExitCode, Stdout: result.Stdout, Stderr: result.Stderr}, nil
}

// ensureReady transitions NotCreated/Stopped/Error into Running,
// creating or recreating the container as needed. Callers that arrive
// while another goroutine is Starting wait on the shared ready channel
// instead of racing a second ContainerCreate.
func (a *Agent) ensureReady(ctx context.Context) error {
	a.mu.Lock()
	switch a.phase {
	case PhaseRunning, PhaseIdle:
		a.mu.Unlock()
		return nil
	case PhaseStarting:
		ready := a.ready
		a.mu.Unlock()
		select {
		case <-ready:
			return a.ensureReady(ctx)
		case <-ctx.Done():
			return rterr.Wrap(rterr.Transient, "context cancelled waiting for container start", ctx.Err())
		}
	case PhaseStopping:
		a.mu.Unlock()
		return rterr.New(rterr.ContainerLost, "agent is stopping and cannot accept new commands")
	}

	selfHeal := a.phase == PhaseError || a.phase == PhaseStopped
	a.phase = PhaseStarting
	a.ready = make(chan struct{})
	readyCh := a.ready
	a.mu.Unlock()

	err := a.start(ctx, selfHeal)

	a.mu.Lock()
	if err != nil {
		a.phase = PhaseError
		a.startErr = err
	} else {
		a.phase = PhaseRunning
		a.lastActivity = time.Now()
		if a.createdAt.IsZero() {
			a.createdAt = time.Now()
		}
	}
	close(readyCh)
	a.mu.Unlock()

	return err
}

func (a *Agent) start(ctx context.Context, selfHeal bool) error {
	if selfHeal {
		// The previous container is gone or unusable; the shell's
		// illusion of persistence is gone with it (spec §4.2:
		// "shell state is lost and reset to initial").
		a.mu.Lock()
		a.shell.Reset()
		a.mu.Unlock()
	}

	if err := a.docker.ImageInspect(ctx, a.cfg.Image); err != nil {
		return rterr.Wrap(rterr.ConfigFatal, fmt.Sprintf("image %q not available", a.cfg.Image), err)
	}

	name := fmt.Sprintf("agentrt-%s", a.conversationID)
	id, err := a.docker.ContainerCreate(ctx, name, a.cfg)
	if err != nil {
		return rterr.Wrap(rterr.Transient, "failed to create container", err)
	}

	if err := a.docker.ContainerStart(ctx, id); err != nil {
		return rterr.Wrap(rterr.Transient, "failed to start container", err)
	}

	policy := backoff.AggressivePolicy()
	_, err = backoff.RetryWithBackoff(ctx, policy, 10, func(_ int) (struct{}, error) {
		state, err := a.docker.ContainerInspectState(ctx, id)
		if err != nil {
			return struct{}{}, rterr.Wrap(rterr.Transient, "inspect failed during startup poll", err)
		}
		if !state.Running {
			return struct{}{}, rterr.New(rterr.Transient, "container not yet running: "+state.Status)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return rterr.Wrap(rterr.ContainerLost, "container did not reach running state before timeout", err)
	}

	a.mu.Lock()
	a.containerID = id
	a.mu.Unlock()
	return nil
}

// Shutdown stops and removes the container idempotently. It only
// touches the container; tearing down the conversation's workspace
// directories is left to the caller.
// It acquires the agent's lock and is a no-op (returning a retryable
// error) if a command is currently mid-flight, so the idle reaper can
// never tear down a container a command is actively running against
// (spec §4.3).
func (a *Agent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.phase == PhaseStopped || a.phase == PhaseNotCreated {
		a.mu.Unlock()
		return nil
	}
	if a.executing {
		a.mu.Unlock()
		return rterr.New(rterr.Transient, "command in flight; shutdown deferred")
	}
	a.phase = PhaseStopping
	id := a.containerID
	a.mu.Unlock()

	var stopErr error
	if id != "" {
		if err := a.docker.ContainerStop(ctx, id); err != nil {
			stopErr = err
		}
		if err := a.docker.ContainerRemove(ctx, id); err != nil && stopErr == nil {
			stopErr = err
		}
	}

	a.mu.Lock()
	a.phase = PhaseStopped
	a.containerID = ""
	a.mu.Unlock()

	if stopErr != nil {
		return rterr.Wrap(rterr.Transient, "error during container teardown", stopErr)
	}
	return nil
}

// Stats is a snapshot for admission/eviction and observability.
type Stats struct {
	ConversationID string
	Phase          Phase
	CreatedAt      time.Time
	LastActivity   time.Time
	CommandCount   int
}

func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		ConversationID: a.conversationID,
		Phase:          a.phase,
		CreatedAt:      a.createdAt,
		LastActivity:   a.lastActivity,
		CommandCount:   a.commandCount,
	}
}
