package container

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fenwick-ai/agentrt/internal/rterr"
)

// fakeDocker is an in-memory DockerClient test double: no daemon
// required, full control over failure injection.
type fakeDocker struct {
	mu sync.Mutex

	nextID      int
	containers  map[string]*fakeContainer
	imageExists bool
	startErr    error
	execFn      func(id string, req ExecRequest) (ExecResponse, error)
}

type fakeContainer struct {
	running bool
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{
		containers:  map[string]*fakeContainer{},
		imageExists: true,
	}
}

func (f *fakeDocker) ImageInspect(ctx context.Context, image string) error {
	if !f.imageExists {
		return rterr.New(rterr.ConfigFatal, "no such image")
	}
	return nil
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, name string, cfg Config) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := name
	f.containers[id] = &fakeContainer{}
	return id, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, id string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers[id].running = true
	return nil
}

func (f *fakeDocker) ContainerInspectState(ctx context.Context, id string) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return State{}, rterr.New(rterr.ContainerLost, "no such container")
	}
	status := "created"
	if c.running {
		status = "running"
	}
	return State{Running: c.running, Status: status}, nil
}

func (f *fakeDocker) ContainerStop(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[id]; ok {
		c.running = false
	}
	return nil
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, id)
	return nil
}

func (f *fakeDocker) ContainerExec(ctx context.Context, id string, req ExecRequest) (ExecResponse, error) {
	if f.execFn != nil {
		return f.execFn(id, req)
	}
	return ExecResponse{ExitCode: 0, Stdout: rawOKOutput()}, nil
}

// rawOKOutput fabricates a well-formed marker sequence so Parse
// succeeds without depending on shellstate's internal test helpers.
func rawOKOutput() string {
	return "ok\n" +
		"___AGENTRT_STATE_MARKER___\n/mnt\n" +
		"___AGENTRT_ENV_MARKER___\n" +
		"___AGENTRT_ALIAS_MARKER___\n" +
		"___AGENTRT_END_MARKER___\n"
}

func testConfig() Config {
	return DefaultConfig("agentrt/sandbox:latest", "/host/workspace/abc")
}

func TestAgentCreatesContainerLazilyOnFirstExecute(t *testing.T) {
	docker := newFakeDocker()
	agent := NewAgent("conv-1", testConfig(), docker, time.Hour)

	if agent.Phase() != PhaseNotCreated {
		t.Fatalf("expected NotCreated before first use, got %s", agent.Phase())
	}

	result, err := agent.Execute(context.Background(), "echo hi", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "ok\n" {
		t.Fatalf("unexpected stdout: %q", result.Stdout)
	}
	if agent.Phase() != PhaseRunning {
		t.Fatalf("expected Running after execute, got %s", agent.Phase())
	}
}

func TestAgentWhitespaceCommandShortCircuitsWithoutExec(t *testing.T) {
	docker := newFakeDocker()
	docker.execFn = func(id string, req ExecRequest) (ExecResponse, error) {
		t.Fatal("exec should not be called for a whitespace-only command")
		return ExecResponse{}, nil
	}
	agent := NewAgent("conv-1", testConfig(), docker, time.Hour)

	result, err := agent.Execute(context.Background(), "   ", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 || result.Stdout != "" {
		t.Fatalf("expected empty no-op result, got %+v", result)
	}
}

func TestAgentIdleForReportsEligibleWithZeroDeadline(t *testing.T) {
	docker := newFakeDocker()
	agent := NewAgent("conv-1", testConfig(), docker, 0)
	if _, err := agent.Execute(context.Background(), "echo hi", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	idle, eligible := agent.IdleFor(time.Now().Add(365 * 24 * time.Hour))
	if !eligible {
		t.Fatal("expected agent to report idle duration while Running")
	}
	_ = idle // caller (agent manager) is responsible for checking idleDeadline==0 before reaping
}

func TestAgentExecFailureEntersErrorAndSelfHeals(t *testing.T) {
	docker := newFakeDocker()
	failing := true
	docker.execFn = func(id string, req ExecRequest) (ExecResponse, error) {
		if failing {
			return ExecResponse{}, rterr.New(rterr.ContainerLost, "daemon lost the container")
		}
		return ExecResponse{ExitCode: 0, Stdout: rawOKOutput()}, nil
	}

	agent := NewAgent("conv-1", testConfig(), docker, time.Hour)
	agent.shell.Env["SCRATCH"] = "value"

	_, err := agent.Execute(context.Background(), "echo hi", 0)
	if err == nil {
		t.Fatal("expected exec failure to propagate")
	}
	if !rterr.Is(err, rterr.ContainerLost) {
		t.Fatalf("expected ContainerLost, got %v", err)
	}
	if agent.Phase() != PhaseError {
		t.Fatalf("expected Error phase after exec failure, got %s", agent.Phase())
	}

	failing = false
	if _, err := agent.Execute(context.Background(), "echo hi", 0); err != nil {
		t.Fatalf("expected self-heal to succeed, got %v", err)
	}
	if agent.Phase() != PhaseRunning {
		t.Fatalf("expected Running after self-heal, got %s", agent.Phase())
	}
	if _, exists := agent.shell.Env["SCRATCH"]; exists {
		t.Fatal("expected shell state reset on self-heal")
	}
}

func TestAgentShutdownIsIdempotent(t *testing.T) {
	docker := newFakeDocker()
	agent := NewAgent("conv-1", testConfig(), docker, time.Hour)
	if _, err := agent.Execute(context.Background(), "echo hi", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := agent.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.Phase() != PhaseStopped {
		t.Fatalf("expected Stopped, got %s", agent.Phase())
	}
	if err := agent.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected idempotent shutdown, got %v", err)
	}
}

func TestAgentIdleForAndShutdownNoOpDuringMidFlightExec(t *testing.T) {
	docker := newFakeDocker()
	execStarted := make(chan struct{})
	releaseExec := make(chan struct{})
	docker.execFn = func(id string, req ExecRequest) (ExecResponse, error) {
		close(execStarted)
		<-releaseExec
		return ExecResponse{ExitCode: 0, Stdout: rawOKOutput()}, nil
	}
	agent := NewAgent("conv-1", testConfig(), docker, time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := agent.Execute(context.Background(), "sleep 10", 0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}()

	<-execStarted

	if _, eligible := agent.IdleFor(time.Now().Add(365 * 24 * time.Hour)); eligible {
		t.Fatal("expected agent to be ineligible for idle reaping mid-exec")
	}

	if err := agent.Shutdown(context.Background()); err == nil {
		t.Fatal("expected Shutdown to no-op (return an error) while a command is mid-flight")
	} else if !rterr.Is(err, rterr.Transient) {
		t.Fatalf("expected Transient error, got %v", err)
	}
	if agent.Phase() != PhaseRunning {
		t.Fatalf("expected agent to remain Running, Shutdown must not have torn it down, got %s", agent.Phase())
	}

	close(releaseExec)
	<-done

	if agent.Phase() != PhaseRunning {
		t.Fatalf("expected Running after exec completes, got %s", agent.Phase())
	}
	if err := agent.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected shutdown to succeed once the command has finished: %v", err)
	}
}

func TestAgentCommandTimeoutPreservesState(t *testing.T) {
	docker := newFakeDocker()
	docker.execFn = func(id string, req ExecRequest) (ExecResponse, error) {
		<-time.After(50 * time.Millisecond)
		return ExecResponse{}, context.DeadlineExceeded
	}
	agent := NewAgent("conv-1", testConfig(), docker, time.Hour)

	_, err := agent.Execute(context.Background(), "sleep 10", 5*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !rterr.Is(err, rterr.CommandTimeout) {
		t.Fatalf("expected CommandTimeout, got %v", err)
	}
	if agent.Phase() != PhaseRunning {
		t.Fatalf("expected container/agent to remain Running after a command timeout, got %s", agent.Phase())
	}
}
