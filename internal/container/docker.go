package container

import "context"

// DockerClient is the subset of the OCI-compatible container daemon API
// (spec §6 "Container runtime") the Container Agent needs: image lookup,
// container create/start/inspect/exec/stop/remove over a local socket.
// Abstracted as an interface so tests can substitute a fake instead of
// requiring a live daemon; DockerSDKClient (client.go) is the real
// implementation backed by github.com/docker/docker/client.
type DockerClient interface {
	ImageInspect(ctx context.Context, image string) error

	ContainerCreate(ctx context.Context, name string, cfg Config) (id string, err error)
	ContainerStart(ctx context.Context, id string) error
	ContainerInspectState(ctx context.Context, id string) (State, error)
	ContainerStop(ctx context.Context, id string) error
	ContainerRemove(ctx context.Context, id string) error

	ContainerExec(ctx context.Context, id string, req ExecRequest) (ExecResponse, error)
}

// State is the daemon-reported container state the Container Agent
// polls during startup (spec §4.2 "polling its reported state until
// Running or timeout").
type State struct {
	Running bool
	Status  string // created|running|paused|restarting|removing|exited|dead
}

// ExecRequest is one shell invocation inside the container.
type ExecRequest struct {
	Cmd []string
	Env []string
	// User the exec runs as (the unprivileged "agent" user, spec §4.2).
	User string
}

// ExecResponse carries the demultiplexed result of one exec.
type ExecResponse struct {
	ExitCode int
	Stdout   string
	Stderr   string
}
