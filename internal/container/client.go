package container

import (
	"bytes"
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	units "github.com/docker/go-units"
)

// DockerSDKClient implements DockerClient against a real daemon socket
// via github.com/docker/docker/client, the OCI-compatible container
// runtime named in spec §6.
type DockerSDKClient struct {
	cli *client.Client
}

// NewDockerSDKClient connects using the standard DOCKER_HOST/
// DOCKER_API_VERSION environment conventions.
func NewDockerSDKClient() (*DockerSDKClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to container daemon: %w", err)
	}
	return &DockerSDKClient{cli: cli}, nil
}

func (d *DockerSDKClient) ImageInspect(ctx context.Context, image string) error {
	_, err := d.cli.ImageInspect(ctx, image)
	return err
}

func (d *DockerSDKClient) ContainerCreate(ctx context.Context, name string, cfg Config) (string, error) {
	hostConfig := buildHostConfig(cfg)

	containerCfg := &container.Config{
		Image:      cfg.Image,
		Env:        cfg.Env,
		Cmd:        holdOpenCommand,
		User:       "root", // the hold-open entrypoint; exec calls run as cfg.User
		WorkingDir: "/mnt",
		Tty:        false,
		OpenStdin:  true,
	}

	resp, err := d.cli.ContainerCreate(ctx, containerCfg, hostConfig, &network.NetworkingConfig{}, nil, name)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	return resp.ID, nil
}

func buildHostConfig(cfg Config) *container.HostConfig {
	tmpfsSize := fmt.Sprintf("size=%dm", cfg.TmpfsSizeMiB)

	ulimits := make([]*units.Ulimit, 0, len(defaultUlimits))
	for _, u := range defaultUlimits {
		ulimits = append(ulimits, &units.Ulimit{Name: u.Name, Soft: u.Soft, Hard: u.Hard})
	}

	return &container.HostConfig{
		Binds:          []string{cfg.WorkspaceHostPath + ":/mnt:rw"},
		ReadonlyRootfs: true,
		Tmpfs: map[string]string{
			"/tmp":               tmpfsSize,
			"/var/tmp":           tmpfsSize,
			"/home/agent/.cache": tmpfsSize,
		},
		NetworkMode: container.NetworkMode("host"),
		CapDrop:     []string{"ALL"},
		CapAdd:      cappedCapabilities,
		SecurityOpt: []string{"no-new-privileges"},
		Resources: container.Resources{
			Memory:   cfg.MemoryBytes,
			NanoCPUs: cfg.NanoCPUs,
			Ulimits:  ulimits,
		},
	}
}

func (d *DockerSDKClient) ContainerStart(ctx context.Context, id string) error {
	if err := d.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

func (d *DockerSDKClient) ContainerInspectState(ctx context.Context, id string) (State, error) {
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return State{}, fmt.Errorf("inspect container: %w", err)
	}
	if info.State == nil {
		return State{}, nil
	}
	return State{Running: info.State.Running, Status: info.State.Status}, nil
}

func (d *DockerSDKClient) ContainerStop(ctx context.Context, id string) error {
	if err := d.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("stop container: %w", err)
	}
	return nil
}

func (d *DockerSDKClient) ContainerRemove(ctx context.Context, id string) error {
	if err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

func (d *DockerSDKClient) ContainerExec(ctx context.Context, id string, req ExecRequest) (ExecResponse, error) {
	execCfg := container.ExecOptions{
		Cmd:          req.Cmd,
		Env:          req.Env,
		User:         req.User,
		AttachStdout: true,
		AttachStderr: true,
	}
	created, err := d.cli.ContainerExecCreate(ctx, id, execCfg)
	if err != nil {
		return ExecResponse{}, fmt.Errorf("create exec: %w", err)
	}

	attach, err := d.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResponse{}, fmt.Errorf("attach exec: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return ExecResponse{}, fmt.Errorf("read exec output: %w", err)
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResponse{}, fmt.Errorf("inspect exec: %w", err)
	}

	return ExecResponse{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
