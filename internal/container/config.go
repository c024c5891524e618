package container

import "time"

// Config is the container configuration the Container Agent requests
// for one conversation (spec §4.2 "Container configuration"):
// read-only rootfs, sized tmpfs scratch space, the host workspace bound
// at /mnt, host networking (single knob for stronger isolation), a
// trimmed capability set, no-new-privileges, file descriptor/process
// ulimits, a hold-open command, and resource limits.
type Config struct {
	Image string

	// WorkspaceHostPath is bound read-write at /mnt inside the
	// container.
	WorkspaceHostPath string

	MemoryBytes  int64
	NanoCPUs     int64 // cpu quota, in billionths of a CPU
	TmpfsSizeMiB int64

	// User the exec path runs commands as; the container's entrypoint
	// itself (the hold-open command) may still start as root to permit
	// binding low-privilege sockets before capabilities are dropped.
	User string

	Env []string
}

// DefaultConfig returns the baseline resource envelope: 512MiB
// memory, one CPU, 64MiB tmpfs.
func DefaultConfig(image, workspaceHostPath string) Config {
	return Config{
		Image:             image,
		WorkspaceHostPath: workspaceHostPath,
		MemoryBytes:       512 * 1024 * 1024,
		NanoCPUs:          1_000_000_000,
		TmpfsSizeMiB:      64,
		User:              "agent",
	}
}

// holdOpenCommand keeps the container alive between exec calls (spec
// §4.2: "a hold-open command (e.g., sleep-forever)").
var holdOpenCommand = []string{"tail", "-f", "/dev/null"}

// cappedCapabilities is the minimal set needed for ordinary user
// operations and binding low-privilege sockets, with everything else
// dropped (spec §4.2).
var cappedCapabilities = []string{"CHOWN", "SETUID", "SETGID", "NET_BIND_SERVICE", "DAC_OVERRIDE"}

// ulimits bounds open file descriptors and process count for the
// unprivileged exec user.
type ulimit struct {
	Name string
	Soft int64
	Hard int64
}

var defaultUlimits = []ulimit{
	{Name: "nofile", Soft: 4096, Hard: 8192},
	{Name: "nproc", Soft: 512, Hard: 1024},
}

const defaultStartupTimeout = 30 * time.Second
