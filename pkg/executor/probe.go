package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"sfincsrun/pkg/models"
)

// ProbeResult is the answer of an availability probe.
type ProbeResult struct {
	Backend   models.Backend
	Command   []string
	Available bool
	ExitCode  int
	Output    string
}

// Prober checks whether a container engine can run images. Probes are
// read-only and run once per orchestration call.
type Prober interface {
	Probe(ctx context.Context, backend models.Backend) ProbeResult
}

// CommandProber asks the engine CLI itself: "docker stats --no-stream" fails
// when the daemon is down, "apptainer version" fails when it is not installed.
type CommandProber struct {
	DockerBin    string
	ApptainerBin string
}

func (p CommandProber) Probe(ctx context.Context, backend models.Backend) ProbeResult {
	var args []string
	switch backend {
	case models.BackendDocker:
		args = []string{p.DockerBin, "stats", "--no-stream"}
	case models.BackendApptainer:
		args = []string{p.ApptainerBin, "version"}
	default:
		return ProbeResult{Backend: backend, Available: true}
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	res := ProbeResult{
		Backend:   backend,
		Command:   args,
		Available: err == nil,
		Output:    strings.TrimSpace(string(out)),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			if res.Output == "" {
				res.Output = err.Error()
			}
		}
	}
	return res
}

// HostInspector reports the operating system the simulator would run on.
type HostInspector interface {
	OS(ctx context.Context) (string, error)
}

// SystemHost reads host information through gopsutil.
type SystemHost struct{}

func (SystemHost) OS(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read host info: %w", err)
	}
	return info.OS, nil
}

// NativeOS is the only platform the legacy simulator executable is built for.
const NativeOS = "windows"
