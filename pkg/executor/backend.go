package executor

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"sfincsrun/pkg/executor/runner"
	"sfincsrun/pkg/models"
)

// Paths are the two directories every backend needs.
type Paths struct {
	ModelRoot string // absolute directory of the scenario file
	BaseRoot  string // ancestor of ModelRoot holding shared static files
}

// Backend builds the command line for one way of running the simulator.
// Implementations: NativeBackend, DockerBackend, ApptainerBackend.
type Backend interface {
	Kind() models.Backend
	Command(p Paths) (runner.Invocation, error)
}

// NativeBackend runs a local simulator executable.
type NativeBackend struct {
	Executable string // absolute path
}

func (b NativeBackend) Kind() models.Backend { return models.BackendExe }

func (b NativeBackend) Command(p Paths) (runner.Invocation, error) {
	return runner.Invocation{Args: []string{b.Executable}, Dir: p.ModelRoot}, nil
}

// ContainerImage names the simulator image.
type ContainerImage struct {
	Repository string // e.g. deltares/sfincs-cpu
	Tag        string
	Mount      string // in-container path BaseRoot is bound to
}

func (i ContainerImage) ref() string {
	return i.Repository + ":" + i.Tag
}

// workDir is the in-container directory matching ModelRoot.
func (i ContainerImage) workDir(p Paths) (string, error) {
	rel, err := filepath.Rel(p.BaseRoot, p.ModelRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not below %s: %v", models.ErrConfiguration, p.ModelRoot, p.BaseRoot, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s is not below %s", models.ErrConfiguration, p.ModelRoot, p.BaseRoot)
	}
	return path.Join(i.Mount, rel), nil
}

// DockerBackend runs the simulator image with Docker.
type DockerBackend struct {
	Bin   string
	Image ContainerImage
}

func (b DockerBackend) Kind() models.Backend { return models.BackendDocker }

func (b DockerBackend) Command(p Paths) (runner.Invocation, error) {
	wd, err := b.Image.workDir(p)
	if err != nil {
		return runner.Invocation{}, err
	}
	return runner.Invocation{
		Args: []string{
			b.Bin, "run",
			"-v", p.BaseRoot + ":" + b.Image.Mount,
			"-w", wd,
			b.Image.ref(),
		},
		Dir: p.ModelRoot,
	}, nil
}

// ApptainerBackend runs the simulator image with Apptainer, pulling it from
// the Docker registry.
type ApptainerBackend struct {
	Bin   string
	Image ContainerImage
}

func (b ApptainerBackend) Kind() models.Backend { return models.BackendApptainer }

func (b ApptainerBackend) Command(p Paths) (runner.Invocation, error) {
	wd, err := b.Image.workDir(p)
	if err != nil {
		return runner.Invocation{}, err
	}
	return runner.Invocation{
		Args: []string{
			b.Bin, "run",
			"-B", p.BaseRoot + ":" + b.Image.Mount,
			"--pwd", wd,
			"docker://" + b.Image.ref(),
		},
		Dir: p.ModelRoot,
	}, nil
}
