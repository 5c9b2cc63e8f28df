//go:build !windows

package executor_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sfincsrun/pkg/executor"
	"sfincsrun/pkg/models"
)

// fakeEngine writes a shell script standing in for the docker CLI. "stats"
// succeeds, "run" prints a banner and its arguments then exits with runExit.
func fakeEngine(t *testing.T, runExit int, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker")
	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"stats\" ]; then exit 0; fi\n" +
		"echo 'SFINCS banner'\n" +
		"echo '-------------'\n" +
		"echo \"args: $*\"\n" +
		"echo 'warning on stderr' >&2\n" +
		extra +
		"exit " + strconv.Itoa(runExit) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func processOrchestrator(dockerBin string, console *bytes.Buffer) *executor.Orchestrator {
	cfg := testConfig()
	cfg.DockerBin = dockerBin
	return executor.NewOrchestrator(cfg, executor.Deps{Console: console, Logger: zap.NewNop()})
}

func TestProcess_DockerRun(t *testing.T) {
	base, inp := writeScenario(t)
	var console bytes.Buffer
	o := processOrchestrator(fakeEngine(t, 0, ""), &console)

	req := dockerRequest()
	req.Verbose = true
	res, err := o.Run(context.Background(), inp, req)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSucceeded, res.Outcome)

	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SFINCS banner\n")
	assert.Contains(t, string(data), "args: run -v "+base+":/data -w /data/event1 deltares/sfincs-cpu:"+models.DefaultImageTag)
	assert.Contains(t, string(data), "warning on stderr\n")

	assert.NotContains(t, console.String(), "SFINCS banner")
	assert.Contains(t, console.String(), "-------------\n")
	assert.Contains(t, console.String(), "warning on stderr\n")
}

func TestProcess_ReportedFailure(t *testing.T) {
	_, inp := writeScenario(t)
	o := processOrchestrator(fakeEngine(t, 0, "echo 'Simulation stopped'\n"), &bytes.Buffer{})

	res, err := o.Run(context.Background(), inp, dockerRequest())
	assert.ErrorIs(t, err, models.ErrReportedFailure)
	assert.Equal(t, models.OutcomeReportedFailure, res.Outcome)
}

func TestProcess_ExitCodes(t *testing.T) {
	_, inp := writeScenario(t)

	res, err := processOrchestrator(fakeEngine(t, 127, ""), &bytes.Buffer{}).Run(context.Background(), inp, dockerRequest())
	assert.ErrorIs(t, err, models.ErrBackendNotFound)
	assert.Equal(t, 127, res.ExitCode)

	res, err = processOrchestrator(fakeEngine(t, 4, ""), &bytes.Buffer{}).Run(context.Background(), inp, dockerRequest())
	assert.ErrorIs(t, err, models.ErrProcessExecution)
	assert.Equal(t, models.OutcomeNonZeroExit, res.Outcome)
	assert.Equal(t, 4, res.ExitCode)
}

func TestProcess_ProbeFailsForMissingEngine(t *testing.T) {
	_, inp := writeScenario(t)
	o := processOrchestrator(filepath.Join(t.TempDir(), "docker"), &bytes.Buffer{})

	_, err := o.Run(context.Background(), inp, dockerRequest())
	assert.ErrorIs(t, err, models.ErrBackendUnavailable)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(inp), executor.LogFileName))
}

func TestCommandProber(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "apptainer")
	p := executor.CommandProber{DockerBin: fakeEngine(t, 0, ""), ApptainerBin: missing}

	res := p.Probe(context.Background(), models.BackendDocker)
	assert.True(t, res.Available)
	assert.Equal(t, []string{p.DockerBin, "stats", "--no-stream"}, res.Command)

	res = p.Probe(context.Background(), models.BackendApptainer)
	assert.False(t, res.Available)
	assert.Equal(t, -1, res.ExitCode)
	assert.NotEmpty(t, res.Output)
	assert.Equal(t, []string{missing, "version"}, res.Command)
}
