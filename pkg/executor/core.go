package executor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	config "sfincsrun/configs"
	"sfincsrun/pkg/executor/runner"
	"sfincsrun/pkg/logger"
	"sfincsrun/pkg/metrics"
	"sfincsrun/pkg/models"
	tracing "sfincsrun/pkg/observability"
	"sfincsrun/pkg/scenario"
	"sfincsrun/pkg/storage"
)

const (
	// LogFileName is the run log written next to the scenario file.
	LogFileName = "sfincs_log.txt"
	// ReportedFailureMarker is printed by the simulator when it aborts a
	// simulation but still exits with status 0.
	ReportedFailureMarker = "Simulation stopped"
)

// State is a step of a single run.
type State string

const (
	StateIdle            State = "idle"
	StateBackendSelected State = "backend_selected"
	StateCommandBuilt    State = "command_built"
	StateRunning         State = "running"
	StateSucceeded       State = "succeeded"
	StateFailed          State = "failed"
)

// Deps are the collaborators of an Orchestrator. Nil fields get defaults.
type Deps struct {
	Runner   runner.ProcessRunner
	Prober   Prober
	Host     HostInspector
	LogStore storage.LogStore // optional, publishes run logs
	Console  io.Writer        // verbose echo target, os.Stdout by default
	Logger   *zap.Logger
}

// Orchestrator runs SFINCS scenarios on one of the supported backends.
// Runs against the same model directory must be serialized by the caller:
// they share the run log file.
type Orchestrator struct {
	dockerBin    string
	apptainerBin string
	image        ContainerImage

	runner   runner.ProcessRunner
	prober   Prober
	host     HostInspector
	logStore storage.LogStore
	console  io.Writer
	log      *zap.Logger
}

func NewOrchestrator(cfg *config.Config, deps Deps) *Orchestrator {
	o := &Orchestrator{
		dockerBin:    cfg.DockerBin,
		apptainerBin: cfg.ApptainerBin,
		image: ContainerImage{
			Repository: cfg.ImageRepository,
			Mount:      cfg.ContainerMount,
		},
		runner:   deps.Runner,
		prober:   deps.Prober,
		host:     deps.Host,
		logStore: deps.LogStore,
		console:  deps.Console,
		log:      deps.Logger,
	}
	if o.runner == nil {
		o.runner = runner.NewStreamRunner()
	}
	if o.prober == nil {
		o.prober = CommandProber{DockerBin: cfg.DockerBin, ApptainerBin: cfg.ApptainerBin}
	}
	if o.host == nil {
		o.host = SystemHost{}
	}
	if o.console == nil {
		o.console = os.Stdout
	}
	if o.log == nil {
		o.log = logger.Get()
	}
	if o.image.Mount == "" {
		o.image.Mount = "/data"
	}
	return o
}

// Run executes the scenario at inpPath and blocks until the simulator exits.
// A non-nil error is returned for every outcome other than success; when the
// process ran, the returned result is filled in as well.
func (o *Orchestrator) Run(ctx context.Context, inpPath string, req models.RunRequest) (res models.ProcessResult, err error) {
	res = models.ProcessResult{RunID: uuid.New().String(), Backend: req.Backend}
	log := o.log.With(zap.String("run_id", res.RunID), zap.String("backend", string(req.Backend)))

	ctx, span := tracing.StartSpan(ctx, "sfincs.run",
		attribute.String("run_id", res.RunID),
		attribute.String("backend", string(req.Backend)),
	)
	defer func() {
		tracing.SetError(ctx, err)
		span.End()
		if err != nil && res.Outcome == "" {
			metrics.RunsRejected.WithLabelValues(backendLabel(req.Backend), rejectReason(err)).Inc()
		}
	}()
	o.transition(ctx, log, StateIdle)

	if err := req.Validate(); err != nil {
		return res, err
	}

	paths, err := resolvePaths(inpPath)
	if err != nil {
		return res, err
	}

	backend, err := o.selectBackend(ctx, req, log)
	if err != nil {
		return res, err
	}
	o.transition(ctx, log, StateBackendSelected)

	inv, err := backend.Command(paths)
	if err != nil {
		return res, err
	}
	res.Command = inv.Args
	res.LogPath = filepath.Join(paths.ModelRoot, LogFileName)
	o.transition(ctx, log, StateCommandBuilt)

	log.Info("Running SFINCS model",
		zap.String("model_root", paths.ModelRoot),
		zap.String("base_root", paths.BaseRoot),
		zap.String("command", inv.String()),
	)

	o.transition(ctx, log, StateRunning)
	result, err := o.execute(ctx, inv, res.LogPath, req.Verbose)
	if err != nil {
		return res, err
	}
	res.ExitCode = result.ExitCode
	res.Duration = result.Duration

	logData, err := os.ReadFile(res.LogPath)
	if err != nil {
		return res, fmt.Errorf("failed to read run log %s: %w", res.LogPath, err)
	}
	res.Outcome = Classify(result.ExitCode, logData)

	metrics.RecordRun(string(req.Backend), string(res.Outcome), result.Duration.Seconds())
	metrics.LogLines.WithLabelValues("stdout").Add(float64(result.StdoutLines))
	metrics.LogLines.WithLabelValues("stderr").Add(float64(result.StderrLines))
	tracing.SetAttributes(ctx,
		attribute.Int("exit_code", res.ExitCode),
		attribute.String("outcome", string(res.Outcome)),
	)

	if o.logStore != nil {
		ref, pubErr := o.logStore.Store(ctx, res.RunID, logData)
		if pubErr != nil {
			log.Warn("Failed to publish run log", zap.Error(pubErr))
		} else {
			res.LogURI = ref
		}
	}

	if res.Outcome == models.OutcomeSucceeded {
		o.transition(ctx, log, StateSucceeded)
		log.Info("SFINCS run finished",
			zap.Duration("duration", res.Duration),
			zap.String("log", res.LogPath),
		)
		return res, nil
	}

	o.transition(ctx, log, StateFailed)
	err = &models.ProcessError{
		Backend:  req.Backend,
		ExitCode: res.ExitCode,
		Outcome:  res.Outcome,
		LogPath:  res.LogPath,
		Err:      result.Error,
	}
	log.Warn("SFINCS run failed",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
		zap.String("log", res.LogPath),
	)
	return res, err
}

// Classify maps an exit code and the run log to an outcome.
func Classify(exitCode int, log []byte) models.Outcome {
	switch {
	case exitCode == runner.ExitCommandNotFound:
		return models.OutcomeBackendNotFound
	case exitCode != 0:
		return models.OutcomeNonZeroExit
	case bytes.Contains(log, []byte(ReportedFailureMarker)):
		return models.OutcomeReportedFailure
	default:
		return models.OutcomeSucceeded
	}
}

func resolvePaths(inpPath string) (Paths, error) {
	abs, err := filepath.Abs(inpPath)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve %s: %w", inpPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return Paths{}, fmt.Errorf("%w: sfincs_inp %s", models.ErrNotFound, inpPath)
	}
	cfg, err := scenario.Load(abs)
	if err != nil {
		return Paths{}, err
	}
	p := Paths{ModelRoot: filepath.Dir(abs)}
	if p.BaseRoot, err = cfg.BaseRoot(p.ModelRoot); err != nil {
		return Paths{}, err
	}
	return p, nil
}

func (o *Orchestrator) selectBackend(ctx context.Context, req models.RunRequest, log *zap.Logger) (Backend, error) {
	switch req.Backend {
	case models.BackendExe:
		osName, err := o.host.OS(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrPlatform, err)
		}
		if osName != NativeOS {
			return nil, fmt.Errorf("%w: the %s backend only runs on %s, this host is %s", models.ErrPlatform, req.Backend, NativeOS, osName)
		}
		exe, err := filepath.Abs(req.Executable)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", req.Executable, err)
		}
		if info, err := os.Stat(exe); err != nil || info.IsDir() {
			return nil, fmt.Errorf("%w: sfincs_exe %s", models.ErrNotFound, exe)
		}
		return NativeBackend{Executable: exe}, nil

	case models.BackendDocker, models.BackendApptainer:
		probe := o.prober.Probe(ctx, req.Backend)
		log.Debug("Backend probe",
			zap.Strings("command", probe.Command),
			zap.Bool("available", probe.Available),
			zap.Int("exit_code", probe.ExitCode),
			zap.String("output", probe.Output),
		)
		if !probe.Available {
			metrics.ProbeFailures.WithLabelValues(string(req.Backend)).Inc()
			return nil, fmt.Errorf("%w: %s is not running or not installed (probe exit code %d): %s",
				models.ErrBackendUnavailable, req.Backend, probe.ExitCode, probe.Output)
		}
		image := o.image
		image.Tag = req.ImageTag
		if req.Backend == models.BackendDocker {
			return DockerBackend{Bin: o.dockerBin, Image: image}, nil
		}
		return ApptainerBackend{Bin: o.apptainerBin, Image: image}, nil
	}
	return nil, fmt.Errorf("%w: run method %q not supported", models.ErrConfiguration, req.Backend)
}

// execute spawns the process with a fresh run log.
func (o *Orchestrator) execute(ctx context.Context, inv runner.Invocation, logPath string, verbose bool) (runner.Result, error) {
	f, err := os.Create(logPath)
	if err != nil {
		return runner.Result{}, fmt.Errorf("failed to create run log %s: %w", logPath, err)
	}
	w := bufio.NewWriter(f)

	streams := runner.Streams{Log: w, GateStdout: true}
	if verbose {
		streams.Console = o.console
	}
	result := o.runner.Run(ctx, inv, streams)

	werr := result.WriteError
	if err := w.Flush(); err != nil && werr == nil {
		werr = err
	}
	if err := f.Close(); err != nil && werr == nil {
		werr = err
	}
	if werr != nil {
		return result, fmt.Errorf("failed to write run log %s: %w", logPath, werr)
	}
	return result, nil
}

func (o *Orchestrator) transition(ctx context.Context, log *zap.Logger, s State) {
	log.Debug("Run state", zap.String("state", string(s)))
	tracing.AddEvent(ctx, string(s))
}

func backendLabel(b models.Backend) string {
	if !b.Valid() {
		return "invalid"
	}
	return string(b)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return "configuration"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrParse):
		return "parse"
	case errors.Is(err, models.ErrPlatform):
		return "platform"
	case errors.Is(err, models.ErrBackendUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
