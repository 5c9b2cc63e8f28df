package models

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration      = errors.New("configuration error")
	ErrNotFound           = errors.New("not found")
	ErrParse              = errors.New("parse error")
	ErrPlatform           = errors.New("platform not supported")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrProcessExecution   = errors.New("process execution failed")
	ErrBackendNotFound    = errors.New("backend not found")
	ErrReportedFailure    = errors.New("simulation reported failure")
	ErrArchiveInUse       = errors.New("archive in use")
)

// ProcessError reports a run that did not succeed. It matches
// ErrProcessExecution for nonzero exits (ErrBackendNotFound additionally for
// exit code 127) and ErrReportedFailure for failures found in the log.
type ProcessError struct {
	Backend  Backend
	ExitCode int
	Outcome  Outcome
	LogPath  string
	Err      error // set when the process could not be started or waited on
}

func (e *ProcessError) Error() string {
	msg := e.message()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessError) message() string {
	switch e.Outcome {
	case OutcomeBackendNotFound:
		return fmt.Sprintf("%s not found (exit code %d): make sure it is installed, running and added to PATH", e.Backend, e.ExitCode)
	case OutcomeReportedFailure:
		return fmt.Sprintf("SFINCS run failed on %s, check log file for details: %s", e.Backend, e.LogPath)
	default:
		return fmt.Sprintf("SFINCS run failed on %s with return code %d, see %s", e.Backend, e.ExitCode, e.LogPath)
	}
}

func (e *ProcessError) Is(target error) bool {
	switch target {
	case ErrProcessExecution:
		return e.Outcome == OutcomeNonZeroExit || e.Outcome == OutcomeBackendNotFound
	case ErrBackendNotFound:
		return e.Outcome == OutcomeBackendNotFound
	case ErrReportedFailure:
		return e.Outcome == OutcomeReportedFailure
	}
	return false
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
