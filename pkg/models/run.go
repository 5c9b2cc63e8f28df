package models

import (
	"fmt"
	"strings"
	"time"
)

// Backend selects how the simulator is executed.
type Backend string

const (
	BackendExe       Backend = "exe"
	BackendDocker    Backend = "docker"
	BackendApptainer Backend = "apptainer"
)

// Backends lists every supported backend in display order.
var Backends = []Backend{BackendExe, BackendDocker, BackendApptainer}

// IsContainer reports whether the backend runs the simulator from an image.
func (b Backend) IsContainer() bool {
	return b == BackendDocker || b == BackendApptainer
}

// Valid reports whether b is one of the supported backends.
func (b Backend) Valid() bool {
	for _, known := range Backends {
		if b == known {
			return true
		}
	}
	return false
}

// ParseBackend converts a user supplied selector into a Backend.
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	if b.Valid() {
		return b, nil
	}
	return "", fmt.Errorf("%w: run method %q not supported", ErrConfiguration, s)
}

// DefaultImageTag is the simulator release used when no tag is given.
const DefaultImageTag = "sfincs-v2.1.1-Dollerup-Release"

// RunRequest describes a single orchestration call. It is never persisted.
type RunRequest struct {
	Backend    Backend
	Executable string // exe backend only
	ImageTag   string // container backends only
	Verbose    bool
}

// Validate checks the selector and the fields required by it. It never
// touches the filesystem.
func (r RunRequest) Validate() error {
	if !r.Backend.Valid() {
		return fmt.Errorf("%w: run method %q not supported", ErrConfiguration, r.Backend)
	}
	switch r.Backend {
	case BackendExe:
		if strings.TrimSpace(r.Executable) == "" {
			return fmt.Errorf("%w: backend %s requires an executable path", ErrConfiguration, r.Backend)
		}
	case BackendDocker, BackendApptainer:
		if strings.TrimSpace(r.ImageTag) == "" {
			return fmt.Errorf("%w: backend %s requires an image tag", ErrConfiguration, r.Backend)
		}
	}
	return nil
}

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeSucceeded       Outcome = "SUCCEEDED"
	OutcomeBackendNotFound Outcome = "BACKEND_NOT_FOUND"
	OutcomeNonZeroExit     Outcome = "NON_ZERO_EXIT"
	OutcomeReportedFailure Outcome = "REPORTED_FAILURE"
)

// ProcessResult is the classified result of one simulator run.
type ProcessResult struct {
	RunID    string
	Backend  Backend
	Command  []string
	ExitCode int
	Outcome  Outcome
	LogPath  string
	LogURI   string // set when the log was published to a store
	Duration time.Duration
}

// Succeeded reports whether the run finished without any failure.
func (r ProcessResult) Succeeded() bool {
	return r.Outcome == OutcomeSucceeded
}
