package runner

import (
	"context"
	"io"
	"strings"
	"time"
)

// ExitCommandNotFound is the shell convention for "command not found". A
// program that cannot be started because it does not exist reports this code.
const ExitCommandNotFound = 127

// Invocation is a fully built command line and the directory it runs in.
type Invocation struct {
	Args []string // Args[0] is the program
	Dir  string
}

func (i Invocation) String() string {
	return strings.Join(i.Args, " ")
}

// Streams tells the runner where output lines go.
type Streams struct {
	// Log receives every line of both streams, newline terminated.
	Log io.Writer
	// Console receives echoed lines. Nil disables echoing.
	Console io.Writer
	// GateStdout holds back stdout echo until the banner marker is seen.
	GateStdout bool
}

// Result captures the outcome of a process execution.
type Result struct {
	ExitCode    int
	StdoutLines int
	StderrLines int
	Duration    time.Duration
	Error       error // start/wait error, nil for a clean exit
	WriteError  error // first failure writing to Streams.Log
}

// ProcessRunner executes a single invocation to completion.
type ProcessRunner interface {
	// Run blocks until the process exits and both output streams are drained.
	Run(ctx context.Context, inv Invocation, streams Streams) Result
}
