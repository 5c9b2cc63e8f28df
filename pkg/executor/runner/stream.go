package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strings"
	"sync"
	"time"
)

type StreamRunner struct{}

func NewStreamRunner() *StreamRunner {
	return &StreamRunner{}
}

func (s *StreamRunner) Run(ctx context.Context, inv Invocation, streams Streams) Result {
	start := time.Now()
	if len(inv.Args) == 0 {
		return Result{ExitCode: -1, Error: errors.New("empty command")}
	}

	cmd := exec.CommandContext(ctx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1, Error: fmt.Errorf("failed to create stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1, Error: fmt.Errorf("failed to create stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		code := -1
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			code = ExitCommandNotFound
		}
		return Result{ExitCode: code, Duration: time.Since(start), Error: err}
	}

	sink := &lineSink{log: streams.Log, console: streams.Console}
	gate := &BannerGate{Open: !streams.GateStdout}

	// Both pipes are read at the same time: a child blocked on a full stderr
	// pipe never gets to finish stdout.
	var wg sync.WaitGroup
	var outLines, errLines int
	wg.Add(2)
	go func() {
		defer wg.Done()
		outLines = drain(stdout, func(line string) {
			sink.write(line, gate.Allow(line))
		})
	}()
	go func() {
		defer wg.Done()
		errLines = drain(stderr, func(line string) {
			sink.write(line, true)
		})
	}()
	wg.Wait()

	err = cmd.Wait()
	res := Result{
		StdoutLines: outLines,
		StderrLines: errLines,
		Duration:    time.Since(start),
		WriteError:  sink.err,
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// -1 when the process was killed by a signal
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Error = err
		}
	}
	return res
}

// drain reads r line by line until EOF and returns the number of lines.
func drain(r io.Reader, fn func(line string)) int {
	br := bufio.NewReader(r)
	n := 0
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			fn(line)
			n++
		}
		if err != nil {
			return n
		}
	}
}

// lineSink serializes lines from both readers into the log and the console.
type lineSink struct {
	mu      sync.Mutex
	log     io.Writer
	console io.Writer
	err     error
}

func (s *lineSink) write(line string, echo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log != nil {
		if _, err := io.WriteString(s.log, line); err != nil && s.err == nil {
			s.err = err
		}
	}
	if echo && s.console != nil {
		_, _ = io.WriteString(s.console, strings.TrimRight(line, "\r\n")+"\n")
	}
}

// BannerGate suppresses lines until a line made only of dashes is seen. The
// simulator prints its start-up banner before that separator.
type BannerGate struct {
	Open bool
}

// Allow reports whether line may be echoed. The marker line itself is echoed.
func (g *BannerGate) Allow(line string) bool {
	if !g.Open && IsBannerMarker(line) {
		g.Open = true
	}
	return g.Open
}

// IsBannerMarker reports whether line consists solely of '-' characters,
// ignoring surrounding whitespace.
func IsBannerMarker(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && strings.Trim(t, "-") == ""
}
