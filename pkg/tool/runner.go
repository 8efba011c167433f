package tool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stream identifies which pipe a line arrived on.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// Runner invokes the bulk-transfer process with one command document and
// streams its output line by line. A non-nil error means the invocation
// itself failed (process would not start, tool-level exit); per-object
// failures arrive as lines, not as errors.
type Runner interface {
	Run(ctx context.Context, document string, onLine func(stream Stream, line string)) error
	Available(ctx context.Context) bool
}

// InvocationFailure carries the process-level failure detail for the
// executor's escalation decision.
type InvocationFailure struct {
	Err      error
	ExitCode int
	Stderr   string
}

func (f *InvocationFailure) Error() string {
	return fmt.Sprintf("tool exited with code %d: %v", f.ExitCode, f.Err)
}

func (f *InvocationFailure) Unwrap() error { return f.Err }

// S5cmdRunner shells out to s5cmd run, feeding the command document on
// stdin. One invocation per document; the timeout applies per invocation
// so a single hung document does not block the remainder of the batch.
type S5cmdRunner struct {
	Path        string
	EndpointURL string
	NumWorkers  int
	Timeout     time.Duration
	Log         *zap.Logger
}

// NewS5cmdRunner builds a runner with default settings.
func NewS5cmdRunner(path string, log *zap.Logger) *S5cmdRunner {
	if path == "" {
		path = "s5cmd"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &S5cmdRunner{
		Path:    path,
		Timeout: 15 * time.Minute,
		Log:     log,
	}
}

// Available reports whether the tool binary can be resolved and answers a
// version probe.
func (r *S5cmdRunner) Available(ctx context.Context) bool {
	path, err := exec.LookPath(r.Path)
	if err != nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return exec.CommandContext(probeCtx, path, "version").Run() == nil
}

// Run implements Runner.
func (r *S5cmdRunner) Run(ctx context.Context, document string, onLine func(Stream, string)) error {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := r.buildArgs()
	cmd := exec.CommandContext(runCtx, r.Path, args...)
	cmd.Stdin = strings.NewReader(document)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &InvocationFailure{Err: err, ExitCode: -1}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &InvocationFailure{Err: err, ExitCode: -1}
	}

	if err := cmd.Start(); err != nil {
		return &InvocationFailure{Err: err, ExitCode: -1}
	}
	r.Log.Debug("bulk tool started", zap.String("path", r.Path), zap.Strings("args", args))

	var wg sync.WaitGroup
	var stderrTail []string
	var tailMu sync.Mutex

	scan := func(stream Stream, s *bufio.Scanner) {
		defer wg.Done()
		s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for s.Scan() {
			line := s.Text()
			if stream == Stderr {
				tailMu.Lock()
				stderrTail = append(stderrTail, line)
				if len(stderrTail) > 20 {
					stderrTail = stderrTail[1:]
				}
				tailMu.Unlock()
			}
			onLine(stream, line)
		}
	}

	wg.Add(2)
	go scan(Stdout, bufio.NewScanner(stdout))
	go scan(Stderr, bufio.NewScanner(stderr))
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		tailMu.Lock()
		tail := strings.Join(stderrTail, "\n")
		tailMu.Unlock()
		if runCtx.Err() != nil {
			err = runCtx.Err()
		}
		return &InvocationFailure{Err: err, ExitCode: exitCode, Stderr: tail}
	}
	return nil
}

func (r *S5cmdRunner) buildArgs() []string {
	args := []string{}
	if r.EndpointURL != "" {
		args = append(args, "--endpoint-url", r.EndpointURL)
	}
	if r.NumWorkers > 0 {
		args = append(args, "--numworkers", fmt.Sprintf("%d", r.NumWorkers))
	}
	return append(args, "run")
}
