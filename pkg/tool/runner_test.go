package tool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// writeScript drops an executable shell script standing in for the bulk
// tool binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faketool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRunEchoesDocumentLines(t *testing.T) {
	path := writeScript(t, `while read line; do echo "$line"; done
exit 0
`)
	r := &S5cmdRunner{Path: path, Timeout: 10 * time.Second, Log: zap.NewNop()}

	var mu sync.Mutex
	var lines []string
	err := r.Run(context.Background(), "cp a b\ncp c d\n", func(stream Stream, line string) {
		mu.Lock()
		defer mu.Unlock()
		if stream == Stdout {
			lines = append(lines, line)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cp a b", "cp c d"}, lines)
}

func TestRunReportsExitCodeAndStderr(t *testing.T) {
	path := writeScript(t, `echo "unknown flag" >&2
exit 3
`)
	r := &S5cmdRunner{Path: path, Timeout: 10 * time.Second, Log: zap.NewNop()}

	err := r.Run(context.Background(), "cp a b\n", func(Stream, string) {})
	require.Error(t, err)

	var failure *InvocationFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 3, failure.ExitCode)
	assert.Contains(t, failure.Stderr, "unknown flag")
}

func TestRunMissingBinary(t *testing.T) {
	r := &S5cmdRunner{Path: filepath.Join(t.TempDir(), "does-not-exist"), Log: zap.NewNop()}

	err := r.Run(context.Background(), "cp a b\n", func(Stream, string) {})
	var failure *InvocationFailure
	require.ErrorAs(t, err, &failure)
}

func TestRunHonorsTimeout(t *testing.T) {
	path := writeScript(t, `exec sleep 30
`)
	r := &S5cmdRunner{Path: path, Timeout: 100 * time.Millisecond, Log: zap.NewNop()}

	start := time.Now()
	err := r.Run(context.Background(), "cp a b\n", func(Stream, string) {})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var failure *InvocationFailure
	require.ErrorAs(t, err, &failure)
	assert.True(t, errors.Is(failure.Err, context.DeadlineExceeded))
}

func TestAvailable(t *testing.T) {
	path := writeScript(t, `exit 0
`)
	r := &S5cmdRunner{Path: path, Log: zap.NewNop()}
	assert.True(t, r.Available(context.Background()))

	missing := &S5cmdRunner{Path: filepath.Join(t.TempDir(), "nope"), Log: zap.NewNop()}
	assert.False(t, missing.Available(context.Background()))
}

func TestBuildArgs(t *testing.T) {
	r := &S5cmdRunner{Path: "s5cmd", EndpointURL: "http://localhost:9000", NumWorkers: 8}
	assert.Equal(t, []string{"--endpoint-url", "http://localhost:9000", "--numworkers", "8", "run"}, r.buildArgs())

	bare := &S5cmdRunner{Path: "s5cmd"}
	assert.Equal(t, []string{"run"}, bare.buildArgs())
}
