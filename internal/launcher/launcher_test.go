package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// requireSh skips tests that rely on /bin/sh child processes.
func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests launch /bin/sh children")
	}
}

// TestRun_SuccessfulChild verifies the batch variant against a child that
// exits zero: result populated, no error, output inherited/captured.
func TestRun_SuccessfulChild(t *testing.T) {
	requireSh(t)

	var out bytes.Buffer
	result, err := Run(context.Background(), Spec{
		Command: "/bin/sh",
		Args:    []string{"-c", "echo indexing done"},
		Stdout:  &out,
	})
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, 0, result.ExitCode)
	assert.NotEmpty(t, result.RunID)
	assert.Contains(t, out.String(), "indexing done")
	assert.False(t, result.StartedAt.IsZero())
	assert.GreaterOrEqual(t, result.Duration.Nanoseconds(), int64(0))
}

// TestRun_NonZeroChildIsDataNotError verifies the central launcher
// contract: a child that runs and fails yields a result with its exit
// status, not a Go error. The index command needs both the completion
// notice and the true status, so neither may shadow the other.
func TestRun_NonZeroChildIsDataNotError(t *testing.T) {
	requireSh(t)

	result, err := Run(context.Background(), Spec{
		Command: "/bin/sh",
		Args:    []string{"-c", "exit 3"},
	})
	require.NoError(t, err)

	assert.False(t, result.Success())
	assert.Equal(t, 3, result.ExitCode)
}

// TestRun_StartFailureIsError verifies that a child that cannot even be
// started (missing binary) is an error with the exit-1 contract.
func TestRun_StartFailureIsError(t *testing.T) {
	_, err := Run(context.Background(), Spec{
		Command: filepath.Join(t.TempDir(), "no-such-binary"),
	})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
	assert.Contains(t, cliErr.Message, "failed to launch")
}

// TestRun_DistinctRunIDs verifies that separate launches are separately
// identifiable in logs and JSON output.
func TestRun_DistinctRunIDs(t *testing.T) {
	requireSh(t)

	first, err := Run(context.Background(), Spec{Command: "/bin/sh", Args: []string{"-c", "true"}})
	require.NoError(t, err)
	second, err := Run(context.Background(), Spec{Command: "/bin/sh", Args: []string{"-c", "true"}})
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
}

// TestRun_WorkingDirAndEnv verifies that the child observes the requested
// working directory and the extra environment variables on top of the
// inherited ones.
func TestRun_WorkingDirAndEnv(t *testing.T) {
	requireSh(t)

	dir := t.TempDir()
	var out bytes.Buffer
	result, err := Run(context.Background(), Spec{
		Command: "/bin/sh",
		Args:    []string{"-c", "pwd; printf '%s\\n' \"$SVM_TEST_MARKER\""},
		Dir:     dir,
		Env:     []string{"SVM_TEST_MARKER=pass-through"},
		Stdout:  &out,
	})
	require.NoError(t, err)
	require.True(t, result.Success())

	// macOS reports /private-prefixed temp dirs; EvalSymlinks normalizes.
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, out.String(), filepath.Base(resolved))
	assert.Contains(t, out.String(), "pass-through")
}

// TestServe_BlocksUntilChildExits verifies that the server variant waits
// out its child and reports the child's status on exit.
func TestServe_BlocksUntilChildExits(t *testing.T) {
	requireSh(t)

	started := time.Now()
	result, err := Serve(context.Background(), Spec{
		Command: "/bin/sh",
		Args:    []string{"-c", "sleep 0.2; exit 0"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.GreaterOrEqual(t, time.Since(started), 150*time.Millisecond,
		"Serve must block until the child exits")
}

// TestServe_ReportsServerFailure verifies that a server that dies with a
// non-zero status is reported through the result, like the batch variant.
func TestServe_ReportsServerFailure(t *testing.T) {
	requireSh(t)

	result, err := Serve(context.Background(), Spec{
		Command: "/bin/sh",
		Args:    []string{"-c", "exit 7"},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, result.ExitCode)
}

// TestServe_ContextCancellationStopsChild verifies that cancelling the
// invocation context terminates a long-running server child instead of
// orphaning it.
func TestServe_ContextCancellationStopsChild(t *testing.T) {
	requireSh(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The child would run for a minute if cancellation did not work;
		// CommandContext kills it, surfacing as a non-zero exit.
		result, err := Serve(ctx, Spec{
			Command: "/bin/sh",
			Args:    []string{"-c", "sleep 60"},
		})
		if err == nil {
			assert.NotEqual(t, 0, result.ExitCode)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

// TestServe_InterruptOverrideReceivesSignal verifies that a Spec with an
// Interrupt override gets the termination signal delivered to the
// override instead of the child process. The container backend depends
// on this: its child is only a docker exec client, and the real server
// must be stopped inside the container.
func TestServe_InterruptOverrideReceivesSignal(t *testing.T) {
	requireSh(t)

	received := make(chan os.Signal, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Serve(ctx, Spec{
			Command: "/bin/sh",
			Args:    []string{"-c", "sleep 60"},
			Interrupt: func(sig os.Signal) {
				select {
				case received <- sig:
				default:
				}
			},
		})
	}()

	// Give Serve time to install its signal handler, then send this
	// process a SIGTERM. Notify intercepts it, so the test survives.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case sig := <-received:
		assert.Equal(t, syscall.SIGTERM, sig)
	case <-time.After(3 * time.Second):
		t.Fatal("interrupt override never received the signal")
	}

	// The override deliberately left the child running; end Serve
	// through context cancellation.
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

// TestBuildCommand_InheritsStdioByDefault verifies the default stream
// wiring: child output goes to this process's stdout/stderr when no
// overrides are given.
func TestBuildCommand_InheritsStdioByDefault(t *testing.T) {
	cmd := buildCommand(context.Background(), Spec{Command: "true"})
	assert.Equal(t, os.Stdout, cmd.Stdout)
	assert.Equal(t, os.Stderr, cmd.Stderr)
	assert.Equal(t, os.Stdin, cmd.Stdin)
}
