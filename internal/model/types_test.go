package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseBackend verifies string-to-Backend conversion, including
// case normalization and rejection of unknown values.
func TestParseBackend(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Backend
		wantErr bool
	}{
		{
			name:  "venv",
			input: "venv",
			want:  BackendVenv,
		},
		{
			name:  "container",
			input: "container",
			want:  BackendContainer,
		},
		{
			name:  "uppercase is normalized",
			input: "VENV",
			want:  BackendVenv,
		},
		{
			name:    "empty string is invalid",
			input:   "",
			wantErr: true,
		},
		{
			name:    "unknown backend is invalid",
			input:   "chroot",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBackend(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}
}

// TestLaunchVariant_IsValid verifies that only the two defined variants
// are accepted.
func TestLaunchVariant_IsValid(t *testing.T) {
	assert.True(t, VariantBatch.IsValid())
	assert.True(t, VariantServer.IsValid())
	assert.False(t, LaunchVariant("daemon").IsValid())
	assert.False(t, LaunchVariant("").IsValid())
}

// TestProcessResult_Success verifies the exit-status predicate that the
// index command uses to decide its own exit code.
func TestProcessResult_Success(t *testing.T) {
	ok := &ProcessResult{ExitCode: 0}
	assert.True(t, ok.Success())

	failed := &ProcessResult{ExitCode: 3}
	assert.False(t, failed.Success())
}

// TestProcessResult_CommandLine verifies command-line rendering with and
// without arguments.
func TestProcessResult_CommandLine(t *testing.T) {
	tests := []struct {
		name   string
		result ProcessResult
		want   string
	}{
		{
			name:   "command only",
			result: ProcessResult{Command: "python"},
			want:   "python",
		},
		{
			name:   "command with args",
			result: ProcessResult{Command: ".venv/bin/python", Args: []string{"indexer.py"}},
			want:   ".venv/bin/python indexer.py",
		},
		{
			name: "server style command line",
			result: ProcessResult{
				Command: ".venv/bin/streamlit",
				Args:    []string{"run", "streamlit_app.py", "--server.port", "8501"},
			},
			want: ".venv/bin/streamlit run streamlit_app.py --server.port 8501",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.CommandLine())
		})
	}
}

// TestProcessResult_MarshalJSON verifies the JSON form consumed under
// --json: the duration is a self-describing string, not nanoseconds.
func TestProcessResult_MarshalJSON(t *testing.T) {
	result := &ProcessResult{
		RunID:    "run-1",
		Command:  "python",
		Args:     []string{"indexer.py"},
		ExitCode: 0,
		Duration: 2340 * time.Millisecond,
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2.34s", decoded["duration"])
	assert.Equal(t, "run-1", decoded["runId"])
}

// TestCLIError_Error verifies message formatting with and without an
// underlying error.
func TestCLIError_Error(t *testing.T) {
	plain := NewCLIError(ExitPortConflict, "port 8501 is already in use")
	assert.Equal(t, "port 8501 is already in use", plain.Error())

	underlying := fmt.Errorf("exec: %q: executable file not found in $PATH", "python3")
	wrapped := WrapCLIError(ExitGeneralError, "failed to create virtual environment", underlying)
	assert.Contains(t, wrapped.Error(), "failed to create virtual environment")
	assert.Contains(t, wrapped.Error(), "not found in $PATH")
}

// TestCLIError_Unwrap verifies that errors.Is can see through a CLIError
// to the underlying cause, which the CLI layer relies on for diagnostics.
func TestCLIError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := WrapCLIError(ExitDockerNotRunning, "Docker daemon is not responding", cause)

	assert.True(t, errors.Is(wrapped, cause))

	var cliErr *CLIError
	require.True(t, errors.As(error(wrapped), &cliErr))
	assert.Equal(t, ExitDockerNotRunning, cliErr.Code)
}

// TestEnvInfo_StatusValues documents the status vocabulary the status
// command reports and keeps the string forms stable for JSON consumers.
func TestEnvInfo_StatusValues(t *testing.T) {
	assert.Equal(t, "missing", EnvMissing.String())
	assert.Equal(t, "ready", EnvReady.String())
	assert.Equal(t, "stale", EnvStale.String())

	info := EnvInfo{
		Backend:   BackendVenv,
		Root:      ".venv",
		Status:    EnvReady,
		CreatedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, BackendVenv, info.Backend)
	assert.False(t, info.CreatedAt.IsZero())
}
