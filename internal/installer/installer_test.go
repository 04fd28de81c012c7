package installer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisidabay/streamlit-video-manager/internal/manifest"
	"github.com/nisidabay/streamlit-video-manager/internal/model"
	"github.com/nisidabay/streamlit-video-manager/internal/pyenv"
)

// newStubEnv builds a fake venv whose bin/python is a shell script, so
// install behavior can be tested without a Python installation. The
// script body decides whether the fake pip succeeds or fails.
func newStubEnv(t *testing.T, script string) *pyenv.Env {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub interpreters use /bin/sh")
	}

	root := filepath.Join(t.TempDir(), ".venv")
	binDir := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyvenv.cfg"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "python"), []byte("#!/bin/sh\n"+script), 0o755))

	return &pyenv.Env{Root: root}
}

// loadTestManifest writes a requirements file and loads its snapshot.
func loadTestManifest(t *testing.T, contents string) *manifest.Manifest {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requirements.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	m, err := manifest.Load(path)
	require.NoError(t, err)
	return m
}

// TestInstall_Success verifies the happy path: pip invoked as
// "python -m pip install -r <manifest>", a report returned, and the
// installed digest recorded in the environment state.
func TestInstall_Success(t *testing.T) {
	// The stub records its arguments so the invocation can be asserted.
	env := newStubEnv(t, `echo "$@" > "$(dirname "$0")/argv"; exit 0`)
	m := loadTestManifest(t, "streamlit\nsqlalchemy\n")

	report, err := Install(context.Background(), env, m, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Requirements)
	assert.Equal(t, m.Digest, report.ManifestDigest)
	assert.GreaterOrEqual(t, report.Duration.Nanoseconds(), int64(0))

	argv, readErr := os.ReadFile(filepath.Join(env.BinDir(), "argv"))
	require.NoError(t, readErr)
	assert.Equal(t, "-m pip install -r "+m.Path, string(bytes.TrimSpace(argv)))

	// The environment state now remembers what was installed.
	state, stateErr := pyenv.LoadState(env)
	require.NoError(t, stateErr)
	require.NotNil(t, state)
	assert.Equal(t, m.Digest, state.ManifestDigest)
	assert.False(t, state.InstalledAt.IsZero())
}

// TestInstall_EmptyManifestSucceeds verifies the trivial-success scenario:
// an empty requirements file installs nothing and reports zero
// requirements, in both launch paths' shared code path.
func TestInstall_EmptyManifestSucceeds(t *testing.T) {
	env := newStubEnv(t, "exit 0")
	m := loadTestManifest(t, "# nothing yet\n")

	report, err := Install(context.Background(), env, m, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Requirements)
	assert.True(t, m.IsEmpty())
}

// TestInstall_FailureCarriesExitOneAndTail verifies that a pip failure
// surfaces as exit code 1 with the tail of pip's output attached — the
// resolution error, not the download noise.
func TestInstall_FailureCarriesExitOneAndTail(t *testing.T) {
	env := newStubEnv(t, `
echo "Collecting no-such-package-xyz"
echo "ERROR: No matching distribution found for no-such-package-xyz" >&2
exit 1`)
	m := loadTestManifest(t, "no-such-package-xyz\n")

	_, err := Install(context.Background(), env, m, Options{})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
	assert.Contains(t, cliErr.Message, "No matching distribution found")

	// A failed install must not record a digest.
	state, stateErr := pyenv.LoadState(env)
	require.NoError(t, stateErr)
	assert.Nil(t, state)
}

// TestInstall_StreamsOutputWhenRequested verifies that pip output goes to
// the provided writer (the verbose path) instead of being captured.
func TestInstall_StreamsOutputWhenRequested(t *testing.T) {
	env := newStubEnv(t, `echo "Successfully installed streamlit-1.36.0"; exit 0`)
	m := loadTestManifest(t, "streamlit\n")

	var out bytes.Buffer
	_, err := Install(context.Background(), env, m, Options{Output: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Successfully installed")
}

// TestOutputTail verifies tail extraction used for failure diagnostics.
func TestOutputTail(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "empty output",
			output: "",
			want:   "",
		},
		{
			name:   "short output kept whole",
			output: "line1\nline2",
			want:   "line1\nline2",
		},
		{
			name:   "long output trimmed to last lines",
			output: "a\nb\nc\nd\ne\nf\ng",
			want:   "c\nd\ne\nf\ng",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outputTail(tt.output))
		})
	}
}
