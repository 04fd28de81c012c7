package pyenv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// markerFile is the file that identifies a directory as a Python virtual
// environment. Every venv created by "python -m venv" (and virtualenv)
// contains a pyvenv.cfg at its root, so its presence is the reliable
// existence check — more reliable than checking the directory itself,
// which might exist empty after an interrupted provisioning attempt.
const markerFile = "pyvenv.cfg"

// Env is the explicit handle to a provisioned virtual environment.
// The installer and launcher take an *Env instead of assuming an
// "activated" interpreter, so one invocation always observes a single,
// consistently selected environment.
type Env struct {
	// Root is the absolute path of the environment directory.
	Root string
}

// ResolveInterpreter probes the candidate interpreter names in order and
// returns the absolute path of the first one found on PATH.
//
// The probe order matters: candidates should be listed from most specific
// to least (e.g., "python3" before "python"), the same
// most-preferred-first strategy used for Docker socket detection.
//
// Returns a model.CLIError with ExitGeneralError when no candidate is
// found, with a diagnostic naming the remediation.
func ResolveInterpreter(candidates []string) (string, error) {
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", model.NewCLIError(
		model.ExitGeneralError,
		fmt.Sprintf("no Python interpreter found on PATH (tried: %s) — install Python 3 to continue",
			strings.Join(candidates, ", ")),
	)
}

// Exists reports whether a virtual environment is already provisioned at
// root, by checking for the pyvenv.cfg marker file.
func Exists(root string) bool {
	info, err := os.Stat(filepath.Join(root, markerFile))
	return err == nil && !info.IsDir()
}

// Ensure makes sure a virtual environment exists at root, creating it with
// the given interpreter on first run. It is idempotent by construction:
// when the marker file is present, the existing environment is reused and
// no command runs.
//
// The returned bool is true when the environment was created by this call.
func Ensure(ctx context.Context, interpreter, root string) (*Env, bool, error) {
	if Exists(root) {
		return &Env{Root: root}, false, nil
	}

	if err := create(ctx, interpreter, root); err != nil {
		return nil, false, err
	}

	env := &Env{Root: root}

	// Record provisioning metadata. Failure to write the state record is
	// not fatal — the environment itself is usable without it, and status
	// reporting degrades gracefully when the record is absent.
	state := &State{
		SchemaVersion: StateSchemaVersion,
		CreatedAt:     time.Now().UTC(),
	}
	if version, err := env.PythonVersion(ctx); err == nil {
		state.PythonVersion = version
	}
	_ = SaveState(env, state)

	return env, true, nil
}

// create runs "python -m venv <root>". Creation failure is always fatal:
// the wrapped CLIError carries exit code 1 and a diagnostic pointing at
// the most common cause (the venv module missing from the system Python,
// typically packaged separately as python3-venv on Debian/Ubuntu).
func create(ctx context.Context, interpreter, root string) error {
	cmd := exec.CommandContext(ctx, interpreter, "-m", "venv", root)

	// Capture stdout and stderr separately so the error message can show
	// venv's own diagnostics without mixing in unrelated output.
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("failed to create virtual environment at %s — ensure the venv module is available (e.g., apt install python3-venv)", root)
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			message = fmt.Sprintf("%s: %s", message, detail)
		}
		return model.WrapCLIError(model.ExitGeneralError, message, err)
	}

	return nil
}

// BinDir returns the executable directory inside the environment.
// Windows venvs use "Scripts"; every other platform uses "bin".
func (e *Env) BinDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.Root, "Scripts")
	}
	return filepath.Join(e.Root, "bin")
}

// Python returns the path of the environment's own interpreter.
// Invoking this binary is the explicit-handle equivalent of sourcing
// bin/activate: it sees exactly the packages installed in this venv.
func (e *Env) Python() string {
	return filepath.Join(e.BinDir(), pythonBinary())
}

// Streamlit returns the path of the streamlit console script installed by
// pip into the environment. The server launch path invokes this rather
// than a global streamlit so the app runs against this venv's packages.
func (e *Env) Streamlit() string {
	name := "streamlit"
	if runtime.GOOS == "windows" {
		name = "streamlit.exe"
	}
	return filepath.Join(e.BinDir(), name)
}

// PythonVersion runs the environment interpreter with --version and
// returns the reported version string (e.g., "Python 3.12.3").
func (e *Env) PythonVersion(ctx context.Context) (string, error) {
	// Python prints --version to stdout since 3.4; CombinedOutput also
	// covers older interpreters that printed it to stderr.
	out, err := exec.CommandContext(ctx, e.Python(), "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to query interpreter version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Remove deletes the environment directory and everything in it.
// Used by the clean command; safe to call on a missing environment.
func (e *Env) Remove() error {
	return os.RemoveAll(e.Root)
}

// pythonBinary returns the interpreter file name inside a venv's
// executable directory for the current platform.
func pythonBinary() string {
	if runtime.GOOS == "windows" {
		return "python.exe"
	}
	return "python"
}
