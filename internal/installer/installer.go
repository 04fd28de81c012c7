// Package installer installs dependency manifests into a provisioned
// virtual environment via pip.
//
// The installer is deliberately thin: pip owns requirement resolution and
// idempotence (re-running against a satisfied environment succeeds without
// altering it), so svm only decides how to invoke pip, how to report the
// outcome, and which exit code a failure carries. The fatal/best-effort
// asymmetry between the index and app launch paths lives in the CLI layer,
// not here — Install always reports failure and lets the caller decide.
package installer

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/nisidabay/streamlit-video-manager/internal/manifest"
	"github.com/nisidabay/streamlit-video-manager/internal/model"
	"github.com/nisidabay/streamlit-video-manager/internal/pyenv"
)

// Options controls how the install runs.
type Options struct {
	// Output receives pip's stdout and stderr as it runs. When nil, the
	// output is captured instead and the tail is attached to any error —
	// quiet on success, diagnostic on failure.
	Output io.Writer
}

// Report summarizes a completed installation.
type Report struct {
	// Requirements is the number of requirement lines in the manifest.
	Requirements int

	// ManifestDigest is the digest of the manifest that was installed.
	ManifestDigest string

	// Duration is how long pip ran.
	Duration time.Duration
}

// Install runs "python -m pip install -r <manifest>" with the
// environment's own interpreter, so packages land inside the venv the
// handle points at.
//
// pip is invoked even for an empty manifest (it succeeds trivially) and
// even when the recorded state says the manifest is unchanged — the
// original scripts re-ran the install on every launch, and pip makes
// that cheap. On success the environment's state record is updated with
// the installed digest; a bookkeeping failure there does not fail the
// install.
//
// Failures are wrapped in model.CLIError with ExitGeneralError, the
// exit-1 contract both launch paths share for installation errors.
func Install(ctx context.Context, env *pyenv.Env, m *manifest.Manifest, opts Options) (*Report, error) {
	// pip is invoked as "python -m pip" rather than through the venv's
	// pip script: the script's shebang embeds an absolute path that
	// breaks when a project directory is moved, while -m always resolves
	// against the interpreter actually running.
	cmd := exec.CommandContext(ctx, env.Python(), "-m", "pip", "install", "-r", m.Path)

	var captured strings.Builder
	if opts.Output != nil {
		cmd.Stdout = opts.Output
		cmd.Stderr = opts.Output
	} else {
		cmd.Stdout = &captured
		cmd.Stderr = &captured
	}

	started := time.Now()
	err := cmd.Run()
	duration := time.Since(started)

	if err != nil {
		message := fmt.Sprintf("failed to install dependencies from %s", m.Path)
		if detail := outputTail(captured.String()); detail != "" {
			message = fmt.Sprintf("%s: %s", message, detail)
		}
		return nil, model.WrapCLIError(model.ExitGeneralError, message, err)
	}

	// Advisory bookkeeping for "svm status"; never fails the install.
	_ = pyenv.RecordInstall(env, m.Digest)

	return &Report{
		Requirements:   m.Requirements,
		ManifestDigest: m.Digest,
		Duration:       duration,
	}, nil
}

// outputTail returns the last few lines of captured pip output, which is
// where pip puts the actual resolution error. The full transcript can be
// hundreds of lines of download progress that would drown the diagnostic.
func outputTail(output string) string {
	const maxLines = 5

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return ""
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
