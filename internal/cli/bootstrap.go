// Package cli — bootstrap.go holds the pipeline steps shared by the two
// launch commands: configuration loading, environment provisioning, and
// dependency installation.
//
// Both launchers run the same strictly linear sequence — provision,
// install, launch — and differ only in how they react to an installation
// failure (index refuses to launch, app warns and proceeds) and in which
// variant of the process handoff they perform.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nisidabay/streamlit-video-manager/internal/config"
	"github.com/nisidabay/streamlit-video-manager/internal/installer"
	"github.com/nisidabay/streamlit-video-manager/internal/manifest"
	"github.com/nisidabay/streamlit-video-manager/internal/model"
	"github.com/nisidabay/streamlit-video-manager/internal/pyenv"
)

// timeRounding trims durations for display; sub-centisecond precision is
// noise in a tool whose steps take seconds.
const timeRounding = 10 * time.Millisecond

// loadProjectConfig resolves the configuration for the current working
// directory. Every subcommand starts here.
func loadProjectConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to determine working directory", err)
	}
	return config.Load(wd)
}

// ensureVenv provisions the virtual environment for the venv backend and
// returns its handle. Idempotent: an existing environment is reused
// without running anything.
//
// Creation is announced on stderr unconditionally — it downloads nothing
// but can take a few seconds, and the original scripts announced it too.
func ensureVenv(ctx context.Context, cfg *config.Config) (*pyenv.Env, error) {
	interpreter, err := pyenv.ResolveInterpreter(cfg.PythonCandidates)
	if err != nil {
		return nil, err
	}
	VerboseLog("Using interpreter %s", interpreter)

	if !pyenv.Exists(cfg.EnvPath()) {
		fmt.Fprintf(os.Stderr, "Creating virtual environment at %s...\n", cfg.EnvDir)
	}

	env, created, err := pyenv.Ensure(ctx, interpreter, cfg.EnvPath())
	if err != nil {
		return nil, err
	}

	if created {
		VerboseLog("Created virtual environment at %s", env.Root)
	} else {
		VerboseLog("Reusing existing virtual environment at %s", env.Root)
	}
	return env, nil
}

// installVenvDeps loads the manifest and installs it into the
// environment. The caller decides whether a returned error is fatal
// (index) or a warning (app).
func installVenvDeps(ctx context.Context, cfg *config.Config, env *pyenv.Env) (*installer.Report, error) {
	m, err := manifest.Load(cfg.RequirementsPath())
	if err != nil {
		return nil, err
	}

	if m.IsEmpty() {
		VerboseLog("Manifest %s declares no requirements — nothing to install", cfg.Requirements)
	} else {
		fmt.Fprintf(os.Stderr, "Installing dependencies from %s (%d requirements)...\n",
			cfg.Requirements, m.Requirements)
	}

	// pip output is noise on success; stream it only under --verbose.
	// On failure the installer attaches the output tail to the error.
	var pipOutput io.Writer
	if verbose {
		pipOutput = os.Stderr
	}

	report, err := installer.Install(ctx, env, m, installer.Options{Output: pipOutput})
	if err != nil {
		return nil, err
	}

	VerboseLog("Dependencies installed in %s", report.Duration.Round(timeRounding))
	return report, nil
}

// warnInstallFailure prints the app path's non-fatal installation
// diagnostic. The launch attempt proceeds regardless: a previously
// provisioned environment may well still hold a working install, and
// refusing to start the app over a transient network error would be
// strictly worse.
func warnInstallFailure(err error) {
	fmt.Fprintf(os.Stderr, "Warning: dependency installation failed: %v\n", err)
	fmt.Fprintln(os.Stderr, "Attempting to start the app with the environment as-is.")
}
