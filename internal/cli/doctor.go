package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/nisidabay/streamlit-video-manager/internal/config"
	"github.com/nisidabay/streamlit-video-manager/internal/docker"
	"github.com/nisidabay/streamlit-video-manager/internal/manifest"
	"github.com/nisidabay/streamlit-video-manager/internal/model"
	"github.com/nisidabay/streamlit-video-manager/internal/pyenv"
)

// NewDoctorCommand creates the "doctor" command, which checks that the
// prerequisites of a launch are in place before anything is run.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the project is ready to launch",
		Long: `Run the preflight checks a launch depends on: the Python interpreter
(or the Docker daemon, for the container backend), the venv module,
the dependency manifest, and the two entry-point scripts.

Checks that would make "index" or "app" fail outright are fatal;
doctor exits non-zero when any of them fails. Informational findings
(a missing optional script, an unprovisioned environment) are reported
but do not affect the exit code.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd)
		},
	}
}

// checkResult is one doctor finding.
type checkResult struct {
	// Name identifies the check.
	Name string `json:"name"`

	// OK reports whether the check passed.
	OK bool `json:"ok"`

	// Detail is the supporting observation: a resolved path, a version,
	// or the failure diagnostic.
	Detail string `json:"detail,omitempty"`

	// Fatal marks checks whose failure would also fail a launch.
	Fatal bool `json:"fatal"`
}

// runDoctor executes the backend-appropriate check list and reports.
func runDoctor(cmd *cobra.Command) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	var checks []checkResult
	if cfg.Backend == model.BackendContainer {
		checks = containerChecks(cmd.Context(), cfg)
	} else {
		checks = venvChecks(cmd.Context(), cfg)
	}
	checks = append(checks, projectChecks(cfg)...)

	printDoctorReport(checks)

	for _, c := range checks {
		if c.Fatal && !c.OK {
			return model.NewCLIError(
				model.ExitGeneralError,
				"preflight checks failed — fix the findings above and re-run",
			)
		}
	}
	return nil
}

// venvChecks covers the venv backend's prerequisites: an interpreter on
// PATH and a working venv module.
func venvChecks(ctx context.Context, cfg *config.Config) []checkResult {
	var checks []checkResult

	interpreter, err := pyenv.ResolveInterpreter(cfg.PythonCandidates)
	if err != nil {
		checks = append(checks, checkResult{
			Name:   "python interpreter",
			OK:     false,
			Detail: err.Error(),
			Fatal:  true,
		})
		// The remaining interpreter-dependent checks cannot run.
		return checks
	}
	checks = append(checks, checkResult{
		Name:   "python interpreter",
		OK:     true,
		Detail: interpreter,
		Fatal:  true,
	})

	// "python -m venv" without arguments exits non-zero but proves the
	// module imports; "-c 'import venv'" is the cleaner probe.
	if out, err := exec.CommandContext(ctx, interpreter, "-c", "import venv").CombinedOutput(); err != nil {
		detail := "venv module not importable"
		if len(out) > 0 {
			detail = fmt.Sprintf("%s: %s", detail, string(out))
		}
		checks = append(checks, checkResult{
			Name:   "venv module",
			OK:     false,
			Detail: detail + " — install it (e.g., apt install python3-venv)",
			Fatal:  true,
		})
	} else {
		checks = append(checks, checkResult{
			Name:  "venv module",
			OK:    true,
			Fatal: true,
		})
	}

	// Informational: is the environment already provisioned?
	if pyenv.Exists(cfg.EnvPath()) {
		checks = append(checks, checkResult{
			Name:   "environment",
			OK:     true,
			Detail: "provisioned at " + cfg.EnvDir,
		})
	} else {
		checks = append(checks, checkResult{
			Name:   "environment",
			OK:     true,
			Detail: "not provisioned yet (created on first launch)",
		})
	}

	return checks
}

// containerChecks covers the container backend's prerequisite: a
// reachable Docker daemon. The interpreter lives in the base image, so
// host Python checks do not apply.
func containerChecks(ctx context.Context, cfg *config.Config) []checkResult {
	cli, err := docker.NewClient()
	if err != nil {
		return []checkResult{{
			Name:   "docker daemon",
			OK:     false,
			Detail: err.Error(),
			Fatal:  true,
		}}
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return []checkResult{{
			Name:   "docker daemon",
			OK:     false,
			Detail: err.Error(),
			Fatal:  true,
		}}
	}

	checks := []checkResult{{
		Name:  "docker daemon",
		OK:    true,
		Fatal: true,
	}}

	if info, err := docker.FindRuntime(ctx, cli, cfg.ContainerName()); err == nil && info != nil {
		checks = append(checks, checkResult{
			Name:   "runtime container",
			OK:     true,
			Detail: fmt.Sprintf("%s (%s)", info.ContainerName, info.State),
		})
	} else {
		checks = append(checks, checkResult{
			Name:   "runtime container",
			OK:     true,
			Detail: "not created yet (created on first launch)",
		})
	}

	return checks
}

// projectChecks covers the project files both backends need: the
// dependency manifest and the two entry-point scripts.
func projectChecks(cfg *config.Config) []checkResult {
	var checks []checkResult

	if m, err := manifest.Load(cfg.RequirementsPath()); err != nil {
		checks = append(checks, checkResult{
			Name:   "dependency manifest",
			OK:     false,
			Detail: err.Error(),
			Fatal:  true,
		})
	} else {
		checks = append(checks, checkResult{
			Name:   "dependency manifest",
			OK:     true,
			Detail: fmt.Sprintf("%s (%d requirements)", cfg.Requirements, m.Requirements),
			Fatal:  true,
		})
	}

	// The scripts are per-command needs, not universal: a project that
	// only ever runs "svm app" works fine without an indexer. Missing
	// scripts are therefore findings, not failures.
	checks = append(checks, scriptCheck("indexer script", cfg.IndexerScript, cfg.IndexerPath()))
	checks = append(checks, scriptCheck("app script", cfg.AppScript, cfg.AppPath()))

	return checks
}

// scriptCheck probes an entry-point script's existence.
func scriptCheck(name, relPath, absPath string) checkResult {
	if _, err := os.Stat(absPath); err != nil {
		return checkResult{
			Name:   name,
			OK:     false,
			Detail: relPath + " not found",
		}
	}
	return checkResult{
		Name:   name,
		OK:     true,
		Detail: relPath,
	}
}

// printDoctorReport outputs the findings in text or JSON format.
func printDoctorReport(checks []checkResult) {
	if IsJSONOutput() {
		output := map[string]interface{}{
			"checks": checks,
		}
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(data))
		return
	}

	for _, c := range checks {
		fmt.Println(formatCheck(c))
	}
}

// formatCheck renders one finding as a report line.
func formatCheck(c checkResult) string {
	mark := "[ok]"
	if !c.OK {
		mark = "[fail]"
		if !c.Fatal {
			mark = "[warn]"
		}
	}

	line := fmt.Sprintf("%-6s %s", mark, c.Name)
	if c.Detail != "" {
		line = fmt.Sprintf("%s — %s", line, c.Detail)
	}
	return line
}
