package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nisidabay/streamlit-video-manager/internal/config"
	"github.com/nisidabay/streamlit-video-manager/internal/docker"
	"github.com/nisidabay/streamlit-video-manager/internal/launcher"
	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// NewIndexCommand creates the "index" command, which bootstraps the
// environment and runs the batch indexer to completion.
func NewIndexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Provision the environment and run the video indexer",
		Long: `Provision the isolated Python environment (creating it on first run),
install the project dependencies, and run the indexer script to
completion.

Any bootstrap failure (missing interpreter, environment creation,
dependency installation) aborts before the indexer starts. Once the
indexer has run, a completion notice is printed regardless of how it
exited, and svm exits with the indexer's own exit status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd)
		},
	}
}

// runIndex is the batch launch path: provision, install (fatal on
// failure), run the indexer, report, adopt the child's exit status.
func runIndex(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	if cfg.Backend == model.BackendContainer {
		return runIndexContainer(cmd, cfg)
	}

	env, err := ensureVenv(ctx, cfg)
	if err != nil {
		return err
	}

	// Installation failure is fatal here: running the indexer against an
	// incomplete environment would produce a confusing downstream crash
	// instead of a clear bootstrap error.
	if _, err := installVenvDeps(ctx, cfg, env); err != nil {
		return err
	}

	VerboseLog("Running indexer: %s %s", env.Python(), cfg.IndexerScript)
	result, err := launcher.Run(ctx, launcher.Spec{
		Command: env.Python(),
		Args:    []string{cfg.IndexerScript},
		Dir:     cfg.ProjectDir,
	})
	if err != nil {
		return err
	}

	// The completion notice is unconditional: it reports that the
	// indexer ran and how it exited, success or not.
	printIndexResult(result)
	return finishIndex(result)
}

// runIndexContainer is the batch launch path for the container backend.
// The same three stages run, but provisioning means ensuring the runtime
// container and the install and launch happen through docker exec.
func runIndexContainer(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}

	info, created, err := docker.EnsureRuntime(ctx, cli, docker.RuntimeSpec{
		Name:    cfg.ContainerName(),
		Project: cfg.ProjectDir,
		Image:   cfg.Image,
		AppPort: cfg.AppPort,
	})
	if err != nil {
		return err
	}
	if created {
		VerboseLog("Created runtime container %s from %s", info.ContainerName, info.Image)
	} else {
		VerboseLog("Reusing runtime container %s", info.ContainerName)
	}

	if err := installContainerDeps(ctx, cfg, info); err != nil {
		return err
	}

	command, execArgs := docker.ExecCommand(info.ContainerName, append([]string{"python3"}, cfg.IndexerScript)...)
	VerboseLog("Running indexer in container: %s", cfg.IndexerScript)
	result, err := launcher.Run(ctx, launcher.Spec{
		Command: command,
		Args:    execArgs,
	})
	if err != nil {
		return err
	}

	// The completion notice is unconditional: it reports that the
	// indexer ran and how it exited, success or not.
	printIndexResult(result)
	return finishIndex(result)
}

// installContainerDeps runs the dependency install inside the runtime
// container. Output is streamed only under --verbose, matching the venv
// path. A non-zero pip exit is returned as an installation error; the
// caller decides whether it is fatal.
func installContainerDeps(ctx context.Context, cfg *config.Config, info *docker.RuntimeInfo) error {
	fmt.Fprintf(os.Stderr, "Installing dependencies from %s...\n", cfg.Requirements)

	command, execArgs := docker.ExecCommand(info.ContainerName, docker.InstallCmdline(cfg.Requirements)...)

	spec := launcher.Spec{Command: command, Args: execArgs}
	if !verbose {
		spec.Stdout = io.Discard
		spec.Stderr = io.Discard
	}

	result, err := launcher.Run(ctx, spec)
	if err != nil {
		return err
	}
	if !result.Success() {
		return model.NewCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to install dependencies from %s in container %s (pip exited %d) — re-run with --verbose for pip's output",
				cfg.Requirements, info.ContainerName, result.ExitCode),
		)
	}
	return nil
}

// finishIndex translates the indexer's exit status into svm's own.
func finishIndex(result *model.ProcessResult) error {
	if !result.Success() {
		// A signal-killed child reports -1; os.Exit needs 0-255.
		code := result.ExitCode
		if code < 0 || code > 255 {
			code = int(model.ExitGeneralError)
		}
		return model.NewCLIError(
			model.ExitCode(code),
			fmt.Sprintf("indexer exited with status %d", result.ExitCode),
		)
	}
	return nil
}

// printIndexResult outputs the completion notice in text or JSON format.
func printIndexResult(result *model.ProcessResult) {
	if IsJSONOutput() {
		output := map[string]interface{}{
			"action": "indexed",
			"result": result,
		}
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println("Indexing complete.")
	fmt.Printf("  exit status: %d\n", result.ExitCode)
	fmt.Printf("  duration:    %s\n", result.Duration.Round(timeRounding))
	VerboseLog("Run %s: %s", result.RunID, result.CommandLine())
}
