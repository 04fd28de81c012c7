package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nisidabay/streamlit-video-manager/internal/config"
	"github.com/nisidabay/streamlit-video-manager/internal/docker"
	"github.com/nisidabay/streamlit-video-manager/internal/manifest"
	"github.com/nisidabay/streamlit-video-manager/internal/model"
	"github.com/nisidabay/streamlit-video-manager/internal/pyenv"
)

// NewStatusCommand creates the "status" command, which reports the
// observed condition of the project's environment without changing it.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the project environment",
		Long: `Inspect the project's isolated environment and report whether it is
missing, ready, or stale (the dependency manifest changed since the
last recorded install). Nothing is created or modified.

Staleness is advisory: the next "index" or "app" invocation re-runs
the dependency install regardless, so a stale environment reconciles
itself on the next launch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

// runStatus assembles and prints the environment snapshot.
func runStatus(cmd *cobra.Command) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	var info *model.EnvInfo
	var containerState string

	if cfg.Backend == model.BackendContainer {
		info, containerState, err = containerEnvInfo(cmd, cfg)
		if err != nil {
			return err
		}
	} else {
		info = venvEnvInfo(cfg)
	}

	printStatus(cfg, info, containerState)
	return nil
}

// venvEnvInfo builds the snapshot for the venv backend from the
// filesystem and the advisory state record.
func venvEnvInfo(cfg *config.Config) *model.EnvInfo {
	info := &model.EnvInfo{
		Backend: model.BackendVenv,
		Root:    cfg.EnvPath(),
		Status:  model.EnvMissing,
	}

	if !pyenv.Exists(cfg.EnvPath()) {
		return info
	}

	env := &pyenv.Env{Root: cfg.EnvPath()}
	state, _ := pyenv.LoadState(env)

	currentDigest := manifest.Digest(cfg.RequirementsPath())
	info.Status = resolveEnvStatus(state, currentDigest)

	if state != nil {
		info.PythonVersion = state.PythonVersion
		info.ManifestDigest = state.ManifestDigest
		info.CreatedAt = state.CreatedAt
	}
	return info
}

// resolveEnvStatus classifies an existing environment as ready or stale
// by comparing the recorded install digest against the current manifest.
//
// Absence of evidence is staleness: no state record, no recorded
// install, or an unreadable manifest all mean the environment cannot be
// shown to match, and the honest report is "stale" (the next launch
// reconciles it anyway).
func resolveEnvStatus(state *pyenv.State, currentDigest string) model.EnvStatus {
	if state == nil || state.ManifestDigest == "" || currentDigest == "" {
		return model.EnvStale
	}
	if state.ManifestDigest != currentDigest {
		return model.EnvStale
	}
	return model.EnvReady
}

// containerEnvInfo builds the snapshot for the container backend from
// the runtime container's labels. The container's own state string
// (running, exited, ...) is returned separately for display.
func containerEnvInfo(cmd *cobra.Command, cfg *config.Config) (*model.EnvInfo, string, error) {
	ctx := cmd.Context()

	cli, err := docker.NewClient()
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return nil, "", err
	}

	info := &model.EnvInfo{
		Backend: model.BackendContainer,
		Root:    cfg.ContainerName(),
		Status:  model.EnvMissing,
	}

	runtime, err := docker.FindRuntime(ctx, cli, cfg.ContainerName())
	if err != nil {
		return nil, "", err
	}
	if runtime == nil {
		return info, "", nil
	}

	// No install bookkeeping exists inside the container, so an existing
	// runtime is reported ready; the per-launch install keeps it honest.
	info.Status = model.EnvReady
	info.CreatedAt = runtime.CreatedAt
	return info, runtime.State, nil
}

// printStatus outputs the snapshot in text or JSON format.
func printStatus(cfg *config.Config, info *model.EnvInfo, containerState string) {
	if IsJSONOutput() {
		output := map[string]interface{}{
			"project":     cfg.ProjectDir,
			"environment": info,
		}
		if containerState != "" {
			output["containerState"] = containerState
		}
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Project:   %s\n", cfg.ProjectDir)
	fmt.Printf("Backend:   %s\n", info.Backend)
	fmt.Printf("Location:  %s\n", info.Root)
	fmt.Printf("Status:    %s\n", info.Status)

	if info.PythonVersion != "" {
		fmt.Printf("Python:    %s\n", info.PythonVersion)
	}
	if containerState != "" {
		fmt.Printf("Container: %s\n", containerState)
	}
	if !info.CreatedAt.IsZero() {
		fmt.Printf("Created:   %s\n", info.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}

	switch info.Status {
	case model.EnvMissing:
		fmt.Println("\nRun \"svm index\" or \"svm app\" to provision the environment.")
	case model.EnvStale:
		fmt.Println("\nThe dependency manifest changed since the last install; the next launch reconciles it.")
	}

	// Sanity pointers for the two entry points, so a typo'd script name
	// is caught here rather than at launch.
	if _, err := os.Stat(cfg.IndexerPath()); err != nil {
		fmt.Printf("\nNote: indexer script %s not found.\n", cfg.IndexerScript)
	}
	if _, err := os.Stat(cfg.AppPath()); err != nil {
		fmt.Printf("Note: app script %s not found.\n", cfg.AppScript)
	}
}
