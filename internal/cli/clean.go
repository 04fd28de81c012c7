package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nisidabay/streamlit-video-manager/internal/config"
	"github.com/nisidabay/streamlit-video-manager/internal/docker"
	"github.com/nisidabay/streamlit-video-manager/internal/model"
	"github.com/nisidabay/streamlit-video-manager/internal/pyenv"
)

// NewCleanCommand creates the "clean" command, which removes the
// project's provisioned environment so the next launch starts fresh.
func NewCleanCommand() *cobra.Command {
	var force bool

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the project environment",
		Long: `Remove the isolated environment: the virtual environment directory for
the venv backend, or the runtime container for the container backend.
The project's own files are never touched.

The next "index" or "app" invocation provisions a fresh environment,
so clean is the remedy for a wedged or outdated one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, force)
		},
	}

	cleanCmd.Flags().BoolVarP(&force, "force", "f", false,
		"Skip the confirmation prompt")

	return cleanCmd
}

// runClean removes the backend-appropriate environment after an
// interactive confirmation (unless --force).
func runClean(cmd *cobra.Command, force bool) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	if cfg.Backend == model.BackendContainer {
		return cleanContainer(cmd, cfg, force)
	}
	return cleanVenv(cmd, cfg, force)
}

// cleanVenv removes the virtual environment directory.
func cleanVenv(cmd *cobra.Command, cfg *config.Config, force bool) error {
	if !pyenv.Exists(cfg.EnvPath()) {
		return model.NewCLIError(
			model.ExitEnvNotFound,
			fmt.Sprintf("no environment to remove at %s", cfg.EnvDir),
		)
	}

	if !force {
		confirmed, err := promptConfirmation(cmd,
			fmt.Sprintf("Remove the virtual environment at %s?", cfg.EnvPath()))
		if err != nil {
			return err
		}
		if !confirmed {
			return model.NewCLIError(model.ExitUserCancelled, "cancelled")
		}
	}

	env := &pyenv.Env{Root: cfg.EnvPath()}
	if err := env.Remove(); err != nil {
		return model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to remove environment at %s", cfg.EnvPath()),
			err,
		)
	}

	printCleanResult(cfg.EnvPath())
	return nil
}

// cleanContainer removes the runtime container. Removal is forced at the
// Docker level so a running container does not need a separate stop.
func cleanContainer(cmd *cobra.Command, cfg *config.Config, force bool) error {
	ctx := cmd.Context()

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}

	info, err := docker.FindRuntime(ctx, cli, cfg.ContainerName())
	if err != nil {
		return err
	}
	if info == nil {
		return model.NewCLIError(
			model.ExitEnvNotFound,
			fmt.Sprintf("no runtime container %q to remove", cfg.ContainerName()),
		)
	}

	if !force {
		confirmed, err := promptConfirmation(cmd,
			fmt.Sprintf("Remove the runtime container %s?", info.ContainerName))
		if err != nil {
			return err
		}
		if !confirmed {
			return model.NewCLIError(model.ExitUserCancelled, "cancelled")
		}
	}

	if err := docker.RemoveRuntime(ctx, cli, info, true); err != nil {
		return err
	}

	printCleanResult(info.ContainerName)
	return nil
}

// promptConfirmation asks a yes/no question on the command's streams and
// reports the answer. Anything other than an explicit yes declines.
func promptConfirmation(cmd *cobra.Command, question string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)

	reader := bufio.NewReader(cmd.InOrStdin())
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, model.WrapCLIError(
			model.ExitGeneralError,
			"failed to read confirmation",
			err,
		)
	}

	return parseConfirmation(answer), nil
}

// parseConfirmation interprets a confirmation answer. Only "y" and "yes"
// (any casing) count as consent.
func parseConfirmation(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// printCleanResult reports the removal in text or JSON format.
func printCleanResult(removed string) {
	if IsJSONOutput() {
		output := map[string]interface{}{
			"action":  "removed",
			"removed": removed,
		}
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Removed %s\n", removed)
	fmt.Println("The next launch provisions a fresh environment.")
}
