package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nisidabay/streamlit-video-manager/internal/config"
	"github.com/nisidabay/streamlit-video-manager/internal/docker"
	"github.com/nisidabay/streamlit-video-manager/internal/launcher"
	"github.com/nisidabay/streamlit-video-manager/internal/model"
	"github.com/nisidabay/streamlit-video-manager/internal/port"
)

// NewAppCommand creates the "app" command, which bootstraps the
// environment and hands control to the Streamlit management app.
func NewAppCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "app",
		Short: "Provision the environment and start the management app",
		Long: `Provision the isolated Python environment (creating it on first run),
install the project dependencies, and start the Streamlit management
app. The command blocks for as long as the server runs; stop it with
Ctrl+C.

Unlike "index", a failed dependency installation is not fatal here: a
warning is printed and the launch proceeds, since an environment from a
previous run may still be perfectly serviceable. A provisioning failure
still aborts — there is nothing to launch into.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd)
		},
	}
}

// runApp is the server launch path: provision (fatal on failure),
// install (warn and proceed on failure), verify the port, announce the
// address, then block on the server process.
func runApp(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	if cfg.Backend == model.BackendContainer {
		return runAppContainer(cmd, cfg)
	}

	env, err := ensureVenv(ctx, cfg)
	if err != nil {
		return err
	}

	if _, err := installVenvDeps(ctx, cfg, env); err != nil {
		warnInstallFailure(err)
	}

	appPort, err := port.NewScanner().Preflight(cfg.AppPort, cfg.AppAutoPort)
	if err != nil {
		return err
	}
	if appPort != cfg.AppPort {
		fmt.Fprintf(cmd.ErrOrStderr(), "Port %d is in use; using %d instead.\n", cfg.AppPort, appPort)
	}

	printStartNotice(cfg.AppAddress, appPort)

	result, err := launcher.Serve(ctx, launcher.Spec{
		Command: env.Streamlit(),
		Args:    serveArgs(cfg, appPort),
		Dir:     cfg.ProjectDir,
	})
	if err != nil {
		return err
	}

	return finishApp(result)
}

// runAppContainer is the server launch path for the container backend.
// The host port was published when the runtime container was created, so
// an existing container's recorded port wins over the configured one.
func runAppContainer(cmd *cobra.Command, cfg *config.Config) error {
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
	}
	if info.AppPort != cfg.AppPort {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"Container %s publishes port %d (configured: %d) — run \"svm clean\" to recreate it with the new port.\n",
			info.ContainerName, info.AppPort, cfg.AppPort)
	}

	if err := installContainerDeps(ctx, cfg, info); err != nil {
		warnInstallFailure(err)
	}

	printStartNotice("localhost", info.AppPort)

	command, execArgs := docker.ExecCommand(info.ContainerName,
		docker.ServeCmdline(cfg.AppScript, info.AppPort, cfg.AppHeadless)...)
	result, err := launcher.Serve(ctx, launcher.Spec{
		Command: command,
		Args:    execArgs,
		// docker exec does not relay client-side signals to the exec'd
		// process, so Ctrl+C must reach streamlit through an explicit
		// in-container kill or it would keep holding the published port.
		Interrupt: func(os.Signal) {
			_ = docker.SignalApp(ctx, info.ContainerName)
		},
	})
	if err != nil {
		return err
	}

	return finishApp(result)
}

// serveArgs builds the streamlit invocation for the venv backend.
func serveArgs(cfg *config.Config, appPort int) []string {
	return []string{
		"run", cfg.AppScript,
		"--server.port", strconv.Itoa(appPort),
		"--server.address", cfg.AppAddress,
		"--server.headless", strconv.FormatBool(cfg.AppHeadless),
	}
}

// printStartNotice announces where the app server is about to listen.
// It prints before the handoff: once the server runs it owns the
// terminal, and this line is the operator's pointer to the UI.
func printStartNotice(address string, appPort int) {
	url := fmt.Sprintf("http://%s:%d", address, appPort)

	if IsJSONOutput() {
		output := map[string]interface{}{
			"action":  "starting",
			"url":     url,
			"address": address,
			"port":    appPort,
		}
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Starting the video manager at %s (press Ctrl+C to stop)\n", url)
}

// finishApp translates the server's exit into svm's own. A clean exit
// (operator stop) prints nothing further; a non-zero exit is surfaced
// with the server's status.
func finishApp(result *model.ProcessResult) error {
	VerboseLog("Run %s: server exited with status %d after %s",
		result.RunID, result.ExitCode, result.Duration.Round(timeRounding))

	// A negative code means the child died from a signal; 130 and 143
	// are the shell convention for SIGINT/SIGTERM. All three mean the
	// operator stopped the server, which is the normal way this command
	// ends.
	if result.ExitCode < 0 || result.ExitCode == 130 || result.ExitCode == 143 {
		return nil
	}

	if !result.Success() {
		code := result.ExitCode
		if code > 255 {
			code = int(model.ExitGeneralError)
		}
		return model.NewCLIError(
			model.ExitCode(code),
			fmt.Sprintf("app server exited with status %d", result.ExitCode),
		)
	}
	return nil
}
