// Package cli implements the cobra-based CLI commands for svm.
//
// Each subcommand (index, app, status, doctor, clean) is defined in its
// own file within this package. This file defines the root command that
// serves as the parent for all subcommands and handles global flags.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When true, results use structured JSON for machine consumption.
	// When false (default), output uses human-readable text.
	jsonOutput bool

	// verbose enables detailed progress logging on stderr.
	verbose bool
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself performs no action — it only provides help
// text and global flags. Actual functionality is provided by the
// subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "svm",
		Short: "Bootstrap and launch the video manager",
		Long: `svm provisions an isolated Python environment for the video manager
project, installs its dependencies, and launches its two entry points:
the batch indexer and the Streamlit management app.

The environment is created on first run and reused afterwards. All
behavior can be adjusted through an optional svm.json file in the
project directory; without one, the stock layout (.venv,
requirements.txt, indexer.py, streamlit_app.py) is assumed.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	// PersistentFlags are inherited by all subcommands, so --json and
	// --verbose work everywhere without per-command re-declaration.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Register subcommands. Each is defined in its own file and returns
	// a *cobra.Command.
	rootCmd.AddCommand(NewIndexCommand())
	rootCmd.AddCommand(NewAppCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewDoctorCommand())
	rootCmd.AddCommand(NewCleanCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them
// into appropriate OS exit codes. CLIError values carry their own
// exit codes; other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		message, detail, code := resolveExit(err)
		printError(message, detail)
		os.Exit(int(code))
	}
}

// resolveExit translates a command error into what Execute reports and
// the code it exits with. errors.As rather than a type assertion: a
// CLIError stays authoritative even when a caller wraps it with
// fmt.Errorf("...: %w", err).
func resolveExit(err error) (message string, detail error, code model.ExitCode) {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Message, cliErr.Err, cliErr.Code
	}
	return err.Error(), nil, model.ExitGeneralError
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr so stdout stays reserved for results.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	if underlying != nil && verbose {
		fmt.Fprintf(os.Stderr, "  caused by: %v\n", underlying)
	}
}

// VerboseLog prints a progress message to stderr when --verbose is set.
// Progress goes to stderr so that --json consumers reading stdout never
// see it.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// IsJSONOutput reports whether the --json global flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
