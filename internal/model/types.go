package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Backend identifies which mechanism provides the isolated runtime
// environment. The venv backend is the default and reproduces the behavior
// of the original launch scripts; the container backend provisions the
// same environment inside a long-lived Docker container instead.
type Backend string

const (
	// BackendVenv provisions a Python virtual environment directory
	// on the host filesystem via "python -m venv".
	BackendVenv Backend = "venv"

	// BackendContainer provisions a labeled Docker container from a
	// configured Python base image and runs every step inside it.
	BackendContainer Backend = "container"
)

// String returns the string representation of Backend.
// This method satisfies the fmt.Stringer interface, enabling
// human-readable output in CLI commands and diagnostics.
func (b Backend) String() string {
	return string(b)
}

// IsValid checks whether the Backend value is one of the
// predefined valid backends.
func (b Backend) IsValid() bool {
	switch b {
	case BackendVenv, BackendContainer:
		return true
	default:
		return false
	}
}

// ParseBackend converts a string to a Backend.
// Returns an error if the string does not match any valid backend.
func ParseBackend(s string) (Backend, error) {
	backend := Backend(strings.ToLower(s))
	if !backend.IsValid() {
		return "", fmt.Errorf("invalid backend: %q (valid: venv, container)", s)
	}
	return backend, nil
}

// LaunchVariant distinguishes the two process-handoff modes.
//
// The batch variant runs a finite script to completion and reports its
// exit status. The server variant hands control to a long-running process
// that only returns when externally terminated.
type LaunchVariant string

const (
	// VariantBatch is a finite-duration child process (the indexer).
	VariantBatch LaunchVariant = "batch"

	// VariantServer is a long-running interactive child process
	// (the Streamlit app server).
	VariantServer LaunchVariant = "server"
)

// String returns the string representation of LaunchVariant.
func (v LaunchVariant) String() string {
	return string(v)
}

// IsValid checks whether the LaunchVariant value is one of the
// predefined valid variants.
func (v LaunchVariant) IsValid() bool {
	switch v {
	case VariantBatch, VariantServer:
		return true
	default:
		return false
	}
}

// EnvStatus describes the observed condition of the provisioned
// environment, as reported by the "status" command. The transitions are:
//
//	Missing → Ready (after provisioning + install)
//	Ready → Stale (manifest changed after the last install)
//	Ready/Stale → Missing (after "clean")
type EnvStatus string

const (
	// EnvMissing indicates no environment has been provisioned yet.
	EnvMissing EnvStatus = "missing"

	// EnvReady indicates the environment exists and its recorded manifest
	// digest matches the current manifest.
	EnvReady EnvStatus = "ready"

	// EnvStale indicates the environment exists but the dependency
	// manifest has changed since the last recorded install. The next
	// index/app invocation reconciles it, since the installer always
	// re-runs.
	EnvStale EnvStatus = "stale"
)

// String returns the string representation of EnvStatus.
func (s EnvStatus) String() string {
	return string(s)
}

// EnvInfo is a descriptive snapshot of the provisioned environment,
// produced for the "status" command and for JSON output. It is
// reconstructed at runtime from the filesystem (venv backend) or from
// Docker labels (container backend); it is never the source of truth.
type EnvInfo struct {
	// Backend is the mechanism backing this environment.
	Backend Backend `json:"backend"`

	// Root is the environment location: the venv directory for the venv
	// backend, or the container name for the container backend.
	Root string `json:"root"`

	// Status is the observed environment condition.
	Status EnvStatus `json:"status"`

	// PythonVersion is the interpreter version recorded at provisioning
	// time (e.g., "Python 3.12.3"). Empty when the environment is missing.
	PythonVersion string `json:"pythonVersion,omitempty"`

	// ManifestDigest is the SHA-256 digest of the manifest at the time of
	// the last successful install. Empty when no install has completed.
	ManifestDigest string `json:"manifestDigest,omitempty"`

	// CreatedAt is the timestamp when the environment was provisioned.
	// Zero when the environment is missing.
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// ProcessResult captures the outcome of a batch process handoff.
//
// The original launch scripts never inspected the downstream script's exit
// status; this type makes that status explicit so the CLI layer can both
// print the unconditional completion notice and still propagate the true
// child status as its own exit code.
type ProcessResult struct {
	// RunID uniquely identifies this launch invocation. It appears in
	// verbose logs and JSON output so separate runs can be correlated.
	RunID string `json:"runId"`

	// Command is the program that was invoked.
	Command string `json:"command"`

	// Args are the arguments the program was invoked with.
	Args []string `json:"args,omitempty"`

	// ExitCode is the child process's own exit status.
	ExitCode int `json:"exitCode"`

	// StartedAt is when the child process was started.
	StartedAt time.Time `json:"startedAt"`

	// Duration is how long the child process ran. It marshals to JSON
	// as Go's duration string form ("2.34s"); see MarshalJSON.
	Duration time.Duration `json:"duration"`
}

// MarshalJSON renders Duration as a duration string ("2.34s") instead of
// raw nanoseconds, so --json consumers get a self-describing value.
func (r *ProcessResult) MarshalJSON() ([]byte, error) {
	type plain ProcessResult
	return json.Marshal(&struct {
		*plain
		Duration string `json:"duration"`
	}{
		plain:    (*plain)(r),
		Duration: r.Duration.String(),
	})
}

// Success reports whether the child process exited with status zero.
func (r *ProcessResult) Success() bool {
	return r.ExitCode == 0
}

// CommandLine returns the full invoked command line as a single string,
// for display in notices and verbose logs.
func (r *ProcessResult) CommandLine() string {
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + " " + strings.Join(r.Args, " ")
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// CI systems to programmatically determine the outcome of a command.
//
// Provisioning and installation failures deliberately map to
// ExitGeneralError (1): that is the documented contract of the original
// launch scripts, which both exited 1 on any bootstrap failure.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error, a provisioning
	// failure, or an installation failure.
	ExitGeneralError ExitCode = 1

	// ExitConfigInvalid indicates svm.json could not be read or failed
	// validation.
	ExitConfigInvalid ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// (container backend only).
	ExitDockerNotRunning ExitCode = 3

	// ExitPortConflict indicates the app server port is already in use
	// and no fallback port could be assigned.
	ExitPortConflict ExitCode = 4

	// ExitEnvNotFound indicates the targeted environment does not exist
	// (e.g., "clean" before anything was provisioned).
	ExitEnvNotFound ExitCode = 6

	// ExitUserCancelled indicates the user declined an interactive
	// confirmation prompt.
	ExitUserCancelled ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
