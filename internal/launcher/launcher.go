// Package launcher hands control to the downstream entry points.
//
// Two variants exist, mirroring the two launch scripts this tool replaces:
//
//   - Run (batch): starts a finite child process, waits for it, and
//     returns an explicit ProcessResult carrying the child's exit status.
//   - Serve (server): starts a long-running child process, forwards
//     termination signals to it, and blocks until it exits — which in
//     normal operation only happens when the operator stops it.
//
// Neither variant supervises, restarts, or parses the child's output.
// The child inherits this process's stdio, so progress bars and server
// logs reach the terminal untouched.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// Spec describes a process handoff.
type Spec struct {
	// Command is the program to invoke, usually a binary inside the
	// environment's bin directory.
	Command string

	// Args are the program arguments.
	Args []string

	// Dir is the working directory for the child. Empty means inherit.
	Dir string

	// Env holds extra KEY=VALUE pairs appended to the inherited
	// environment. The child always sees the full parent environment.
	Env []string

	// Stdout and Stderr override the child's output streams.
	// Nil means inherit this process's streams. Stdin is always
	// inherited — the server variant is interactive.
	Stdout io.Writer
	Stderr io.Writer

	// Interrupt overrides how a termination signal reaches the real
	// workload. Nil means signal the child process directly, which is
	// right when the child IS the workload. When the child is only a
	// client for a process running elsewhere (docker exec does not relay
	// client-side signals to the exec'd process), the caller supplies
	// the delivery mechanism here.
	Interrupt func(sig os.Signal)
}

// Run executes the batch variant: start the child, wait for completion,
// report what happened.
//
// A non-zero child exit is not an error here — it is data in the returned
// ProcessResult, because the caller owns the decision of how to react
// (the index command prints its completion notice either way and then
// adopts the child's status). Only failing to start the child at all is
// an error, wrapped with exit code 1.
func Run(ctx context.Context, spec Spec) (*model.ProcessResult, error) {
	cmd := buildCommand(ctx, spec)

	result := &model.ProcessResult{
		RunID:     uuid.NewString(),
		Command:   spec.Command,
		Args:      spec.Args,
		StartedAt: time.Now(),
	}

	err := cmd.Run()
	result.Duration = time.Since(result.StartedAt)

	if err != nil {
		// An ExitError means the child ran and exited non-zero: capture
		// the status and report success of the handoff itself.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to launch %s", spec.Command),
			err,
		)
	}

	return result, nil
}

// Serve executes the server variant: start the child and block until it
// exits. SIGINT and SIGTERM received by this process are forwarded to the
// child so the operator's Ctrl+C or systemd stop reaches the server; svm
// itself adds no shutdown logic beyond the relay.
//
// Like Run, a non-zero child exit is reported in the result, not as an
// error. In normal operation this function simply does not return until
// the operator terminates the server.
func Serve(ctx context.Context, spec Spec) (*model.ProcessResult, error) {
	cmd := buildCommand(ctx, spec)

	result := &model.ProcessResult{
		RunID:     uuid.NewString(),
		Command:   spec.Command,
		Args:      spec.Args,
		StartedAt: time.Now(),
	}

	if err := cmd.Start(); err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to launch %s", spec.Command),
			err,
		)
	}

	// Relay termination signals to the workload for as long as it runs.
	// signal.Notify with a buffered channel must be in place before any
	// signal can arrive; the goroutine exits when the channel is closed
	// by signal.Stop + close below.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range signals {
			if spec.Interrupt != nil {
				spec.Interrupt(sig)
				continue
			}
			_ = cmd.Process.Signal(sig)
		}
	}()

	err := cmd.Wait()
	result.Duration = time.Since(result.StartedAt)

	signal.Stop(signals)
	close(signals)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("server process %s failed", spec.Command),
			err,
		)
	}

	return result, nil
}

// buildCommand assembles the exec.Cmd shared by both variants.
// CommandContext ties the child's lifetime to the invocation context, so
// a cancelled context kills the child rather than orphaning it.
func buildCommand(ctx context.Context, spec Spec) *exec.Cmd {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir

	// os.Environ returns a copy, so appending is safe for this process.
	cmd.Env = append(os.Environ(), spec.Env...)

	cmd.Stdin = os.Stdin
	cmd.Stdout = spec.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = spec.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	return cmd
}
