// Package model defines the domain types and value objects for the
// svm CLI.
//
// This package contains pure data structures with no external dependencies.
// The entities (Backend, EnvInfo, ProcessResult, etc.) describe the
// bootstrap pipeline: which mechanism isolates the runtime, what condition
// the environment is in, and what happened when control was handed to a
// downstream process.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
