// Package config resolves the project configuration for the svm CLI.
//
// The configuration lives in an optional svm.json file (JSONC — comments
// and trailing commas allowed) in the project directory. Absent settings
// fall back to defaults that reproduce the original launch scripts, so the
// file is only needed when a project deviates from the stock layout.
//
// Load returns a fully resolved and validated Config; validation failures
// carry the config-invalid exit code through model.CLIError.
package config
