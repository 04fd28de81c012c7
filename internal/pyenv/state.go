package pyenv

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// StateFileName is the name of the advisory state record kept inside the
// environment directory. Living inside the venv means "svm clean" removes
// it together with the environment it describes.
const StateFileName = "svm-state.yaml"

// StateSchemaVersion identifies the state record layout. Bump it when
// fields change incompatibly; readers treat an unknown version the same
// as a missing record.
const StateSchemaVersion = 1

// State is the provisioning metadata recorded for an environment.
//
// The record is strictly advisory: it feeds the "svm status" report
// (provisioned when, which interpreter, is the manifest stale) and is
// rewritten after each successful install. The installer never consults
// it to skip work — pip re-runs on every invocation, exactly like the
// original scripts.
type State struct {
	// SchemaVersion is the layout version of this record.
	SchemaVersion int `yaml:"schemaVersion"`

	// CreatedAt is when the environment was provisioned.
	CreatedAt time.Time `yaml:"createdAt"`

	// PythonVersion is the interpreter version at provisioning time.
	PythonVersion string `yaml:"pythonVersion,omitempty"`

	// ManifestDigest is the SHA-256 digest of the dependency manifest at
	// the time of the last successful install.
	ManifestDigest string `yaml:"manifestDigest,omitempty"`

	// InstalledAt is when the last successful install finished.
	InstalledAt time.Time `yaml:"installedAt,omitempty"`
}

// statePath returns the state record location for an environment.
func statePath(env *Env) string {
	return filepath.Join(env.Root, StateFileName)
}

// LoadState reads the environment's state record.
//
// A missing, unreadable, or incompatible record returns (nil, nil): the
// record is advisory, so every reader must already cope with its absence,
// and treating corruption as absence keeps a half-written record from
// breaking status reporting.
func LoadState(env *Env) (*State, error) {
	data, err := os.ReadFile(statePath(env))
	if err != nil {
		return nil, nil
	}

	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, nil
	}
	if state.SchemaVersion != StateSchemaVersion {
		return nil, nil
	}

	return &state, nil
}

// SaveState writes the environment's state record, replacing any
// previous one.
func SaveState(env *Env, state *State) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode environment state: %w", err)
	}
	if err := os.WriteFile(statePath(env), data, 0o644); err != nil {
		return fmt.Errorf("failed to write environment state: %w", err)
	}
	return nil
}

// RecordInstall updates the state record after a successful install,
// preserving provisioning metadata if a record already exists.
// Errors are returned but callers treat them as non-fatal — a failed
// bookkeeping write must not fail a succeeded install.
func RecordInstall(env *Env, manifestDigest string) error {
	state, _ := LoadState(env)
	if state == nil {
		state = &State{
			SchemaVersion: StateSchemaVersion,
			CreatedAt:     time.Now().UTC(),
		}
	}
	state.ManifestDigest = manifestDigest
	state.InstalledAt = time.Now().UTC()
	return SaveState(env, state)
}
