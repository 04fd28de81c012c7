// Package manifest reads the dependency manifest (requirements.txt).
//
// The manifest is an external contract between the project and pip: svm
// never interprets version constraints, options, or includes, and never
// mutates the file. The only things svm extracts are a content digest
// (so "svm status" can report staleness) and a requirement count (so the
// empty-manifest case can be reported as a trivial success).
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// Manifest is a read-only snapshot of the dependency manifest file.
type Manifest struct {
	// Path is the manifest file location.
	Path string

	// Digest is the SHA-256 digest (hex) of the raw file contents.
	// It identifies the manifest revision without interpreting it.
	Digest string

	// Requirements is the number of requirement lines: lines that are
	// neither blank nor comments. It is a count, not a parse — pip owns
	// the actual requirement syntax.
	Requirements int
}

// Load reads the manifest file and returns its snapshot.
//
// A missing manifest is reported as an installation failure (exit code 1),
// because neither launch path can install dependencies without it. Note
// the app command downgrades this to a warning, like every other
// installation failure on that path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitGeneralError,
				fmt.Sprintf("dependency manifest not found: %s", path),
				err,
			)
		}
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to read dependency manifest %s", path),
			err,
		)
	}

	sum := sha256.Sum256(data)

	return &Manifest{
		Path:         path,
		Digest:       hex.EncodeToString(sum[:]),
		Requirements: countRequirements(data),
	}, nil
}

// Digest computes the manifest digest without building a full snapshot.
// Returns an empty string if the file cannot be read; callers use this
// for advisory staleness reporting only, where a missing manifest simply
// means "nothing to compare against".
func Digest(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsEmpty reports whether the manifest declares no requirements at all.
// pip handles an empty requirements file fine on its own; svm only uses
// this to phrase its progress output ("nothing to install").
func (m *Manifest) IsEmpty() bool {
	return m.Requirements == 0
}

// countRequirements counts lines that look like requirement declarations:
// anything that is not blank and not a "#" comment. Continuation lines,
// options, and includes all count as lines — precision here does not
// matter, since the count is informational only.
func countRequirements(data []byte) int {
	count := 0
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		count++
	}
	return count
}
