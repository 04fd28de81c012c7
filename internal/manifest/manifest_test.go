package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// writeManifest writes a requirements file with the given contents and
// returns its path.
func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requirements.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// TestLoad_CountsRequirements verifies requirement counting against
// realistic requirements.txt contents, including comments and blanks.
func TestLoad_CountsRequirements(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		want     int
	}{
		{
			name:     "empty file",
			contents: "",
			want:     0,
		},
		{
			name:     "only blank lines and comments",
			contents: "\n# pinned for streamlit compatibility\n\n  # another comment\n",
			want:     0,
		},
		{
			name:     "typical manifest",
			contents: "streamlit==1.36.0\nsqlalchemy>=2.0\ntqdm\n",
			want:     3,
		},
		{
			name:     "comments interleaved",
			contents: "# UI\nstreamlit\n\n# DB\nsqlalchemy\n",
			want:     2,
		},
		{
			name: "no trailing newline",
			// Files edited by hand often lack the final newline.
			contents: "streamlit",
			want:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, tt.contents)

			m, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, tt.want, m.Requirements)
			assert.Equal(t, tt.want == 0, m.IsEmpty())
			assert.Equal(t, path, m.Path)
			// SHA-256 hex digest is always 64 characters.
			assert.Len(t, m.Digest, 64)
		})
	}
}

// TestLoad_DigestTracksContents verifies that the digest changes when the
// manifest changes and is stable when it does not. The status command
// relies on this to report staleness.
func TestLoad_DigestTracksContents(t *testing.T) {
	a := writeManifest(t, "streamlit\n")
	b := writeManifest(t, "streamlit\n")
	c := writeManifest(t, "streamlit\nsqlalchemy\n")

	ma, err := Load(a)
	require.NoError(t, err)
	mb, err := Load(b)
	require.NoError(t, err)
	mc, err := Load(c)
	require.NoError(t, err)

	assert.Equal(t, ma.Digest, mb.Digest, "identical contents must produce identical digests")
	assert.NotEqual(t, ma.Digest, mc.Digest, "different contents must produce different digests")

	// The standalone Digest helper agrees with the snapshot.
	assert.Equal(t, ma.Digest, Digest(a))
}

// TestLoad_MissingManifest verifies that a missing file is surfaced as an
// installation failure carrying the general-error exit code, which the
// index command treats as fatal.
func TestLoad_MissingManifest(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "requirements.txt"))
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
	assert.Contains(t, cliErr.Message, "not found")
}

// TestDigest_MissingFile verifies the advisory digest helper degrades to
// an empty string rather than erroring.
func TestDigest_MissingFile(t *testing.T) {
	assert.Equal(t, "", Digest(filepath.Join(t.TempDir(), "nope.txt")))
}
