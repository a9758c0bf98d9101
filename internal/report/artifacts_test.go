package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactsPublishOverwriteRemove(t *testing.T) {
	t.Parallel()
	a, err := NewArtifacts(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)

	assert.False(t, a.Exists("2024-01-10"))
	_, err = a.Read("2024-01-10")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	path, err := a.Publish("2024-01-10", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Dir(), "2024-01-10.pdf"), path)
	assert.True(t, a.Exists("2024-01-10"))

	_, err = a.Publish("2024-01-10", []byte("second"))
	require.NoError(t, err)
	data, err := a.Read("2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(a.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	removed, err := a.Remove("2024-01-10")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = a.Remove("2024-01-10")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestNewArtifactsRejectsEmptyDir(t *testing.T) {
	_, err := NewArtifacts("")
	assert.Error(t, err)
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "report_2024-01-10.pdf", DownloadName("2024-01-10"))
}
