package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "checkins.pid")
	l, err := Acquire(lockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Release() })

	pid, ok := HolderPID(lockPath)
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, lockPath, l.Path())
}

func TestAcquireTwiceFails(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "checkins.pid")
	first, err := Acquire(lockPath)
	require.NoError(t, err)

	_, err = Acquire(lockPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))
	assert.Contains(t, err.Error(), "pid")

	require.NoError(t, first.Release())
	require.NoError(t, first.Release())

	second, err := Acquire(lockPath)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestAcquireEmptyPath(t *testing.T) {
	_, err := Acquire("")
	assert.Error(t, err)
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, "data/checkins.pid", PathFor("data/checkins.db"))
	assert.Equal(t, "/var/lib/rollcall/ledger.pid", PathFor("/var/lib/rollcall/ledger.sqlite3"))
	assert.Equal(t, "ledger.pid", PathFor("ledger"))
}

func TestHolderPIDInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("nope\n"), 0o644))
	_, ok := HolderPID(path)
	assert.False(t, ok)

	_, ok = HolderPID(filepath.Join(t.TempDir(), "missing.pid"))
	assert.False(t, ok)
}
