package platform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomicThenReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.static")

	require.NoError(t, WriteAtomic(path, []byte("hello"), 0o644))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestFileLockTryLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.lock")

	owner, err := OpenLock(path)
	require.NoError(t, err)
	defer owner.Close()
	require.NoError(t, owner.TryLock())

	contender, err := OpenLock(path)
	require.NoError(t, err)
	defer contender.Close()

	err = contender.TryLock()
	require.Error(t, err)
}

func TestFileLockReleasedAfterClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.lock")

	owner, err := OpenLock(path)
	require.NoError(t, err)
	require.NoError(t, owner.TryLock())
	require.NoError(t, owner.Close())

	reaper, err := OpenLock(path)
	require.NoError(t, err)
	defer reaper.Close()
	assert.NoError(t, reaper.TryLock())
}

func TestProcessExistsForSelf(t *testing.T) {
	assert.True(t, ProcessExists(CurrentPID()))
}

func TestSharedMemoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg-1.shm")

	shm, err := CreateSharedMemory(path, 4096)
	require.NoError(t, err)
	copy(shm.Bytes(), []byte("sample-payload"))
	require.NoError(t, shm.Close())

	reopened, err := OpenSharedMemory(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, "sample-payload", string(reopened.Bytes()[:len("sample-payload")]))
}
