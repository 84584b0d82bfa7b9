package wal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(1, []byte("Alice"), []byte("100")))
	require.NoError(t, w.Append(2, []byte("Bob"), []byte("200")))
	require.NoError(t, w.Append(3, []byte("Alice"), []byte("300")))
	require.NoError(t, w.Close())

	type kv struct {
		seq        uint64
		key, value string
	}
	var got []kv
	err = Replay(path, func(seq uint64, key, value []byte) {
		got = append(got, kv{seq, string(key), string(value)})
	})
	require.NoError(t, err)
	require.Equal(t, []kv{
		{1, "Alice", "100"},
		{2, "Bob", "200"},
		{3, "Alice", "300"},
	}, got)
}

func TestReplayMissingFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	err := Replay(filepath.Join(dir, "absent.log"), func(uint64, []byte, []byte) {
		t.Fatal("apply should not be called")
	})
	require.NoError(t, err)
}

func TestReplayStopsAtTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(1, []byte("k1"), []byte("v1")))
	require.NoError(t, w.Append(2, []byte("k2"), []byte("v2")))
	require.NoError(t, w.Close())

	info, err := fileSize(path)
	require.NoError(t, err)
	require.NoError(t, truncate(path, info-3))

	var count int
	err = Replay(path, func(uint64, []byte, []byte) { count++ })
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestAppendToClosedWALFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = w.Append(1, []byte("k"), []byte("v"))
	require.Error(t, err)
}
