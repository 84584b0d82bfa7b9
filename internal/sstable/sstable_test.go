package sstable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"amethystkv/internal/memtable"
)

type fakeLocker struct{ n int }

func (f *fakeLocker) AcquireSSTableShared() func() {
	f.n++
	return func() { f.n-- }
}

func TestFileNameAndParseFileNoRoundTrip(t *testing.T) {
	require.Equal(t, "00000042.sst", FileName(42))
	n, err := ParseFileNo("00000042.sst")
	require.NoError(t, err)
	require.Equal(t, uint64(42), n)
}

func TestParseFileNoRejectsCorruptNames(t *testing.T) {
	for _, name := range []string{"notanumber.sst", "42.sst", "000000042.sst", "00000042.txt"} {
		_, err := ParseFileNo(name)
		require.Error(t, err, name)
	}
}

func TestNextFileNumberSkipsCorruptNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName(3)), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.sst"), nil, 0o644))

	n, err := NextFileNumber(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(4), n)
}

func TestNextFileNumberEmptyDir(t *testing.T) {
	dir := t.TempDir()
	n, err := NextFileNumber(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)
}

func TestWriteThenReaderGet(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, 1, []memtable.Entry{
		{Key: []byte("disk_key1"), Value: []byte("disk_value1")},
		{Key: []byte("disk_key2"), Value: []byte("disk_value2")},
		{Key: []byte("zebra"), Value: []byte("last_alphabetical")},
	})
	require.NoError(t, err)

	locker := &fakeLocker{}
	r, err := Open(dir, locker)
	require.NoError(t, err)

	v, ok, err := r.Get(locker, []byte("disk_key2"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("disk_value2"), v)

	_, ok, err = r.Get(locker, []byte("nonexistent"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReaderNewestWins(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, 1, []memtable.Entry{
		{Key: []byte("disk_key1"), Value: []byte("disk_value1")},
	})
	require.NoError(t, err)
	_, err = Write(dir, 2, []memtable.Entry{
		{Key: []byte("disk_key1"), Value: []byte("newer_disk_value1")},
	})
	require.NoError(t, err)

	locker := &fakeLocker{}
	r, err := Open(dir, locker)
	require.NoError(t, err)

	v, ok, err := r.Get(locker, []byte("disk_key1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("newer_disk_value1"), v)
}

func TestReaderTombstoneShadowsOlderValue(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, 1, []memtable.Entry{
		{Key: []byte("disk_key"), Value: []byte("disk_value")},
	})
	require.NoError(t, err)
	_, err = Write(dir, 2, []memtable.Entry{
		{Key: []byte("disk_key"), Value: []byte("__TOMBSTONE__")},
	})
	require.NoError(t, err)

	locker := &fakeLocker{}
	r, err := Open(dir, locker)
	require.NoError(t, err)

	_, ok, err := r.Get(locker, []byte("disk_key"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReaderDiscardsZeroRecordFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, 1, nil)
	require.NoError(t, err)
	_, err = Write(dir, 2, []memtable.Entry{{Key: []byte("apple"), Value: []byte("first_alphabetical")}})
	require.NoError(t, err)

	locker := &fakeLocker{}
	r, err := Open(dir, locker)
	require.NoError(t, err)
	require.Len(t, r.files, 1)
	require.Equal(t, uint64(2), r.files[0].fileNo)
}

func TestReaderSortedNewestFirst(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []uint64{1, 5, 3} {
		_, err := Write(dir, n, []memtable.Entry{{Key: []byte("k"), Value: []byte("v")}})
		require.NoError(t, err)
	}

	locker := &fakeLocker{}
	r, err := Open(dir, locker)
	require.NoError(t, err)
	require.Equal(t, []uint64{5, 3, 1}, []uint64{r.files[0].fileNo, r.files[1].fileNo, r.files[2].fileNo})
}
