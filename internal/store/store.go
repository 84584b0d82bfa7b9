// Package store implements the facade the rest of the engine is built
// around: Put/Get/Delete, the WAL append that precedes every memtable
// mutation, the newest-to-oldest read cascade across memory and the
// SSTable set, and the metadata refresh hook the background actors call
// after they change the SSTable set.
package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"amethystkv/internal/lockmgr"
	"amethystkv/internal/memtable"
	"amethystkv/internal/record"
	"amethystkv/internal/sstable"
	"amethystkv/internal/wal"
)

// ActiveSlot holds the memtable currently receiving writes and the WAL
// file covering it. The flusher swaps both fields out together, under
// Mu, when it freezes the active table.
type ActiveSlot struct {
	Mu  sync.Mutex
	MT  *memtable.MemTable
	WAL *wal.WAL
}

// ImmutableSlot holds the memtable the flusher has frozen and is in the
// process of persisting, plus the path of the retired WAL file covering
// it. MT is nil whenever no flush is in flight.
type ImmutableSlot struct {
	Mu             sync.Mutex
	MT             *memtable.MemTable
	RetiredWALPath string
}

// Store is the durable, embeddable key-value engine. The data directory
// named at Open is exclusively owned by the returned Store.
type Store struct {
	dataDir string

	Active    *ActiveSlot
	Immutable *ImmutableSlot
	Lock      *lockmgr.Manager
	Reader    *sstable.Reader

	nextSeq uint64
}

// DataDir returns the directory this store owns.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Open creates dataDir if missing, replays any existing WAL (including a
// leftover .flushing file from a crash mid-flush) into a fresh memtable,
// and builds the SSTable reader over whatever .sst files already exist.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	mt := memtable.New()
	apply := func(seq uint64, key, value []byte) {
		mt.Put(key, value)
		if seq == 0 {
			// seq is metadata only; zero is a valid value for records
			// written before sequencing existed and is not load-bearing.
			return
		}
	}

	walPath := filepath.Join(dataDir, wal.FileName)
	flushingPath := walPath + wal.FlushingSuffix

	// Recovery: a .flushing file left behind by a crash between freeze
	// and publish still holds data that may or may not have reached an
	// SSTable. Replaying it into the memtable is always safe — if it was
	// already flushed, the replayed value equals what's on disk.
	if _, err := os.Stat(flushingPath); err == nil {
		if err := wal.Replay(flushingPath, apply); err != nil {
			return nil, fmt.Errorf("store: replay %s: %w", flushingPath, err)
		}
		if err := os.Remove(flushingPath); err != nil {
			return nil, fmt.Errorf("store: remove stale %s: %w", flushingPath, err)
		}
	}

	var maxSeq uint64
	if err := wal.Replay(walPath, func(seq uint64, key, value []byte) {
		if seq > maxSeq {
			maxSeq = seq
		}
		mt.Put(key, value)
	}); err != nil {
		return nil, fmt.Errorf("store: replay %s: %w", walPath, err)
	}

	activeWAL, err := wal.Open(walPath)
	if err != nil {
		return nil, err
	}

	lock := lockmgr.New()
	reader, err := sstable.Open(dataDir, lock)
	if err != nil {
		activeWAL.Close()
		return nil, err
	}

	return &Store{
		dataDir: dataDir,
		Active:  &ActiveSlot{MT: mt, WAL: activeWAL},
		Immutable: &ImmutableSlot{},
		Lock:    lock,
		Reader:  reader,
		nextSeq: maxSeq,
	}, nil
}

// Put durably appends the mutation to the WAL, then applies it to the
// active memtable. WAL append precedes memtable mutation — a failed
// append leaves the memtable unmutated.
func (s *Store) Put(key, value []byte) error {
	seq := atomic.AddUint64(&s.nextSeq, 1)

	release := s.Lock.AcquireMemtable(&s.Active.Mu)
	defer release()

	if err := s.Active.WAL.Append(seq, key, value); err != nil {
		return err
	}
	s.Active.MT.Put(key, value)
	return nil
}

// Delete is equivalent to Put(key, record.Tombstone).
func (s *Store) Delete(key []byte) error {
	return s.Put(key, record.Tombstone)
}

// Get checks the active memtable, then the immutable memtable (if a
// flush is in flight), then the SSTable set newest-to-oldest. A
// tombstone encountered at any layer shadows older values and yields
// (nil, false).
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	if v, ok, found := lookupMemtable(&s.Active.Mu, s.Active.MT, key); found {
		return v, ok, nil
	}
	if v, ok, found := lookupMemtable(&s.Immutable.Mu, s.Immutable.MT, key); found {
		return v, ok, nil
	}
	return s.Reader.Get(s.Lock, key)
}

// lookupMemtable checks mt for key under mu. found reports whether mt had
// any binding (even a tombstone) for key; ok reports whether that
// binding was a live value.
func lookupMemtable(mu *sync.Mutex, mt *memtable.MemTable, key []byte) (value []byte, ok bool, found bool) {
	mu.Lock()
	defer mu.Unlock()
	if mt == nil {
		return nil, false, false
	}
	v, present := mt.Get(key)
	if !present {
		return nil, false, false
	}
	if bytes.Equal(v, record.Tombstone) {
		return nil, false, true
	}
	return v, true, true
}

// RefreshSSTableMetadata instructs the reader to reload its metadata. It
// is called by the compactor while already holding the SSTable
// exclusive lock, and by the flusher immediately after publishing — it
// never acquires the lock itself.
func (s *Store) RefreshSSTableMetadata() error {
	return s.Reader.Refresh()
}

// Close releases the active WAL's file handle.
func (s *Store) Close() error {
	release := s.Lock.AcquireMemtable(&s.Active.Mu)
	defer release()
	return s.Active.WAL.Close()
}
