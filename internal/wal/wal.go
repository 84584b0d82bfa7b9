// Package wal implements the write-ahead log: a durable, sequence-tagged,
// length-prefixed record stream that every mutation crosses before it
// becomes visible in the active memtable.
package wal

import (
	"errors"
	"io"
	"os"
	"sync"

	"amethystkv/internal/record"
)

// FileName is the canonical WAL filename within a data directory. At any
// quiescent moment (no flush in progress) exactly one file by this name
// exists and is the active log.
const FileName = "wal.log"

// FlushingSuffix names the temporary file a WAL is renamed to while its
// covering memtable is frozen and being flushed. It is deleted once the
// resulting SSTable is durably published.
const FlushingSuffix = ".flushing"

// WAL is a durable, append-only, sequence-tagged record log covering the
// currently active memtable. Appends are serialized by an internal mutex
// so concurrent writers observe a total order identical to record
// arrival.
type WAL struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Open creates (if absent) or reopens the WAL file at path in append mode.
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &WAL{file: f, path: path}, nil
}

// Path returns the filesystem path backing this WAL.
func (w *WAL) Path() string {
	return w.path
}

// Append persists a single record, assigning it seq, and flushes it to
// the OS before returning. A failure leaves the memtable unmutated — the
// caller must not apply the mutation if Append errors.
func (w *WAL) Append(seq uint64, key, value []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.New("wal: log is closed")
	}
	if _, err := record.EncodeWALRecord(w.file, seq, key, value); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close releases the underlying file handle. Safe to call more than once.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Replay reads every well-formed record from the WAL at path in
// append order and invokes apply for each. A truncated trailing record —
// the signature of a crash mid-append — ends replay for this file without
// error; everything read successfully so far has already been applied.
// Replay does not require the WAL to be open; it opens its own handle.
func Replay(path string, apply func(seq uint64, key, value []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	for {
		seq, key, value, err := record.DecodeWALRecord(f)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, record.ErrMalformed) {
				return nil
			}
			return err
		}
		apply(seq, key, value)
	}
}
