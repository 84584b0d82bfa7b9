// Package flush implements the background actor that watches the active
// memtable, freezes it once it crosses a size threshold, and persists
// the frozen copy as a new SSTable.
package flush

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"amethystkv/internal/kverrors"
	"amethystkv/internal/logging"
	"amethystkv/internal/memtable"
	"amethystkv/internal/sstable"
	"amethystkv/internal/store"
	"amethystkv/internal/wal"
)

// Flusher periodically checks the active memtable's size and, once it
// reaches the threshold, freezes it and writes it out as a new SSTable.
type Flusher struct {
	store        *store.Store
	dataDir      string
	threshold    int
	pollInterval time.Duration
	log          *logging.Logger

	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
}

// New returns a Flusher bound to st. threshold is the memtable key count
// that triggers a flush; pollInterval is how often the loop checks size
// when there is nothing to do.
func New(st *store.Store, threshold int, pollInterval time.Duration) *Flusher {
	return &Flusher{
		store:        st,
		dataDir:      st.DataDir(),
		threshold:    threshold,
		pollInterval: pollInterval,
		log:          logging.New("flush"),
	}
}

// Start launches the background loop. Calling Start twice without an
// intervening Stop returns kverrors.ErrAlreadyRunning.
func (fl *Flusher) Start() error {
	if fl.started {
		return kverrors.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	fl.cancel = cancel
	fl.group = &errgroup.Group{}
	fl.started = true
	fl.group.Go(func() error {
		return fl.loop(ctx)
	})
	return nil
}

// Stop signals the loop to drain any pending immutable memtable and
// exit, then waits for it to finish. Calling Stop without a matching
// Start returns kverrors.ErrNotRunning.
func (fl *Flusher) Stop() error {
	if !fl.started {
		return kverrors.ErrNotRunning
	}
	fl.started = false
	fl.cancel()
	return fl.group.Wait()
}

func (fl *Flusher) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			_, err := fl.flushPendingImmutable()
			return err
		}

		if fl.hasPendingImmutable() {
			flushed, err := fl.flushPendingImmutable()
			if err != nil {
				return err
			}
			if flushed {
				continue
			}
			if fl.sleepOrStop(ctx) {
				_, err := fl.flushPendingImmutable()
				return err
			}
			continue
		}

		froze, err := fl.maybeFreeze()
		if err != nil {
			return err
		}
		if froze {
			continue
		}

		if fl.sleepOrStop(ctx) {
			_, err := fl.flushPendingImmutable()
			return err
		}
	}
}

func (fl *Flusher) sleepOrStop(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(fl.pollInterval):
		return false
	}
}

func (fl *Flusher) hasPendingImmutable() bool {
	fl.store.Immutable.Mu.Lock()
	defer fl.store.Immutable.Mu.Unlock()
	return fl.store.Immutable.MT != nil
}

// maybeFreeze checks the active memtable's size and, if it has crossed
// the threshold, swaps it into the immutable slot and rotates the WAL.
// It holds the active mutex for the entire decision and swap, and
// briefly nests the immutable mutex inside it — the only permitted
// lock order.
func (fl *Flusher) maybeFreeze() (froze bool, err error) {
	release := fl.store.Lock.AcquireMemtable(&fl.store.Active.Mu)
	defer release()

	if fl.store.Active.MT.Size() < fl.threshold {
		return false, nil
	}

	frozenMT := fl.store.Active.MT
	oldWALPath := fl.store.Active.WAL.Path()

	if err := fl.store.Active.WAL.Close(); err != nil {
		return false, err
	}
	flushingPath := oldWALPath + wal.FlushingSuffix
	if err := os.Rename(oldWALPath, flushingPath); err != nil {
		return false, err
	}
	newWAL, err := wal.Open(oldWALPath)
	if err != nil {
		return false, err
	}

	fl.store.Active.MT = memtable.New()
	fl.store.Active.WAL = newWAL

	releaseImmu := fl.store.Lock.AcquireMemtable(&fl.store.Immutable.Mu)
	fl.store.Immutable.MT = frozenMT
	fl.store.Immutable.RetiredWALPath = flushingPath
	releaseImmu()

	return true, nil
}

// flushPendingImmutable writes the immutable memtable (if any) to a new
// SSTable and retires the WAL file covering it. If the SSTable write
// fails, the immutable memtable is left in place for a retry on the next
// cycle and flushed reports false with a nil error.
func (fl *Flusher) flushPendingImmutable() (flushed bool, err error) {
	fl.store.Immutable.Mu.Lock()
	mt := fl.store.Immutable.MT
	retiredPath := fl.store.Immutable.RetiredWALPath
	fl.store.Immutable.Mu.Unlock()

	if mt == nil {
		return false, nil
	}

	start := time.Now()
	entries := mt.Snapshot()

	release := fl.store.Lock.AcquireSSTableExclusive()
	fileNo, err := sstable.NextFileNumber(fl.dataDir)
	if err != nil {
		release()
		return false, err
	}
	if _, err := sstable.Write(fl.dataDir, fileNo, entries); err != nil {
		release()
		fl.log.Warnf("flush of %d entries to %s failed, will retry: %v", len(entries), sstable.FileName(fileNo), err)
		return false, nil
	}
	if err := fl.store.RefreshSSTableMetadata(); err != nil {
		release()
		return false, err
	}
	release()

	fl.store.Immutable.Mu.Lock()
	fl.store.Immutable.MT = nil
	fl.store.Immutable.RetiredWALPath = ""
	fl.store.Immutable.Mu.Unlock()

	if retiredPath != "" {
		if err := os.Remove(retiredPath); err != nil && !os.IsNotExist(err) {
			fl.log.Warnf("failed to remove retired WAL %s: %v", retiredPath, err)
		}
	}

	fl.log.Duration(start, "flushed %d entries to %s", len(entries), sstable.FileName(fileNo))
	return true, nil
}
