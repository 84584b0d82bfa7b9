// Package compact implements the background actor that discovers the
// SSTable set, multi-way merges its oldest files, and publishes the
// merged result in their place — bounding read amplification and
// reclaiming space from overwrites and tombstones.
package compact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"amethystkv/internal/kverrors"
	"amethystkv/internal/lockmgr"
	"amethystkv/internal/logging"
	"amethystkv/internal/sstable"
)

// Refresher is the subset of *store.Store the compactor needs: a hook to
// reload SSTable reader metadata after a round publishes. It is
// expressed as an interface, set after both the store and compactor
// exist (store.Store has no compactor field), mirroring the spec's
// "weak, optional collaborator" back-reference.
type Refresher interface {
	RefreshSSTableMetadata() error
}

// Compactor periodically discovers .sst files and merges the oldest
// batch of them into one, dropping tombstones that have reached the
// oldest tier.
type Compactor struct {
	dataDir          string
	triggerThreshold int
	batchSize        int
	lock             *lockmgr.Manager
	store            Refresher
	pollInterval     time.Duration
	log              *logging.Logger

	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
}

// New returns a Compactor over dataDir. triggerThreshold is the minimum
// count of .sst files required before a round runs; batchSize is the
// maximum number of files merged per round.
func New(dataDir string, triggerThreshold, batchSize int, lock *lockmgr.Manager, pollInterval time.Duration) *Compactor {
	return &Compactor{
		dataDir:          dataDir,
		triggerThreshold: triggerThreshold,
		batchSize:        batchSize,
		lock:             lock,
		pollInterval:     pollInterval,
		log:              logging.New("compact"),
	}
}

// SetStore wires the optional store back-reference used to refresh
// reader metadata after a round publishes. Safe to call at most once,
// before Start.
func (c *Compactor) SetStore(st Refresher) {
	c.store = st
}

// Start launches the background loop.
func (c *Compactor) Start() error {
	if c.started {
		return kverrors.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.group = &errgroup.Group{}
	c.started = true
	c.group.Go(func() error {
		return c.loop(ctx)
	})
	return nil
}

// Stop signals the loop to finish its in-flight round (no mid-round
// cancellation) and exit, then waits for it.
func (c *Compactor) Stop() error {
	if !c.started {
		return kverrors.ErrNotRunning
	}
	c.started = false
	c.cancel()
	return c.group.Wait()
}

func (c *Compactor) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		ran, err := c.runRound()
		if err != nil {
			return err
		}
		if ran {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.pollInterval):
		}
	}
}

// discoverSorted lists every valid .sst file in the data directory,
// sorted by file number ascending (oldest first).
func (c *Compactor) discoverSorted() ([]uint64, error) {
	entries, err := os.ReadDir(c.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var nums []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, err := sstable.ParseFileNo(e.Name())
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums, nil
}

// runRound performs at most one compaction round. It reports whether a
// round actually ran (so the caller can immediately check for more work
// instead of sleeping).
func (c *Compactor) runRound() (ran bool, err error) {
	all, err := c.discoverSorted()
	if err != nil {
		return false, err
	}
	if len(all) < c.triggerThreshold {
		return false, nil
	}

	release := c.lock.AcquireSSTableExclusive()
	defer release()

	// Re-discover under the lock: files may have changed since the
	// unlocked check above (another round, or a flush publish).
	current, err := c.discoverSorted()
	if err != nil {
		return false, err
	}
	if len(current) < c.triggerThreshold {
		return false, nil
	}

	n := c.batchSize
	if n > len(current) {
		n = len(current)
	}
	inputs := current[:n]

	oldestOnDisk := current[0]

	paths := make([]string, 0, len(inputs))
	for _, fileNo := range inputs {
		paths = append(paths, filepath.Join(c.dataDir, sstable.FileName(fileNo)))
	}

	// A tombstone may be dropped only when every live occurrence of its
	// key could possibly be among this round's inputs — a safe
	// approximation of that is requiring the oldest tier (the smallest
	// file number on disk) to itself be part of this round.
	dropTombstones := inputs[0] == oldestOnDisk

	result, err := mergeFiles(paths, dropTombstones)
	if err != nil {
		return false, fmt.Errorf("compact: merge: %w", err)
	}

	fileNo, err := sstable.NextFileNumber(c.dataDir)
	if err != nil {
		return false, err
	}
	if _, err := sstable.Write(c.dataDir, fileNo, result.entries); err != nil {
		return false, fmt.Errorf("compact: write %s: %w", sstable.FileName(fileNo), err)
	}

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("compact: remove input %s: %w", p, err)
		}
	}

	if c.store != nil {
		if err := c.store.RefreshSSTableMetadata(); err != nil {
			return false, err
		}
	}

	c.log.Infof("merged %d files (%d entries) into %s", len(inputs), len(result.entries), sstable.FileName(fileNo))
	return true, nil
}
