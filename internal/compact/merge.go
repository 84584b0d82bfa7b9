package compact

import (
	"bufio"
	"container/heap"
	"errors"
	"io"
	"os"

	"amethystkv/internal/memtable"
	"amethystkv/internal/record"
)

// mergeInput is one input file's sequential cursor during a merge round.
type mergeInput struct {
	file    *os.File
	reader  *bufio.Reader
	fileAge int // position in the oldest->newest input list; lower = older
	key     []byte
	value   []byte
	done    bool
}

func openMergeInput(path string, fileAge int) (*mergeInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m := &mergeInput{file: f, reader: bufio.NewReader(f), fileAge: fileAge}
	if err := m.advance(); err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

// advance loads the next record into key/value, or marks the input done
// once it's exhausted. A truncated trailing record ends this input's
// contribution to the merge without error.
func (m *mergeInput) advance() error {
	key, value, err := record.DecodeSSTableRecord(m.reader)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, record.ErrMalformed) {
			m.done = true
			return nil
		}
		return err
	}
	m.key, m.value = key, value
	return nil
}

func (m *mergeInput) close() error {
	return m.file.Close()
}

// mergeHeap orders live inputs by (current key ascending, file_age
// ascending) so that, for equal keys, the oldest input is popped first —
// letting the newer occurrence overwrite it in the caller's output map.
type mergeHeap []*mergeInput

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if c := compareBytes(h[i].key, h[j].key); c != 0 {
		return c < 0
	}
	return h[i].fileAge < h[j].fileAge
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(*mergeInput)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func compareBytes(a, b []byte) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}

// mergeResult is the outcome of merging a set of input files.
type mergeResult struct {
	entries []memtable.Entry
}

// mergeFiles performs the multi-way merge described in the compaction
// spec: open an iterator per input (oldest first, so fileAge is its
// index), pop the minimum (key, fileAge) pair repeatedly, let later
// (newer) occurrences of a key overwrite earlier ones in the output map,
// and drop a key from the output when its winning value is a tombstone
// and dropTombstones is true — otherwise the tombstone is preserved in
// the output so it keeps shadowing older, non-input data until it
// reaches the oldest tier.
func mergeFiles(inputPaths []string, dropTombstones bool) (*mergeResult, error) {
	inputs := make([]*mergeInput, 0, len(inputPaths))
	defer func() {
		for _, in := range inputs {
			in.close()
		}
	}()

	h := make(mergeHeap, 0, len(inputPaths))
	for age, path := range inputPaths {
		in, err := openMergeInput(path, age)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
		if !in.done {
			h = append(h, in)
		}
	}
	heap.Init(&h)

	merged := make(map[string][]byte)
	order := make([]string, 0)
	seen := make(map[string]bool)

	for h.Len() > 0 {
		in := heap.Pop(&h).(*mergeInput)
		key := string(in.key)

		if !seen[key] {
			seen[key] = true
			order = append(order, key)
		}
		merged[key] = in.value

		if err := in.advance(); err != nil {
			return nil, err
		}
		if !in.done {
			heap.Push(&h, in)
		}
	}

	entries := make([]memtable.Entry, 0, len(order))
	for _, k := range order {
		v := merged[k]
		if record.IsTombstone(v) && dropTombstones {
			continue
		}
		entries = append(entries, memtable.Entry{Key: []byte(k), Value: v})
	}
	return &mergeResult{entries: entries}, nil
}
