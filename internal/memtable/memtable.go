// Package memtable implements the in-memory table that absorbs recent
// writes before they are flushed to an SSTable. A MemTable carries no
// internal locking of its own — callers hold the active or immutable
// memtable mutex around every call, per the store's locking discipline.
package memtable

import "sort"

// Entry is a single key/value pair as produced by Snapshot, in the order
// a sorted iteration would visit it.
type Entry struct {
	Key   []byte
	Value []byte
}

// MemTable is an unordered mapping from key to value with overwrite
// semantics. Deleted keys are represented by the record.Tombstone value,
// not by removal — callers are responsible for tombstone interpretation.
type MemTable struct {
	items map[string][]byte
}

// New returns an empty MemTable.
func New() *MemTable {
	return &MemTable{items: make(map[string][]byte)}
}

// Put inserts or overwrites the value for key.
func (m *MemTable) Put(key, value []byte) {
	m.items[string(key)] = cloneBytes(value)
}

// Get returns the value for key and whether it was present.
func (m *MemTable) Get(key []byte) ([]byte, bool) {
	v, ok := m.items[string(key)]
	return v, ok
}

// Size returns the number of distinct keys held.
func (m *MemTable) Size() int {
	return len(m.items)
}

// Snapshot returns the current key/value pairs in ascending key order,
// suitable for sorted serialization into an SSTable.
func (m *MemTable) Snapshot() []Entry {
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: []byte(k), Value: m.items[k]})
	}
	return entries
}

func cloneBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
