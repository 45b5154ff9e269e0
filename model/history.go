package model

import (
	"fmt"
	"sort"
)

// HistoryStore is the ordered, append-only record of every entry of one
// benchmark suite. Values are obtained from Repository.Load and written back
// with Repository.Persist; Append and Insert never modify their receiver.
type HistoryStore struct {
	Suite      string
	LastUpdate int64
	Entries    []Entry

	base snapshot
}

// snapshot records the persisted state a store was derived from so that
// Persist can detect writes that happened in between.
type snapshot struct {
	count      int
	lastUpdate int64
	revision   Revision
}

// NewHistoryStore returns an empty store for the suite.
func NewHistoryStore(suite string) *HistoryStore {
	return &HistoryStore{Suite: suite, Entries: []Entry{}}
}

func newLoadedHistoryStore(suite string, entries []Entry, rev Revision) *HistoryStore {
	h := &HistoryStore{
		Suite:      suite,
		Entries:    make([]Entry, 0, len(entries)),
		LastUpdate: maxDate(entries),
	}
	for _, e := range entries {
		h.Entries = append(h.Entries, e.clone())
	}
	h.base = snapshot{count: len(entries), lastUpdate: h.LastUpdate, revision: rev}
	return h
}

// Len returns the number of entries in the store.
func (h *HistoryStore) Len() int { return len(h.Entries) }

// IsEmpty is true when no run has ever been recorded for the suite.
func (h *HistoryStore) IsEmpty() bool { return len(h.Entries) == 0 }

// Append returns a new store with entry added at the end. The entry must not
// predate the store's last update; use Insert for backfills.
func (h *HistoryStore) Append(entry Entry) (*HistoryStore, error) {
	if entry.Date < h.LastUpdate {
		return nil, &OutOfOrderError{Suite: h.Suite, Date: entry.Date, LastUpdate: h.LastUpdate}
	}

	out := h.copyWithCapacity(len(h.Entries) + 1)
	out.Entries = append(out.Entries, entry.clone())
	if entry.Date > out.LastUpdate {
		out.LastUpdate = entry.Date
	}

	return out, nil
}

// Insert returns a new store with entry placed after every existing entry
// recorded at or before its date. Existing entries keep their relative
// order, so this is the explicit operation for re-runs and backfills.
func (h *HistoryStore) Insert(entry Entry) *HistoryStore {
	idx := sort.Search(len(h.Entries), func(i int) bool {
		return h.Entries[i].Date > entry.Date
	})

	out := h.copyWithCapacity(len(h.Entries) + 1)
	out.Entries = append(out.Entries, Entry{})
	copy(out.Entries[idx+1:], out.Entries[idx:])
	out.Entries[idx] = entry.clone()
	if entry.Date > out.LastUpdate {
		out.LastUpdate = entry.Date
	}

	return out
}

// Units returns the unit recorded for every measurement name in the
// store. When a name was recorded with several units the most recent wins.
func (h *HistoryStore) Units() map[string]string {
	out := map[string]string{}
	for _, e := range h.Entries {
		for _, b := range e.Benches {
			out[b.Name] = b.Unit
		}
	}
	return out
}

func (h *HistoryStore) copyWithCapacity(capacity int) *HistoryStore {
	out := &HistoryStore{
		Suite:      h.Suite,
		LastUpdate: h.LastUpdate,
		Entries:    make([]Entry, len(h.Entries), capacity),
		base:       h.base,
	}
	copy(out.Entries, h.Entries)
	return out
}

func (h *HistoryStore) checkOrder() error {
	for i := 1; i < len(h.Entries); i++ {
		if h.Entries[i].Date < h.Entries[i-1].Date {
			return &CorruptStoreError{
				Suite:  h.Suite,
				Reason: fmt.Sprintf("entry %d (date %d) precedes entry %d (date %d)", i, h.Entries[i].Date, i-1, h.Entries[i-1].Date),
			}
		}
	}
	return nil
}

func maxDate(entries []Entry) int64 {
	var out int64
	for _, e := range entries {
		if e.Date > out {
			out = e.Date
		}
	}
	return out
}
