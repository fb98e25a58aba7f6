package cache

import "sort"

// Table maps USNs to entries.
type Table struct {
	entries map[string]*Entry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Get returns the entry for usn, if any.
func (t *Table) Get(usn string) (*Entry, bool) {
	e, ok := t.entries[usn]
	return e, ok
}

// Has reports whether usn is cached.
func (t *Table) Has(usn string) bool {
	_, ok := t.entries[usn]
	return ok
}

// Put stores e under its USN, replacing any previous entry.
func (t *Table) Put(e *Entry) {
	t.entries[e.USN()] = e
}

// Delete removes usn and returns the removed entry.
func (t *Table) Delete(usn string) (*Entry, bool) {
	e, ok := t.entries[usn]
	if ok {
		delete(t.entries, usn)
	}
	return e, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Clear removes every entry.
func (t *Table) Clear() {
	t.entries = make(map[string]*Entry)
}

// Entries returns the entries sorted by USN.
func (t *Table) Entries() []*Entry {
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].USN() < out[j].USN()
	})
	return out
}
