// Package roster loads the authoritative list of hosts allowed to check in.
package roster

import (
	"errors"
	"sort"
	"time"
)

// ErrUnknownHost is returned when a host id is not on the roster.
var ErrUnknownHost = errors.New("unknown host")

// ErrEmptyRoster is returned when a source yields no hosts.
var ErrEmptyRoster = errors.New("no authorized hosts loaded")

// DefaultExpectedHours applies when a row has no usable hours value.
const DefaultExpectedHours = 8.0

// UnknownName is shown for host ids that have no roster entry.
const UnknownName = "Unknown"

// Entry is one roster row.
type Entry struct {
	HostID        string  `json:"host_id"`
	DisplayName   string  `json:"display_name"`
	ExpectedHours float64 `json:"expected_hours"`
}

// Roster is an immutable snapshot of the host list.
type Roster struct {
	entries     map[string]Entry
	source      string
	fingerprint string
	loadedAt    time.Time
}

// New builds a snapshot from entries. Later duplicates replace earlier ones.
func New(entries []Entry) *Roster {
	r := &Roster{entries: make(map[string]Entry, len(entries)), loadedAt: time.Now()}
	for _, e := range entries {
		r.entries[e.HostID] = e
	}
	return r
}

// Lookup returns the entry for id.
func (r *Roster) Lookup(id string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	e, ok := r.entries[id]
	return e, ok
}

// DisplayName returns the entry's name, or UnknownName.
func (r *Roster) DisplayName(id string) string {
	if e, ok := r.Lookup(id); ok && e.DisplayName != "" {
		return e.DisplayName
	}
	return UnknownName
}

// IDs returns all host ids in ascending order.
func (r *Roster) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns all entries ordered by host id.
func (r *Roster) Entries() []Entry {
	ids := r.IDs()
	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = r.entries[id]
	}
	return out
}

// Len returns the number of hosts.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Source is the file the snapshot was read from.
func (r *Roster) Source() string { return r.source }

// Fingerprint is the blake3 hex digest of the source file.
func (r *Roster) Fingerprint() string { return r.fingerprint }

// LoadedAt reports when the snapshot was built.
func (r *Roster) LoadedAt() time.Time { return r.loadedAt }
