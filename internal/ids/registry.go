// Package ids tracks identifiers declared across a document set and
// enforces uniqueness within each identifier's scope.
package ids

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/dgallion1/speclint/internal/schema"
)

// EntityKind says what declared an identifier.
type EntityKind string

const (
	EntityModule EntityKind = "module"
	EntityClass  EntityKind = "class"
)

// ErrFrozen is returned by Register after Freeze.
var ErrFrozen = errors.New("identifier registry is frozen")

// Entry is one declared identifier.
type Entry struct {
	ID          string       `json:"id"`
	Scope       schema.Scope `json:"scope"`
	File        string       `json:"file"`
	Section     int          `json:"section"`
	SectionPath []string     `json:"section_path,omitempty"`
	Line        int          `json:"line"`
	Column      int          `json:"column"`
	Kind        EntityKind   `json:"kind"`
	TypeName    string       `json:"type"`
}

// Location renders file:line.
func (e Entry) Location() string {
	return e.File + ":" + strconv.Itoa(e.Line)
}

// Bucket returns the uniqueness bucket key for e.
func (e Entry) Bucket() string {
	switch e.Scope {
	case schema.ScopeDirectory:
		return "dir:" + path.Dir(e.File)
	case schema.ScopeModule:
		return "doc:" + e.File
	case schema.ScopeSection:
		return "sec:" + e.File + "#" + strconv.Itoa(e.Section)
	}
	return "global"
}

// DuplicateError carries every occurrence of an identifier within one bucket.
type DuplicateError struct {
	ID          string
	Scope       schema.Scope
	Occurrences []Entry
}

func (e *DuplicateError) Error() string {
	locs := make([]string, len(e.Occurrences))
	for i, o := range e.Occurrences {
		locs[i] = o.Location()
	}
	return fmt.Sprintf("duplicate identifier %q in %s scope: %s", e.ID, e.Scope, strings.Join(locs, ", "))
}

type bucket struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

// Registry accumulates identifiers during registration and answers lookups
// once frozen. Registration into distinct buckets proceeds in parallel.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	frozen  bool

	byID   map[string][]Entry
	sorted []Entry
}

func NewRegistry() *Registry {
	return &Registry{buckets: make(map[string]*bucket)}
}

func (r *Registry) bucket(key string) (*bucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return nil, ErrFrozen
	}
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{entries: make(map[string][]Entry)}
		r.buckets[key] = b
	}
	return b, nil
}

// Register records e. If the identifier already exists in the same bucket,
// e is still recorded and a *DuplicateError listing every occurrence so far
// is returned.
func (r *Registry) Register(e Entry) error {
	if e.Scope == "" {
		e.Scope = schema.ScopeGlobal
	}
	b, err := r.bucket(e.Bucket())
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[e.ID] = append(b.entries[e.ID], e)
	if n := len(b.entries[e.ID]); n > 1 {
		occ := make([]Entry, n)
		copy(occ, b.entries[e.ID])
		return &DuplicateError{ID: e.ID, Scope: e.Scope, Occurrences: occ}
	}
	return nil
}

// Freeze ends registration and builds the lookup index. Safe to call twice.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return
	}
	r.frozen = true

	r.byID = make(map[string][]Entry)
	for _, b := range r.buckets {
		b.mu.Lock()
		for id, entries := range b.entries {
			r.byID[id] = append(r.byID[id], entries...)
			r.sorted = append(r.sorted, entries...)
		}
		b.mu.Unlock()
	}
	for _, entries := range r.byID {
		sortEntries(entries)
	}
	sortEntries(r.sorted)
}

// Duplicates returns one error per (bucket, identifier) declared more than
// once, ordered by first occurrence. Requires Freeze.
func (r *Registry) Duplicates() []*DuplicateError {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*DuplicateError
	for _, b := range r.buckets {
		for id, entries := range b.entries {
			if len(entries) < 2 {
				continue
			}
			occ := make([]Entry, len(entries))
			copy(occ, entries)
			sortEntries(occ)
			out = append(out, &DuplicateError{ID: id, Scope: occ[0].Scope, Occurrences: occ})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Occurrences[0], out[j].Occurrences[0]
		if less(a, b) || less(b, a) {
			return less(a, b)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Lookup returns every entry for id in file/line order. Requires Freeze.
func (r *Registry) Lookup(id string) []Entry {
	return r.byID[id]
}

// LookupIn returns the first entry for id declared in file.
func (r *Registry) LookupIn(file, id string) (Entry, bool) {
	for _, e := range r.byID[id] {
		if e.File == file {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of registered entries. Requires Freeze.
func (r *Registry) Len() int {
	return len(r.sorted)
}

// Entries returns every entry in file/line order. Requires Freeze.
func (r *Registry) Entries() []Entry {
	return r.sorted
}

// Similar returns up to limit distinct registered identifiers that share
// id's non-numeric prefix and length, sorted.
func (r *Registry) Similar(id string, limit int) []string {
	prefix := idPrefix(id)
	if prefix == "" {
		return nil
	}
	var out []string
	for candidate := range r.byID {
		if candidate == id || len(candidate) != len(id) {
			continue
		}
		if idPrefix(candidate) == prefix {
			out = append(out, candidate)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// idPrefix returns the leading run of characters before the first digit.
func idPrefix(id string) string {
	i := strings.IndexFunc(id, unicode.IsDigit)
	if i < 0 {
		return ""
	}
	return id[:i]
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
}

func less(a, b Entry) bool {
	if a.File != b.File {
		return a.File < b.File
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	if a.Column != b.Column {
		return a.Column < b.Column
	}
	return a.ID < b.ID
}
