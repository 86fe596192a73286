package engine

import (
	"sort"

	"github.com/classtrace/classtrace-api/internal/models"
)

// Resolver maps observed display names to canonical roster names and assigns
// each canonical name a stable integer ID for the duration of one run.
// IDs are positions in the descending-sorted canonical name list and carry no
// meaning across meetings.
type Resolver struct {
	names   []string
	ids     map[string]int
	aliases map[string]string
}

// NewResolver builds a resolver from roster entries. At most one alias per
// canonical name is supported; an empty alias means none.
func NewResolver(entries []models.RosterEntry) *Resolver {
	r := &Resolver{
		ids:     make(map[string]int, len(entries)),
		aliases: make(map[string]string, len(entries)),
	}
	for _, entry := range entries {
		name := entry.FullName()
		if name == "" {
			continue
		}
		if _, ok := r.ids[name]; ok {
			continue
		}
		r.ids[name] = 0
		r.names = append(r.names, name)
		if entry.Alias != nil && *entry.Alias != "" {
			r.aliases[*entry.Alias] = name
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(r.names)))
	for i, name := range r.names {
		r.ids[name] = i
	}
	return r
}

// Resolve substitutes an alias with its canonical name. Names without an
// alias entry pass through unchanged, so resolving an already-canonical name
// is the identity.
func (r *Resolver) Resolve(name string) string {
	if canonical, ok := r.aliases[name]; ok {
		return canonical
	}
	return name
}

// Known reports whether the (already resolved) name is on the roster.
func (r *Resolver) Known(name string) bool {
	_, ok := r.ids[name]
	return ok
}

// ID returns the stable integer ID for a canonical name.
func (r *Resolver) ID(name string) (int, bool) {
	id, ok := r.ids[name]
	return id, ok
}

// Names returns the canonical names in ID order.
func (r *Resolver) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of canonical names.
func (r *Resolver) Len() int {
	return len(r.names)
}
