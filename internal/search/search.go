// Package search resolves user queries to functions of a segmented listing.
package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"asmscope/internal/segment"
)

// Entry is one display name of the listing with the sizes of every
// function sharing it, in ordinal order.
type Entry struct {
	Name  string `json:"name" yaml:"name"`
	Sizes []int  `json:"sizes" yaml:"sizes"`
	// First is the listing position of the first function in the group.
	First int `json:"index" yaml:"index"`
}

type group struct {
	name  string
	funcs []*segment.Function
	first int
}

// Index groups functions by display name. Groups keep first-seen order and
// each group is ordered by ordinal. It is read-only once built.
type Index struct {
	listing *segment.Listing
	groups  []*group
	byName  map[string]*group
	names   []string
}

// New builds the index of l.
func New(l *segment.Listing) *Index {
	ix := &Index{listing: l, byName: make(map[string]*group)}
	for pos, f := range l.Functions {
		g, ok := ix.byName[f.Display]
		if !ok {
			g = &group{name: f.Display, first: pos}
			ix.byName[f.Display] = g
			ix.groups = append(ix.groups, g)
			ix.names = append(ix.names, f.Display)
		}
		g.funcs = append(g.funcs, f)
	}
	return ix
}

// Listing returns the listing the index was built from.
func (ix *Index) Listing() *segment.Listing { return ix.listing }

// Len is the number of functions.
func (ix *Index) Len() int { return len(ix.listing.Functions) }

// List returns every display name group in first-seen order.
func (ix *Index) List() []Entry {
	out := make([]Entry, 0, len(ix.groups))
	for _, g := range ix.groups {
		e := Entry{Name: g.name, First: g.first, Sizes: make([]int, len(g.funcs))}
		for i, f := range g.funcs {
			e.Sizes[i] = f.Size
		}
		out = append(out, e)
	}
	return out
}

// Lookup finds a function by exact raw or alias name.
func (ix *Index) Lookup(raw string) (*segment.Function, bool) {
	return ix.listing.Lookup(raw)
}

// ByPosition selects the n-th function of the listing.
func (ix *Index) ByPosition(n int) (*segment.Function, error) {
	if n < 0 || n >= len(ix.listing.Functions) {
		return nil, &OrdinalOutOfRangeError{Requested: n, Count: len(ix.listing.Functions)}
	}
	return ix.listing.Functions[n], nil
}

// Resolution is the outcome of a query: either one function or several
// equally good candidates.
type Resolution struct {
	Query      string
	Function   *segment.Function
	Candidates []*segment.Function
}

// Ambiguous reports whether the query matched more than one function.
func (r *Resolution) Ambiguous() bool { return r.Function == nil }

// Err converts an ambiguous resolution into an AmbiguousError.
func (r *Resolution) Err() error {
	if !r.Ambiguous() {
		return nil
	}
	return &AmbiguousError{Query: r.Query, Candidates: r.Candidates}
}

// Resolve finds the function a query names. Exact raw names (aliases
// included) win, then exact display names, then case-sensitive substrings
// of display names. An ordinal (>= 0) picks one function out of the
// matching group or candidate list. Several matches without an ordinal are
// a non-error ambiguous Resolution.
func (ix *Index) Resolve(query string, ordinal int) (*Resolution, error) {
	if f, ok := ix.listing.Lookup(query); ok {
		return &Resolution{Query: query, Function: f}, nil
	}
	if g, ok := ix.byName[query]; ok {
		return pick(query, g.funcs, ordinal)
	}

	var matched []*segment.Function
	for _, g := range ix.groups {
		if strings.Contains(g.name, query) {
			matched = append(matched, g.funcs...)
		}
	}
	if len(matched) > 0 {
		// Flatten in listing order so candidates are first-seen.
		matched = ix.inListingOrder(matched)
		return pick(query, matched, ordinal)
	}
	return nil, &NotFoundError{Query: query, Nearest: ix.Nearest(query, 5)}
}

func pick(query string, funcs []*segment.Function, ordinal int) (*Resolution, error) {
	if ordinal >= 0 {
		if ordinal >= len(funcs) {
			return nil, &OrdinalOutOfRangeError{Requested: ordinal, Count: len(funcs)}
		}
		return &Resolution{Query: query, Function: funcs[ordinal]}, nil
	}
	if len(funcs) == 1 {
		return &Resolution{Query: query, Function: funcs[0]}, nil
	}
	return &Resolution{Query: query, Candidates: funcs}, nil
}

func (ix *Index) inListingOrder(funcs []*segment.Function) []*segment.Function {
	want := make(map[*segment.Function]bool, len(funcs))
	for _, f := range funcs {
		want[f] = true
	}
	out := make([]*segment.Function, 0, len(funcs))
	for _, f := range ix.listing.Functions {
		if want[f] {
			out = append(out, f)
		}
	}
	return out
}

// Nearest ranks display names by fuzzy similarity to query.
func (ix *Index) Nearest(query string, limit int) []string {
	matches := fuzzy.Find(query, ix.names)
	if len(matches) == 0 {
		lower := strings.ToLower(query)
		for _, n := range ix.names {
			if strings.Contains(strings.ToLower(n), lower) {
				matches = append(matches, fuzzy.Match{Str: n})
			}
		}
	}
	out := make([]string, 0, limit)
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
