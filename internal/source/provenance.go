// Package source maps location stamps back to source files: locating the
// file a compiler recorded, caching its lines and grouping statements into
// blocks that share a source line.
package source

import "fmt"

// Provenance is where a source file comes from.
type Provenance int

const (
	Project  Provenance = iota // inside the current workspace
	External                   // dependency sources, registry checkouts
	Stdlib                     // the standard library shipped with the toolchain
	Compiler                   // compiler sources, generated code
)

func (p Provenance) String() string {
	switch p {
	case Project:
		return "project"
	case External:
		return "external"
	case Stdlib:
		return "stdlib"
	case Compiler:
		return "compiler"
	}
	return fmt.Sprintf("provenance(%d)", int(p))
}

// Filter selects which provenances are eligible for interleaving. It is a
// closed set of three levels.
type Filter int

const (
	FilterWorkspace Filter = iota // project only
	FilterCrates                  // project and external libraries
	FilterAll                     // everything, stdlib and compiler included
)

// ParseFilter maps "workspace" / "crates" / "all" to a Filter.
func ParseFilter(s string) (Filter, error) {
	switch s {
	case "", "workspace", "project":
		return FilterWorkspace, nil
	case "crates", "external":
		return FilterCrates, nil
	case "all":
		return FilterAll, nil
	}
	return FilterWorkspace, fmt.Errorf("source: unknown source filter %q", s)
}

func (f Filter) String() string {
	switch f {
	case FilterCrates:
		return "crates"
	case FilterAll:
		return "all"
	}
	return "workspace"
}

// Allows reports whether sources of provenance p pass the filter.
func (f Filter) Allows(p Provenance) bool {
	switch p {
	case Project:
		return true
	case External:
		return f == FilterCrates || f == FilterAll
	}
	return f == FilterAll
}
