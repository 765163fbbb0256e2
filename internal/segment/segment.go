// Package segment splits a classified statement stream into functions.
package segment

import (
	"errors"
	"fmt"
	"log/slog"

	"asmscope/internal/asm"
	"asmscope/internal/demangle"
	"asmscope/internal/dialect"
)

// Function is one routine: a contiguous statement range plus every symbol
// name bound to it.
type Function struct {
	Raw     string
	Name    demangle.Name
	Display string
	Ordinal int      // position among functions sharing Display, first seen is 0
	Aliases []string // raw names bound with .set / =

	Open    int // statement that opened the function
	Start   int // first statement, including absorbed metadata
	End     int // exclusive
	BodyEnd int // end of code; [BodyEnd, End) is trailing data and metadata
	Size    int // non-blank statements, or bytes for disassembled symbols

	Addr     uint64 // disassembly only
	ByteSize uint64 // disassembly only
}

// Names returns the raw name followed by all aliases.
func (f *Function) Names() []string {
	return append([]string{f.Raw}, f.Aliases...)
}

// Alias is a `.set Name, Target` or `Name = Target` equivalence.
type Alias struct {
	Name   string
	Target string
	Line   int
}

// Options controls naming.
type Options struct {
	Names  demangle.Mode
	Scheme demangle.Scheme
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Listing is the segmented form of one artifact. It is read-only once built.
type Listing struct {
	Statements []asm.Statement
	Table      *asm.DirectiveTable
	Functions  []*Function
	Unresolved []Alias
	Names      demangle.Mode

	byRaw map[string]*Function
}

var ErrNilInput = errors.New("segment: nil input")

// Segment opens a function wherever the dialect says one starts, absorbing
// the metadata directly above it, and closes it at the next opening or at
// end of input. Aliases are bound as they are seen when their target is
// already known; forward references are resolved in a second pass over the
// finished function arena.
func Segment(c *dialect.Classified, d dialect.Dialect, opts Options) (*Listing, error) {
	if c == nil || d == nil {
		return nil, ErrNilInput
	}
	stmts := c.Statements
	log := opts.logger()

	var (
		funcs   []*Function
		cur     *Function
		pending []Alias
		known   = make(map[string]*Function)
	)
	for i := range stmts {
		if name, ok := d.IsFunctionOpen(stmts, i); ok {
			floor := 0
			if cur != nil {
				floor = cur.Open + 1
			}
			start := i
			for start > floor && dialect.Absorbs(d, &stmts[start-1], name) {
				start--
			}
			if cur != nil {
				closeFunction(cur, start)
			}
			cur = &Function{Raw: name, Open: i, Start: start}
			funcs = append(funcs, cur)
			if _, dup := known[name]; !dup {
				known[name] = cur
			}
			continue
		}

		s := &stmts[i]
		if cur != nil && cur.BodyEnd == 0 {
			if end, inclusive := dialect.ClosesBody(d, s, cur.Raw); end {
				cur.BodyEnd = i
				if inclusive {
					cur.BodyEnd = i + 1
				}
			}
		}
		if s.Kind == asm.KindDirective && s.Directive.Kind == asm.DirAlias {
			a := Alias{Name: s.Directive.Symbol, Target: s.Directive.Target, Line: s.Line}
			if !bindAlias(known, a) {
				pending = append(pending, a)
			}
		}
	}
	if cur != nil {
		closeFunction(cur, len(stmts))
	}

	// Aliases of aliases resolve once their target is bound, so repeat
	// until a pass makes no progress.
	for progress := true; progress && len(pending) > 0; {
		progress = false
		rest := pending[:0]
		for _, a := range pending {
			if bindAlias(known, a) {
				progress = true
				continue
			}
			rest = append(rest, a)
		}
		pending = rest
	}
	for _, a := range pending {
		log.Warn("alias target not defined", "alias", a.Name, "target", a.Target, "line", a.Line)
	}

	l := NewListing(stmts, c.Table, funcs, opts)
	l.Unresolved = pending
	return l, nil
}

func closeFunction(f *Function, end int) {
	f.End = end
	if f.BodyEnd == 0 || f.BodyEnd > end {
		f.BodyEnd = end
	}
}

func bindAlias(known map[string]*Function, a Alias) bool {
	f, ok := known[a.Target]
	if !ok {
		return false
	}
	if _, taken := known[a.Name]; taken {
		return true
	}
	f.Aliases = append(f.Aliases, a.Name)
	known[a.Name] = f
	return true
}

// NewListing names funcs under opts and assigns ordinals by first
// appearance of each display name. Functions with a statement range get
// their size counted; others keep the size they carry.
func NewListing(stmts []asm.Statement, table *asm.DirectiveTable, funcs []*Function, opts Options) *Listing {
	l := &Listing{
		Statements: stmts,
		Table:      table,
		Functions:  funcs,
		Names:      opts.Names,
		byRaw:      make(map[string]*Function, len(funcs)),
	}
	seen := make(map[string]int)
	for _, f := range funcs {
		f.Name = demangle.Parse(f.Raw, opts.Scheme)
		f.Display = f.Name.Display(opts.Names)
		f.Ordinal = seen[f.Display]
		seen[f.Display]++
		if f.End > f.Start {
			f.Size = countNonBlank(stmts[f.Start:f.End])
		}
		if _, dup := l.byRaw[f.Raw]; !dup {
			l.byRaw[f.Raw] = f
		}
		for _, a := range f.Aliases {
			if _, dup := l.byRaw[a]; !dup {
				l.byRaw[a] = f
			}
		}
	}
	return l
}

func countNonBlank(stmts []asm.Statement) int {
	n := 0
	for i := range stmts {
		if stmts[i].Kind != asm.KindBlank {
			n++
		}
	}
	return n
}

// Lookup finds the function bound to a raw symbol or alias name.
func (l *Listing) Lookup(raw string) (*Function, bool) {
	f, ok := l.byRaw[raw]
	return f, ok
}

// PreambleEnd is the index of the first statement owned by a function.
func (l *Listing) PreambleEnd() int {
	if len(l.Functions) == 0 {
		return len(l.Statements)
	}
	return l.Functions[0].Start
}

// Body returns the code statements of f.
func (l *Listing) Body(f *Function) []asm.Statement {
	return l.Statements[f.Start:f.BodyEnd]
}

// Validate checks that the preamble and the function ranges tile the
// statement sequence exactly.
func (l *Listing) Validate() error {
	next := l.PreambleEnd()
	for i, f := range l.Functions {
		if f.Start != next {
			return fmt.Errorf("segment: function %d (%s) starts at %d, want %d", i, f.Raw, f.Start, next)
		}
		if f.End < f.Start || f.BodyEnd < f.Start || f.BodyEnd > f.End {
			return fmt.Errorf("segment: function %d (%s) has bad range [%d, %d) body end %d", i, f.Raw, f.Start, f.End, f.BodyEnd)
		}
		next = f.End
	}
	if next != len(l.Statements) {
		return fmt.Errorf("segment: ranges end at %d, want %d", next, len(l.Statements))
	}
	return nil
}
