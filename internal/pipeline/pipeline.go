// Package pipeline runs queries against artifacts. A Session parses one
// artifact once, textual or binary, and answers any number of requests
// against the resulting listing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/zboralski/lattice"
	"golang.org/x/sync/errgroup"

	"asmscope/internal/artifact"
	"asmscope/internal/asm"
	"asmscope/internal/callgraph"
	"asmscope/internal/demangle"
	"asmscope/internal/dialect"
	"asmscope/internal/disasm"
	"asmscope/internal/objfile"
	"asmscope/internal/search"
	"asmscope/internal/segment"
	"asmscope/internal/simplify"
	"asmscope/internal/source"
)

// NoIndex marks an unset Request.Ordinal or Request.Position.
const NoIndex = -1

var (
	ErrEverythingBinary = errors.New("pipeline: whole-artifact output needs a text artifact")
	ErrNoCFG            = errors.New("pipeline: control flow graphs need a disassembled binary")
)

// SourceOptions controls source interleaving.
type SourceOptions struct {
	Interleave bool
	Filter     source.Filter
	Locator    source.Locator
}

// Options configures a Session.
type Options struct {
	Names    demangle.Mode
	Scheme   demangle.Scheme
	Mode     asm.Mode
	Simplify simplify.Options
	Raw      bool // show function ranges unfiltered
	Sources  SourceOptions
	Context  int // call depth to include around the target
	Syntax   disasm.Syntax
	Member   string // archive member to disassemble
	Logger   *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Session is one parsed artifact. It is not safe for concurrent use.
type Session struct {
	Artifact *artifact.Artifact
	Listing  *segment.Listing
	Index    *search.Index
	Diags    asm.Diags

	opts   Options
	log    *slog.Logger
	consts simplify.ConstantTable

	obj     *objfile.File
	syms    map[*segment.Function]objfile.Symbol
	decoded map[*segment.Function]*decoded
}

type decoded struct {
	insts []disasm.Inst
	edges []disasm.CallEdge
}

// Open parses a. Text artifacts go through classification and
// segmentation; binaries are read through their symbol table and
// disassembled lazily, one function at a time.
func Open(a *artifact.Artifact, opts Options) (*Session, error) {
	log := opts.logger().With("artifact", a.Name())
	if a.Mangling != "" {
		scheme, err := demangle.ParseScheme(a.Mangling)
		if err != nil {
			log.Warn("ignoring mangling hint", "hint", a.Mangling, "err", err)
		} else {
			opts.Scheme = scheme
		}
	}
	s := &Session{Artifact: a, opts: opts, log: log}
	if a.Format == artifact.FormatBinary {
		if err := s.openBinary(); err != nil {
			return nil, err
		}
	} else if err := s.openText(); err != nil {
		return nil, err
	}
	s.Index = search.New(s.Listing)
	log.Debug("session open", "format", a.Format, "functions", s.Index.Len())
	return s, nil
}

func (s *Session) segmentOptions() segment.Options {
	return segment.Options{Names: s.opts.Names, Scheme: s.opts.Scheme, Logger: s.log}
}

func (s *Session) openText() error {
	d, err := dialect.For(s.Artifact.Format)
	if err != nil {
		return err
	}
	c, err := dialect.Classify(s.Artifact, d, dialect.Options{Mode: s.opts.Mode, Logger: s.log})
	if err != nil {
		return err
	}
	l, err := segment.Segment(c, d, s.segmentOptions())
	if err != nil {
		return err
	}
	if err := l.Validate(); err != nil {
		return err
	}
	s.Listing = l
	s.Diags = c.Diags
	s.consts = simplify.ScanConstants(l.Statements)
	return nil
}

func (s *Session) openBinary() error {
	f, err := objfile.Open(s.Artifact.Path, s.opts.Member)
	if err != nil {
		return err
	}
	s.obj = f
	s.syms = make(map[*segment.Function]objfile.Symbol, len(f.Symbols))
	s.decoded = make(map[*segment.Function]*decoded)
	funcs := make([]*segment.Function, 0, len(f.Symbols))
	for _, sym := range f.Symbols {
		fn := &segment.Function{Raw: sym.Name, Addr: sym.Addr, ByteSize: sym.Size, Size: int(sym.Size)}
		s.syms[fn] = sym
		funcs = append(funcs, fn)
	}
	s.Listing = segment.NewListing(nil, nil, funcs, s.segmentOptions())
	if s.Artifact.Target.Arch == "" {
		s.Artifact.Target.Arch = f.Arch
	}
	return nil
}

// Binary reports whether the session disassembles its functions.
func (s *Session) Binary() bool { return s.obj != nil }

// Request selects what Run produces. Set Ordinal and Position to NoIndex
// when unused.
type Request struct {
	Query      string
	Ordinal    int
	Position   int
	Everything bool
}

// View is the filtered rendering input for one function. Body and
// Constants index into Statements; separators are simplify.Separator.
type View struct {
	Function   *segment.Function
	Statements []asm.Statement
	Table      *asm.DirectiveTable
	Body       []int
	Constants  [][]int

	// Disassembly only.
	Insts []disasm.Inst
	Edges []disasm.CallEdge
}

// Result is the outcome of one request. Exactly one of Entries, Ambiguous,
// Views or Everything is set when Err is nil.
type Result struct {
	Artifact   *artifact.Artifact
	Entries    []search.Entry
	Ambiguous  *search.Resolution
	Views      []*View
	Everything []int
	Err        error

	session *Session
}

// Session returns the session that produced r, nil if it failed to open.
func (r *Result) Session() *Session { return r.session }

// Run answers req.
func (s *Session) Run(req Request) (*Result, error) {
	res := &Result{Artifact: s.Artifact, session: s}
	switch {
	case req.Everything:
		if s.Binary() {
			return nil, ErrEverythingBinary
		}
		stmts := s.Listing.Statements
		if s.opts.Raw {
			res.Everything = simplify.Range(0, len(stmts))
		} else {
			res.Everything = simplify.ApplyAll(stmts, s.opts.Simplify)
		}
		return res, nil
	case req.Position >= 0:
		f, err := s.Index.ByPosition(req.Position)
		if err != nil {
			return nil, err
		}
		return s.withViews(res, f)
	case req.Query == "":
		res.Entries = s.Index.List()
		return res, nil
	}

	r, err := s.Index.Resolve(req.Query, req.Ordinal)
	if err != nil {
		return nil, err
	}
	if r.Ambiguous() {
		s.log.Debug("ambiguous query", "query", req.Query, "candidates", len(r.Candidates))
		res.Ambiguous = r
		return res, nil
	}
	return s.withViews(res, r.Function)
}

func (s *Session) withViews(res *Result, target *segment.Function) (*Result, error) {
	funcs, err := s.Context(target, s.opts.Context)
	if err != nil {
		return nil, err
	}
	for _, f := range funcs {
		v, err := s.View(f)
		if err != nil {
			return nil, err
		}
		res.Views = append(res.Views, v)
	}
	return res, nil
}

// Context returns target and the functions it calls within depth hops.
// Binaries follow disassembled call edges; text listings follow symbol
// references in operands.
func (s *Session) Context(target *segment.Function, depth int) ([]*segment.Function, error) {
	if !s.Binary() {
		return callgraph.Expand(s.Index, target, depth), nil
	}
	var firstErr error
	funcs := callgraph.ExpandFunc(target, depth, func(f *segment.Function) []*segment.Function {
		callees, err := s.binaryCallees(f)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return callees
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return funcs, nil
}

func (s *Session) binaryCallees(f *segment.Function) ([]*segment.Function, error) {
	d, err := s.decode(f)
	if err != nil {
		return nil, err
	}
	seen := map[*segment.Function]bool{f: true}
	var out []*segment.Function
	for _, e := range d.edges {
		if e.TargetName == "" {
			continue
		}
		g, ok := s.Index.Lookup(e.TargetName)
		if !ok || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out, nil
}

// View filters f for display.
func (s *Session) View(f *segment.Function) (*View, error) {
	if s.Binary() {
		return s.binaryView(f)
	}
	v := &View{Function: f, Statements: s.Listing.Statements, Table: s.Listing.Table}
	if s.opts.Raw {
		v.Body = simplify.Range(f.Start, f.End)
		return v, nil
	}
	r := simplify.Apply(v.Statements, f, s.consts, s.opts.Simplify)
	v.Body, v.Constants = r.Body, r.Constants
	return v, nil
}

func (s *Session) binaryView(f *segment.Function) (*View, error) {
	d, err := s.decode(f)
	if err != nil {
		return nil, err
	}
	stmts := disasm.ToStatements(f.Raw, d.insts)
	v := &View{Function: f, Statements: stmts, Insts: d.insts, Edges: d.edges}
	if s.opts.Raw {
		v.Body = simplify.Range(0, len(stmts))
		return v, nil
	}
	// The synthetic listing has no trailing data, so constants never apply.
	whole := &segment.Function{Raw: f.Raw, End: len(stmts), BodyEnd: len(stmts)}
	opts := s.opts.Simplify
	opts.Constants = false
	v.Body = simplify.Apply(stmts, whole, nil, opts).Body
	return v, nil
}

func (s *Session) decode(f *segment.Function) (*decoded, error) {
	if d, ok := s.decoded[f]; ok {
		return d, nil
	}
	sym, ok := s.syms[f]
	if !ok {
		return nil, fmt.Errorf("pipeline: %s is not a symbol of %s", f.Raw, s.Artifact.Name())
	}
	code, err := s.obj.Code(sym)
	if err != nil {
		return nil, err
	}
	arch, err := disasm.ParseArch(s.obj.Arch)
	if err != nil {
		return nil, err
	}
	insts, err := disasm.Disassemble(code, disasm.Options{
		BaseAddr: sym.Addr,
		Arch:     arch,
		Syntax:   s.opts.Syntax,
		Symbols:  s.obj.Resolver(sym),
		Relocs:   s.obj.Relocations(sym),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: disassemble %s: %w", f.Raw, err)
	}
	d := &decoded{insts: insts, edges: disasm.CallEdges(insts)}
	s.decoded[f] = d
	s.log.Debug("disassembled", "symbol", f.Raw, "addr", fmt.Sprintf("0x%x", sym.Addr), "insts", len(insts), "edges", len(d.edges))
	return d, nil
}

// Correlator annotates blocks of this session's text views with source.
func (s *Session) Correlator() *source.Correlator {
	return &source.Correlator{
		Table:   s.Listing.Table,
		Locator: s.opts.Sources.Locator,
		Filter:  s.opts.Sources.Filter,
		Logger:  s.log,
	}
}

// FuncInfos collects call graph input for funcs. Call targets are named
// the way graph nodes are; calls leaving the set keep their symbol names.
func (s *Session) FuncInfos(funcs []*segment.Function) ([]callgraph.FuncInfo, error) {
	if !s.Binary() {
		return callgraph.FromListing(s.Index, funcs), nil
	}
	out := make([]callgraph.FuncInfo, 0, len(funcs))
	for _, f := range funcs {
		d, err := s.decode(f)
		if err != nil {
			return nil, err
		}
		edges := make([]disasm.CallEdge, len(d.edges))
		copy(edges, d.edges)
		for i := range edges {
			if g, ok := s.Index.Lookup(edges[i].TargetName); ok {
				edges[i].TargetName = callgraph.NodeName(g)
			}
		}
		out = append(out, callgraph.FuncInfo{Name: callgraph.NodeName(f), Insts: d.insts, CallEdges: edges})
	}
	return out, nil
}

// CallGraph builds the call graph among funcs.
func (s *Session) CallGraph(funcs []*segment.Function) (*lattice.Graph, error) {
	infos, err := s.FuncInfos(funcs)
	if err != nil {
		return nil, err
	}
	return callgraph.BuildCallGraph(infos), nil
}

// CFG builds basic block graphs for disassembled funcs.
func (s *Session) CFG(funcs []*segment.Function) (*lattice.CFGGraph, error) {
	if !s.Binary() {
		return nil, ErrNoCFG
	}
	infos, err := s.FuncInfos(funcs)
	if err != nil {
		return nil, err
	}
	return callgraph.BuildCFG(infos), nil
}

// RunAll opens and queries every artifact concurrently, at most
// GOMAXPROCS at a time. Failures are
// recorded per artifact in Result.Err and never cancel the others.
func RunAll(ctx context.Context, artifacts []*artifact.Artifact, opts Options, req Request) []*Result {
	results := make([]*Result, len(artifacts))
	var group errgroup.Group
	group.SetLimit(runtime.GOMAXPROCS(0))
	for i, a := range artifacts {
		group.Go(func() error {
			results[i] = runOne(ctx, a, opts, req)
			return nil
		})
	}
	// runOne keeps every failure in its Result, so Wait has none to report.
	_ = group.Wait()
	return results
}

func runOne(ctx context.Context, a *artifact.Artifact, opts Options, req Request) *Result {
	if err := ctx.Err(); err != nil {
		return &Result{Artifact: a, Err: err}
	}
	s, err := Open(a, opts)
	if err != nil {
		opts.logger().Warn("open failed", "artifact", a.Name(), "err", err)
		return &Result{Artifact: a, Err: err}
	}
	res, err := s.Run(req)
	if err != nil {
		return &Result{Artifact: a, Err: err, session: s}
	}
	return res
}
