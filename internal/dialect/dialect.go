// Package dialect classifies artifact lines into statements. Each artifact
// format has one Dialect; Classify drives it over every line and builds the
// file table and location stamps as it goes.
package dialect

import (
	"fmt"
	"log/slog"
	"strings"

	"asmscope/internal/artifact"
	"asmscope/internal/asm"
)

// Dialect recognizes the line shapes of one artifact format.
type Dialect interface {
	Name() string
	IsLabel(line string) (asm.Label, bool)
	IsDirective(line string) (asm.Directive, bool, error)
	IsComment(line string) bool
	// IsFunctionOpen reports whether stmts[i] starts a function and the
	// raw symbol name it defines.
	IsFunctionOpen(stmts []asm.Statement, i int) (name string, ok bool)
}

// absorber is implemented by dialects that attach leading statements other
// than section and symbol metadata to the function that follows them.
type absorber interface {
	absorbs(s *asm.Statement, name string) bool
}

// closer is implemented by dialects that can tell where the code of a
// function ends. inclusive means s itself is the last statement of code.
type closer interface {
	closes(s *asm.Statement, name string) (end, inclusive bool)
}

// referencer is implemented by dialects whose branch targets are not
// assembler-local labels.
type referencer interface {
	references(text string) []string
}

// For returns the dialect for an artifact format.
func For(f artifact.Format) (Dialect, error) {
	switch f {
	case artifact.FormatIntel, artifact.FormatATT:
		return GAS{}, nil
	case artifact.FormatLLVM, artifact.FormatLLVMInput:
		return LLVM{}, nil
	case artifact.FormatMIR:
		return MIR{}, nil
	case artifact.FormatWasm:
		return Wasm{}, nil
	}
	return nil, fmt.Errorf("dialect: no text dialect for format %q", f)
}

// Absorbs reports whether s, found immediately before the statement that
// opens function name, describes that function and belongs to it.
func Absorbs(d Dialect, s *asm.Statement, name string) bool {
	if a, ok := d.(absorber); ok && a.absorbs(s, name) {
		return true
	}
	if s.Kind != asm.KindDirective || s.Directive == nil {
		return false
	}
	switch s.Directive.Kind {
	case asm.DirSection, asm.DirAlign:
		return true
	case asm.DirGlobal, asm.DirType, asm.DirVisibility:
		return s.Directive.Symbol == "" || s.Directive.Symbol == name
	}
	return false
}

// ClosesBody reports whether s marks the end of the code of function name.
func ClosesBody(d Dialect, s *asm.Statement, name string) (end, inclusive bool) {
	if c, ok := d.(closer); ok {
		return c.closes(s, name)
	}
	return false, false
}

// References returns the local branch targets named in operand text.
func References(d Dialect, text string) []string {
	if r, ok := d.(referencer); ok {
		return r.references(text)
	}
	return asm.LocalLabels(text)
}

// Options controls classification.
type Options struct {
	Mode   asm.Mode
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Classified is the statement stream of one artifact.
type Classified struct {
	Artifact   *artifact.Artifact
	Statements []asm.Statement
	Table      *asm.DirectiveTable
	Diags      asm.Diags
}

// Classify turns every line of a into a statement. Location stamps persist
// until superseded; a stamp with line 0 clears the active one. In strict
// mode the first malformed directive or undeclared file id is returned as an
// error; in best-effort mode the line degrades and a diagnostic is kept.
func Classify(a *artifact.Artifact, d Dialect, opts Options) (*Classified, error) {
	lines := a.Lines()
	c := &Classified{
		Artifact:   a,
		Statements: make([]asm.Statement, 0, len(lines)),
		Table:      asm.NewDirectiveTable(),
	}
	log := opts.logger()

	var active *asm.Loc
	for i, line := range lines {
		lineNo := i + 1
		st, err := classifyLine(d, line)
		if err != nil {
			perr := &ParseError{Artifact: a.Name(), Line: lineNo, Reason: err.Error()}
			if opts.Mode == asm.ModeStrict {
				return nil, perr
			}
			c.Diags.Add(lineNo, asm.DiagMalformed, err.Error())
			log.Debug("degraded malformed directive", "artifact", a.Name(), "line", lineNo, "reason", err)
			st = opaqueDirective(line)
		}
		st.Line = lineNo

		if st.Kind == asm.KindDirective {
			switch dir := st.Directive; dir.Kind {
			case asm.DirFile:
				if !c.Table.Declare(dir.File.ID, dir.File.Path) {
					c.Diags.Addf(lineNo, asm.DiagRedeclared, "file id %d redeclared as %q", dir.File.ID, dir.File.Path)
				}
			case asm.DirLoc:
				if _, ok := c.Table.Path(dir.Loc.File); !ok {
					uerr := &UnresolvedFileIDError{Artifact: a.Name(), Line: lineNo, ID: dir.Loc.File}
					if opts.Mode == asm.ModeStrict {
						return nil, uerr
					}
					c.Diags.Add(lineNo, asm.DiagUnresolved, uerr.Error())
					active = nil
				} else if dir.Loc.Line == 0 {
					active = nil
				} else {
					active = dir.Loc
				}
			}
		}
		st.Loc = active
		c.Statements = append(c.Statements, st)
	}
	return c, nil
}

func classifyLine(d Dialect, line string) (asm.Statement, error) {
	st := asm.Statement{Text: line}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		st.Kind = asm.KindBlank
		return st, nil
	}
	if dir, ok, err := d.IsDirective(line); err != nil {
		return st, err
	} else if ok {
		st.Kind = asm.KindDirective
		st.Directive = &dir
		if dir.Kind == asm.DirData {
			st.Refs = References(d, dir.Args)
		}
		return st, nil
	}
	if lbl, ok := d.IsLabel(line); ok {
		st.Kind = asm.KindLabel
		st.Label = &lbl
		return st, nil
	}
	if d.IsComment(line) {
		st.Kind = asm.KindComment
		return st, nil
	}
	st.Kind = asm.KindInstruction
	st.Op, st.Args = splitInstruction(trimmed)
	st.Refs = References(d, st.Args)
	return st, nil
}

func splitInstruction(s string) (op, args string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func opaqueDirective(line string) asm.Statement {
	name, args := splitInstruction(strings.TrimSpace(line))
	return asm.Statement{
		Text: line,
		Kind: asm.KindDirective,
		Directive: &asm.Directive{
			Kind: asm.DirGeneric,
			Name: strings.TrimPrefix(name, "."),
			Args: args,
		},
	}
}
