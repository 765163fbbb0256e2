package asm

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagMalformed  DiagKind = "malformed"
	DiagUnresolved DiagKind = "unresolved"
	DiagRedeclared DiagKind = "redeclared"
	DiagAlias      DiagKind = "alias"
)

// Diag records a non-fatal issue found while parsing an artifact.
type Diag struct {
	Line int      `json:"line"`
	Kind DiagKind `json:"kind"`
	Msg  string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] line %d: %s", d.Kind, d.Line, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(line int, kind DiagKind, msg string) {
	d.items = append(d.items, Diag{Line: line, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(line int, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{Line: line, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Mode controls error handling behavior.
type Mode int

const (
	ModeStrict     Mode = iota // first malformed directive returns an error
	ModeBestEffort             // degrade to a generic directive, accumulate diags
)

// ParseMode maps "strict" / "best-effort" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "strict":
		return ModeStrict, nil
	case "best-effort", "besteffort", "lenient":
		return ModeBestEffort, nil
	}
	return ModeStrict, fmt.Errorf("asm: unknown mode %q", s)
}

func (m Mode) String() string {
	if m == ModeBestEffort {
		return "best-effort"
	}
	return "strict"
}
