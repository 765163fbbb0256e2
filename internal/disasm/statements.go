package disasm

import (
	"strings"

	"asmscope/internal/asm"
)

// ToStatements converts one symbol's instructions into listing statements:
// the symbol label, then each instruction preceded by its label_N when it
// has one. Statements carry their byte ranges and no source stamps.
func ToStatements(symbol string, insts []Inst) []asm.Statement {
	out := make([]asm.Statement, 0, len(insts)+1)
	out = append(out, asm.Statement{
		Text:  symbol + ":",
		Kind:  asm.KindLabel,
		Label: &asm.Label{Name: symbol, Kind: asm.LabelGlobal},
	})
	for _, in := range insts {
		if in.Label != "" {
			out = append(out, asm.Statement{
				Text:  in.Label + ":",
				Kind:  asm.KindLabel,
				Label: &asm.Label{Name: in.Label, Kind: asm.LabelLocal},
			})
		}
		st := asm.Statement{
			Text:  "\t" + in.Text,
			Kind:  asm.KindInstruction,
			Op:    in.Mnemonic,
			Args:  in.Operands,
			Bytes: &asm.ByteRange{Addr: in.Addr, Bytes: in.Raw},
		}
		if IsLocalLabel(in.Ref) {
			st.Refs = []string{in.Ref}
		}
		out = append(out, st)
	}
	return out
}

// IsLocalLabel reports whether name is a synthetic jump label.
func IsLocalLabel(name string) bool {
	rest, ok := strings.CutPrefix(name, "label_")
	if !ok || rest == "" {
		return false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
