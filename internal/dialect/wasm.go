package dialect

import "asmscope/internal/asm"

// Wasm is the assembler text LLVM emits for WebAssembly targets. It is GAS
// with .functype declarations and structured control flow: functions end at
// end_function and branches name nesting depths, not labels.
type Wasm struct{ GAS }

func (Wasm) Name() string { return "wasm" }

func (Wasm) closes(s *asm.Statement, _ string) (bool, bool) {
	return s.Kind == asm.KindInstruction && s.Op == "end_function", true
}

func (Wasm) references(string) []string { return nil }
