package dialect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asmscope/internal/artifact"
	"asmscope/internal/asm"
)

func classify(t *testing.T, format artifact.Format, src string, mode asm.Mode) (*Classified, error) {
	t.Helper()
	d, err := For(format)
	require.NoError(t, err)
	return Classify(artifact.New("test.s", format, src), d, Options{Mode: mode})
}

func TestClassifyGASKinds(t *testing.T) {
	src := `	.text
	.file	1 "/work/demo" "src/lib.rs"
_ZN4demo3add17h0123456789abcdefE:
.Lfunc_begin0:
	.cfi_startproc
	.loc	1 3 0 prologue_end
	lea	eax, [rdi + rsi]
	# a comment

	jne	.LBB0_2
	ret
.Lfunc_end0:
	.size	_ZN4demo3add17h0123456789abcdefE, .Lfunc_end0-_ZN4demo3add17h0123456789abcdefE
`
	c, err := classify(t, artifact.FormatIntel, src, asm.ModeStrict)
	require.NoError(t, err)
	st := c.Statements
	require.Len(t, st, 13)

	kinds := make([]asm.Kind, len(st))
	for i := range st {
		kinds[i] = st[i].Kind
	}
	assert.Equal(t, []asm.Kind{
		asm.KindDirective, asm.KindDirective, asm.KindLabel, asm.KindLabel,
		asm.KindDirective, asm.KindDirective, asm.KindInstruction, asm.KindComment,
		asm.KindBlank, asm.KindInstruction, asm.KindInstruction, asm.KindLabel,
		asm.KindDirective,
	}, kinds)

	assert.Equal(t, asm.DirSection, st[0].Directive.Kind)
	assert.Equal(t, asm.LabelGlobal, st[2].Label.Kind)
	assert.Equal(t, asm.LabelLocal, st[3].Label.Kind)
	assert.True(t, st[4].IsDebug())
	assert.Equal(t, "lea", st[6].Op)
	assert.Equal(t, "eax, [rdi + rsi]", st[6].Args)
	assert.Equal(t, []string{".LBB0_2"}, st[9].Refs)
	assert.Equal(t, asm.DirSize, st[12].Directive.Kind)
	assert.Equal(t, "_ZN4demo3add17h0123456789abcdefE", st[12].Directive.Symbol)

	p, ok := c.Table.Path(1)
	require.True(t, ok)
	assert.Equal(t, "/work/demo/src/lib.rs", p)

	// Stamps persist from the .loc onwards.
	assert.Nil(t, st[4].Loc)
	require.NotNil(t, st[6].Loc)
	assert.Equal(t, uint64(3), st[6].Loc.Line)
	assert.Equal(t, uint64(3), st[10].Loc.Line)
}

func TestLocLineZeroClearsStamp(t *testing.T) {
	src := `	.file	1 "a.rs"
f:
	.loc	1 5 2
	nop
	.loc	1 0 0
	nop
	.loc	1 6
	nop
`
	c, err := classify(t, artifact.FormatATT, src, asm.ModeStrict)
	require.NoError(t, err)
	st := c.Statements
	assert.Equal(t, &asm.Loc{File: 1, Line: 5, Column: 2}, st[3].Loc)
	assert.Nil(t, st[5].Loc)
	assert.Equal(t, &asm.Loc{File: 1, Line: 6}, st[7].Loc)
}

func TestFileDirectiveForms(t *testing.T) {
	tests := []struct {
		line     string
		id       uint64
		path     string
		checksum string
	}{
		{`.file 1 "src/main.rs"`, 1, "src/main.rs", ""},
		{`.file 0 "/work" "src/lib.rs" md5 0x00112233445566778899aabbccddeeff`, 0, "/work/src/lib.rs", "0x00112233445566778899aabbccddeeff"},
		{`.file 2 "/work" "/rustc/abc/library/core/src/num/mod.rs"`, 2, "/rustc/abc/library/core/src/num/mod.rs", ""},
		{`.file 3 "C:\\src\\a b.rs"`, 3, `C:\src\a b.rs`, ""},
		{`.file 4 "tab\there\101"`, 4, "tab\there" + "A", ""},
		{`.file 5 "q\"uote"`, 5, `q"uote`, ""},
		{`.cv_file 1 "\\?\\C:\\work\\lib.rs" "0A0B" 1`, 1, `\\?\C:\work\lib.rs`, "0A0B"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			d, ok, err := GAS{}.IsDirective("\t" + tt.line)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, asm.DirFile, d.Kind)
			assert.Equal(t, tt.id, d.File.ID)
			assert.Equal(t, tt.path, d.File.Path)
			assert.Equal(t, tt.checksum, d.File.Checksum)
		})
	}

	d, ok, err := GAS{}.IsDirective(`	.file	"demo.c"`)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, asm.DirGeneric, d.Kind)
}

func TestCVLoc(t *testing.T) {
	src := `	.cv_file	1 "C:\\work\\lib.rs" "AB" 1
f:
	.cv_loc	0 1 42 7
	ret
`
	c, err := classify(t, artifact.FormatIntel, src, asm.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, &asm.Loc{File: 1, Line: 42, Column: 7}, c.Statements[3].Loc)
}

func TestMalformedFileIDIsParseError(t *testing.T) {
	src := "f:\n\t.file\tx \"a.rs\"\n\tret\n"
	_, err := classify(t, artifact.FormatIntel, src, asm.ModeStrict)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, "test.s", perr.Artifact)

	c, err := classify(t, artifact.FormatIntel, src, asm.ModeBestEffort)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Diags.Len())
	assert.Equal(t, asm.DirGeneric, c.Statements[1].Directive.Kind)
	assert.Equal(t, asm.KindInstruction, c.Statements[2].Kind)
}

func TestUndeclaredFileID(t *testing.T) {
	src := "f:\n\t.loc\t7 1 0\n\tret\n"
	_, err := classify(t, artifact.FormatIntel, src, asm.ModeStrict)
	var uerr *UnresolvedFileIDError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, uint64(7), uerr.ID)

	c, err := classify(t, artifact.FormatIntel, src, asm.ModeBestEffort)
	require.NoError(t, err)
	assert.Nil(t, c.Statements[2].Loc)
	assert.Equal(t, asm.DiagUnresolved, c.Diags.Items()[0].Kind)
}

func TestUnknownLinesAreInstructions(t *testing.T) {
	c, err := classify(t, artifact.FormatIntel, "\tthis is not assembly at all\n", asm.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, asm.KindInstruction, c.Statements[0].Kind)
	assert.Equal(t, "this", c.Statements[0].Op)
}

func TestAliasForms(t *testing.T) {
	d, ok, err := GAS{}.IsDirective("\t.set\tbaz, foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, asm.DirAlias, d.Kind)
	assert.Equal(t, "baz", d.Symbol)
	assert.Equal(t, "foo", d.Target)

	d, ok, err = GAS{}.IsDirective("baz = foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, asm.DirAlias, d.Kind)

	// Expressions are not aliases.
	d, ok, err = GAS{}.IsDirective("\t.set\tLset0, Ltmp1-Lfunc_begin0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, asm.DirGeneric, d.Kind)
}

func TestGASFunctionOpenSkipsDataLabels(t *testing.T) {
	src := `anon.1234.0:
	.ascii	"hello"
main:
	ret
`
	c, err := classify(t, artifact.FormatIntel, src, asm.ModeStrict)
	require.NoError(t, err)
	_, ok := GAS{}.IsFunctionOpen(c.Statements, 0)
	assert.False(t, ok)
	name, ok := GAS{}.IsFunctionOpen(c.Statements, 2)
	assert.True(t, ok)
	assert.Equal(t, "main", name)
	assert.Equal(t, asm.DirData, c.Statements[1].Directive.Kind)
}

func TestClassifyLLVM(t *testing.T) {
	src := `; ModuleID = 'demo'
source_filename = "demo"
@alloc_1 = private unnamed_addr constant <{ [5 x i8] }> <{ [5 x i8] c"hello" }>, align 1

; demo::add
; Function Attrs: nounwind
define i32 @_ZN4demo3add17h0123456789abcdefE(i32 %a, i32 %b) unnamed_addr #0 {
start:
  %0 = add i32 %a, %b
  br i1 %c, label %bb1, label %bb2
bb1:                                              ; preds = %start
  ret i32 %0
}

declare void @ext()
attributes #0 = { nounwind }
!0 = !{}
`
	c, err := classify(t, artifact.FormatLLVM, src, asm.ModeStrict)
	require.NoError(t, err)
	st := c.Statements
	assert.Equal(t, asm.KindComment, st[0].Kind)
	assert.Equal(t, asm.DirSection, st[1].Directive.Kind)
	assert.Equal(t, asm.DirData, st[2].Directive.Kind)
	assert.Equal(t, "alloc_1", st[2].Directive.Symbol)
	assert.Equal(t, asm.KindComment, st[4].Kind)
	require.Equal(t, asm.KindLabel, st[6].Kind)
	assert.Equal(t, "_ZN4demo3add17h0123456789abcdefE", st[6].Label.Name)
	assert.Equal(t, asm.LabelBlock, st[7].Label.Kind)
	assert.Equal(t, []string{"bb1", "bb2"}, st[9].Refs)
	assert.Equal(t, asm.LabelBlock, st[10].Label.Kind)
	assert.Equal(t, asm.KindInstruction, st[12].Kind)

	name, ok := LLVM{}.IsFunctionOpen(st, 6)
	assert.True(t, ok)
	assert.Equal(t, "_ZN4demo3add17h0123456789abcdefE", name)
	end, inclusive := ClosesBody(LLVM{}, &st[12], name)
	assert.True(t, end)
	assert.True(t, inclusive)
}

func TestClassifyMIR(t *testing.T) {
	src := `// MIR for ` + "`main`" + ` after PreCodegen

fn main() -> () {
    let mut _0: ();
    debug x => _1;

    bb0: {
        _1 = const 1_i32;
        goto -> bb1;
    }
}
`
	c, err := classify(t, artifact.FormatMIR, src, asm.ModeStrict)
	require.NoError(t, err)
	st := c.Statements
	assert.Equal(t, asm.KindComment, st[0].Kind)
	require.Equal(t, asm.KindLabel, st[2].Kind)
	assert.Equal(t, "fn main()", st[2].Label.Name)
	assert.True(t, st[4].IsDebug())
	assert.Equal(t, asm.LabelBlock, st[6].Label.Kind)
	assert.Equal(t, []string{"bb1"}, st[8].Refs)
	end, _ := ClosesBody(MIR{}, &st[10], "fn main()")
	assert.True(t, end)
}

func TestWasmEndsAtEndFunction(t *testing.T) {
	src := `	.functype	_ZN4demo3add17h0123456789abcdefE (i32, i32) -> (i32)
_ZN4demo3add17h0123456789abcdefE:
	local.get	0
	end_function
`
	c, err := classify(t, artifact.FormatWasm, src, asm.ModeStrict)
	require.NoError(t, err)
	st := c.Statements
	assert.Equal(t, asm.DirType, st[0].Directive.Kind)
	assert.Equal(t, "_ZN4demo3add17h0123456789abcdefE", st[0].Directive.Symbol)
	assert.True(t, Absorbs(Wasm{}, &st[0], "_ZN4demo3add17h0123456789abcdefE"))
	end, inclusive := ClosesBody(Wasm{}, &st[3], "")
	assert.True(t, end)
	assert.True(t, inclusive)
}

func TestForBinaryFails(t *testing.T) {
	_, err := For(artifact.FormatBinary)
	assert.Error(t, err)
}
