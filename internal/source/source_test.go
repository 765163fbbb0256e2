package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asmscope/internal/asm"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFilterAllows(t *testing.T) {
	tests := []struct {
		filter Filter
		prov   Provenance
		want   bool
	}{
		{FilterWorkspace, Project, true},
		{FilterWorkspace, External, false},
		{FilterWorkspace, Stdlib, false},
		{FilterCrates, External, true},
		{FilterCrates, Stdlib, false},
		{FilterCrates, Compiler, false},
		{FilterAll, Stdlib, true},
		{FilterAll, Compiler, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.filter, tt.prov), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Allows(tt.prov))
		})
	}

	_, err := ParseFilter("everything")
	assert.Error(t, err)
}

func TestLocate(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, "ws")
	sysroot := filepath.Join(root, "sysroot")
	cargo := filepath.Join(root, "cargo")

	writeFile(t, filepath.Join(ws, "src", "lib.rs"), "fn main() {}\n")
	writeFile(t, filepath.Join(root, "elsewhere", "gen.rs"), "x\n")
	writeFile(t, filepath.Join(sysroot, "lib", "rustlib", "src", "rust", "library", "core", "src", "num", "mod.rs"), "num\n")
	writeFile(t, filepath.Join(sysroot, "lib", "rustlib", "rustc-src", "rust", "compiler", "rustc_x", "lib.rs"), "rustc\n")
	writeFile(t, filepath.Join(cargo, "registry", "src", "index", "serde-1.0", "src", "lib.rs"), "serde\n")

	l := Locator{Workspace: ws, Sysroot: sysroot, Registry: cargo}

	tests := []struct {
		name     string
		recorded string
		want     string
		prov     Provenance
		ok       bool
	}{
		{"relative project", "src/lib.rs", filepath.Join(ws, "src", "lib.rs"), Project, true},
		{"absolute project", filepath.Join(ws, "src", "lib.rs"), filepath.Join(ws, "src", "lib.rs"), Project, true},
		{"absolute outside", filepath.Join(root, "elsewhere", "gen.rs"), filepath.Join(root, "elsewhere", "gen.rs"), External, true},
		{"stdlib", "/rustc/0123abcd/library/core/src/num/mod.rs", filepath.Join(sysroot, "lib", "rustlib", "src", "rust", "library", "core", "src", "num", "mod.rs"), Stdlib, true},
		{"compiler", "/rustc/0123abcd/compiler/rustc_x/lib.rs", filepath.Join(sysroot, "lib", "rustlib", "rustc-src", "rust", "compiler", "rustc_x", "lib.rs"), Compiler, true},
		{"mixed separators", `/rustc/0123abcd\library\core\src\num\mod.rs`, filepath.Join(sysroot, "lib", "rustlib", "src", "rust", "library", "core", "src", "num", "mod.rs"), Stdlib, true},
		{"macos tmp", "/private/tmp/rust-20240101/rustc-1.80.0-src/library/core/src/num/mod.rs", filepath.Join(sysroot, "lib", "rustlib", "src", "rust", "library", "core", "src", "num", "mod.rs"), Stdlib, true},
		{"registry", "/home/ci/.cargo/registry/src/index/serde-1.0/src/lib.rs", filepath.Join(cargo, "registry", "src", "index", "serde-1.0", "src", "lib.rs"), External, true},
		{"missing stdlib", "/rustc/0123abcd/library/alloc/src/vec.rs", "", Stdlib, false},
		{"missing project", "src/gone.rs", "", Project, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, prov, ok := l.Locate(tt.recorded)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.prov, prov)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocateWithoutSysroot(t *testing.T) {
	_, prov, ok := Locator{}.Locate("/rustc/abc/library/core/src/lib.rs")
	assert.False(t, ok)
	assert.Equal(t, Stdlib, prov)
}

func TestCacheConcurrentReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.rs")
	writeFile(t, path, "one\ntwo\r\nthree\n")

	c := NewCache()
	var wg sync.WaitGroup
	files := make([]*File, 16)
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := c.Get(path)
			assert.NoError(t, err)
			files[i] = f
		}(i)
	}
	wg.Wait()
	for _, f := range files {
		assert.Same(t, files[0], f)
	}

	line, ok := files[0].Line(2)
	assert.True(t, ok)
	assert.Equal(t, "two", line)
	_, ok = files[0].Line(4)
	assert.False(t, ok)

	// Cached content survives the file changing on disk.
	writeFile(t, path, "changed\n")
	f, err := c.Get(path)
	require.NoError(t, err)
	line, _ = f.Line(1)
	assert.Equal(t, "one", line)
}

func TestCacheMissingFile(t *testing.T) {
	_, err := NewCache().Get(filepath.Join(t.TempDir(), "nope.rs"))
	var missing *MissingSourceFileError
	require.True(t, errors.As(err, &missing))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCorrelateCoalesces(t *testing.T) {
	l5 := &asm.Loc{File: 1, Line: 5}
	l5b := &asm.Loc{File: 1, Line: 5, Column: 9}
	l6 := &asm.Loc{File: 1, Line: 6}
	stmts := []asm.Statement{
		{Kind: asm.KindLabel},
		{Kind: asm.KindInstruction, Loc: l5},
		{Kind: asm.KindInstruction, Loc: l5b},
		{Kind: asm.KindInstruction, Loc: l6},
		{Kind: asm.KindInstruction},
		{Kind: asm.KindInstruction, Loc: l5},
	}
	got := Correlate(stmts, []int{0, 1, 2, -1, 3, 4, 5})
	assert.Equal(t, []Block{
		{Start: 0, End: 1},
		{Start: 1, End: 4, HasLoc: true, FileID: 1, Line: 5},
		{Start: 4, End: 5, HasLoc: true, FileID: 1, Line: 6},
		{Start: 5, End: 6},
		{Start: 6, End: 7, HasLoc: true, FileID: 1, Line: 5},
	}, got)
}

func TestAnnotateDegradesOnMissingFile(t *testing.T) {
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "src", "lib.rs"), "fn a() {}\nfn b() {}\n")

	tab := asm.NewDirectiveTable()
	tab.Declare(1, "src/lib.rs")
	tab.Declare(3, "src/lib.x")
	tab.Declare(4, "/rustc/abc/library/core/src/lib.rs")
	c := &Correlator{Table: tab, Locator: Locator{Workspace: ws}, Filter: FilterAll, Cache: NewCache()}

	ann, ok := c.Annotate(Block{HasLoc: true, FileID: 1, Line: 2})
	require.True(t, ok)
	assert.Equal(t, "fn b() {}", ann.Text)
	assert.Equal(t, Project, ann.Provenance)
	assert.Equal(t, "src/lib.rs", ann.Path)

	_, ok = c.Annotate(Block{HasLoc: true, FileID: 3, Line: 42})
	assert.False(t, ok)
	_, ok = c.Annotate(Block{HasLoc: true, FileID: 1, Line: 99})
	assert.False(t, ok)
	_, ok = c.Annotate(Block{HasLoc: true, FileID: 4, Line: 1})
	assert.False(t, ok)
	_, ok = c.Annotate(Block{})
	assert.False(t, ok)
}

func TestAnnotateRespectsFilter(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, "ws")
	dep := filepath.Join(root, "dep", "lib.rs")
	writeFile(t, dep, "pub fn dep() {}\n")

	tab := asm.NewDirectiveTable()
	tab.Declare(2, dep)

	c := &Correlator{Table: tab, Locator: Locator{Workspace: ws}, Filter: FilterWorkspace, Cache: NewCache()}
	_, ok := c.Annotate(Block{HasLoc: true, FileID: 2, Line: 1})
	assert.False(t, ok)

	c.Filter = FilterCrates
	ann, ok := c.Annotate(Block{HasLoc: true, FileID: 2, Line: 1})
	require.True(t, ok)
	assert.Equal(t, External, ann.Provenance)
}
