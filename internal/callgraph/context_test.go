package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zboralski/lattice/render"

	"asmscope/internal/artifact"
	"asmscope/internal/dialect"
	"asmscope/internal/search"
	"asmscope/internal/segment"
)

const calls = `	.text
main:
	push	rbx
	call	helper
	call	again@PLT
	pop	rbx
	ret
helper:
	jmp	leaf
again:
	call	main
	ret
leaf:
	xor	eax, eax
	ret
`

func index(t *testing.T, src string) *search.Index {
	t.Helper()
	d, err := dialect.For(artifact.FormatIntel)
	require.NoError(t, err)
	c, err := dialect.Classify(artifact.New("t.s", artifact.FormatIntel, src), d, dialect.Options{})
	require.NoError(t, err)
	l, err := segment.Segment(c, d, segment.Options{})
	require.NoError(t, err)
	return search.New(l)
}

func names(funcs []*segment.Function) []string {
	out := make([]string, len(funcs))
	for i, f := range funcs {
		out[i] = f.Raw
	}
	return out
}

func TestExpandDepth(t *testing.T) {
	ix := index(t, calls)
	main, ok := ix.Lookup("main")
	require.True(t, ok)

	tests := []struct {
		depth int
		want  []string
	}{
		{0, []string{"main"}},
		{1, []string{"main", "helper", "again"}},
		{2, []string{"main", "helper", "again", "leaf"}},
		{10, []string{"main", "helper", "again", "leaf"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, names(Expand(ix, main, tt.depth)), "depth %d", tt.depth)
	}
}

func TestExpandMutualRecursionTerminates(t *testing.T) {
	ix := index(t, calls)
	again, ok := ix.Lookup("again")
	require.True(t, ok)
	assert.Equal(t, []string{"again", "main", "helper", "leaf"}, names(Expand(ix, again, 100)))
}

func TestExpandLeaf(t *testing.T) {
	ix := index(t, calls)
	leaf, ok := ix.Lookup("leaf")
	require.True(t, ok)
	assert.Equal(t, []string{"leaf"}, names(Expand(ix, leaf, 3)))
}

func TestCalleesThroughAlias(t *testing.T) {
	src := calls + "\t.set\talias_of_leaf, leaf\nuser:\n\tcall\talias_of_leaf\n\tret\n"
	ix := index(t, src)
	user, ok := ix.Lookup("user")
	require.True(t, ok)
	assert.Equal(t, []string{"leaf"}, names(Callees(ix, user)))
}

func TestListingCallGraph(t *testing.T) {
	ix := index(t, calls)
	funcs := FromListing(ix, ix.Listing().Functions)
	require.Len(t, funcs, 4)
	assert.Equal(t, []string{"helper", "again"}, funcs[0].Callees)

	cg := BuildCallGraph(funcs)
	assert.Len(t, cg.Nodes, 4)
	assert.Len(t, cg.Edges, 4)
	assert.NotEmpty(t, render.DOT(cg, "calls"))
}
