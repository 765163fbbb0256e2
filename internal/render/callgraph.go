package render

import (
	"fmt"
	"sort"
	"strings"

	"asmscope/internal/callgraph"
	"asmscope/internal/disasm"
)

// EdgeRef marks a callee found through a symbol reference in a text
// listing rather than a decoded call.
const EdgeRef = "ref"

func edgeColor(kind string, t Theme) string {
	switch kind {
	case disasm.EdgeTail:
		return t.EdgeTail
	case disasm.EdgeIndirect:
		return t.EdgeIndirect
	case EdgeRef:
		return t.EdgeRef
	default:
		return t.EdgeCall
	}
}

func edgeStyle(kind string) string {
	switch kind {
	case disasm.EdgeTail:
		return "dashed"
	case disasm.EdgeIndirect:
		return "dotted"
	default:
		return "solid"
	}
}

type edgeKey struct {
	from, to, kind string
}

// CallgraphDOT renders the calls among funcs as DOT. Functions sharing a
// parent path are clustered, targets outside funcs are plain text nodes
// and repeated call sites thicken their edge. maxNodes limits the number
// of function nodes (0 = all).
func CallgraphDOT(funcs []callgraph.FuncInfo, title string, t Theme, maxNodes int) string {
	if maxNodes > 0 && len(funcs) > maxNodes {
		funcs = funcs[:maxNodes]
	}
	funcSet := make(map[string]bool, len(funcs))
	for _, f := range funcs {
		funcSet[f.Name] = true
	}

	counts := make(map[edgeKey]int)
	var order []edgeKey
	add := func(k edgeKey) {
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	for _, f := range funcs {
		for _, c := range f.Callees {
			add(edgeKey{f.Name, c, EdgeRef})
		}
		for _, e := range f.CallEdges {
			to := e.TargetName
			if to == "" {
				if e.Kind != disasm.EdgeIndirect {
					continue
				}
				to = "<indirect>"
			}
			add(edgeKey{f.Name, to, e.Kind})
		}
	}

	external := make(map[string]bool)
	for _, k := range order {
		if !funcSet[k.to] {
			external[k.to] = true
		}
	}

	owners := make(map[string][]string)
	var ownerOrder, loose []string
	for _, f := range funcs {
		owner, _ := splitOwner(f.Name)
		if owner == "" {
			loose = append(loose, f.Name)
			continue
		}
		if _, ok := owners[owner]; !ok {
			ownerOrder = append(ownerOrder, owner)
		}
		owners[owner] = append(owners[owner], f.Name)
	}

	var b strings.Builder
	b.WriteString("digraph callgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  compound=true;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.4;\n")
	b.WriteString("  ranksep=0.6;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.12,0.06\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	b.WriteString("  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee];\n")
	if title != "" {
		b.WriteString("  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	for _, owner := range ownerOrder {
		names := owners[owner]
		if len(names) < 2 {
			loose = append(loose, names...)
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s {\n", "cluster_"+dotID(owner))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n", t.ClusterLabel, dotEscape(owner))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, name := range names {
			_, leaf := splitOwner(name)
			fmt.Fprintf(&b, "    %s [label=%q];\n", dotID(name), truncLabel(leaf, 50))
		}
		b.WriteString("  }\n")
	}
	for _, name := range loose {
		fmt.Fprintf(&b, "  %s [label=%q];\n", dotID(name), truncLabel(name, 60))
	}
	b.WriteByte('\n')

	ext := make([]string, 0, len(external))
	for name := range external {
		ext = append(ext, name)
	}
	sort.Strings(ext)
	for _, name := range ext {
		fmt.Fprintf(&b, "  %s [label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8];\n",
			dotID(name), truncLabel(name, 50), t.ExternalText)
	}
	b.WriteByte('\n')

	for _, k := range order {
		color := edgeColor(k.kind, t)
		attrs := fmt.Sprintf("color=%q, style=%q", color, edgeStyle(k.kind))
		if n := counts[k]; n > 1 {
			attrs += fmt.Sprintf(", penwidth=%.1f", 0.5+float64(n)*0.1)
			if n > 2 {
				attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%dx</font>>", color, n)
			}
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
