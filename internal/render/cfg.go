package render

import (
	"fmt"
	"strings"

	"asmscope/internal/disasm"
)

// maxBlockLines is the longest block drawn in full.
const maxBlockLines = 12

// CFGDOT renders a per-function basic-block CFG as DOT with one node per
// block listing its instructions. The entry block is outlined, return
// blocks are shaded, and conditional edges are labelled T/F.
func CFGDOT(cfg disasm.FuncCFG, title string, t Theme) string {
	if len(cfg.Blocks) == 0 {
		return ""
	}
	if title == "" {
		title = cfg.Name
	}

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	b.WriteString("  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	b.WriteString("  labelloc=t;\n  labeljust=l;\n")
	fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
		t.TextColor, dotEscape(title))
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		fmt.Fprintf(&b, "  bb%d [label=<%s>%s];\n", blk.ID, blockLabel(cfg, blk), blockAttrs(blk, t))
	}
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		for _, s := range blk.Succs {
			from, to := fmt.Sprintf("bb%d", blk.ID), fmt.Sprintf("bb%d", s.BlockID)
			switch s.Cond {
			case "T":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">T</font>>];\n",
					from, to, t.EdgeTaken, t.EdgeTaken)
			case "F":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">F</font>>];\n",
					from, to, t.EdgeFallthrough, t.EdgeFallthrough)
			default:
				fmt.Fprintf(&b, "  %s -> %s [color=%q];\n", from, to, t.EdgeCall)
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func blockLabel(cfg disasm.FuncCFG, blk disasm.BasicBlock) string {
	end := min(blk.End, len(cfg.Insts))
	var lines []string
	for i := blk.Start; i < end; i++ {
		inst := cfg.Insts[i]
		if inst.Label != "" {
			lines = append(lines, dotEscape(inst.Label+":"))
		}
		lines = append(lines, dotEscape(fmt.Sprintf("0x%x: %s", inst.Addr, inst.Text)))
	}
	if len(lines) > maxBlockLines {
		kept := append(lines[:5:5], fmt.Sprintf("... (%d more)", len(lines)-10))
		lines = append(kept, lines[len(lines)-5:]...)
	}
	return strings.Join(lines, "<br align=\"left\"/>") + "<br align=\"left\"/>"
}

func blockAttrs(blk disasm.BasicBlock, t Theme) string {
	attrs := ""
	if blk.IsEntry {
		attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EntryBorder)
	}
	if blk.IsTerm {
		attrs += fmt.Sprintf(", fillcolor=%q", t.ExitFill)
	}
	return attrs
}
