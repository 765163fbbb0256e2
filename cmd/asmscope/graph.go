package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	latticerender "github.com/zboralski/lattice/render"

	"asmscope/internal/disasm"
	"asmscope/internal/pipeline"
	"asmscope/internal/render"
	"asmscope/internal/segment"
)

type graphFlags struct {
	cfg      bool
	blocks   bool
	themed   bool
	maxNodes int
	out      string
}

func newGraphCmd() *cobra.Command {
	var gf graphFlags
	cmd := &cobra.Command{
		Use:   "graph [query] [index]",
		Short: "Write a DOT call graph or control flow graph",
		Long: `Write a Graphviz DOT graph of one artifact.

Without a query the graph covers every function. With a query it covers the
matched function and, with --context, the functions it calls. Control flow
graphs (--cfg, --blocks) need a disassembled binary.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseShowArgs(args)
			if err != nil {
				return err
			}
			return runGraph(cmd.Context(), req, gf, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.BoolVar(&gf.cfg, "cfg", false, "write basic block graphs instead of the call graph")
	f.BoolVar(&gf.blocks, "blocks", false, "write basic block graphs with instruction listings")
	f.BoolVar(&gf.themed, "themed", false, "cluster the call graph by owner and color edges by kind")
	f.IntVar(&gf.maxNodes, "max-nodes", 0, "limit the themed call graph to this many functions (0: no limit)")
	f.StringVar(&gf.out, "out", "", "write to this file instead of stdout")
	return cmd
}

func init() {
	rootCmd.AddCommand(newGraphCmd())
}

func runGraph(ctx context.Context, req pipeline.Request, gf graphFlags, stdout, stderr io.Writer) error {
	st, err := loadSettings()
	if err != nil {
		return err
	}
	arts, err := loadArtifacts()
	if err != nil {
		return err
	}
	if len(arts) != 1 {
		return fmt.Errorf("graph takes exactly one artifact, got %d", len(arts))
	}
	res := pipeline.RunAll(ctx, arts, st.pipeline, req)[0]
	reportDiags(stderr, res)
	if res.Err != nil {
		return res.Err
	}
	if res.Ambiguous != nil {
		return fmt.Errorf("query %q matches %d functions, add an index", req.Query, len(res.Ambiguous.Candidates))
	}

	s := res.Session()
	funcs := s.Listing.Functions
	if len(res.Views) > 0 {
		funcs = make([]*segment.Function, len(res.Views))
		for i, v := range res.Views {
			funcs[i] = v.Function
		}
	}
	title := res.Artifact.Name()
	if req.Query != "" {
		title = req.Query
	}

	dot, err := graphDOT(s, funcs, title, gf)
	if err != nil {
		return err
	}
	if gf.out == "" {
		_, err := fmt.Fprint(stdout, dot)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(gf.out), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(gf.out, []byte(dot), 0644); err != nil {
		return err
	}
	progress(stderr, "wrote %s (%d functions)", gf.out, len(funcs))
	return nil
}

func graphDOT(s *pipeline.Session, funcs []*segment.Function, title string, gf graphFlags) (string, error) {
	switch {
	case gf.blocks:
		if !s.Binary() {
			return "", pipeline.ErrNoCFG
		}
		var b strings.Builder
		for _, f := range funcs {
			v, err := s.View(f)
			if err != nil {
				return "", err
			}
			b.WriteString(render.CFGDOT(disasm.BuildCFG(f.Display, v.Insts), f.Display, render.NASA))
		}
		if b.Len() == 0 {
			return "", errors.New("no instructions to graph")
		}
		return b.String(), nil
	case gf.cfg:
		cfg, err := s.CFG(funcs)
		if err != nil {
			return "", err
		}
		return latticerender.DOTCFG(cfg, title), nil
	case gf.themed:
		infos, err := s.FuncInfos(funcs)
		if err != nil {
			return "", err
		}
		return render.CallgraphDOT(infos, title, render.NASA, gf.maxNodes), nil
	}
	g, err := s.CallGraph(funcs)
	if err != nil {
		return "", err
	}
	return latticerender.DOT(g, title), nil
}
