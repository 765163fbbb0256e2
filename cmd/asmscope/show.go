package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"asmscope/internal/output"
	"asmscope/internal/pipeline"
	"asmscope/internal/render"
)

const showLongDescription = `Show the code of one function.

QUERY is matched against demangled names: an exact match wins, then
substring matches. When several functions match, the candidates are
listed and INDEX picks one. A lone number selects by position in the
listing, so "asmscope show 3" shows the fourth function.`

func newShowCmd() *cobra.Command {
	var everything bool
	cmd := &cobra.Command{
		Use:   "show [query] [index]",
		Short: "Show the code of one function",
		Long:  showLongDescription,
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseShowArgs(args)
			if err != nil {
				return err
			}
			req.Everything = everything
			if !everything && req.Query == "" && req.Position == pipeline.NoIndex {
				return fmt.Errorf("show needs a function name or index, see asmscope list")
			}
			return runShow(cmd.Context(), req, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.BoolVar(&everything, "everything", false, "show the whole artifact instead of one function")
	f.Bool(simplifyKey, viper.GetBool(simplifyKey), "drop directives and unreferenced labels")
	bindFlagToConfig(f.Lookup(simplifyKey), simplifyKey)
	f.String(labelsKey, viper.GetString(labelsKey), "local labels: strip, keep, blanks")
	bindFlagToConfig(f.Lookup(labelsKey), labelsKey)
	f.BoolP(verboseKey, "v", false, "keep directives the simplifier would drop")
	bindFlagToConfig(f.Lookup(verboseKey), verboseKey)
	f.Bool(constantsKey, false, "append the constants the function references")
	bindFlagToConfig(f.Lookup(constantsKey), constantsKey)
	f.Bool(bytesKey, false, "print instruction bytes of disassembled code")
	bindFlagToConfig(f.Lookup(bytesKey), bytesKey)
	f.BoolP("rust", "r", false, "interleave source lines")
	bindFlagToConfig(f.Lookup("rust"), interleaveKey)
	f.String("sources", viper.GetString(sourcesKey), "source lines to show: workspace, crates, all")
	bindFlagToConfig(f.Lookup("sources"), sourcesKey)
	f.String("workspace", "", "workspace root for relative source paths")
	bindFlagToConfig(f.Lookup("workspace"), workspaceKey)
	f.String("sysroot", "", "toolchain sysroot for standard library sources")
	bindFlagToConfig(f.Lookup("sysroot"), sysrootKey)
	f.String("registry", "", "registry source directory for dependencies")
	bindFlagToConfig(f.Lookup("registry"), registryKey)
	return cmd
}

func init() {
	rootCmd.AddCommand(newShowCmd())
}

// parseShowArgs turns "[query] [index]" into a request. A single numeric
// argument is a listing position.
func parseShowArgs(args []string) (pipeline.Request, error) {
	req := pipeline.Request{Ordinal: pipeline.NoIndex, Position: pipeline.NoIndex}
	switch len(args) {
	case 1:
		if n, err := strconv.Atoi(args[0]); err == nil {
			if n < 0 {
				return req, fmt.Errorf("index must not be negative, got %d", n)
			}
			req.Position = n
			return req, nil
		}
		req.Query = args[0]
	case 2:
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return req, fmt.Errorf("index must be a non-negative number, got %q", args[1])
		}
		req.Query = args[0]
		req.Ordinal = n
	}
	return req, nil
}

func runShow(ctx context.Context, req pipeline.Request, stdout, stderr io.Writer) error {
	st, err := loadSettings()
	if err != nil {
		return err
	}
	arts, err := loadArtifacts()
	if err != nil {
		return err
	}
	results := pipeline.RunAll(ctx, arts, st.pipeline, req)

	var encoded []output.Function
	failed, ambiguous := 0, 0
	for _, res := range results {
		reportDiags(stderr, res)
		if res.Err != nil {
			progress(stderr, "error: %s: %v", res.Artifact.Path, res.Err)
			failed++
			continue
		}
		if len(results) > 1 && !structured(st.output) {
			fmt.Fprintf(stdout, "== %s ==\n", res.Artifact.Path)
		}
		if res.Ambiguous != nil {
			if err := output.WriteCandidates(stdout, st.output, res.Ambiguous); err != nil {
				return err
			}
			ambiguous++
			continue
		}

		opts := st.render
		s := res.Session()
		if st.pipeline.Sources.Interleave && !s.Binary() {
			opts.Sources = s.Correlator()
		}
		if req.Everything {
			lines := render.Everything(s.Listing.Statements, res.Everything, opts)
			if structured(st.output) {
				if err := output.Encode(stdout, st.output, lines); err != nil {
					return err
				}
				continue
			}
			if err := render.Write(stdout, lines); err != nil {
				return err
			}
			continue
		}
		if structured(st.output) || viper.GetString(saveKey) != "" {
			for _, v := range res.Views {
				encoded = append(encoded, output.NewFunction(v.Function, render.View(v, opts)))
			}
		}
		if structured(st.output) {
			continue
		}
		if err := render.Write(stdout, render.Views(res.Views, opts)); err != nil {
			return err
		}
	}
	if err := save(stderr, encoded); err != nil {
		return err
	}
	if len(encoded) > 0 && structured(st.output) {
		if err := output.Encode(stdout, st.output, encoded); err != nil {
			return err
		}
	}

	switch {
	case failed > 0:
		return fmt.Errorf("%d of %d artifacts failed", failed, len(results))
	case ambiguous > 0:
		return fmt.Errorf("query %q is ambiguous, add an index", req.Query)
	}
	return nil
}

func structured(f output.Format) bool {
	return f == output.FormatJSON || f == output.FormatYAML
}
