package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"asmscope/internal/output"
	"asmscope/internal/pipeline"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the functions of each artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func init() {
	rootCmd.AddCommand(newListCmd())
}

func runList(ctx context.Context, stdout, stderr io.Writer) error {
	st, err := loadSettings()
	if err != nil {
		return err
	}
	arts, err := loadArtifacts()
	if err != nil {
		return err
	}
	req := pipeline.Request{Ordinal: pipeline.NoIndex, Position: pipeline.NoIndex}
	results := pipeline.RunAll(ctx, arts, st.pipeline, req)

	var listings []output.Listing
	failed := 0
	for _, res := range results {
		reportDiags(stderr, res)
		if res.Err != nil {
			progress(stderr, "error: %s: %v", res.Artifact.Path, res.Err)
			failed++
			continue
		}
		listing := output.NewListing(res.Artifact, res.Entries)
		listings = append(listings, listing)
		if structured(st.output) {
			if err := output.Encode(stdout, st.output, listing); err != nil {
				return err
			}
			continue
		}
		if len(results) > 1 {
			fmt.Fprintf(stdout, "== %s ==\n", res.Artifact.Path)
		}
		if err := output.WriteEntries(stdout, st.output, res.Entries); err != nil {
			return err
		}
	}
	if err := save(stderr, listings); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d artifacts failed", failed, len(results))
	}
	return nil
}

// reportDiags prints what best-effort parsing degraded: diagnostics and
// aliases whose target is never defined.
func reportDiags(w io.Writer, res *pipeline.Result) {
	s := res.Session()
	if s == nil || s.Listing == nil {
		return
	}
	name := res.Artifact.Name()
	for _, d := range s.Diags.Items() {
		fmt.Fprintf(w, "warning: %s: %s\n", name, d)
		slog.Warn("diagnostic", "artifact", name, "line", d.Line, "kind", d.Kind, "msg", d.Msg)
	}
	for _, a := range s.Listing.Unresolved {
		fmt.Fprintf(w, "warning: %s: line %d: alias %s points to undefined symbol %s\n", name, a.Line, a.Name, a.Target)
	}
}
