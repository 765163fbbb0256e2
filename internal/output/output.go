// Package output encodes listings and rendered views for the terminal or
// for other tools.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"asmscope/internal/artifact"
	"asmscope/internal/render"
	"asmscope/internal/search"
	"asmscope/internal/segment"
)

// Format selects an encoding.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("output: unknown format %q", s)
}

// Listing is the encoded form of a function listing.
type Listing struct {
	Artifact string         `json:"artifact" yaml:"artifact"`
	Target   string         `json:"target,omitempty" yaml:"target,omitempty"`
	Entries  []search.Entry `json:"functions" yaml:"functions"`
}

// Function is the encoded form of one rendered function.
type Function struct {
	Name    string        `json:"name" yaml:"name"`
	Raw     string        `json:"raw" yaml:"raw"`
	Ordinal int           `json:"ordinal" yaml:"ordinal"`
	Aliases []string      `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Addr    uint64        `json:"addr,omitempty" yaml:"addr,omitempty"`
	Size    int           `json:"size" yaml:"size"`
	Lines   []render.Line `json:"lines" yaml:"lines"`
}

// Candidate is one match of an ambiguous query. Index re-selects it when
// passed back with the same query.
type Candidate struct {
	Index   int    `json:"index" yaml:"index"`
	Name    string `json:"name" yaml:"name"`
	Raw     string `json:"raw" yaml:"raw"`
	Ordinal int    `json:"ordinal" yaml:"ordinal"`
	Size    int    `json:"size" yaml:"size"`
}

// NewListing wraps entries of a.
func NewListing(a *artifact.Artifact, entries []search.Entry) Listing {
	return Listing{Artifact: a.Path, Target: a.Target.String(), Entries: entries}
}

// NewFunction pairs f with its rendered lines.
func NewFunction(f *segment.Function, lines []render.Line) Function {
	return Function{
		Name:    f.Display,
		Raw:     f.Raw,
		Ordinal: f.Ordinal,
		Aliases: f.Aliases,
		Addr:    f.Addr,
		Size:    f.Size,
		Lines:   lines,
	}
}

// Candidates lists the matches of an ambiguous resolution.
func Candidates(r *search.Resolution) []Candidate {
	out := make([]Candidate, len(r.Candidates))
	for i, f := range r.Candidates {
		out[i] = Candidate{Index: i, Name: f.Display, Raw: f.Raw, Ordinal: f.Ordinal, Size: f.Size}
	}
	return out
}

// Encode writes v as JSON or YAML.
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("output: encode json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("output: encode yaml: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("output: %s is not a structured format", format)
}

// WriteFile encodes v to path, choosing YAML for .yaml/.yml and JSON
// otherwise.
func WriteFile(path string, v any) error {
	format := FormatJSON
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()
	return Encode(f, format, v)
}

// WriteEntries prints a listing. Text output gives one `index "name"
// [sizes]` line per display name; table output adds column headers.
func WriteEntries(w io.Writer, format Format, entries []search.Entry) error {
	switch format {
	case FormatJSON, FormatYAML:
		return Encode(w, format, entries)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Index", "Function", "Instances", "Sizes"})
		table.SetBorder(false)
		table.SetCenterSeparator("")
		table.SetAutoWrapText(false)
		table.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT})
		total := 0
		for _, e := range entries {
			table.Append([]string{strconv.Itoa(e.First), e.Name, strconv.Itoa(len(e.Sizes)), joinInts(e.Sizes)})
			total += len(e.Sizes)
		}
		table.SetFooter([]string{"", fmt.Sprintf("%d names", len(entries)), strconv.Itoa(total), ""})
		table.Render()
		return nil
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%d %q [%s]\n", e.First, e.Name, joinInts(e.Sizes)); err != nil {
			return fmt.Errorf("output: write: %w", err)
		}
	}
	return nil
}

// WriteCandidates prints the matches of an ambiguous query with the
// ordinal that selects each.
func WriteCandidates(w io.Writer, format Format, r *search.Resolution) error {
	cands := Candidates(r)
	switch format {
	case FormatJSON, FormatYAML:
		return Encode(w, format, cands)
	}
	if _, err := fmt.Fprintf(w, "%q matches %d functions, select one with an index:\n", r.Query, len(cands)); err != nil {
		return fmt.Errorf("output: write: %w", err)
	}
	for _, c := range cands {
		if _, err := fmt.Fprintf(w, "  %d %q [%d]\n", c.Index, c.Name, c.Size); err != nil {
			return fmt.Errorf("output: write: %w", err)
		}
	}
	return nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
