package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"asmscope/internal/artifact"
	"asmscope/internal/output"
)

const rootLongDescription = `asmscope shows the code the compiler generated for a single function.

It reads assembly (Intel or AT&T), LLVM IR, MIR or wasm text written by the
compiler, or disassembles a compiled object, archive or executable, and
prints one function at a time with optional source interleaving.

Artifacts come from --artifact, or are discovered in --dir by crate name:
  asmscope list -a target/release/deps/demo-1a2b3c.s
  asmscope show -a demo.s demo::main
  asmscope show --dir target/release/deps --crate demo --format llvm-ir main 1`

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "asmscope",
		Short:         "Per-function view of compiler output",
		Long:          rootLongDescription,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	return cmd
}

func init() {
	configureRootFlags(rootCmd)
}

func configureRootFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()

	f.StringArrayP("artifact", "a", nil, "artifact to read (repeatable)")
	bindFlagToConfig(f.Lookup("artifact"), artifactKey)
	f.String(dirKey, "", "directory to discover artifacts in")
	bindFlagToConfig(f.Lookup(dirKey), dirKey)
	f.String(crateKey, "", "crate name used for discovery and as the target package")
	bindFlagToConfig(f.Lookup(crateKey), crateKey)
	f.StringP(formatKey, "f", "", "artifact format: asm-intel, asm-att, llvm-input, llvm-ir, mir, wasm, binary (default: from the file name)")
	bindFlagToConfig(f.Lookup(formatKey), formatKey)
	f.String(memberKey, "", "archive member to disassemble")
	bindFlagToConfig(f.Lookup(memberKey), memberKey)

	f.String(namesKey, viper.GetString(namesKey), "name display: short, full, mangled")
	bindFlagToConfig(f.Lookup(namesKey), namesKey)
	f.String(manglingKey, viper.GetString(manglingKey), "mangling scheme: auto, legacy, v0")
	bindFlagToConfig(f.Lookup(manglingKey), manglingKey)
	f.String(modeKey, viper.GetString(modeKey), "parse mode: strict, best-effort")
	bindFlagToConfig(f.Lookup(modeKey), modeKey)
	f.String(syntaxKey, viper.GetString(syntaxKey), "disassembly syntax: intel, att")
	bindFlagToConfig(f.Lookup(syntaxKey), syntaxKey)
	f.IntP(contextKey, "c", viper.GetInt(contextKey), "also show functions called from the target, this many calls deep")
	bindFlagToConfig(f.Lookup(contextKey), contextKey)
	f.StringP(outputKey, "o", viper.GetString(outputKey), "output format: text, table, json, yaml")
	bindFlagToConfig(f.Lookup(outputKey), outputKey)
	f.String(saveKey, "", "also write the results to this file, YAML for .yaml/.yml and JSON otherwise")
	bindFlagToConfig(f.Lookup(saveKey), saveKey)

	f.Bool("debug", false, "log at debug level")
	bindFlagToConfig(f.Lookup("debug"), logVerboseKey)
	f.String("log-file", viper.GetString(logFilenameKey), "log file path")
	bindFlagToConfig(f.Lookup("log-file"), logFilenameKey)
}

// loadArtifacts collects the artifacts named on the command line or found
// by discovery.
func loadArtifacts() ([]*artifact.Artifact, error) {
	var forced artifact.Format
	if s := viper.GetString(formatKey); s != "" {
		f, err := artifact.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		forced = f
	}

	paths := viper.GetStringSlice(artifactKey)
	if dir := viper.GetString(dirKey); dir != "" {
		if forced == artifact.FormatUnknown {
			return nil, fmt.Errorf("--dir needs --format to pick the file pattern")
		}
		found, err := artifact.Discover(dir, viper.GetString(crateKey), forced)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no %s artifacts for %q in %s", forced, viper.GetString(crateKey), dir)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no artifacts given, use --artifact or --dir")
	}

	target := artifact.Target{Package: viper.GetString(crateKey)}
	out := make([]*artifact.Artifact, 0, len(paths))
	for _, p := range paths {
		format := forced
		if format == artifact.FormatUnknown {
			f, ok := artifact.DetectFormat(p)
			if !ok {
				return nil, fmt.Errorf("%s: cannot tell the format from the file name, use --format", p)
			}
			format = f
		}
		if format == artifact.FormatBinary {
			a := artifact.New(p, format, "")
			a.Target = target
			out = append(out, a)
			continue
		}
		a, err := artifact.Load(p, format, target)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// progress prints a status line to w, normally stderr.
func progress(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

// save writes v to the --save file, if one was given.
func save[T any](stderr io.Writer, v []T) error {
	path := viper.GetString(saveKey)
	if path == "" || len(v) == 0 {
		return nil
	}
	if err := output.WriteFile(path, v); err != nil {
		return err
	}
	progress(stderr, "wrote %s", path)
	return nil
}
