package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asmscope/internal/artifact"
	"asmscope/internal/demangle"
	"asmscope/internal/output"
	"asmscope/internal/pipeline"
	"asmscope/internal/simplify"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "asmscope", configBaseName)
	assert.Equal(t, "asmscope.yaml", configFileName)
	assert.Equal(t, "ASMSCOPE", envPrefix)
	assert.Equal(t, "sources.interleave", interleaveKey)
	assert.Equal(t, ".asmscope.log", defaultLogFilename)
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
		{"loud", slog.LevelWarn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseSlogLevel(tt.in, slog.LevelWarn), tt.in)
	}
}

// setConfig overrides viper keys for one test.
func setConfig(t *testing.T, kv map[string]any) {
	t.Helper()
	for k, v := range kv {
		old := viper.Get(k)
		viper.Set(k, v)
		t.Cleanup(func() { viper.Set(k, old) })
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	st, err := loadSettings()
	require.NoError(t, err)
	assert.Equal(t, demangle.ModeShort, st.pipeline.Names)
	assert.False(t, st.pipeline.Raw)
	assert.Equal(t, simplify.LabelsStrip, st.pipeline.Simplify.Labels)
	assert.Equal(t, output.FormatText, st.output)
	assert.Equal(t, 0, st.pipeline.Context)
}

func TestLoadSettingsOverrides(t *testing.T) {
	setConfig(t, map[string]any{
		namesKey:      "mangled",
		simplifyKey:   false,
		labelsKey:     "keep",
		contextKey:    2,
		outputKey:     "json",
		bytesKey:      true,
		interleaveKey: true,
		workspaceKey:  "/src/demo",
	})
	st, err := loadSettings()
	require.NoError(t, err)
	assert.Equal(t, demangle.ModeMangled, st.pipeline.Names)
	assert.Equal(t, demangle.ModeMangled, st.render.Names)
	assert.True(t, st.pipeline.Raw)
	assert.Equal(t, simplify.LabelsKeep, st.pipeline.Simplify.Labels)
	assert.Equal(t, 2, st.pipeline.Context)
	assert.Equal(t, output.FormatJSON, st.output)
	assert.True(t, st.render.Bytes)
	assert.True(t, st.pipeline.Sources.Interleave)
	assert.Equal(t, "/src/demo", st.pipeline.Sources.Locator.Workspace)
}

func TestLoadSettingsRejects(t *testing.T) {
	for key, val := range map[string]any{
		namesKey:   "pretty",
		modeKey:    "sloppy",
		syntaxKey:  "plan9",
		outputKey:  "xml",
		contextKey: -1,
	} {
		t.Run(key, func(t *testing.T) {
			setConfig(t, map[string]any{key: val})
			_, err := loadSettings()
			assert.Error(t, err)
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadArtifactsExplicit(t *testing.T) {
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "demo.s")
	writeFile(t, asmPath, "main:\n\tret\n")
	binPath := filepath.Join(dir, "demo.o")

	setConfig(t, map[string]any{artifactKey: []string{asmPath, binPath}, crateKey: "demo"})
	arts, err := loadArtifacts()
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, artifact.FormatIntel, arts[0].Format)
	assert.Equal(t, "demo", arts[0].Target.Package)
	assert.Contains(t, arts[0].Content(), "ret")
	assert.Equal(t, artifact.FormatBinary, arts[1].Format)
}

func TestLoadArtifactsDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "demo_app-0123abcd.s"), "main:\n\tret\n")
	writeFile(t, filepath.Join(dir, "other-0123abcd.s"), "main:\n\tret\n")

	setConfig(t, map[string]any{dirKey: dir, crateKey: "demo-app"})
	_, err := loadArtifacts()
	assert.Error(t, err, "discovery needs a format")

	setConfig(t, map[string]any{formatKey: "asm-att"})
	arts, err := loadArtifacts()
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, artifact.FormatATT, arts[0].Format)
	assert.Equal(t, "demo_app-0123abcd.s", filepath.Base(arts[0].Path))
}

func TestLoadArtifactsNone(t *testing.T) {
	_, err := loadArtifacts()
	assert.Error(t, err)

	setConfig(t, map[string]any{artifactKey: []string{"demo.txt"}})
	_, err = loadArtifacts()
	assert.Error(t, err)
}

func TestParseShowArgs(t *testing.T) {
	req, err := parseShowArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, pipeline.NoIndex, req.Position)
	assert.Equal(t, pipeline.NoIndex, req.Ordinal)

	req, err = parseShowArgs([]string{"3"})
	require.NoError(t, err)
	assert.Equal(t, 3, req.Position)
	assert.Empty(t, req.Query)

	req, err = parseShowArgs([]string{"demo::new", "1"})
	require.NoError(t, err)
	assert.Equal(t, "demo::new", req.Query)
	assert.Equal(t, 1, req.Ordinal)
	assert.Equal(t, pipeline.NoIndex, req.Position)

	_, err = parseShowArgs([]string{"new", "x"})
	assert.Error(t, err)
	_, err = parseShowArgs([]string{"-2"})
	assert.Error(t, err)
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"list", "show", "graph"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("artifact"))
}
