package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"asmscope/internal/asm"
	"asmscope/internal/demangle"
	"asmscope/internal/disasm"
	"asmscope/internal/output"
	"asmscope/internal/pipeline"
	"asmscope/internal/render"
	"asmscope/internal/simplify"
	"asmscope/internal/source"
)

const (
	configBaseName   = "asmscope"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	envPrefix = "ASMSCOPE"

	artifactKey   = "artifacts"
	dirKey        = "dir"
	crateKey      = "crate"
	formatKey     = "format"
	memberKey     = "member"
	namesKey      = "names"
	manglingKey   = "mangling"
	modeKey       = "mode"
	syntaxKey     = "syntax"
	simplifyKey   = "simplify"
	labelsKey     = "labels"
	verboseKey    = "verbose"
	constantsKey  = "constants"
	contextKey    = "context"
	bytesKey      = "bytes"
	outputKey     = "output"
	saveKey       = "save"
	interleaveKey = "sources.interleave"
	sourcesKey    = "sources.from"
	workspaceKey  = "sources.workspace"
	sysrootKey    = "sources.sysroot"
	registryKey   = "sources.registry"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".asmscope.log"
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
)

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(artifactKey, []string{})
	viper.SetDefault(namesKey, "short")
	viper.SetDefault(manglingKey, "auto")
	viper.SetDefault(modeKey, "best-effort")
	viper.SetDefault(syntaxKey, "intel")
	viper.SetDefault(simplifyKey, true)
	viper.SetDefault(labelsKey, "strip")
	viper.SetDefault(contextKey, 0)
	viper.SetDefault(outputKey, "text")
	viper.SetDefault(sourcesKey, "workspace")

	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, "info")
	viper.SetDefault(logVerboseKey, false)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, true)

	// A missing config file is the common case; a broken one is reported
	// and otherwise ignored.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return
		}
		fmt.Fprintf(os.Stderr, "warning: %s: %v\n", configFileName, err)
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	// Numeric slog levels, e.g. -4 for debug.
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}
	return defaultLevel
}

// configureLogger sends slog output to a rotating log file. Terminal output
// stays reserved for results and progress lines.
func configureLogger() {
	logPath := strings.TrimSpace(viper.GetString(logFilenameKey))
	if logPath == "" {
		logPath = defaultLogFilename
	}
	level := parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	if viper.GetBool(logVerboseKey) {
		level = slog.LevelDebug
	}
	w := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// bindFlagToConfig wires a flag to a viper key so config and env values
// feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// settings is everything a command needs, decoded from viper.
type settings struct {
	pipeline pipeline.Options
	render   render.Options
	output   output.Format
}

func loadSettings() (settings, error) {
	var s settings
	var err error
	p := &s.pipeline

	if p.Names, err = demangle.ParseMode(viper.GetString(namesKey)); err != nil {
		return s, err
	}
	if p.Scheme, err = demangle.ParseScheme(viper.GetString(manglingKey)); err != nil {
		return s, err
	}
	if p.Mode, err = asm.ParseMode(viper.GetString(modeKey)); err != nil {
		return s, err
	}
	if p.Syntax, err = disasm.ParseSyntax(viper.GetString(syntaxKey)); err != nil {
		return s, err
	}
	if p.Simplify.Labels, err = simplify.ParseLabelMode(viper.GetString(labelsKey)); err != nil {
		return s, err
	}
	if p.Sources.Filter, err = source.ParseFilter(viper.GetString(sourcesKey)); err != nil {
		return s, err
	}
	if s.output, err = output.ParseFormat(viper.GetString(outputKey)); err != nil {
		return s, err
	}
	p.Simplify.Verbose = viper.GetBool(verboseKey)
	p.Simplify.Constants = viper.GetBool(constantsKey)
	p.Raw = !viper.GetBool(simplifyKey)
	p.Context = viper.GetInt(contextKey)
	if p.Context < 0 {
		return s, fmt.Errorf("context depth must not be negative, got %d", p.Context)
	}
	p.Member = viper.GetString(memberKey)
	p.Sources.Interleave = viper.GetBool(interleaveKey)
	p.Sources.Locator = source.Locator{
		Workspace: viper.GetString(workspaceKey),
		Sysroot:   viper.GetString(sysrootKey),
		Registry:  viper.GetString(registryKey),
	}
	p.Logger = slog.Default()

	s.render = render.Options{Names: p.Names, Scheme: p.Scheme, Bytes: viper.GetBool(bytesKey)}
	return s, nil
}
