package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// flagKeys maps flag names to config keys. Flags not listed here are
// command options and never reach the config.
var flagKeys = map[string]string{
	"jobs-dir":    "jobs_dir",
	"state":       "state_path",
	"verbose":     "verbose",
	"output":      "output",
	"log-level":   "log_level",
	"log-format":  "log_format",
	"concurrency": "sync.concurrency",
	"prefix":      "scaffold.prefix",
	"suffix":      "scaffold.suffix",
	"port":        "serve.port",
	"watch":       "serve.watch",
	"debounce":    "watch.debounce",
}

// sections are the nested config blocks addressable from env vars.
var sections = []string{"sync", "scaffold", "serve", "watch"}

func defaults() map[string]any {
	return map[string]any{
		"jobs_dir":         DefaultJobsDir,
		"state_path":       DefaultStateFile,
		"verbose":          false,
		"output":           DefaultOutput,
		"log_level":        DefaultLogLevel,
		"log_format":       DefaultLogFormat,
		"sync.concurrency": DefaultConcurrency,
		"scaffold.prefix":  "",
		"scaffold.suffix":  DefaultSuffix,
		"serve.port":       DefaultPort,
		"serve.watch":      false,
		"watch.debounce":   DefaultDebounce.String(),
	}
}

// configExistsIn checks if a tmplsync config file exists in the directory.
func configExistsIn(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// findProjectRootUpward searches upward from startDir for a tmplsync config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// envKey maps TMPLSYNC_SYNC_CONCURRENCY to sync.concurrency and
// TMPLSYNC_JOBS_DIR to jobs_dir.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")
	configFileUsed = ""

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// An explicit config file anchors the project root; otherwise search
	// upward from the working directory.
	projectRoot := cwd
	if cfgFile != "" {
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			cfgFile = absPath
			projectRoot = filepath.Dir(absPath)
		}
	} else if root := findProjectRootUpward(cwd); root != "" {
		projectRoot = root
		cfgFile = filepath.Join(root, ConfigFileName)
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Load config file
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
		}
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
	}

	// 3. Load environment variables (TMPLSYNC_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Paths given as flags are relative to the working directory, not the
	// project root.
	var flagJobsDir, flagStatePath string
	if flags != nil {
		if f := flags.Lookup("jobs-dir"); f != nil && f.Changed {
			flagJobsDir = resolvePathRelativeTo(f.Value.String(), cwd)
		}
		if f := flags.Lookup("state"); f != nil && f.Changed {
			flagStatePath = resolvePathRelativeTo(f.Value.String(), cwd)
		}

		// 4. Load flags (highest priority - overrides env vars and config file)
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Set project root and resolve relative paths
	cfg.ProjectRoot = projectRoot
	if flagJobsDir != "" {
		cfg.JobsDir = flagJobsDir
	} else {
		cfg.JobsDir = resolvePathRelativeTo(cfg.JobsDir, projectRoot)
	}
	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}

	if cfg.Scaffold.Suffix == "" {
		cfg.Scaffold.Suffix = DefaultSuffix
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// NewLogger builds the CLI logger from the config. Verbose forces debug
// level.
func NewLogger(w io.Writer, cfg *Config) *slog.Logger {
	level := parseLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.New(slog.DiscardHandler)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
