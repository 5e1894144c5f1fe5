package commands

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/leapstack-labs/tmplsync/internal/cli/config"
	"github.com/leapstack-labs/tmplsync/internal/cli/output"
	"github.com/leapstack-labs/tmplsync/internal/engine"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	if err := cfg.ValidateDirectories(); err != nil {
		return nil, nil, err
	}

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need the jobs directory or state database.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		JobsDir:      getEnvOrDefault("TMPLSYNC_JOBS_DIR", config.DefaultJobsDir),
		StatePath:    getEnvOrDefault("TMPLSYNC_STATE_PATH", config.DefaultStateFile),
		Verbose:      os.Getenv("TMPLSYNC_VERBOSE") == "true",
		OutputFormat: getEnvOrDefault("TMPLSYNC_OUTPUT", config.DefaultOutput),
		LogLevel:     config.DefaultLogLevel,
		LogFormat:    config.DefaultLogFormat,
		Sync:         config.SyncConfig{Concurrency: getEnvIntOrDefault("TMPLSYNC_SYNC_CONCURRENCY", config.DefaultConcurrency)},
		Scaffold:     config.ScaffoldConfig{Suffix: config.DefaultSuffix},
		Serve:        config.ServeConfig{Port: getEnvIntOrDefault("TMPLSYNC_SERVE_PORT", config.DefaultPort)},
		Watch:        config.WatchConfig{Debounce: config.DefaultDebounce},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	return engine.New(engine.Config{
		JobsDir:     cfg.JobsDir,
		StatePath:   cfg.StatePath,
		Concurrency: cfg.Sync.Concurrency,
		Logger:      logger,
	})
}

// durationMS formats a millisecond count for display.
func durationMS(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
