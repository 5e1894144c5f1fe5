// Package config provides configuration management for the tmplsync CLI.
//
// Configuration is layered with koanf: built-in defaults, then
// tmplsync.yaml (searched upward from the working directory), then
// TMPLSYNC_* environment variables, then explicitly set flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the directory relative paths resolve against. It is
	// the directory of the config file, or the working directory when no
	// config file was found.
	ProjectRoot string `koanf:"-"`

	JobsDir      string `koanf:"jobs_dir"`
	StatePath    string `koanf:"state_path"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
	LogLevel     string `koanf:"log_level"`
	LogFormat    string `koanf:"log_format"`

	Sync     SyncConfig     `koanf:"sync"`
	Scaffold ScaffoldConfig `koanf:"scaffold"`
	Serve    ServeConfig    `koanf:"serve"`
	Watch    WatchConfig    `koanf:"watch"`
}

// SyncConfig holds fan-out settings.
type SyncConfig struct {
	Concurrency int `koanf:"concurrency"`
}

// ScaffoldConfig holds the default naming for scaffolded implementations.
type ScaffoldConfig struct {
	Prefix string `koanf:"prefix"`
	Suffix string `koanf:"suffix"`
}

// ServeConfig holds configuration for the API server.
type ServeConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// WatchConfig holds configuration for the jobs directory watcher.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// Default configuration values.
const (
	ConfigFileName     = "tmplsync.yaml"
	DefaultJobsDir     = "jobs"
	DefaultStateFile   = ".tmplsync/state.db"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultConcurrency = 4
	DefaultSuffix      = "Impl"
	DefaultPort        = 8787
	DefaultDebounce    = 300 * time.Millisecond
)

// EnvPrefix is the prefix of environment variables read into the config.
const EnvPrefix = "TMPLSYNC_"
