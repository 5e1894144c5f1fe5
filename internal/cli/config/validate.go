package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

var (
	validOutputs    = []string{"auto", "text", "markdown", "json"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.JobsDir == "" {
		return fmt.Errorf("jobs_dir is required")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if c.OutputFormat != "" && !slices.Contains(validOutputs, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (want one of %s)", c.OutputFormat, strings.Join(validOutputs, ", "))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("unknown log_level %q (want one of %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		return fmt.Errorf("unknown log_format %q (want one of %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1, got %d", c.Sync.Concurrency)
	}
	if c.Serve.Port < 1 || c.Serve.Port > 65535 {
		return fmt.Errorf("serve.port must be between 1 and 65535, got %d", c.Serve.Port)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", c.Watch.Debounce)
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	info, err := os.Stat(c.JobsDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("jobs directory does not exist: %s\nHint: Run 'tmplsync init' or use --jobs-dir to specify a different path", c.JobsDir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("jobs path is not a directory: %s", c.JobsDir)
	}
	return nil
}
