// Package config loads jsdoctest settings from .jsdoctest/config.yml with
// JSDOCTEST_* environment variable overrides.
package config

import "time"

// Isolation modes for runner.isolate.
const (
	IsolateNone    = "none"
	IsolateWorker  = "worker"
	IsolateProcess = "process"
)

// Config represents the complete jsdoctest configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Runner  RunnerConfig  `yaml:"runner" mapstructure:"runner"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// PathsConfig defines which files are searched for doctests.
type PathsConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns for modules
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to skip
}

// RunnerConfig controls how examples are evaluated.
type RunnerConfig struct {
	Isolate     string        `yaml:"isolate" mapstructure:"isolate"`         // "none", "worker" or "process"
	Workers     int           `yaml:"workers" mapstructure:"workers"`         // isolation pool size
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`         // per evaluation, 0 waits forever
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"` // files run at once
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // "console" or "json"
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Include: []string{
				"**/*.js",
				"**/*.mjs",
				"**/*.ts",
			},
			Ignore: []string{
				"node_modules/**",
				"dist/**",
				".git/**",
			},
		},
		Runner: RunnerConfig{
			Isolate:     IsolateNone,
			Workers:     4,
			Timeout:     0,
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
