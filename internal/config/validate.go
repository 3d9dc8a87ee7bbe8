package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

var (
	// ErrInvalidIsolate indicates an unknown runner.isolate mode
	ErrInvalidIsolate = errors.New("invalid isolation mode")

	// ErrInvalidWorkers indicates a non-positive pool size
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidTimeout indicates a negative evaluation timeout
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidConcurrency indicates a non-positive file concurrency
	ErrInvalidConcurrency = errors.New("invalid concurrency")

	// ErrInvalidLogging indicates an unknown log level or format
	ErrInvalidLogging = errors.New("invalid logging settings")

	// ErrEmptyInclude indicates that no include patterns are configured
	ErrEmptyInclude = errors.New("empty include patterns")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}
	if err := validateRunner(&cfg.Runner); err != nil {
		errs = append(errs, err)
	}
	if err := validateLogging(&cfg.Logging); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validatePaths(cfg *PathsConfig) error {
	if len(cfg.Include) == 0 {
		return fmt.Errorf("%w: at least one include pattern required", ErrEmptyInclude)
	}
	return nil
}

func validateRunner(cfg *RunnerConfig) error {
	var errs []error

	switch strings.ToLower(cfg.Isolate) {
	case IsolateNone, IsolateWorker, IsolateProcess:
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'none', 'worker' or 'process', got '%s'", ErrInvalidIsolate, cfg.Isolate))
	}

	if cfg.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidWorkers, cfg.Workers))
	}

	if cfg.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: timeout cannot be negative, got %s", ErrInvalidTimeout, cfg.Timeout))
	}

	if cfg.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConcurrency, cfg.Concurrency))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	var errs []error

	if _, err := zapcore.ParseLevel(cfg.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidLogging, err))
	}

	switch cfg.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: format must be 'console' or 'json', got '%s'", ErrInvalidLogging, cfg.Format))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
