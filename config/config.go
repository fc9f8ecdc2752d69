// Package config provides the runtime's configuration surface: a plain Go
// struct of nested option groups, constructed zero-value-safe by New() and
// then overridden by direct field assignment. This follows the teacher's
// own Worker.initDda pattern (cfg := config.New(); cfg.Services.Com.Url =
// ...) rather than a file-based format — no config-file-format library is
// wired anywhere in this module, so there is nothing here for gopkg.in/
// yaml.v3 to parse (see DESIGN.md).
package config

import "time"

// Config is the toolchain's complete runtime configuration.
type Config struct {
	Runtime    RuntimeConfig
	Middleware MiddlewareConfig
}

// RuntimeConfig controls the effect-handler runtime's default behavior
// (spec.md §4.6).
type RuntimeConfig struct {
	// MaxRetries bounds how many times Retry middleware re-invokes the base
	// handler on a Transport error before giving up.
	MaxRetries int
	// BaseDelay is the base of Retry's exponential backoff (base * 2^k).
	BaseDelay time.Duration
	// MaxDelay caps Retry's backoff growth.
	MaxDelay time.Duration
	// DefaultTimeout bounds a whole role session: cmd/choreorun wraps each
	// role's context in context.WithTimeout with this duration.
	DefaultTimeout time.Duration
}

// MiddlewareConfig toggles which middlewares cmd/choreorun installs around
// the base handler.
type MiddlewareConfig struct {
	Trace   bool
	Retry   bool
	Metrics bool
}

// New returns a Config with the toolchain's defaults: tracing on, retry on
// with a modest backoff, metrics off (a caller must supply a
// prometheus.Registerer to enable it).
func New() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			MaxRetries:     3,
			BaseDelay:      50 * time.Millisecond,
			MaxDelay:       2 * time.Second,
			DefaultTimeout: 5 * time.Second,
		},
		Middleware: MiddlewareConfig{
			Trace:   true,
			Retry:   true,
			Metrics: false,
		},
	}
}
