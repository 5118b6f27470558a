package mutate

import "log/slog"

// Config holds configuration for the Mutator.
type Config struct {
	// MaxAttempts bounds the read-modify-write loop. Each attempt performs
	// one consistent read and at most one conditional write; only rejected
	// conditions consume attempts.
	// Default: 5
	MaxAttempts int

	// Logger receives debug output for rejected writes and retries.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns the default retry budget.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
