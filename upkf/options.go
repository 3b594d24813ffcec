package upkf

import "log/slog"

// DefaultMaxElementSize is the default cap on a decompressed element (256 MiB).
const DefaultMaxElementSize uint64 = 256 << 20

// Option configures Read and Load.
type Option func(*loadConfig)

type loadConfig struct {
	verify         bool
	maxElementSize uint64
	logger         *slog.Logger
	name           string
}

func newLoadConfig(opts []Option) loadConfig {
	cfg := loadConfig{maxElementSize: DefaultMaxElementSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithVerify recomputes the CRC32 and SHA-256 of every payload and compares
// them with the recorded values (default: false).
//
// The aggregate header checksum is checked regardless.
func WithVerify(enabled bool) Option {
	return func(c *loadConfig) {
		c.verify = enabled
	}
}

// WithMaxElementSize limits the decompressed size of a single element.
// Set limit to 0 to disable the limit.
func WithMaxElementSize(limit uint64) Option {
	return func(c *loadConfig) {
		c.maxElementSize = limit
	}
}

// WithLogger sets the logger for load events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *loadConfig) {
		c.logger = logger
	}
}

func (c *loadConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
