// Package slave serves the units of a device registry over a slink link.
package slave

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-slink/frame"
	"github.com/arloliu/go-slink/logger"
)

// Defaults.
const (
	DefaultPollInterval = 0 // polling disabled; units notify on their own
	DefaultFrameQueue   = 4
)

// Limits.
const (
	MinPollInterval = 10 * time.Millisecond
	MaxPollInterval = time.Hour
	MinFrameSize    = 16
	MaxFrameSize    = 64 * 1024
)

// Config holds the configuration of a slave Dispatcher and Server.
type Config struct {
	pollInterval time.Duration
	maxFrameSize int
	frameQueue   int
	onReset      func()
	logger       logger.Logger
}

// NewConfig creates a configuration with defaults, then applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		pollInterval: DefaultPollInterval,
		maxFrameSize: frame.DefaultMaxFrameSize,
		frameQueue:   DefaultFrameQueue,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// PollInterval returns how often subscribed units are read; zero disables polling.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// MaxFrameSize returns the largest encoded frame accepted from the wire.
func (cfg *Config) MaxFrameSize() int { return cfg.maxFrameSize }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithPollInterval enables periodic reads of subscribed units. Zero disables
// polling.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d != 0 && (d < MinPollInterval || d > MaxPollInterval) {
			return fmt.Errorf("slave: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithMaxFrameSize sets the largest encoded frame accepted from the wire.
func WithMaxFrameSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < MinFrameSize || n > MaxFrameSize {
			return fmt.Errorf("slave: max frame size %d out of range [%d, %d]", n, MinFrameSize, MaxFrameSize)
		}
		cfg.maxFrameSize = n

		return nil
	})
}

// WithOnReset registers a callback invoked after a host RESET, telling the
// transport owner that the master must run a fresh DESCRIBE handshake.
func WithOnReset(fn func()) Option {
	return optFunc(func(cfg *Config) error {
		cfg.onReset = fn
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("slave: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
