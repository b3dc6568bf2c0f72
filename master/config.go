package master

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-slink/frame"
	"github.com/arloliu/go-slink/logger"
)

// Default values.
const (
	DefaultReplyTimeout  = time.Second
	DefaultRetryLimit    = 3
	DefaultPushQueueSize = 32
)

// Range limits.
const (
	MinReplyTimeout = 10 * time.Millisecond
	MaxReplyTimeout = 60 * time.Second

	MaxRetryLimit = 15

	MinPushQueueSize = 1
	MaxPushQueueSize = 4096

	MinFrameSize = 16
	MaxFrameSize = 64 * 1024
)

// Config holds the configuration of a master Session.
type Config struct {
	// replyTimeout is how long the master waits for a reply before
	// retransmitting the pending command.
	replyTimeout time.Duration

	// retryLimit is the number of retransmissions before a command fails
	// with ErrTimeout.
	retryLimit int

	pushQueueSize int
	maxFrameSize  int
	logger        logger.Logger
}

// NewConfig creates a configuration with defaults, then applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		replyTimeout:  DefaultReplyTimeout,
		retryLimit:    DefaultRetryLimit,
		pushQueueSize: DefaultPushQueueSize,
		maxFrameSize:  frame.DefaultMaxFrameSize,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *Config) ReplyTimeout() time.Duration { return cfg.replyTimeout }
func (cfg *Config) RetryLimit() int              { return cfg.retryLimit }
func (cfg *Config) PushQueueSize() int           { return cfg.pushQueueSize }
func (cfg *Config) MaxFrameSize() int            { return cfg.maxFrameSize }
func (cfg *Config) GetLogger() logger.Logger     { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithReplyTimeout sets the reply timeout.
func WithReplyTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinReplyTimeout || d > MaxReplyTimeout {
			return fmt.Errorf("master: reply timeout %v out of range [%v, %v]", d, MinReplyTimeout, MaxReplyTimeout)
		}
		cfg.replyTimeout = d

		return nil
	})
}

// WithRetryLimit sets the number of retransmissions of an unanswered command.
func WithRetryLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > MaxRetryLimit {
			return fmt.Errorf("master: retry limit %d out of range [0, %d]", n, MaxRetryLimit)
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithPushQueueSize sets how many unsolicited messages may wait for delivery
// to push handlers. Messages beyond it are dropped.
func WithPushQueueSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < MinPushQueueSize || n > MaxPushQueueSize {
			return fmt.Errorf("master: push queue size %d out of range [%d, %d]", n, MinPushQueueSize, MaxPushQueueSize)
		}
		cfg.pushQueueSize = n

		return nil
	})
}

// WithMaxFrameSize sets the largest encoded frame accepted from the wire.
func WithMaxFrameSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < MinFrameSize || n > MaxFrameSize {
			return fmt.Errorf("master: max frame size %d out of range [%d, %d]", n, MinFrameSize, MaxFrameSize)
		}
		cfg.maxFrameSize = n

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("master: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
