package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-slink/device"
	"github.com/arloliu/go-slink/logger"
	"github.com/arloliu/go-slink/master"
	"github.com/arloliu/go-slink/slave"
)

// Unit types accepted in the configuration file.
const (
	unitSwitch = "switch"
	unitMemory = "memory"
)

// Config is the slinkctl configuration file.
type Config struct {
	LogLevel    string       `yaml:"log_level,omitempty"`
	MetricsAddr string       `yaml:"metrics_addr,omitempty"`
	Link        LinkConfig   `yaml:"link"`
	Master      MasterConfig `yaml:"master,omitempty"`
	Slave       SlaveConfig  `yaml:"slave,omitempty"`
}

// LinkConfig selects the byte stream. Exactly one of Serial, Dial and Listen
// must be set.
type LinkConfig struct {
	Serial       string        `yaml:"serial,omitempty"`
	Baud         int           `yaml:"baud,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	Dial         string        `yaml:"dial,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty"`
	Listen       string        `yaml:"listen,omitempty"`
	MaxFrameSize int           `yaml:"max_frame_size,omitempty"`
}

type MasterConfig struct {
	ReplyTimeout  time.Duration `yaml:"reply_timeout,omitempty"`
	RetryLimit    *int          `yaml:"retry_limit,omitempty"`
	PushQueueSize int           `yaml:"push_queue_size,omitempty"`
}

type SlaveConfig struct {
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	Units        []UnitConfig  `yaml:"units,omitempty"`
}

// UnitConfig describes one simulated unit. Units get addresses 0x01, 0x02...
// in file order.
type UnitConfig struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	On    bool   `yaml:"on,omitempty"`    // switch only
	Value string `yaml:"value,omitempty"` // memory only, hex encoded
}

// LoadConfig reads the configuration file at path. An empty path returns an
// empty configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the link selection.
func (c LinkConfig) Validate() error {
	set := 0
	for _, v := range []string{c.Serial, c.Dial, c.Listen} {
		if v != "" {
			set++
		}
	}

	switch set {
	case 0:
		return errors.New("no link configured: set one of serial, dial or listen")
	case 1:
		return nil
	default:
		return errors.New("more than one link configured: set only one of serial, dial or listen")
	}
}

// MasterOptions converts the configuration to session options.
func (c *Config) MasterOptions(l logger.Logger) []master.Option {
	opts := []master.Option{master.WithLogger(l)}

	if c.Master.ReplyTimeout > 0 {
		opts = append(opts, master.WithReplyTimeout(c.Master.ReplyTimeout))
	}

	if c.Master.RetryLimit != nil {
		opts = append(opts, master.WithRetryLimit(*c.Master.RetryLimit))
	}

	if c.Master.PushQueueSize > 0 {
		opts = append(opts, master.WithPushQueueSize(c.Master.PushQueueSize))
	}

	if c.Link.MaxFrameSize > 0 {
		opts = append(opts, master.WithMaxFrameSize(c.Link.MaxFrameSize))
	}

	return opts
}

// SlaveOptions converts the configuration to server options.
func (c *Config) SlaveOptions(l logger.Logger, onReset func()) []slave.Option {
	opts := []slave.Option{
		slave.WithLogger(l),
		slave.WithPollInterval(c.Slave.PollInterval),
	}

	if onReset != nil {
		opts = append(opts, slave.WithOnReset(onReset))
	}

	if c.Link.MaxFrameSize > 0 {
		opts = append(opts, slave.WithMaxFrameSize(c.Link.MaxFrameSize))
	}

	return opts
}

// BuildRegistry creates the simulated units in address order.
func (c *Config) BuildRegistry() (*device.Registry, []*device.Memory, error) {
	if len(c.Slave.Units) == 0 {
		return nil, nil, errors.New("no units configured")
	}

	reg := device.NewRegistry()
	units := make([]*device.Memory, 0, len(c.Slave.Units))

	for i, uc := range c.Slave.Units {
		var unit *device.Memory

		switch uc.Type {
		case unitSwitch, "":
			unit = device.NewSwitch(uc.Name, uc.On)
		case unitMemory:
			value, err := hex.DecodeString(uc.Value)
			if err != nil {
				return nil, nil, fmt.Errorf("unit %d (%s): bad value: %w", i+1, uc.Name, err)
			}
			if len(value) < 2 {
				return nil, nil, fmt.Errorf("unit %d (%s): memory value needs at least 2 bytes, use a switch for 1", i+1, uc.Name)
			}
			unit = device.NewMemory(uc.Name, value)
		default:
			return nil, nil, fmt.Errorf("unit %d (%s): unknown type %q", i+1, uc.Name, uc.Type)
		}

		if _, err := reg.Register(unit); err != nil {
			return nil, nil, fmt.Errorf("unit %d: %w", i+1, err)
		}

		units = append(units, unit)
	}

	return reg, units, nil
}
