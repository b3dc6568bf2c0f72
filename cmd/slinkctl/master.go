package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arloliu/go-slink/logger"
	"github.com/arloliu/go-slink/master"
	"github.com/arloliu/go-slink/message"
	"github.com/arloliu/go-slink/metrics"
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Send commands to a slave",
	Long: `Send commands to a slave and print the replies.

Addresses accept decimal or 0x prefixed hex. Address 0 is the host unit,
255 is broadcast (fire-and-forget only). Values are hex encoded.`,
	Example: `  slinkctl master describe --serial /dev/ttyUSB0
  slinkctl master get 0x02 --dial 127.0.0.1:7000
  slinkctl master set 1 01 --dial 127.0.0.1:7000
  slinkctl master watch 1 3 --serial /dev/ttyUSB0`,
}

func init() {
	masterCmd.AddCommand(
		&cobra.Command{
			Use:   "describe",
			Short: "List the units of the slave",
			Args:  cobra.NoArgs,
			RunE:  withSession(runDescribe),
		},
		&cobra.Command{
			Use:   "status [address]",
			Short: "Print the status bytes of a unit (default: host)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  withSession(runStatus),
		},
		&cobra.Command{
			Use:   "get <address>",
			Short: "Print the value of a unit",
			Args:  cobra.ExactArgs(1),
			RunE:  withSession(runGet),
		},
		&cobra.Command{
			Use:   "set <address> <hex-value>",
			Short: "Write the value of a unit",
			Args:  cobra.ExactArgs(2),
			RunE:  withSession(runSet),
		},
		&cobra.Command{
			Use:   "invert <address>",
			Short: "Flip a boolean unit and print its new value",
			Args:  cobra.ExactArgs(1),
			RunE:  withSession(runInvert),
		},
		&cobra.Command{
			Use:   "watch <address>...",
			Short: "Subscribe to units and print pushed values until interrupted",
			Args:  cobra.MinimumNArgs(1),
			RunE:  withSession(runWatch),
		},
		&cobra.Command{
			Use:   "reset [address]",
			Short: "Reset a unit, or the whole slave (default)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  withSession(runReset),
		},
	)
}

type sessionFunc func(ctx context.Context, s *master.Session, args []string) error

// withSession opens a master session on the configured link around fn.
func withSession(fn sessionFunc) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		l := logger.With("role", "master")

		tr, err := openLink(ctx, cfg.Link, l)
		if err != nil {
			return err
		}

		sessCfg, err := master.NewConfig(cfg.MasterOptions(l)...)
		if err != nil {
			_ = tr.Close()
			return err
		}

		// the session outlives ctx so watch can unsubscribe after an interrupt
		s, err := master.NewSession(context.Background(), tr, sessCfg)
		if err != nil {
			_ = tr.Close()
			return err
		}
		defer s.Close()

		reg := metrics.NewRegistry()
		if err := metrics.RegisterMaster(reg, s.Metrics(), prometheus.Labels{"role": "master"}); err != nil {
			return err
		}
		stopMetrics := serveMetrics(cfg.MetricsAddr, reg, l)
		defer stopMetrics()

		if err := s.Open(); err != nil {
			return err
		}

		return fn(ctx, s, args)
	}
}

func runDescribe(ctx context.Context, s *master.Session, _ []string) error {
	names, err := s.Describe(ctx)
	if err != nil {
		return err
	}

	for i, name := range names {
		fmt.Printf("0x%02X  %s\n", i+1, name)
	}

	return nil
}

func runStatus(ctx context.Context, s *master.Session, args []string) error {
	addr := message.AddressHost
	if len(args) == 1 {
		var err error
		if addr, err = parseAddress(args[0]); err != nil {
			return err
		}
	}

	status, err := s.Status(ctx, addr)
	if err != nil {
		return err
	}

	fmt.Println(hex.EncodeToString(status))

	return nil
}

func runGet(ctx context.Context, s *master.Session, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	value, err := s.Get(ctx, addr)
	if err != nil {
		return err
	}

	fmt.Println(hex.EncodeToString(value))

	return nil
}

func runSet(ctx context.Context, s *master.Session, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	value, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("bad value %q: %w", args[1], err)
	}

	if addr == message.AddressBroadcast {
		return s.Post(message.Set, addr, value)
	}

	return s.Set(ctx, addr, value)
}

func runInvert(ctx context.Context, s *master.Session, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	value, err := s.Invert(ctx, addr)
	if err != nil {
		return err
	}

	fmt.Println(hex.EncodeToString(value))

	return nil
}

func runWatch(ctx context.Context, s *master.Session, args []string) error {
	s.AddPushHandler(func(msg *message.Message) {
		if msg.Response() == message.Push {
			fmt.Printf("0x%02X  %s\n", msg.Address, hex.EncodeToString(msg.Data))
			return
		}
		logger.Warn("unsolicited message", "msg", msg.ResponseString())
	})

	for _, arg := range args {
		addr, err := parseAddress(arg)
		if err != nil {
			return err
		}

		value, err := s.Subscribe(ctx, addr)
		if err != nil {
			return fmt.Errorf("subscribe 0x%02X: %w", addr, err)
		}

		fmt.Printf("0x%02X  %s\n", addr, hex.EncodeToString(value))
	}

	<-ctx.Done()

	// best effort, the link may already be gone
	unsubCtx, cancel := context.WithTimeout(context.Background(), s.Config().ReplyTimeout())
	defer cancel()

	for _, arg := range args {
		addr, _ := parseAddress(arg)
		if err := s.Unsubscribe(unsubCtx, addr); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Debug("unsubscribe failed", "address", addr, "error", err)
		}
	}

	return nil
}

func runReset(_ context.Context, s *master.Session, args []string) error {
	addr := message.AddressHost
	if len(args) == 1 {
		var err error
		if addr, err = parseAddress(args[0]); err != nil {
			return err
		}
	}

	return s.Reset(addr)
}

func parseAddress(s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}

	return byte(v), nil
}
