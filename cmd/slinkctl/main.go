// Slinkctl talks to devices over a COBS framed master/slave serial link.
//
// The master commands query and drive a slave over a serial port or TCP. The
// slave command runs a simulated slave whose units are described in a YAML
// configuration file.
//
// Usage:
//
//	slinkctl [command] [flags]
//
// See 'slinkctl --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arloliu/go-slink/logger"
	"github.com/arloliu/go-slink/metrics"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags, applied over the configuration file.
var (
	configPath  string
	serialDev   string
	baudRate    int
	dialAddr    string
	listenAddr  string
	logLevel    string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "slinkctl",
	Short: "Master and simulated slave for slink serial devices",
	Long: `slinkctl drives devices speaking the slink protocol: COBS framed,
LRC checked messages over a half-duplex serial link.

The link is a serial port (--serial), an outgoing TCP connection (--dial)
or a single incoming TCP connection (--listen).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&serialDev, "serial", "", "Serial device, e.g. /dev/ttyUSB0")
	pf.IntVar(&baudRate, "baud", 0, "Serial baud rate (default 115200)")
	pf.StringVar(&dialAddr, "dial", "", "Connect to a TCP address")
	pf.StringVar(&listenAddr, "listen", "", "Accept one TCP connection on an address")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(masterCmd)
	rootCmd.AddCommand(slaveCmd)
}

// loadConfig reads --config and applies the global flags over it.
func loadConfig() (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if serialDev != "" || dialAddr != "" || listenAddr != "" {
		cfg.Link.Serial = serialDev
		cfg.Link.Dial = dialAddr
		cfg.Link.Listen = listenAddr
	}

	if baudRate != 0 {
		cfg.Link.Baud = baudRate
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// serveMetrics serves reg on addr until the returned function is called.
// An empty addr serves nothing.
func serveMetrics(addr string, reg *prometheus.Registry, l logger.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		l.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
