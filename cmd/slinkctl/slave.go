package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arloliu/go-slink/device"
	"github.com/arloliu/go-slink/logger"
	"github.com/arloliu/go-slink/metrics"
	"github.com/arloliu/go-slink/slave"
)

var flipEvery time.Duration

var slaveCmd = &cobra.Command{
	Use:   "slave",
	Short: "Run a simulated slave",
	Long: `Run a slave whose units are the in-memory units listed under
slave.units in the configuration file. Switch units hold one byte (0 or 1),
memory units hold a fixed-length hex value.

With --flip-every the switch units are inverted periodically, which makes the
slave push changes to subscribed masters.`,
	Example: `  slinkctl slave -c units.yaml --listen :7000
  slinkctl slave -c units.yaml --serial /dev/ttyUSB1 --flip-every 2s`,
	Args: cobra.NoArgs,
	RunE: runSlave,
}

func init() {
	slaveCmd.Flags().DurationVar(&flipEvery, "flip-every", 0, "Invert every switch unit at this interval")
}

func runSlave(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, units, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	l := logger.With("role", "slave")

	tr, err := openLink(ctx, cfg.Link, l)
	if err != nil {
		return err
	}

	srvCfg, err := slave.NewConfig(cfg.SlaveOptions(l, func() {
		l.Info("host reset by master")
	})...)
	if err != nil {
		_ = tr.Close()
		return err
	}

	srv, err := slave.NewServer(ctx, tr, reg, srvCfg)
	if err != nil {
		_ = tr.Close()
		return err
	}

	promReg := metrics.NewRegistry()
	if err := metrics.RegisterSlave(promReg, srv.Metrics(), prometheus.Labels{"role": "slave"}); err != nil {
		return err
	}
	stopMetrics := serveMetrics(cfg.MetricsAddr, promReg, l)
	defer stopMetrics()

	if flipEvery > 0 {
		go flipSwitches(ctx, units, flipEvery, l)
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	err = srv.Serve()
	if errors.Is(err, slave.ErrServerClosed) {
		return nil
	}

	return err
}

func flipSwitches(ctx context.Context, units []*device.Memory, every time.Duration, l logger.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, u := range units {
				if _, err := u.Invert(ctx); err == nil {
					l.Debug("unit flipped", "unit", u.Name())
				}
			}
		}
	}
}
