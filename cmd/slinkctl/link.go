package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/arloliu/go-slink/logger"
	"github.com/arloliu/go-slink/transport"
)

const defaultDialTimeout = 3 * time.Second

// openLink opens the byte stream selected by cfg. For Listen it blocks until
// one peer connects or ctx is done.
func openLink(ctx context.Context, cfg LinkConfig, l logger.Logger) (transport.Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch {
	case cfg.Serial != "":
		l.Info("opening serial link", "device", cfg.Serial, "baud", cfg.Baud)
		return transport.OpenSerial(transport.SerialConfig{
			Device:      cfg.Serial,
			Baud:        cfg.Baud,
			ReadTimeout: cfg.ReadTimeout,
		})

	case cfg.Dial != "":
		timeout := cfg.DialTimeout
		if timeout == 0 {
			timeout = defaultDialTimeout
		}
		l.Info("dialing link", "addr", cfg.Dial)

		return transport.Dial(ctx, cfg.Dial, timeout)

	default:
		return acceptOne(ctx, cfg.Listen, l)
	}
}

func acceptOne(ctx context.Context, addr string, l logger.Logger) (transport.Transport, error) {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	defer ln.Close()

	l.Info("waiting for peer", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("accept on %s: %w", addr, err)
	}

	l.Info("peer connected", "remote", conn.RemoteAddr().String())

	return transport.NewStream(conn), nil
}
