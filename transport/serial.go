package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaudRate is the line speed used when SerialConfig.Baud is zero.
const DefaultBaudRate = 115200

// SerialConfig describes a serial device.
type SerialConfig struct {
	// Device is the port name, e.g. /dev/ttyUSB0 or COM3.
	Device string
	// Baud is the line speed; zero selects DefaultBaudRate.
	Baud int
	// ReadTimeout bounds a single read on the port. Zero blocks until data
	// arrives. An expired read is retried, so the transport still blocks.
	ReadTimeout time.Duration
}

// OpenSerial opens a serial device as a Transport, using 8N1 framing.
func OpenSerial(cfg SerialConfig) (*Stream, error) {
	if cfg.Device == "" {
		return nil, errors.New("transport: serial device is empty")
	}

	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        serial.DefaultSize,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %s: %w", cfg.Device, err)
	}

	return NewStream(&idlePort{ReadWriteCloser: port}), nil
}

// idlePort retries reads that expire without data. With a read timeout set
// the port reports a quiet line as (0, io.EOF), or as (0, nil) on some
// platforms, neither of which means the link is gone.
type idlePort struct {
	io.ReadWriteCloser
}

func (p *idlePort) Read(b []byte) (int, error) {
	for {
		n, err := p.ReadWriteCloser.Read(b)
		if n > 0 || (err != nil && !errors.Is(err, io.EOF)) {
			return n, err
		}

		if len(b) == 0 {
			return 0, err
		}
	}
}
