// Package transport adapts byte streams (serial ports, TCP connections,
// in-memory pipes) to the Transport interface consumed by go-slink masters
// and slaves.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport: closed")

// Transport is a half-duplex byte channel.
type Transport interface {
	// ReadByte blocks until a byte is available.
	ReadByte() (byte, error)
	// WriteBytes writes b completely. Concurrent calls never interleave.
	WriteBytes(b []byte) error
	// Close releases the underlying resource and unblocks ReadByte.
	Close() error
}

// Stream is a Transport over any io.ReadWriteCloser.
type Stream struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

var _ Transport = (*Stream)(nil)

// NewStream wraps rwc. Reads are buffered; each WriteBytes call holds an
// exclusive write lock until every byte has been written.
func NewStream(rwc io.ReadWriteCloser) *Stream {
	return &Stream{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
		closed: make(chan struct{}),
	}
}

// ReadByte reads the next byte from the stream. It is meant to be called
// from a single receive loop.
func (s *Stream) ReadByte() (byte, error) {
	b, err := s.reader.ReadByte()
	if err != nil && s.isClosed() {
		return 0, ErrClosed
	}

	return b, err
}

// WriteBytes writes b atomically with respect to other WriteBytes calls.
func (s *Stream) WriteBytes(b []byte) error {
	if s.isClosed() {
		return ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for written := 0; written < len(b); {
		n, err := s.rwc.Write(b[written:])
		written += n

		if err != nil {
			return fmt.Errorf("transport: write: %w", err)
		}
	}

	return nil
}

// Close closes the underlying stream. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.rwc.Close()
	})

	return s.closeErr
}

func (s *Stream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Dial connects to a TCP endpoint carrying the serial byte stream, such as
// a serial-to-Ethernet bridge.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Stream, error) {
	d := net.Dialer{Timeout: timeout}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	return NewStream(conn), nil
}
