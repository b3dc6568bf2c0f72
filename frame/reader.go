package frame

import (
	"fmt"
	"io"
)

// DefaultMaxFrameSize bounds the encoded size of a frame accepted by Reader.
const DefaultMaxFrameSize = 1024

// Reader splits a byte stream into frame bodies at each Delimiter.
//
// Reader is not goroutine-safe; a single receive loop owns it.
type Reader struct {
	r       io.ByteReader
	maxSize int
	buf     []byte
}

// NewReader creates a Reader over r. maxSize bounds the encoded frame size
// excluding the delimiter; values <= 0 select DefaultMaxFrameSize.
func NewReader(r io.ByteReader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	return &Reader{
		r:       r,
		maxSize: maxSize,
		buf:     make([]byte, 0, 64),
	}
}

// Next blocks until a complete, non-empty frame body has been read and
// returns a copy of it without the delimiter.
//
// A frame longer than the maximum size is discarded through its delimiter
// and reported as ErrFrameTooLong; the next call continues with the following
// frame. Errors from the underlying reader are returned as is.
func (fr *Reader) Next() ([]byte, error) {
	fr.buf = fr.buf[:0]
	overflow := 0

	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return nil, err
		}

		if b != Delimiter {
			if len(fr.buf) < fr.maxSize {
				fr.buf = append(fr.buf, b)
			} else {
				overflow++
			}

			continue
		}

		if overflow > 0 {
			return nil, fmt.Errorf("%w: %d bytes over limit %d", ErrFrameTooLong, overflow, fr.maxSize)
		}

		if len(fr.buf) == 0 {
			// Consecutive delimiters carry no frame.
			continue
		}

		out := make([]byte, len(fr.buf))
		copy(out, fr.buf)

		return out, nil
	}
}
