package frame

import (
	"errors"
	"fmt"
)

// Delimiter terminates every frame on the wire.
const Delimiter byte = 0x00

// MaxRun is the number of non-zero bytes after which a block boundary is
// forced, keeping every length prefix within a single byte.
const MaxRun = 254

var (
	// ErrFraming reports an encoded frame that cannot be unstuffed.
	ErrFraming = errors.New("frame: framing error")
	// ErrChecksumMismatch reports a frame whose LRC does not verify.
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")
	// ErrFrameTooLong reports a frame exceeding the reader's maximum size.
	ErrFrameTooLong = errors.New("frame: frame too long")
)

// MaxEncodedLen returns the worst-case encoded size of an n byte payload,
// without the delimiter.
func MaxEncodedLen(n int) int {
	return n + n/MaxRun + 1
}

// Encode returns the COBS encoding of payload. The result never contains
// Delimiter; the caller appends it when writing to the wire.
func Encode(payload []byte) []byte {
	return AppendEncode(make([]byte, 0, MaxEncodedLen(len(payload))+1), payload)
}

// AppendEncode appends the COBS encoding of payload to dst.
func AppendEncode(dst, payload []byte) []byte {
	codeIdx := len(dst)
	dst = append(dst, 0)
	code := byte(1)

	for i, b := range payload {
		if b != 0 {
			dst = append(dst, b)
			code++
		}

		if b != 0 && code != 0xFF {
			continue
		}

		dst[codeIdx] = code
		code = 1

		// A full run at the very end needs no further block.
		if b != 0 && i == len(payload)-1 {
			return dst
		}

		codeIdx = len(dst)
		dst = append(dst, 0)
	}

	dst[codeIdx] = code

	return dst
}

// Decode reverses Encode. encoded must not include the trailing delimiter.
//
// It fails with ErrFraming when a length prefix points past the end of the
// input or when a delimiter byte appears inside the encoded data.
func Decode(encoded []byte) ([]byte, error) {
	out := make([]byte, 0, len(encoded))

	for i := 0; i < len(encoded); {
		code := encoded[i]
		if code == Delimiter {
			return nil, fmt.Errorf("%w: delimiter at offset %d", ErrFraming, i)
		}
		i++

		end := i + int(code) - 1
		if end > len(encoded) {
			return nil, fmt.Errorf("%w: block at offset %d needs %d bytes, have %d",
				ErrFraming, i-1, code-1, len(encoded)-i)
		}

		for _, b := range encoded[i:end] {
			if b == Delimiter {
				return nil, fmt.Errorf("%w: delimiter inside block at offset %d", ErrFraming, i-1)
			}
		}

		out = append(out, encoded[i:end]...)
		i = end

		if code != 0xFF && i < len(encoded) {
			out = append(out, 0)
		}
	}

	return out, nil
}
