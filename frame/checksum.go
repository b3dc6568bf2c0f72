package frame

import "fmt"

// LRC returns the 8-bit longitudinal redundancy check of data: the two's
// complement of the byte sum, so that the sum of data and its LRC is zero.
func LRC(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}

	return (sum ^ 0xFF) + 1
}

// Verify reports whether sum is the LRC of data, that is whether the LRC of
// data ++ [sum] is zero.
func Verify(data []byte, sum byte) bool {
	total := sum
	for _, b := range data {
		total += b
	}

	return total == 0
}

// Seal appends the LRC to payload, stuffs the result and terminates it with
// the delimiter, producing bytes ready to be written to the wire.
func Seal(payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, LRC(payload))

	out := make([]byte, 0, MaxEncodedLen(len(buf))+1)
	out = AppendEncode(out, buf)

	return append(out, Delimiter)
}

// Open reverses Seal for a frame body read without its delimiter. It returns
// the payload with the checksum byte removed.
func Open(body []byte) ([]byte, error) {
	decoded, err := Decode(body)
	if err != nil {
		return nil, err
	}

	if len(decoded) == 0 {
		return nil, fmt.Errorf("%w: no checksum byte", ErrFraming)
	}

	payload, sum := decoded[:len(decoded)-1], decoded[len(decoded)-1]
	if !Verify(payload, sum) {
		return nil, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrChecksumMismatch, sum, LRC(payload))
	}

	return payload, nil
}
