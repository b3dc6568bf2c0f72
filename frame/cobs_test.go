package frame

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_ReferenceVectors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    []byte
	}{
		{"empty", []byte{}, []byte{0x01}},
		{"single zero", []byte{0x00}, []byte{0x01, 0x01}},
		{"two zeros", []byte{0x00, 0x00}, []byte{0x01, 0x01, 0x01}},
		{"embedded zero", []byte{0x11, 0x22, 0x00, 0x33}, []byte{0x03, 0x11, 0x22, 0x02, 0x33}},
		{"embedded double zero", []byte{0x11, 0x22, 0x00, 0x00, 0x33}, []byte{0x03, 0x11, 0x22, 0x01, 0x02, 0x33}},
		{"no zero", []byte{0x11, 0x22, 0x33, 0x44}, []byte{0x05, 0x11, 0x22, 0x33, 0x44}},
		{"trailing zero", []byte{0x11, 0x00}, []byte{0x02, 0x11, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.payload))

			decoded, err := Decode(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, decoded)
		})
	}
}

func TestEncode_LongRuns(t *testing.T) {
	run := func(n int) []byte {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(i%255) + 1
		}
		return b
	}

	t.Run("exactly 254 non-zero bytes", func(t *testing.T) {
		payload := run(254)
		enc := Encode(payload)

		require.Len(t, enc, 255)
		assert.Equal(t, byte(0xFF), enc[0])
		assert.Equal(t, payload, enc[1:])
	})

	t.Run("255 non-zero bytes", func(t *testing.T) {
		payload := run(255)
		enc := Encode(payload)

		require.Len(t, enc, 257)
		assert.Equal(t, byte(0xFF), enc[0])
		assert.Equal(t, byte(0x02), enc[255])
		assert.Equal(t, payload[254], enc[256])
	})

	t.Run("254 non-zero bytes then zero", func(t *testing.T) {
		payload := append(run(254), 0x00)
		enc := Encode(payload)

		assert.Equal(t, []byte{0x01, 0x01}, enc[255:])

		dec, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, payload, dec)
	})

	for _, n := range []int{253, 508, 509, 1000} {
		payload := run(n)
		enc := Encode(payload)
		assert.LessOrEqual(t, len(enc), MaxEncodedLen(n))

		dec, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, payload, dec)
	}
}

func TestEncodeDecode_RoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		payload := make([]byte, rng.Intn(700))
		for j := range payload {
			// Bias towards zeros so both block kinds are exercised.
			if rng.Intn(4) == 0 {
				payload[j] = 0
			} else {
				payload[j] = byte(rng.Intn(256))
			}
		}

		enc := Encode(payload)
		assert.NotContains(t, enc, Delimiter, "stuffed output must not contain the delimiter")
		assert.LessOrEqual(t, len(enc), MaxEncodedLen(len(payload)))

		dec, err := Decode(enc)
		require.NoError(t, err)
		require.True(t, bytes.Equal(payload, dec), "round trip mismatch for %x", payload)
	}
}

func TestAppendEncode_PreservesPrefix(t *testing.T) {
	dst := []byte{0xAA, 0xBB}
	out := AppendEncode(dst, []byte{0x00, 0x01})

	assert.Equal(t, []byte{0xAA, 0xBB, 0x01, 0x02, 0x01}, out)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		encoded []byte
	}{
		{"length prefix past end", []byte{0x05, 0x11, 0x22}},
		{"delimiter as code", []byte{0x02, 0x11, 0x00, 0x01}},
		{"delimiter inside block", []byte{0x04, 0x11, 0x00, 0x22}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.encoded)
			require.ErrorIs(t, err, ErrFraming)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	dec, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, dec)
}
