package message

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-slink/frame"
)

func TestMarshalUnmarshal(t *testing.T) {
	msg := NewCommand(Set, 0x02, 0x05, []byte{0x01})

	raw := Marshal(msg)
	assert.Equal(t, []byte{0x11, 0x02, 0x05, 0x01}, raw)

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	// Data must not alias the input buffer.
	raw[3] = 0xEE
	assert.Equal(t, []byte{0x01}, got.Data)
}

func TestUnmarshal_HeaderOnly(t *testing.T) {
	got, err := Unmarshal([]byte{0x10, 0x03, 0x07})
	require.NoError(t, err)
	assert.Equal(t, Get, got.Command())
	assert.Nil(t, got.Data)
}

func TestUnmarshal_TooShort(t *testing.T) {
	for _, raw := range [][]byte{nil, {0x10}, {0x10, 0x02}} {
		_, err := Unmarshal(raw)
		require.ErrorIs(t, err, ErrTooShort)
	}
}

func TestPackUnpack(t *testing.T) {
	msg := NewResponse(Ack, 0x02, 0x05, []byte{0x17})

	wire := Pack(msg)
	require.Equal(t, frame.Delimiter, wire[len(wire)-1])
	assert.NotContains(t, wire[:len(wire)-1], frame.Delimiter)

	got, err := Unpack(wire[:len(wire)-1])
	require.NoError(t, err)
	assert.Equal(t, Ack, got.Response())
	assert.Equal(t, byte(0x02), got.Address)
	assert.Equal(t, byte(0x05), got.Counter)
	assert.Equal(t, []byte{0x17}, got.Data)
}

func TestUnpack_Errors(t *testing.T) {
	t.Run("checksum", func(t *testing.T) {
		wire := Pack(NewCommand(Get, 0x02, 0x05, nil))
		body := wire[:len(wire)-1]
		body[1] ^= 0x40

		_, err := Unpack(body)
		require.ErrorIs(t, err, frame.ErrChecksumMismatch)
		assert.True(t, IsCorrupt(err))
	})

	t.Run("too short", func(t *testing.T) {
		wire := frame.Seal([]byte{0x10, 0x02})

		_, err := Unpack(wire[:len(wire)-1])
		require.ErrorIs(t, err, ErrTooShort)
		assert.False(t, IsCorrupt(err))
	})
}

func TestChecksum_SingleBitFlipsDetected(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		data := make([]byte, rng.Intn(16))
		rng.Read(data)
		msg := NewCommand(Command(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)), data)

		raw := Marshal(msg)
		sum := frame.LRC(raw)
		require.True(t, frame.Verify(raw, sum))

		pos := rng.Intn(len(raw))
		raw[pos] ^= 1 << rng.Intn(8)
		assert.False(t, frame.Verify(raw, sum))
	}
}

func TestPush(t *testing.T) {
	push := NewPush(0x03, []byte{0x01})

	assert.Equal(t, Push, push.Response())
	assert.True(t, push.IsUnsolicited())
	assert.False(t, push.IsBroadcast())
	assert.Equal(t, "PUSH addr=0x03 ctr=0x00 data=01", push.ResponseString())
}

func TestReply(t *testing.T) {
	req := NewCommand(Invert, 0x04, 0x09, nil)
	resp := req.Reply(Ack, []byte{0x00})

	assert.Equal(t, byte(0x04), resp.Address)
	assert.Equal(t, byte(0x09), resp.Counter)
	assert.Equal(t, Ack, resp.Response())
}

func TestCodeStrings(t *testing.T) {
	assert.Equal(t, "SUBSCRIBE", Subscribe.String())
	assert.Equal(t, "COMMAND(0x33)", Command(0x33).String())
	assert.True(t, Reset.Known())
	assert.False(t, Command(0x33).Known())
	assert.Equal(t, "NOT_IMPLEMENTED", NotImplemented.String())
	assert.Equal(t, "RESPONSE(0x01)", Response(0x01).String())
	assert.Equal(t, "GET addr=0x02 ctr=0x05 data=", NewCommand(Get, 0x02, 0x05, nil).String())
}
