// Package message converts between go-slink messages and their framed wire
// representation.
//
// A message is four fields: a code, a unit address, a correlation counter and
// a variable-length data payload. On the wire it is
//
//	frame.Seal(code ++ address ++ counter ++ data)
package message

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/arloliu/go-slink/frame"
)

// HeaderSize is the number of fixed bytes preceding the data.
const HeaderSize = 3

// ErrTooShort reports a payload missing the code, address or counter byte.
var ErrTooShort = errors.New("message: payload too short")

// Message is a decoded go-slink message.
//
// Code holds a Command when the message travels master to slave and a
// Response in the other direction; use Command() or Response() to read it
// with the matching type.
type Message struct {
	Code    byte
	Address byte
	Counter byte
	Data    []byte
}

// NewCommand creates a master-to-slave message.
func NewCommand(cmd Command, address, counter byte, data []byte) *Message {
	return &Message{Code: byte(cmd), Address: address, Counter: counter, Data: data}
}

// NewResponse creates a slave-to-master message.
func NewResponse(code Response, address, counter byte, data []byte) *Message {
	return &Message{Code: byte(code), Address: address, Counter: counter, Data: data}
}

// NewPush creates an unsolicited value-change notification for address.
func NewPush(address byte, value []byte) *Message {
	return NewResponse(Push, address, CounterUnsolicited, value)
}

// Reply creates a response correlated with m: same address and counter.
func (m *Message) Reply(code Response, data []byte) *Message {
	return NewResponse(code, m.Address, m.Counter, data)
}

// Command returns Code as a Command.
func (m *Message) Command() Command { return Command(m.Code) }

// Response returns Code as a Response.
func (m *Message) Response() Response { return Response(m.Code) }

// IsUnsolicited reports whether m carries the reserved counter 0x00.
func (m *Message) IsUnsolicited() bool { return m.Counter == CounterUnsolicited }

// IsBroadcast reports whether m addresses every unit.
func (m *Message) IsBroadcast() bool { return m.Address == AddressBroadcast }

// String formats m with its code interpreted as a command.
func (m *Message) String() string {
	return m.format(m.Command().String())
}

// ResponseString formats m with its code interpreted as a response.
func (m *Message) ResponseString() string {
	return m.format(m.Response().String())
}

func (m *Message) format(code string) string {
	return fmt.Sprintf("%s addr=0x%02X ctr=0x%02X data=%s", code, m.Address, m.Counter, hex.EncodeToString(m.Data))
}

// Marshal serializes m as code, address, counter, data.
func Marshal(m *Message) []byte {
	buf := make([]byte, 0, HeaderSize+len(m.Data))
	buf = append(buf, m.Code, m.Address, m.Counter)

	return append(buf, m.Data...)
}

// Unmarshal parses a serialized message. The returned Message owns its Data.
func Unmarshal(b []byte) (*Message, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes, want at least %d", ErrTooShort, len(b), HeaderSize)
	}

	m := &Message{Code: b[0], Address: b[1], Counter: b[2]}
	if len(b) > HeaderSize {
		m.Data = make([]byte, len(b)-HeaderSize)
		copy(m.Data, b[HeaderSize:])
	}

	return m, nil
}

// Pack returns the complete wire form of m, delimiter included.
func Pack(m *Message) []byte {
	return frame.Seal(Marshal(m))
}

// Unpack decodes a frame body (without delimiter) into a Message.
//
// The error wraps frame.ErrFraming or frame.ErrChecksumMismatch when the
// frame is corrupt, or ErrTooShort when it verifies but is truncated.
func Unpack(body []byte) (*Message, error) {
	payload, err := frame.Open(body)
	if err != nil {
		return nil, err
	}

	return Unmarshal(payload)
}

// IsCorrupt reports whether err means the frame itself could not be trusted,
// as opposed to a well-formed frame with a bad payload.
func IsCorrupt(err error) bool {
	return errors.Is(err, frame.ErrFraming) || errors.Is(err, frame.ErrChecksumMismatch)
}
