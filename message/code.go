package message

import "fmt"

// Command is a code sent from master to slave.
type Command byte

// Command codes.
const (
	Status      Command = 0x00
	Describe    Command = 0x02
	Get         Command = 0x10
	Set         Command = 0x11
	Invert      Command = 0x12
	Subscribe   Command = 0xA0
	Unsubscribe Command = 0xA1
	Reset       Command = 0xFF
)

var commandNames = map[Command]string{
	Status:      "STATUS",
	Describe:    "DESCRIBE",
	Get:         "GET",
	Set:         "SET",
	Invert:      "INVERT",
	Subscribe:   "SUBSCRIBE",
	Unsubscribe: "UNSUBSCRIBE",
	Reset:       "RESET",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}

	return fmt.Sprintf("COMMAND(0x%02X)", byte(c))
}

// Known reports whether c is one of the defined command codes.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

// Response is a code sent from slave to master.
type Response byte

// Response codes.
const (
	Ack            Response = 0x00
	BadRequest     Response = 0x40
	Invalid        Response = 0x41
	NotFound       Response = 0x44
	NotImplemented Response = 0x45
	Error          Response = 0x50
	Push           Response = 0xA0
)

var responseNames = map[Response]string{
	Ack:            "ACK",
	BadRequest:     "BAD_REQUEST",
	Invalid:        "INVALID",
	NotFound:       "NOT_FOUND",
	NotImplemented: "NOT_IMPLEMENTED",
	Error:          "ERROR",
	Push:           "PUSH",
}

func (r Response) String() string {
	if name, ok := responseNames[r]; ok {
		return name
	}

	return fmt.Sprintf("RESPONSE(0x%02X)", byte(r))
}

// Addressing.
const (
	// AddressHost addresses the slave itself.
	AddressHost byte = 0x00
	// AddressBroadcast addresses every unit on the slave.
	AddressBroadcast byte = 0xFF
)

// CounterUnsolicited tags fire-and-forget commands, PUSH notifications and
// replies to frames that could not be decoded.
const CounterUnsolicited byte = 0x00
