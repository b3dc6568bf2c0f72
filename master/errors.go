package master

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-slink/message"
)

// Session errors.
var (
	ErrRejected        = errors.New("master: a command is already pending")
	ErrBroadcast       = errors.New("master: broadcast commands must be posted")
	ErrTimeout         = errors.New("master: no reply, retries exhausted")
	ErrCounterMismatch = errors.New("master: reply counter mismatch")
	ErrAddressMismatch = errors.New("master: reply address mismatch")
	ErrCancelled       = errors.New("master: command cancelled")
	ErrSessionClosed   = errors.New("master: session closed")
)

// Errors matched by a *ResponseError, one per failure response code.
var (
	ErrBadRequest     = errors.New("master: bad request")
	ErrInvalid        = errors.New("master: frame rejected as invalid")
	ErrNotFound       = errors.New("master: unit not found")
	ErrNotImplemented = errors.New("master: not implemented")
	ErrRemote         = errors.New("master: remote error")
)

// ResponseError reports a reply whose code is not ACK.
type ResponseError struct {
	Code    message.Response
	Address byte
	Data    []byte
}

func (e *ResponseError) Error() string {
	if e.Code == message.Error && len(e.Data) > 0 {
		return fmt.Sprintf("master: %s from address 0x%02X: %s", e.Code, e.Address, e.Data)
	}

	return fmt.Sprintf("master: %s from address 0x%02X", e.Code, e.Address)
}

// Is reports whether target is the sentinel error of the response code.
func (e *ResponseError) Is(target error) bool {
	switch e.Code {
	case message.BadRequest:
		return target == ErrBadRequest
	case message.Invalid:
		return target == ErrInvalid
	case message.NotFound:
		return target == ErrNotFound
	case message.NotImplemented:
		return target == ErrNotImplemented
	case message.Error:
		return target == ErrRemote
	default:
		return false
	}
}
