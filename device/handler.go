// Package device defines the capability implemented by every addressable
// unit behind a slave, and the registry that maps addresses to units.
//
// The slave protocol never knows what a unit is. It calls the Handler
// methods matching the received command and converts the typed failures
// below into response codes:
//
//   - ErrUnsupported -> NOT_IMPLEMENTED
//   - ErrBadInput    -> BAD_REQUEST
//   - any other error -> ERROR, with the error text as data
package device

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned by a handler that does not implement an operation.
	ErrUnsupported = errors.New("device: operation not supported")
	// ErrBadInput is returned by a handler that rejects the supplied data.
	ErrBadInput = errors.New("device: bad input")
)

// BadInputf returns an error wrapping ErrBadInput with a formatted reason.
func BadInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadInput, fmt.Sprintf(format, args...))
}

// Notifier receives value changes a unit observes on its own, outside any
// request. Notify may be called from any goroutine, including from inside a
// Handler method.
type Notifier interface {
	Notify(address byte, value []byte)
}

// Handler is the capability behind one address.
type Handler interface {
	// Name is the unit name reported by the host DESCRIBE listing.
	Name() string
	// Status reports unit health.
	Status(ctx context.Context) ([]byte, error)
	// Describe lists the units; only meaningful on the host.
	Describe(ctx context.Context) ([]byte, error)
	// Get reads the current value.
	Get(ctx context.Context) ([]byte, error)
	// Set writes a new value.
	Set(ctx context.Context, data []byte) error
	// Invert flips the value and returns the new one.
	Invert(ctx context.Context) ([]byte, error)
	// Subscribe is an optional hook telling the unit that changes of its
	// value at address should be reported to n. Units that cannot detect
	// changes themselves return ErrUnsupported and are polled instead.
	Subscribe(ctx context.Context, address byte, n Notifier) error
	// Unsubscribe removes a hook installed by Subscribe.
	Unsubscribe(ctx context.Context, address byte, n Notifier) error
	// Reset restores the unit's initial configuration.
	Reset(ctx context.Context) error
}

// Unimplemented answers ErrUnsupported to every operation. Embed it in a
// handler to implement only the operations a unit supports.
type Unimplemented struct{}

func (Unimplemented) Status(context.Context) ([]byte, error)   { return nil, ErrUnsupported }
func (Unimplemented) Describe(context.Context) ([]byte, error) { return nil, ErrUnsupported }
func (Unimplemented) Get(context.Context) ([]byte, error)      { return nil, ErrUnsupported }
func (Unimplemented) Set(context.Context, []byte) error        { return ErrUnsupported }
func (Unimplemented) Invert(context.Context) ([]byte, error)   { return nil, ErrUnsupported }
func (Unimplemented) Reset(context.Context) error              { return ErrUnsupported }

func (Unimplemented) Subscribe(context.Context, byte, Notifier) error {
	return ErrUnsupported
}

func (Unimplemented) Unsubscribe(context.Context, byte, Notifier) error {
	return ErrUnsupported
}
