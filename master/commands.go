package master

import (
	"context"
	"strings"

	"github.com/arloliu/go-slink/device"
	"github.com/arloliu/go-slink/message"
)

// Status returns the status bytes of the unit at address.
func (s *Session) Status(ctx context.Context, address byte) ([]byte, error) {
	return s.data(ctx, message.Status, address, nil)
}

// Describe asks the host for its unit listing. The name at index i belongs
// to the unit at address i+1.
func (s *Session) Describe(ctx context.Context) ([]string, error) {
	data, err := s.data(ctx, message.Describe, message.AddressHost, nil)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return []string{}, nil
	}

	return strings.Split(string(data), device.NameSeparator), nil
}

// Get returns the value of the unit at address.
func (s *Session) Get(ctx context.Context, address byte) ([]byte, error) {
	return s.data(ctx, message.Get, address, nil)
}

// Set writes value to the unit at address.
func (s *Session) Set(ctx context.Context, address byte, value []byte) error {
	_, err := s.Request(ctx, message.Set, address, value)
	return err
}

// Invert flips a boolean unit and returns its new value.
func (s *Session) Invert(ctx context.Context, address byte) ([]byte, error) {
	return s.data(ctx, message.Invert, address, nil)
}

// Subscribe asks the slave to push changes of the unit at address and
// returns its current value.
func (s *Session) Subscribe(ctx context.Context, address byte) ([]byte, error) {
	return s.data(ctx, message.Subscribe, address, nil)
}

// Unsubscribe stops pushes for the unit at address.
func (s *Session) Unsubscribe(ctx context.Context, address byte) error {
	_, err := s.Request(ctx, message.Unsubscribe, address, nil)
	return err
}

// Reset cancels any pending command and posts a RESET to address. After a
// host reset the unit listing must be fetched again with Describe.
func (s *Session) Reset(address byte) error {
	s.Cancel()
	return s.Post(message.Reset, address, nil)
}

func (s *Session) data(ctx context.Context, cmd message.Command, address byte, data []byte) ([]byte, error) {
	resp, err := s.Request(ctx, cmd, address, data)
	if err != nil {
		return nil, err
	}

	return resp.Data, nil
}
