package device

import (
	"context"
	"errors"
	"strings"
)

// Host answers at address 0x00 on behalf of the slave itself.
type Host struct {
	Unimplemented
	registry *Registry
}

var _ Handler = (*Host)(nil)

// NewHost creates the default host handler for r.
func NewHost(r *Registry) *Host {
	return &Host{registry: r}
}

func (h *Host) Name() string { return "host" }

// Status returns the number of registered units.
func (h *Host) Status(context.Context) ([]byte, error) {
	return []byte{byte(h.registry.Len())}, nil
}

// Describe returns the unit names separated by NameSeparator; the position
// of a name in the list (1-based) is its address.
func (h *Host) Describe(context.Context) ([]byte, error) {
	return []byte(strings.Join(h.registry.Names(), NameSeparator)), nil
}

// Reset resets every unit that supports it.
func (h *Host) Reset(ctx context.Context) error {
	var errs error

	for _, u := range h.registry.Units() {
		if err := u.Handler.Reset(ctx); err != nil && !errors.Is(err, ErrUnsupported) {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}
