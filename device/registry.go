package device

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/arloliu/go-slink/message"
)

// MaxUnits is the number of individually addressable units (0x01-0xFE).
const MaxUnits = 0xFE

// NameSeparator separates unit names in the host DESCRIBE listing.
const NameSeparator = ";"

var (
	ErrRegistryFull = errors.New("device: all unit addresses are in use")
	ErrNilHandler   = errors.New("device: handler is nil")
	ErrInvalidName  = errors.New("device: invalid unit name")
)

// Unit pairs a registered handler with its address.
type Unit struct {
	Address byte
	Handler Handler
}

// Registry maps addresses to handlers. Units receive consecutive addresses
// starting at 0x01 in registration order; address 0x00 is the host and 0xFF
// fans out to every unit.
//
// Registry is safe for concurrent use, but is normally populated once before
// the slave starts.
type Registry struct {
	mu    sync.RWMutex
	host  Handler
	units []Handler
}

// NewRegistry creates an empty registry served by the default Host.
func NewRegistry() *Registry {
	r := &Registry{}
	r.host = NewHost(r)

	return r
}

// SetHost replaces the handler answering at the host address.
func (r *Registry) SetHost(h Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.host = h

	return nil
}

// Register adds a unit and returns its address.
func (r *Registry) Register(h Handler) (byte, error) {
	if h == nil {
		return 0, ErrNilHandler
	}

	name := h.Name()
	if name == "" || strings.Contains(name, NameSeparator) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.units) >= MaxUnits {
		return 0, ErrRegistryFull
	}

	r.units = append(r.units, h)

	return byte(len(r.units)), nil
}

// Resolve returns the handlers addressed by address: the host for 0x00,
// every unit for 0xFF, the single unit for a registered address, and an
// empty slice otherwise.
func (r *Registry) Resolve(address byte) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch {
	case address == message.AddressHost:
		return []Handler{r.host}
	case address == message.AddressBroadcast:
		out := make([]Handler, len(r.units))
		copy(out, r.units)

		return out
	case int(address) <= len(r.units):
		return []Handler{r.units[address-1]}
	default:
		return nil
	}
}

// Lookup returns the handler at a single address: the host or one unit.
// It never resolves the broadcast address.
func (r *Registry) Lookup(address byte) (Handler, bool) {
	if address == message.AddressBroadcast {
		return nil, false
	}

	hs := r.Resolve(address)
	if len(hs) != 1 {
		return nil, false
	}

	return hs[0], true
}

// Units returns every registered unit in address order.
func (r *Registry) Units() []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Unit, len(r.units))
	for i, h := range r.units {
		out[i] = Unit{Address: byte(i + 1), Handler: h}
	}

	return out
}

// Names returns the unit names in address order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.units))
	for i, h := range r.units {
		names[i] = h.Name()
	}

	return names
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.units)
}
