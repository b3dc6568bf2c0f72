package device

import (
	"bytes"
	"context"
	"sync"
)

// Memory is a unit whose value lives in memory. A one-byte value is treated
// as a boolean switch that supports INVERT and accepts only 0x00 and 0x01.
//
// Memory reports its own changes to subscribed notifiers, which makes it
// usable both as a simulated unit and as the backing store of a real one
// that calls Update when its hardware changes.
type Memory struct {
	name string

	mu       sync.Mutex
	initial  []byte
	value    []byte
	watchers map[Notifier]byte
}

var _ Handler = (*Memory)(nil)

// NewMemory creates a unit holding a copy of initial.
func NewMemory(name string, initial []byte) *Memory {
	return &Memory{
		name:     name,
		initial:  bytes.Clone(initial),
		value:    bytes.Clone(initial),
		watchers: make(map[Notifier]byte),
	}
}

// NewSwitch creates a one-byte boolean unit.
func NewSwitch(name string, on bool) *Memory {
	return NewMemory(name, []byte{boolByte(on)})
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Status(context.Context) ([]byte, error) {
	return []byte{0x00}, nil
}

func (m *Memory) Describe(context.Context) ([]byte, error) {
	return nil, ErrUnsupported
}

func (m *Memory) Get(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return bytes.Clone(m.value), nil
}

func (m *Memory) Set(_ context.Context, data []byte) error {
	if err := m.validate(data); err != nil {
		return err
	}

	m.Update(data)

	return nil
}

func (m *Memory) Invert(context.Context) ([]byte, error) {
	m.mu.Lock()
	if !m.isSwitch() {
		m.mu.Unlock()
		return nil, ErrUnsupported
	}
	next := []byte{m.value[0] ^ 0x01}
	watchers := m.storeLocked(next)
	m.mu.Unlock()

	notify(watchers, next)

	return next, nil
}

func (m *Memory) Subscribe(_ context.Context, address byte, n Notifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.watchers[n] = address

	return nil
}

func (m *Memory) Unsubscribe(_ context.Context, _ byte, n Notifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.watchers, n)

	return nil
}

// Reset restores the initial value and drops every watcher.
func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	m.value = bytes.Clone(m.initial)
	clear(m.watchers)
	m.mu.Unlock()

	return nil
}

// Update stores value and notifies watchers when it differs from the
// current one. It bypasses input validation.
func (m *Memory) Update(value []byte) {
	m.mu.Lock()
	if bytes.Equal(m.value, value) {
		m.mu.Unlock()
		return
	}
	watchers := m.storeLocked(value)
	m.mu.Unlock()

	notify(watchers, value)
}

// storeLocked sets the value and returns a snapshot of the watchers.
func (m *Memory) storeLocked(value []byte) map[Notifier]byte {
	m.value = bytes.Clone(value)

	watchers := make(map[Notifier]byte, len(m.watchers))
	for n, addr := range m.watchers {
		watchers[n] = addr
	}

	return watchers
}

func notify(watchers map[Notifier]byte, value []byte) {
	for n, addr := range watchers {
		n.Notify(addr, bytes.Clone(value))
	}
}

func (m *Memory) validate(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isSwitch() {
		if len(data) != 1 || data[0] > 0x01 {
			return BadInputf("%s expects a single 0x00 or 0x01 byte, got % X", m.name, data)
		}

		return nil
	}

	if len(m.initial) > 0 && len(data) != len(m.initial) {
		return BadInputf("%s expects %d bytes, got %d", m.name, len(m.initial), len(data))
	}

	return nil
}

func (m *Memory) isSwitch() bool {
	return len(m.initial) == 1
}

func boolByte(v bool) byte {
	if v {
		return 0x01
	}

	return 0x00
}
