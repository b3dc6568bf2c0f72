package device

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingUnit struct {
	Unimplemented
	name string
	err  error
}

func (u *failingUnit) Name() string                { return u.name }
func (u *failingUnit) Reset(context.Context) error { return u.err }

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	lamp := NewSwitch("lamp", false)
	door := NewSwitch("door", true)

	addr, err := r.Register(lamp)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), addr)

	addr, err = r.Register(door)
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), addr)

	assert.Equal(t, []Handler{lamp}, r.Resolve(0x01))
	assert.Equal(t, []Handler{door}, r.Resolve(0x02))
	assert.Empty(t, r.Resolve(0x03))
	assert.Empty(t, r.Resolve(0xFE))
	assert.Equal(t, []Handler{lamp, door}, r.Resolve(0xFF))

	host := r.Resolve(0x00)
	require.Len(t, host, 1)
	assert.Equal(t, "host", host[0].Name())

	_, ok := r.Lookup(0xFF)
	assert.False(t, ok)

	h, ok := r.Lookup(0x02)
	require.True(t, ok)
	assert.Same(t, door, h)

	assert.Equal(t, []string{"lamp", "door"}, r.Names())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register(nil)
	require.ErrorIs(t, err, ErrNilHandler)

	_, err = r.Register(NewSwitch("", false))
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = r.Register(NewSwitch("a;b", false))
	require.ErrorIs(t, err, ErrInvalidName)

	for i := 0; i < MaxUnits; i++ {
		_, err := r.Register(NewSwitch(fmt.Sprintf("u%d", i), false))
		require.NoError(t, err)
	}

	_, err = r.Register(NewSwitch("overflow", false))
	require.ErrorIs(t, err, ErrRegistryFull)
	assert.Len(t, r.Resolve(0xFF), MaxUnits)
}

func TestRegistry_EmptyBroadcast(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Resolve(0xFF))
}

func TestHost(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	lamp := NewSwitch("lamp", false)
	_, _ = r.Register(lamp)
	_, _ = r.Register(NewMemory("thermometer", []byte{0x15}))
	_, _ = r.Register(&failingUnit{name: "relay", err: ErrUnsupported})

	host, ok := r.Lookup(0x00)
	require.True(t, ok)

	listing, err := host.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lamp;thermometer;relay", string(listing))

	status, err := host.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03}, status)

	_, err = host.Get(ctx)
	require.ErrorIs(t, err, ErrUnsupported)

	require.NoError(t, lamp.Set(ctx, []byte{0x01}))
	require.NoError(t, host.Reset(ctx))
	v, _ := lamp.Get(ctx)
	assert.Equal(t, []byte{0x00}, v)
}

func TestHost_ResetCollectsErrors(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("relay stuck")
	_, _ = r.Register(&failingUnit{name: "relay", err: boom})

	host, _ := r.Lookup(0x00)
	err := host.Reset(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestRegistry_SetHost(t *testing.T) {
	r := NewRegistry()
	require.ErrorIs(t, r.SetHost(nil), ErrNilHandler)

	custom := &failingUnit{name: "gateway"}
	require.NoError(t, r.SetHost(custom))

	h, ok := r.Lookup(0x00)
	require.True(t, ok)
	assert.Same(t, custom, h)
}
