package master_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/arloliu/go-slink/device"
	"github.com/arloliu/go-slink/master"
	"github.com/arloliu/go-slink/message"
	"github.com/arloliu/go-slink/slave"
	"github.com/arloliu/go-slink/transport"
	"github.com/stretchr/testify/require"
)

type link struct {
	session *master.Session
	server  *slave.Server
	units   []*device.Memory
	resets  chan struct{}
}

func newLink(t *testing.T) *link {
	t.Helper()

	l := &link{
		units: []*device.Memory{
			device.NewSwitch("lamp", false),
			device.NewSwitch("door", false),
			device.NewMemory("rgb", []byte{0x10, 0x20, 0x30}),
		},
		resets: make(chan struct{}, 4),
	}

	reg := device.NewRegistry()
	for _, u := range l.units {
		_, err := reg.Register(u)
		require.NoError(t, err)
	}

	slaveCfg, err := slave.NewConfig(slave.WithOnReset(func() { l.resets <- struct{}{} }))
	require.NoError(t, err)

	masterCfg, err := master.NewConfig(master.WithReplyTimeout(200 * time.Millisecond))
	require.NoError(t, err)

	mc, sc := net.Pipe()

	l.server, err = slave.NewServer(context.Background(), transport.NewStream(sc), reg, slaveCfg)
	require.NoError(t, err)
	require.NoError(t, l.server.Start())
	t.Cleanup(func() { _ = l.server.Close() })

	l.session, err = master.NewSession(context.Background(), transport.NewStream(mc), masterCfg)
	require.NoError(t, err)
	require.NoError(t, l.session.Open())
	t.Cleanup(func() { _ = l.session.Close() })

	return l
}

func TestEndToEnd_Commands(t *testing.T) {
	require := require.New(t)

	l := newLink(t)
	s := l.session
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	names, err := s.Describe(ctx)
	require.NoError(err)
	require.Equal([]string{"lamp", "door", "rgb"}, names)

	status, err := s.Status(ctx, message.AddressHost)
	require.NoError(err)
	require.Equal([]byte{0x03}, status)

	require.NoError(s.Set(ctx, 0x01, []byte{0x01}))

	value, err := s.Get(ctx, 0x01)
	require.NoError(err)
	require.Equal([]byte{0x01}, value)

	value, err = s.Invert(ctx, 0x01)
	require.NoError(err)
	require.Equal([]byte{0x00}, value)

	value, err = s.Get(ctx, 0x03)
	require.NoError(err)
	require.Equal([]byte{0x10, 0x20, 0x30}, value)

	_, err = s.Get(ctx, 0x09)
	require.ErrorIs(err, master.ErrNotFound)

	_, err = s.Invert(ctx, 0x03)
	require.ErrorIs(err, master.ErrNotImplemented)

	err = s.Set(ctx, 0x01, []byte{0x07})
	require.ErrorIs(err, master.ErrBadRequest)

	require.Equal(uint64(0), s.Metrics().TimeoutCount.Load())
	require.Equal(uint64(0), s.Metrics().MismatchCount.Load())
}

func TestEndToEnd_SubscribePush(t *testing.T) {
	require := require.New(t)

	l := newLink(t)
	s := l.session
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pushes := make(chan *message.Message, 8)
	s.AddPushHandler(func(msg *message.Message) { pushes <- msg })

	value, err := s.Subscribe(ctx, 0x02)
	require.NoError(err)
	require.Equal([]byte{0x00}, value)

	l.units[1].Update([]byte{0x01})

	select {
	case msg := <-pushes:
		require.Equal(byte(message.Push), msg.Code)
		require.Equal(byte(0x02), msg.Address)
		require.Equal(message.CounterUnsolicited, msg.Counter)
		require.Equal([]byte{0x01}, msg.Data)
	case <-time.After(2 * time.Second):
		require.FailNow("no push received")
	}

	// commands still work while subscriptions are active
	value, err = s.Get(ctx, 0x02)
	require.NoError(err)
	require.Equal([]byte{0x01}, value)

	require.NoError(s.Unsubscribe(ctx, 0x02))
	l.units[1].Update([]byte{0x00})

	select {
	case msg := <-pushes:
		require.Failf("unexpected push", "%s", msg.ResponseString())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEndToEnd_HostReset(t *testing.T) {
	require := require.New(t)

	l := newLink(t)
	s := l.session
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(s.Set(ctx, 0x01, []byte{0x01}))
	require.NoError(s.Reset(message.AddressHost))

	select {
	case <-l.resets:
	case <-time.After(2 * time.Second):
		require.FailNow("reset not observed by the slave")
	}

	value, err := s.Get(ctx, 0x01)
	require.NoError(err)
	require.Equal([]byte{0x00}, value)

	names, err := s.Describe(ctx)
	require.NoError(err)
	require.Len(names, 3)
}
