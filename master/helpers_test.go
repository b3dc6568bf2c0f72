package master

import (
	"bufio"
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/arloliu/go-slink/frame"
	"github.com/arloliu/go-slink/logger"
	"github.com/arloliu/go-slink/message"
	"github.com/arloliu/go-slink/transport"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	os.Exit(m.Run())
}

// fakeSlave is the remote end of a net.Pipe. Every frame written by the
// session is decoded and queued on commands.
type fakeSlave struct {
	conn     net.Conn
	commands chan *message.Message
}

func newFakeSlave(t *testing.T, conn net.Conn) *fakeSlave {
	t.Helper()

	fs := &fakeSlave{conn: conn, commands: make(chan *message.Message, 64)}

	go func() {
		reader := frame.NewReader(bufio.NewReader(conn), 0)
		for {
			body, err := reader.Next()
			if err != nil {
				close(fs.commands)
				return
			}

			msg, err := message.Unpack(body)
			if err != nil {
				continue
			}
			fs.commands <- msg
		}
	}()

	return fs
}

// expect returns the next command written by the session.
func (fs *fakeSlave) expect(t *testing.T) *message.Message {
	t.Helper()

	select {
	case msg, ok := <-fs.commands:
		require.True(t, ok, "link closed")
		return msg
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no command received")
		return nil
	}
}

// expectNone asserts that nothing is written within d.
func (fs *fakeSlave) expectNone(t *testing.T, d time.Duration) {
	t.Helper()

	select {
	case msg := <-fs.commands:
		require.Failf(t, "unexpected command", "%v", msg)
	case <-time.After(d):
	}
}

func (fs *fakeSlave) send(t *testing.T, msg *message.Message) {
	t.Helper()

	_ = fs.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, err := fs.conn.Write(message.Pack(msg))
	require.NoError(t, err)
}

func (fs *fakeSlave) reply(t *testing.T, cmd *message.Message, code message.Response, data []byte) {
	t.Helper()
	fs.send(t, cmd.Reply(code, data))
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *fakeSlave) {
	t.Helper()

	cfg, err := NewConfig(opts...)
	require.NoError(t, err)

	local, remote := net.Pipe()
	t.Cleanup(func() { _ = remote.Close() })

	s, err := NewSession(context.Background(), transport.NewStream(local), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })

	return s, newFakeSlave(t, remote)
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	return ctx
}
