package master

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-slink/message"
)

// Handle tracks one command sent with [Session.Send] until its reply
// arrives, it times out, or it is cancelled.
type Handle struct {
	cmd     message.Command
	address byte
	counter byte
	frame   []byte
	sentAt  time.Time

	// retries is only touched while the session mutex is held.
	retries int
	resent  atomic.Int32

	done chan struct{}
	resp *message.Message
	err  error
}

func newHandle(cmd message.Command, address, counter byte, frame []byte) *Handle {
	return &Handle{
		cmd:     cmd,
		address: address,
		counter: counter,
		frame:   frame,
		sentAt:  time.Now(),
		done:    make(chan struct{}),
	}
}

// Command returns the command code.
func (h *Handle) Command() message.Command { return h.cmd }

// Address returns the target address.
func (h *Handle) Address() byte { return h.address }

// Counter returns the counter allocated to the command.
func (h *Handle) Counter() byte { return h.counter }

// SentAt returns when the command was first transmitted.
func (h *Handle) SentAt() time.Time { return h.sentAt }

// Retries returns the number of retransmissions so far.
func (h *Handle) Retries() int { return int(h.resent.Load()) }

// Done returns a channel closed once the command is resolved.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the command is resolved or ctx is done. The reply is
// returned whatever its response code.
func (h *Handle) Wait(ctx context.Context) (*message.Message, error) {
	select {
	case <-h.done:
		return h.resp, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish must be called exactly once, by whoever removed h from the
// session's pending slot.
func (h *Handle) finish(resp *message.Message, err error) {
	h.resp = resp
	h.err = err
	close(h.done)
}
