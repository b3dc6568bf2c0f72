package master

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-slink/frame"
	"github.com/arloliu/go-slink/internal/pool"
	"github.com/arloliu/go-slink/internal/task"
	"github.com/arloliu/go-slink/logger"
	"github.com/arloliu/go-slink/message"
	"github.com/arloliu/go-slink/transport"
)

// PushHandler receives unsolicited messages: PUSH notifications and INVALID
// notices carrying counter 0x00.
type PushHandler func(msg *message.Message)

// Session is the master side of a link.
//
// At most one command is pending at a time. Replies are correlated by
// address and counter; unsolicited messages go to push handlers and never
// affect the pending command.
type Session struct {
	cfg     *Config
	logger  logger.Logger
	tr      transport.Transport
	reader  *frame.Reader
	taskMgr *task.Manager

	mu          sync.Mutex
	pending     *Handle
	lastCounter byte

	pushCh       chan *message.Message
	handlersMu   sync.RWMutex
	pushHandlers []PushHandler

	opened   atomic.Bool
	shutdown atomic.Bool
	broken   atomic.Bool // the link failed under the reader

	metrics Metrics
}

// NewSession creates a session on tr. The session owns tr and closes it in
// [Session.Close]. A nil cfg uses the defaults.
//
// The caller must call [Session.Open] before sending commands.
func NewSession(ctx context.Context, tr transport.Transport, cfg *Config) (*Session, error) {
	if tr == nil {
		return nil, errors.New("master: transport is nil")
	}

	if cfg == nil {
		var err error
		if cfg, err = NewConfig(); err != nil {
			return nil, err
		}
	}

	return &Session{
		cfg:     cfg,
		logger:  cfg.logger,
		tr:      tr,
		reader:  frame.NewReader(tr, cfg.maxFrameSize),
		taskMgr: task.NewManager(ctx, cfg.logger),
		pushCh:  make(chan *message.Message, cfg.pushQueueSize),
	}, nil
}

// Metrics returns the session metrics.
func (s *Session) Metrics() *Metrics { return &s.metrics }

// Config returns the session configuration.
func (s *Session) Config() *Config { return s.cfg }

// Open starts the reader and push delivery tasks.
func (s *Session) Open() error {
	if s.shutdown.Load() {
		return ErrSessionClosed
	}

	if !s.opened.CompareAndSwap(false, true) {
		return nil
	}

	if err := s.taskMgr.Start("master.reader", s.readLoop); err != nil {
		return err
	}

	if err := s.taskMgr.Start("master.push", s.pushLoop); err != nil {
		return err
	}

	s.logger.Debug("master: session opened",
		"reply_timeout", s.cfg.replyTimeout, "retry_limit", s.cfg.retryLimit)

	return nil
}

// Close fails the pending command with ErrSessionClosed, stops all tasks and
// closes the transport.
func (s *Session) Close() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	s.resolvePending(nil, ErrSessionClosed)

	s.taskMgr.Stop()
	err := s.tr.Close()
	s.taskMgr.Wait()

	s.logger.Debug("master: session closed")

	return err
}

// AddPushHandler registers a handler for unsolicited messages. Handlers run
// on the push delivery goroutine, in registration order.
func (s *Session) AddPushHandler(h PushHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	s.pushHandlers = append(s.pushHandlers, h)
}

// IsPending reports whether a command is awaiting its reply.
func (s *Session) IsPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending != nil
}

// Send transmits cmd to address and returns a handle resolved by the reply.
//
// It fails with ErrRejected while another command is pending and with
// ErrBroadcast for the broadcast address.
func (s *Session) Send(ctx context.Context, cmd message.Command, address byte, data []byte) (*Handle, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	if address == message.AddressBroadcast {
		return nil, ErrBroadcast
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return nil, ErrRejected
	}

	counter := s.nextCounter()
	msg := message.NewCommand(cmd, address, counter, data)
	h := newHandle(cmd, address, counter, message.Pack(msg))
	s.pending = h
	s.metrics.InFlightGauge.Store(1)
	s.mu.Unlock()

	err := s.taskMgr.Start("master.watch", func(ctx context.Context) bool {
		s.watch(ctx, h)
		return false
	})
	if err != nil {
		s.resolve(h, nil, ErrSessionClosed)
		return nil, ErrSessionClosed
	}

	s.logger.Debug("master: send", "msg", msg.String())

	if err := s.tr.WriteBytes(h.frame); err != nil {
		err = fmt.Errorf("master: send %s: %w", msg, err)
		s.resolve(h, nil, err)

		return nil, err
	}

	s.metrics.incCommandSendCount()

	return h, nil
}

// Request sends cmd and waits for its reply. A reply other than ACK is
// returned as a *ResponseError. If ctx ends first the command is abandoned
// and the session returns to idle.
func (s *Session) Request(ctx context.Context, cmd message.Command, address byte, data []byte) (*message.Message, error) {
	h, err := s.Send(ctx, cmd, address, data)
	if err != nil {
		return nil, err
	}

	resp, err := h.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.resolve(h, nil, ctx.Err())
		}

		return nil, err
	}

	if resp.Response() != message.Ack {
		return resp, &ResponseError{Code: resp.Response(), Address: resp.Address, Data: resp.Data}
	}

	return resp, nil
}

// Post transmits cmd with counter 0x00. No reply is expected. Post is the
// only way to address the broadcast address.
func (s *Session) Post(cmd message.Command, address byte, data []byte) error {
	if s.isClosed() {
		return ErrSessionClosed
	}

	s.mu.Lock()
	busy := s.pending != nil
	s.mu.Unlock()

	if busy {
		return ErrRejected
	}

	msg := message.NewCommand(cmd, address, message.CounterUnsolicited, data)
	s.logger.Debug("master: post", "msg", msg.String())

	if err := s.tr.WriteBytes(message.Pack(msg)); err != nil {
		return fmt.Errorf("master: post %s: %w", msg, err)
	}

	s.metrics.incCommandSendCount()

	return nil
}

func (s *Session) isClosed() bool {
	return s.shutdown.Load() || s.broken.Load()
}

// Cancel fails the pending command, if any, with ErrCancelled.
func (s *Session) Cancel() {
	if s.resolvePending(nil, ErrCancelled) {
		s.logger.Debug("master: pending command cancelled")
	}
}

// nextCounter must be called with s.mu held.
func (s *Session) nextCounter() byte {
	s.lastCounter++
	if s.lastCounter == message.CounterUnsolicited {
		s.lastCounter = 0x01
	}

	return s.lastCounter
}

// resolve finishes h if it is still the pending command.
func (s *Session) resolve(h *Handle, resp *message.Message, err error) bool {
	s.mu.Lock()
	if s.pending != h {
		s.mu.Unlock()
		return false
	}
	s.pending = nil
	s.metrics.InFlightGauge.Store(0)
	s.mu.Unlock()

	h.finish(resp, err)

	return true
}

func (s *Session) resolvePending(resp *message.Message, err error) bool {
	s.mu.Lock()
	h := s.pending
	s.mu.Unlock()

	if h == nil {
		return false
	}

	return s.resolve(h, resp, err)
}

// watch runs the reply timer of h and retransmits on expiry.
func (s *Session) watch(ctx context.Context, h *Handle) {
	timer := pool.GetTimer(s.cfg.replyTimeout)
	defer pool.PutTimer(timer)

	for {
		select {
		case <-h.done:
			return

		case <-ctx.Done():
			s.resolve(h, nil, ErrSessionClosed)
			return

		case <-timer.C:
			s.mu.Lock()
			if s.pending != h {
				s.mu.Unlock()
				return
			}

			if h.retries >= s.cfg.retryLimit {
				s.pending = nil
				s.metrics.InFlightGauge.Store(0)
				s.mu.Unlock()

				s.metrics.incTimeoutCount()
				s.logger.Warn("master: reply timeout",
					"command", h.cmd.String(), "address", h.address, "counter", h.counter,
					"retries", h.retries, "elapsed", time.Since(h.sentAt))
				h.finish(nil, fmt.Errorf("%w: %s to 0x%02X after %d retries", ErrTimeout, h.cmd, h.address, h.retries))

				return
			}

			h.retries++
			h.resent.Add(1)
			s.mu.Unlock()

			s.metrics.incRetryCount()
			s.logger.Debug("master: retransmit",
				"command", h.cmd.String(), "address", h.address, "counter", h.counter, "retry", h.Retries())

			if err := s.tr.WriteBytes(h.frame); err != nil {
				s.resolve(h, nil, fmt.Errorf("master: retransmit: %w", err))
				return
			}

			timer.Reset(s.cfg.replyTimeout)
		}
	}
}

func (s *Session) readLoop(ctx context.Context) bool {
	body, err := s.reader.Next()
	if err != nil {
		if errors.Is(err, frame.ErrFrameTooLong) {
			s.metrics.incFrameInvalidCount()
			s.logger.Warn("master: oversized frame dropped", "error", err)

			return true
		}

		if !s.shutdown.Load() && ctx.Err() == nil {
			s.logger.Error("master: read failed", "error", err)
			s.broken.Store(true)
			s.resolvePending(nil, fmt.Errorf("%w: %w", ErrSessionClosed, err))
			s.taskMgr.Stop()
		}

		return false
	}

	msg, err := message.Unpack(body)
	if err != nil {
		s.metrics.incFrameInvalidCount()
		s.logger.Warn("master: frame dropped", "error", err)

		return true
	}

	s.route(msg)

	return true
}

// route hands msg to the push queue or to the pending command.
func (s *Session) route(msg *message.Message) {
	if msg.IsUnsolicited() {
		s.deliver(msg)
		return
	}

	s.mu.Lock()
	h := s.pending
	if h == nil {
		s.mu.Unlock()
		s.logger.Warn("master: reply with nothing pending", "msg", msg.ResponseString())

		return
	}

	var err error
	switch {
	case msg.Counter != h.counter:
		err = fmt.Errorf("%w: sent 0x%02X, got 0x%02X", ErrCounterMismatch, h.counter, msg.Counter)
	case msg.Address != h.address:
		err = fmt.Errorf("%w: sent 0x%02X, got 0x%02X", ErrAddressMismatch, h.address, msg.Address)
	}

	s.pending = nil
	s.metrics.InFlightGauge.Store(0)
	s.mu.Unlock()

	if err != nil {
		s.metrics.incMismatchCount()
		s.logger.Warn("master: reply discarded", "msg", msg.ResponseString(), "error", err)
		h.finish(nil, err)

		return
	}

	s.logger.Debug("master: reply", "msg", msg.ResponseString(), "rtt", time.Since(h.sentAt))
	h.finish(msg, nil)
}

func (s *Session) deliver(msg *message.Message) {
	s.metrics.incPushRecvCount()

	select {
	case s.pushCh <- msg:
	default:
		s.metrics.incPushDropCount()
		s.logger.Warn("master: push queue full, message dropped", "msg", msg.ResponseString())
	}
}

func (s *Session) pushLoop(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case msg := <-s.pushCh:
		s.handlersMu.RLock()
		handlers := s.pushHandlers
		s.handlersMu.RUnlock()

		for _, h := range handlers {
			h(msg)
		}

		return true
	}
}
