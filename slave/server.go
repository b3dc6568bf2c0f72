package slave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-slink/device"
	"github.com/arloliu/go-slink/frame"
	"github.com/arloliu/go-slink/internal/task"
	"github.com/arloliu/go-slink/logger"
	"github.com/arloliu/go-slink/message"
	"github.com/arloliu/go-slink/transport"
)

// ErrServerClosed is returned by [Server.Serve] and [Server.Start] after
// [Server.Close].
var ErrServerClosed = errors.New("slave: server closed")

type frameResult struct {
	body []byte
	err  error
}

// Server runs the slave side of a link: it reads frames from a transport,
// dispatches them, writes responses and emits PUSH notifications between
// command handlings.
type Server struct {
	cfg        *Config
	logger     logger.Logger
	tr         transport.Transport
	reader     *frame.Reader
	dispatcher *Dispatcher
	taskMgr    *task.Manager

	frames chan frameResult
	ticker *time.Ticker
	pollC  <-chan time.Time

	started  atomic.Bool
	shutdown atomic.Bool

	errMu sync.Mutex
	err   error
}

// NewServer creates a server for the units of registry on tr. The server
// owns tr and closes it in [Server.Close].
func NewServer(ctx context.Context, tr transport.Transport, registry *device.Registry, cfg *Config) (*Server, error) {
	if tr == nil {
		return nil, errors.New("slave: transport is nil")
	}

	d, err := NewDispatcher(registry, cfg)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:        d.cfg,
		logger:     d.logger,
		tr:         tr,
		reader:     frame.NewReader(tr, d.cfg.maxFrameSize),
		dispatcher: d,
		taskMgr:    task.NewManager(ctx, d.logger),
		frames:     make(chan frameResult, d.cfg.frameQueue),
	}, nil
}

// Dispatcher returns the dispatcher of the server. Units use it as their
// [device.Notifier].
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics { return s.dispatcher.Metrics() }

// Start starts the reader and protocol tasks and returns immediately.
func (s *Server) Start() error {
	if s.shutdown.Load() {
		return ErrServerClosed
	}

	if !s.started.CompareAndSwap(false, true) {
		return errors.New("slave: server already started")
	}

	if s.cfg.pollInterval > 0 {
		s.ticker = time.NewTicker(s.cfg.pollInterval)
		s.pollC = s.ticker.C
	}

	for name, fn := range map[string]task.LoopFunc{
		"slave.reader":   s.readLoop,
		"slave.protocol": s.protocolLoop,
	} {
		if err := s.taskMgr.Start(name, fn); err != nil {
			if s.shutdown.Load() {
				return ErrServerClosed
			}

			return err
		}
	}

	s.logger.Info("slave: server started", "units", s.dispatcher.registry.Len(), "poll_interval", s.cfg.pollInterval)

	return nil
}

// Serve starts the server and blocks until the link fails or the server is
// closed. It returns ErrServerClosed after Close, otherwise the transport
// error that ended the link.
func (s *Server) Serve() error {
	if err := s.Start(); err != nil {
		return err
	}

	return s.Wait()
}

// Wait blocks until both tasks have terminated.
func (s *Server) Wait() error {
	s.taskMgr.Wait()

	if s.shutdown.Load() {
		return ErrServerClosed
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()

	return s.err
}

// Close stops the server and closes the transport.
func (s *Server) Close() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	s.taskMgr.Stop()
	err := s.tr.Close()
	s.taskMgr.Wait()

	if s.ticker != nil {
		s.ticker.Stop()
	}

	s.logger.Info("slave: server closed")

	return err
}

func (s *Server) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()

	s.taskMgr.Stop()
}

func (s *Server) readLoop(ctx context.Context) bool {
	body, err := s.reader.Next()
	if err != nil && !errors.Is(err, frame.ErrFrameTooLong) {
		if !s.shutdown.Load() {
			s.logger.Error("slave: read failed", "error", err)
			s.fail(err)
		}

		return false
	}

	if err == nil {
		s.dispatcher.metrics.incFrameRecvCount()
	}

	select {
	case s.frames <- frameResult{body: body, err: err}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) protocolLoop(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false

	case f := <-s.frames:
		if f.err != nil {
			s.dispatcher.metrics.incFrameInvalidCount()
			s.logger.Warn("slave: oversized frame", "error", f.err)

			return s.write(message.NewResponse(message.Invalid, message.AddressHost, message.CounterUnsolicited, nil))
		}

		resp, after := s.dispatcher.handle(ctx, f.body)
		if resp != nil && !s.write(resp) {
			return false
		}

		if after != nil {
			after()
		}

		return true

	case <-s.dispatcher.Changed():
		return s.writeAll(s.dispatcher.Changes())

	case <-s.pollC:
		return s.writeAll(s.dispatcher.Poll(ctx))
	}
}

func (s *Server) writeAll(pushes []*message.Message) bool {
	for _, push := range pushes {
		if !s.write(push) {
			return false
		}
		s.dispatcher.metrics.incPushSendCount()
	}

	return true
}

func (s *Server) write(msg *message.Message) bool {
	if err := s.tr.WriteBytes(message.Pack(msg)); err != nil {
		if !s.shutdown.Load() {
			s.logger.Error("slave: write failed", "msg", msg.ResponseString(), "error", err)
			s.fail(err)
		}

		return false
	}

	if msg.Response() != message.Push {
		s.dispatcher.metrics.incResponseSendCount()
	}

	s.logger.Debug("slave: sent", "msg", msg.ResponseString())

	return true
}
