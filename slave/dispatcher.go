package slave

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/arloliu/go-slink/device"
	"github.com/arloliu/go-slink/frame"
	"github.com/arloliu/go-slink/internal/queue"
	"github.com/arloliu/go-slink/logger"
	"github.com/arloliu/go-slink/message"
	"github.com/puzpuzpuz/xsync/v3"
)

type subscription struct {
	address   byte
	lastValue []byte
}

type change struct {
	address byte
	value   []byte
}

// Dispatcher turns one received frame into at most one response and keeps the
// subscription table of the slave.
//
// Handle and the change/poll methods must be called from a single goroutine,
// normally the protocol loop of a [Server]. Notify may be called from any
// goroutine.
type Dispatcher struct {
	registry *device.Registry
	cfg      *Config
	logger   logger.Logger

	subs    *xsync.MapOf[byte, *subscription]
	events  *queue.LockFree[change]
	signal  chan struct{}
	metrics Metrics
}

var _ device.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher serving the units of registry.
// A nil cfg uses the defaults.
func NewDispatcher(registry *device.Registry, cfg *Config) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("slave: registry is nil")
	}

	if cfg == nil {
		var err error
		if cfg, err = NewConfig(); err != nil {
			return nil, err
		}
	}

	return &Dispatcher{
		registry: registry,
		cfg:      cfg,
		logger:   cfg.logger,
		subs:     xsync.NewMapOf[byte, *subscription](),
		events:   queue.NewLockFree[change](),
		signal:   make(chan struct{}, 1),
	}, nil
}

// Registry returns the registry served by the dispatcher.
func (d *Dispatcher) Registry() *device.Registry { return d.registry }

// Metrics returns the dispatcher metrics.
func (d *Dispatcher) Metrics() *Metrics { return &d.metrics }

// Subscriptions returns the subscribed addresses in ascending order.
func (d *Dispatcher) Subscriptions() []byte {
	addrs := make([]byte, 0, d.subs.Size())
	d.subs.Range(func(addr byte, _ *subscription) bool {
		addrs = append(addrs, addr)
		return true
	})
	slices.Sort(addrs)

	return addrs
}

// Handle processes one frame body (the bytes between delimiters) and returns
// the response to transmit, or nil when none is due.
//
// A host RESET invokes the OnReset callback before Handle returns. [Server]
// writes the ACK first.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) *message.Message {
	resp, after := d.handle(ctx, body)
	if after != nil {
		after()
	}

	return resp
}

// Notify queues a value change of the unit at address. It never blocks.
func (d *Dispatcher) Notify(address byte, value []byte) {
	d.events.Enqueue(change{address: address, value: bytes.Clone(value)})

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// Changed returns a channel that receives when change events are queued.
func (d *Dispatcher) Changed() <-chan struct{} { return d.signal }

// Changes drains the queued change events and returns one PUSH for every
// event that differs from the last value seen for its subscription.
func (d *Dispatcher) Changes() []*message.Message {
	var pushes []*message.Message

	for {
		ev, ok := d.events.Dequeue()
		if !ok {
			return pushes
		}

		if push := d.compare(ev.address, ev.value); push != nil {
			pushes = append(pushes, push)
		}
	}
}

// Poll reads every subscribed unit and returns a PUSH for each value that
// changed since the last report.
func (d *Dispatcher) Poll(ctx context.Context) []*message.Message {
	var pushes []*message.Message

	for _, addr := range d.Subscriptions() {
		h, ok := d.registry.Lookup(addr)
		if !ok {
			d.subs.Delete(addr)
			continue
		}

		value, err := d.call(func() ([]byte, error) { return h.Get(ctx) })
		if err != nil {
			d.logger.Warn("slave: poll failed", "address", addr, "unit", h.Name(), "error", err)
			continue
		}

		if push := d.compare(addr, value); push != nil {
			pushes = append(pushes, push)
		}
	}

	return pushes
}

func (d *Dispatcher) compare(addr byte, value []byte) *message.Message {
	sub, ok := d.subs.Load(addr)
	if !ok || bytes.Equal(sub.lastValue, value) {
		return nil
	}

	sub.lastValue = bytes.Clone(value)

	return message.NewPush(addr, value)
}

func (d *Dispatcher) handle(ctx context.Context, body []byte) (*message.Message, func()) {
	msg, err := message.Unpack(body)
	if err != nil {
		d.metrics.incFrameInvalidCount()
		return d.reject(body, err), nil
	}

	d.logger.Debug("slave: received", "msg", msg.String())

	if msg.IsBroadcast() {
		d.broadcast(ctx, msg)
		return nil, nil
	}

	h, ok := d.registry.Lookup(msg.Address)
	if !ok {
		return d.reply(msg, message.NotFound, nil), nil
	}

	code, data, after := d.execute(ctx, msg.Address, h, msg)

	return d.reply(msg, code, data), after
}

// reject answers a frame that could not be parsed.
func (d *Dispatcher) reject(body []byte, err error) *message.Message {
	if message.IsCorrupt(err) {
		d.logger.Warn("slave: corrupt frame", "error", err)
		return message.NewResponse(message.Invalid, message.AddressHost, message.CounterUnsolicited, nil)
	}

	d.logger.Warn("slave: malformed message", "error", err)

	// Open succeeded here, so the payload carries the address when it is
	// long enough.
	var addr byte
	if payload, perr := frame.Open(body); perr == nil && len(payload) >= 2 {
		addr = payload[1]
	}

	return message.NewResponse(message.BadRequest, addr, message.CounterUnsolicited, nil)
}

// reply builds the response for msg, or nil for fire-and-forget commands.
func (d *Dispatcher) reply(msg *message.Message, code message.Response, data []byte) *message.Message {
	if msg.IsUnsolicited() {
		if code != message.Ack {
			d.logger.Debug("slave: fire-and-forget command failed", "msg", msg.String(), "code", code.String())
		}

		return nil
	}

	return msg.Reply(code, data)
}

func (d *Dispatcher) broadcast(ctx context.Context, msg *message.Message) {
	for _, u := range d.registry.Units() {
		code, _, after := d.execute(ctx, u.Address, u.Handler, msg)
		if after != nil {
			after()
		}

		if code != message.Ack {
			d.logger.Debug("slave: broadcast command failed",
				"address", u.Address, "unit", u.Handler.Name(), "code", code.String())
		}
	}
}

// execute runs the command of msg against the handler at addr.
func (d *Dispatcher) execute(ctx context.Context, addr byte, h device.Handler, msg *message.Message) (message.Response, []byte, func()) {
	var (
		data  []byte
		err   error
		after func()
	)

	switch msg.Command() {
	case message.Status:
		data, err = d.call(func() ([]byte, error) { return h.Status(ctx) })
	case message.Describe:
		data, err = d.call(func() ([]byte, error) { return h.Describe(ctx) })
	case message.Get:
		data, err = d.call(func() ([]byte, error) { return h.Get(ctx) })
	case message.Set:
		_, err = d.call(func() ([]byte, error) { return nil, h.Set(ctx, msg.Data) })
	case message.Invert:
		data, err = d.call(func() ([]byte, error) { return h.Invert(ctx) })
	case message.Subscribe:
		data, err = d.subscribe(ctx, addr, h)
	case message.Unsubscribe:
		err = d.unsubscribe(ctx, addr, h)
	case message.Reset:
		after, err = d.reset(ctx, addr, h)
	default:
		d.logger.Debug("slave: unknown command", "code", msg.Code, "address", addr)
		return message.NotImplemented, nil, nil
	}

	if err != nil {
		code := responseFor(err)
		if code == message.Error {
			d.metrics.incHandlerErrCount()
			d.logger.Error("slave: handler failed",
				"address", addr, "unit", h.Name(), "command", msg.Command().String(), "error", err)

			return code, []byte(err.Error()), nil
		}

		return code, nil, nil
	}

	return message.Ack, data, after
}

func (d *Dispatcher) subscribe(ctx context.Context, addr byte, h device.Handler) ([]byte, error) {
	// The hook goes in before the value is read: a change racing the read is
	// queued and later filtered by compare against lastValue.
	_, err := d.call(func() ([]byte, error) { return nil, h.Subscribe(ctx, addr, d) })
	polled := errors.Is(err, device.ErrUnsupported)
	if err != nil && !polled {
		return nil, err
	}

	value, err := d.call(func() ([]byte, error) { return h.Get(ctx) })
	if err != nil {
		if !polled {
			_, _ = d.call(func() ([]byte, error) { return nil, h.Unsubscribe(ctx, addr, d) })
		}

		return nil, err
	}

	d.subs.Store(addr, &subscription{address: addr, lastValue: bytes.Clone(value)})
	d.metrics.setSubscriptionGauge(d.subs.Size())
	d.logger.Debug("slave: subscribed", "address", addr, "unit", h.Name(), "polled", polled)

	return value, nil
}

func (d *Dispatcher) unsubscribe(ctx context.Context, addr byte, h device.Handler) error {
	d.subs.Delete(addr)
	d.metrics.setSubscriptionGauge(d.subs.Size())

	_, err := d.call(func() ([]byte, error) { return nil, h.Unsubscribe(ctx, addr, d) })
	if err != nil && !errors.Is(err, device.ErrUnsupported) {
		return err
	}

	return nil
}

func (d *Dispatcher) reset(ctx context.Context, addr byte, h device.Handler) (func(), error) {
	if addr != message.AddressHost {
		d.subs.Delete(addr)
		d.metrics.setSubscriptionGauge(d.subs.Size())
		_, err := d.call(func() ([]byte, error) { return nil, h.Reset(ctx) })

		return nil, err
	}

	d.subs.Clear()
	d.metrics.setSubscriptionGauge(0)
	// stale change events belong to the cleared subscriptions
	for !d.events.IsEmpty() {
		d.events.Dequeue()
	}

	_, err := d.call(func() ([]byte, error) { return nil, h.Reset(ctx) })
	if err != nil {
		return nil, err
	}

	d.logger.Info("slave: host reset, a fresh DESCRIBE is required")

	return d.cfg.onReset, nil
}

// call invokes fn and converts a panic into an error.
func (d *Dispatcher) call(fn func() ([]byte, error)) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("slave: handler panic: %v", r)
		}
	}()

	return fn()
}

func responseFor(err error) message.Response {
	switch {
	case errors.Is(err, device.ErrUnsupported):
		return message.NotImplemented
	case errors.Is(err, device.ErrBadInput):
		return message.BadRequest
	default:
		return message.Error
	}
}
