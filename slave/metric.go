package slave

import "sync/atomic"

// Metrics contains atomic counters for a slave.
// Each field can back a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// FrameRecvCount is the number of frames read from the wire.
	FrameRecvCount atomic.Uint64
	// FrameInvalidCount is the number of frames answered with INVALID or BAD_REQUEST.
	FrameInvalidCount atomic.Uint64
	// ResponseSendCount is the number of responses written.
	ResponseSendCount atomic.Uint64
	// PushSendCount is the number of PUSH notifications written.
	PushSendCount atomic.Uint64
	// HandlerErrCount is the number of handler calls answered with ERROR.
	HandlerErrCount atomic.Uint64
	// SubscriptionGauge is the number of active subscriptions.
	SubscriptionGauge atomic.Int64
}

func (m *Metrics) incFrameRecvCount()    { m.FrameRecvCount.Add(1) }
func (m *Metrics) incFrameInvalidCount() { m.FrameInvalidCount.Add(1) }
func (m *Metrics) incResponseSendCount() { m.ResponseSendCount.Add(1) }
func (m *Metrics) incPushSendCount()     { m.PushSendCount.Add(1) }
func (m *Metrics) incHandlerErrCount()   { m.HandlerErrCount.Add(1) }
func (m *Metrics) setSubscriptionGauge(n int) {
	m.SubscriptionGauge.Store(int64(n))
}
