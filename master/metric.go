package master

import "sync/atomic"

// Metrics contains atomic counters for a master session.
// Each field can back a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	CommandSendCount  atomic.Uint64 // commands transmitted, excluding retransmissions
	RetryCount        atomic.Uint64 // retransmissions after a reply timeout
	TimeoutCount      atomic.Uint64 // commands failed with ErrTimeout
	MismatchCount     atomic.Uint64 // replies that failed the pending command
	PushRecvCount     atomic.Uint64 // unsolicited messages received
	PushDropCount     atomic.Uint64 // unsolicited messages dropped on a full queue
	FrameInvalidCount atomic.Uint64 // frames that failed to unpack
	InFlightGauge     atomic.Int64  // 1 while a command is pending
}

func (m *Metrics) incCommandSendCount()  { m.CommandSendCount.Add(1) }
func (m *Metrics) incRetryCount()        { m.RetryCount.Add(1) }
func (m *Metrics) incTimeoutCount()      { m.TimeoutCount.Add(1) }
func (m *Metrics) incMismatchCount()     { m.MismatchCount.Add(1) }
func (m *Metrics) incPushRecvCount()     { m.PushRecvCount.Add(1) }
func (m *Metrics) incPushDropCount()     { m.PushDropCount.Add(1) }
func (m *Metrics) incFrameInvalidCount() { m.FrameInvalidCount.Add(1) }
