// Package master implements the master side of a slink link.
//
// A [Session] sends one command at a time and waits for the reply that
// carries the same address and counter. Counters run 0x01..0xFF and wrap back
// to 0x01; 0x00 is reserved for fire-and-forget commands ([Session.Post]) and
// for unsolicited messages from the slave.
//
// When no reply arrives within the reply timeout the identical frame is
// retransmitted, up to the retry limit, after which the command fails with
// [ErrTimeout]:
//
//	cfg, _ := master.NewConfig(master.WithReplyTimeout(500*time.Millisecond))
//	s, _ := master.NewSession(ctx, tr, cfg)
//	_ = s.Open()
//	value, err := s.Get(ctx, 0x02)
//
// PUSH notifications for subscribed units are delivered to handlers added with
// [Session.AddPushHandler].
package master
