// Package frame implements the link layer of go-slink: COBS byte stuffing,
// the LRC message checksum and a self-synchronizing frame reader.
//
// A frame on the wire is
//
//	COBS(payload ++ LRC(payload)) ++ 0x00
//
// COBS removes every 0x00 from its input, so the single trailing 0x00 is an
// unambiguous frame delimiter. A receiver that joins the stream mid-frame, or
// that sees a corrupted frame, simply discards bytes up to the next delimiter
// and is synchronized again.
//
// Encode is standard COBS: [11 22 00 33] encodes to [03 11 22 02 33]. The
// sequence [03 11 22 01 02 33], sometimes quoted for that input, is the
// encoding of [11 22 00 00 33] and is not produced for it.
package frame
