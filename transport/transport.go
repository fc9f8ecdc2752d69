// Package transport defines the Channel contract of spec §4.7/§6 and
// provides adapters that satisfy it: an in-process Memory adapter used by
// tests and cmd/choreorun, and illustrative network adapters (WebSocket,
// gRPC) built on the teacher's own transport libraries.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrClosed is returned by a Channel half's Send/Recv once it (or its
// peer) has been closed, per spec §4.7: "after close, recv returns Closed;
// send returns Closed".
var ErrClosed = errors.New("transport: channel closed")

// FrameKind discriminates the wire frame's 1-byte kind field (spec §6
// "Wire frame"): 0x01 data, 0x02 label (a Choose/Offer control frame).
type FrameKind byte

const (
	FrameData  FrameKind = 0x01
	FrameLabel FrameKind = 0x02
)

// Channel is a logical full-duplex byte-stream half: strictly ordered,
// at-most-once delivery in each direction, paired at construction with
// exactly one owner per half (spec §3 "Channel").
type Channel interface {
	// Send delivers one frame. It returns ErrClosed if this half or its
	// peer has been closed.
	Send(kind FrameKind, payload []byte) error
	// Recv blocks for exactly one frame. It returns ErrClosed once closed.
	Recv() (FrameKind, []byte, error)
	// Close is idempotent and cannot fail (spec §5 "Resource release").
	Close()
}

// EncodeFrame serializes one wire frame per spec §6: a 4-byte big-endian
// length prefix, a 1-byte kind, then the payload.
func EncodeFrame(kind FrameKind, payload []byte) []byte {
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(1+len(payload)))
	buf[4] = byte(kind)
	copy(buf[5:], payload)
	return buf
}

// DecodeFrameHeader reads the length+kind header from the first 5 bytes of
// a wire frame, returning the payload length that should follow.
func DecodeFrameHeader(header [5]byte) (kind FrameKind, payloadLen uint32, err error) {
	total := binary.BigEndian.Uint32(header[:4])
	if total == 0 {
		return 0, 0, fmt.Errorf("transport: zero-length frame")
	}
	return FrameKind(header[4]), total - 1, nil
}
