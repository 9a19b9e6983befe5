// Package radar binds the serial layer to the IWR1443 device: the control
// endpoint that mirrors the device CLI, and the data endpoint that
// resynchronizes the telemetry byte stream into frames and hands decoded
// JSON records to a sink.
package radar

import (
	"bytes"
	"encoding/binary"

	"github.com/llhlol/IWR1443-data-collection/frame"
)

// maxPacketLength bounds a plausible declared frame size. A header
// claiming more than this never completes within a sane arrival budget,
// so the framer skips past its magic and rescans.
const maxPacketLength = 1 << 20

// Framer accumulates raw data-port bytes and carves complete frames out
// of them. It resynchronizes on the 8-byte magic: leading garbage is
// discarded, and a buffer containing no magic at all is dropped wholesale.
//
// onFrame receives each complete frame; returning an error drops the
// frame and clears the accumulator. onResyncLost, when set, observes every
// discarded garbage byte count.
type Framer struct {
	buf          []byte
	onFrame      func(frameBytes []byte) error
	onResyncLost func(discarded int)
}

// NewFramer creates a framer delivering complete frames to onFrame.
func NewFramer(onFrame func([]byte) error) *Framer {
	return &Framer{onFrame: onFrame}
}

// SetResyncCallback registers an observer for discarded byte counts.
func (f *Framer) SetResyncCallback(cb func(discarded int)) {
	f.onResyncLost = cb
}

// Buffered returns the number of bytes waiting for frame completion.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Push appends inbound bytes and drains every complete frame from the
// accumulator. Bytes trailing the last complete frame are kept for the
// next delivery, so two frames arriving in one read both decode.
func (f *Framer) Push(p []byte) {
	f.buf = append(f.buf, p...)

	for {
		if len(f.buf) < frame.HeaderSize {
			return
		}

		idx := bytes.Index(f.buf, frame.Magic[:])
		if idx < 0 {
			// No magic anywhere: the whole accumulator is garbage.
			f.discard(len(f.buf))
			f.buf = f.buf[:0]
			return
		}
		if idx > 0 {
			f.discard(idx)
			f.buf = append(f.buf[:0], f.buf[idx:]...)
		}
		if len(f.buf) < frame.HeaderSize {
			return
		}

		packetLength := int(binary.LittleEndian.Uint32(f.buf[12:]))
		if packetLength < frame.HeaderSize || packetLength > maxPacketLength {
			// Implausible length: skip one byte past this magic and rescan.
			f.discard(1)
			f.buf = append(f.buf[:0], f.buf[1:]...)
			continue
		}

		if len(f.buf) < packetLength {
			// Wait for the rest of the frame.
			return
		}

		if err := f.onFrame(f.buf[:packetLength]); err != nil {
			// A structurally broken frame poisons everything buffered
			// behind it; start over from the next delivery.
			f.buf = f.buf[:0]
			return
		}

		// Consume exactly the frame; trailing bytes stay buffered.
		f.buf = append(f.buf[:0], f.buf[packetLength:]...)
	}
}

func (f *Framer) discard(n int) {
	if n > 0 && f.onResyncLost != nil {
		f.onResyncLost(n)
	}
}
