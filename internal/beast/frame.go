// Package beast decodes Beast-framed Mode-S/ADS-B binary messages:
// de-escaping the wire framing, then dispatching on frame type and
// Mode-S downlink format to the right decoder.
package beast

import "fmt"

const (
	escapeByte = 0x1A

	frameModeAC    = 0x31
	frameModeSShort = 0x32
	frameModeSLong  = 0x33
	frameStatus     = 0x34
)

// FrameType tags a de-stuffed Beast frame by its type byte.
type FrameType byte

const (
	TypeModeAC    FrameType = frameModeAC
	TypeModeSShort FrameType = frameModeSShort
	TypeModeSLong  FrameType = frameModeSLong
	TypeStatus     FrameType = frameStatus
)

// Frame is one de-stuffed Beast message: a 48-bit MLAT timestamp (12MHz
// clock ticks), a signal level byte, and the payload (Mode-AC, Mode-S
// short/long, or status bytes).
type Frame struct {
	Type         FrameType
	TimestampTicks uint64 // 48-bit, MLAT clock @ 12MHz
	SignalLevel  byte
	Payload      []byte
}

// Split reads successive Beast frames out of buf, returning each decoded
// Frame plus the number of input bytes consumed across all of them and
// any trailing partial frame left unconsumed (to be prepended to the next
// read). It never errors: unrecoverable framing is reported by simply
// stopping and returning what has been consumed so far, dropping the
// offending frame while keeping the connection alive.
func Split(buf []byte) (frames []Frame, consumed int, err error) {
	i := 0
	for {
		start := i
		for i < len(buf) && buf[i] != escapeByte {
			i++
		}
		if i >= len(buf) {
			return frames, start, nil
		}
		// buf[i] == escapeByte: the frame header.
		if i+1 >= len(buf) {
			return frames, start, nil // need more bytes for the type byte
		}
		typeByte := buf[i+1]
		payloadLen, ok := payloadLenFor(typeByte)
		if !ok {
			// Not a recognised frame type; skip this escape byte and
			// keep scanning rather than getting stuck.
			i += 2
			continue
		}
		destuffed, n, complete := destuff(buf[i+2:], 6+1+payloadLen)
		if !complete {
			return frames, start, nil // wait for more bytes
		}
		if len(destuffed) < 7 {
			i += 2 + n
			continue
		}
		ts := uint64(0)
		for j := 0; j < 6; j++ {
			ts = ts<<8 | uint64(destuffed[j])
		}
		frames = append(frames, Frame{
			Type:           FrameType(typeByte),
			TimestampTicks: ts,
			SignalLevel:    destuffed[6],
			Payload:        destuffed[7:],
		})
		i += 2 + n
	}
}

func payloadLenFor(typeByte byte) (int, bool) {
	switch typeByte {
	case frameModeAC:
		return 2, true
	case frameModeSShort:
		return 7, true
	case frameModeSLong:
		return 14, true
	case frameStatus:
		return 1, true
	default:
		return 0, false
	}
}

// destuff copies want logical bytes out of src, undoing 0x1A 0x1A
// byte-stuffing, and reports how many raw src bytes were consumed. If src
// runs out before want logical bytes are produced, complete is false and
// the caller should wait for more input.
func destuff(src []byte, want int) (out []byte, consumed int, complete bool) {
	out = make([]byte, 0, want)
	i := 0
	for len(out) < want {
		if i >= len(src) {
			return out, i, false
		}
		b := src[i]
		if b == escapeByte {
			if i+1 >= len(src) {
				return out, i, false
			}
			if src[i+1] == escapeByte {
				out = append(out, escapeByte)
				i += 2
				continue
			}
			// A lone escape byte where a stuffed 0x1A was expected means
			// the next frame has started early; treat this frame as done
			// with what we have (defensive, matches §7's "never panic on
			// data" rule).
			return out, i, len(out) == want
		}
		out = append(out, b)
		i++
	}
	return out, i, true
}

func (f Frame) String() string {
	return fmt.Sprintf("beast.Frame{type=%#x ts=%d payload=%x}", byte(f.Type), f.TimestampTicks, f.Payload)
}
