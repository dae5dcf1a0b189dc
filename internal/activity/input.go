package activity

import "encoding/binary"

// Linux input event types and codes (linux/input-event-codes.h)
const (
	evKey = 0x01
	evRel = 0x02
	evAbs = 0x03

	relX = 0x00
	relY = 0x01
	absX = 0x00
	absY = 0x01

	keyPress  = 1
	keyRepeat = 2
)

// inputEvent is the payload of a kernel input_event record without its timestamp
type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// decodeEvent reads type, code and value that follow the timeval header
func decodeEvent(record []byte, timevalSize int) inputEvent {
	b := record[timevalSize:]
	return inputEvent{
		Type:  binary.NativeEndian.Uint16(b[0:2]),
		Code:  binary.NativeEndian.Uint16(b[2:4]),
		Value: int32(binary.NativeEndian.Uint32(b[4:8])),
	}
}

// pointerFilter suppresses sensor jitter: motion only counts once the pointer
// has moved at least threshold units from the last recorded position.
type pointerFilter struct {
	threshold int64
	pos       [2]int64
	recorded  [2]int64
	seen      [2]bool
}

func newPointerFilter(threshold int) *pointerFilter {
	return &pointerFilter{threshold: int64(threshold)}
}

// handle reports whether ev is qualifying activity
func (f *pointerFilter) handle(ev inputEvent) bool {
	switch ev.Type {
	case evKey:
		return ev.Value == keyPress || ev.Value == keyRepeat
	case evRel:
		switch ev.Code {
		case relX:
			return f.moveBy(0, int64(ev.Value))
		case relY:
			return f.moveBy(1, int64(ev.Value))
		}
	case evAbs:
		switch ev.Code {
		case absX:
			return f.moveTo(0, int64(ev.Value))
		case absY:
			return f.moveTo(1, int64(ev.Value))
		}
	}
	return false
}

func (f *pointerFilter) moveBy(axis int, delta int64) bool {
	f.seen[axis] = true
	f.pos[axis] += delta
	return f.settle()
}

func (f *pointerFilter) moveTo(axis int, value int64) bool {
	f.pos[axis] = value
	if !f.seen[axis] {
		// first absolute sample is the baseline
		f.seen[axis] = true
		f.recorded[axis] = value
		return false
	}
	return f.settle()
}

func (f *pointerFilter) settle() bool {
	for axis := range f.pos {
		if abs(f.pos[axis]-f.recorded[axis]) >= f.threshold {
			f.recorded = f.pos
			return true
		}
	}
	return false
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
