package protocol

import (
	"encoding/hex"
	"fmt"
)

// Request carries the fields a control call wants to change. Nil fields are
// left as they are in the command frame.
//
// Swing is accepted but not encoded: the unit's swing byte (OffsetSwing) is
// reserved until its values are confirmed.
type Request struct {
	Mode              *Mode      `json:"mode,omitempty"`
	FanSpeed          *FanSpeed  `json:"fan_speed,omitempty"`
	TargetTemperature *int       `json:"target_temperature,omitempty"`
	Swing             *SwingMode `json:"swing_mode,omitempty"`
}

// IsEmpty reports whether the request changes nothing.
func (r Request) IsEmpty() bool {
	return r.Mode == nil && r.FanSpeed == nil && r.TargetTemperature == nil && r.Swing == nil
}

func (r Request) String() string {
	s := "Request{"
	if r.Mode != nil {
		s += fmt.Sprintf(" mode=%s", *r.Mode)
	}
	if r.FanSpeed != nil {
		s += fmt.Sprintf(" fan=%s", *r.FanSpeed)
	}
	if r.TargetTemperature != nil {
		s += fmt.Sprintf(" target=%d", *r.TargetTemperature)
	}
	if r.Swing != nil {
		s += fmt.Sprintf(" swing=%s", *r.Swing)
	}
	return s + " }"
}

// CommandFrame is the outbound frame kept for the lifetime of a controller.
// Every byte not touched by Merge or Adopt keeps its previous value, so
// periodic resends repeat the last known-good state.
//
// CommandFrame is not safe for concurrent use; the owner serialises access.
type CommandFrame struct {
	buf [FrameSize]byte
}

// NewCommandFrame returns a zero-filled frame with the sync bytes set.
func NewCommandFrame() *CommandFrame {
	c := &CommandFrame{}
	c.buf[OffsetSync0] = SyncByte
	c.buf[OffsetSync1] = SyncByte
	return c
}

// CommandFrameFromBytes seeds a command frame from a previously captured write frame.
func CommandFrameFromBytes(b []byte) (*CommandFrame, error) {
	if len(b) != FrameSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(b), FrameSize)
	}
	c := &CommandFrame{}
	copy(c.buf[:], b)
	return c, nil
}

// Merge applies req on top of the stored mode, fan speed and temperature.
//
// Dry mode only runs the fan on Low, so whenever the resulting mode is Dry
// the fan nibble is forced to Low, whatever req asked for. A target
// temperature outside [MinValidTemperature, MaxValidTemperature] is ignored.
// Unrecognised enum values are ignored.
func (c *CommandFrame) Merge(req Request) {
	mode := c.buf[OffsetMode] & ModeMask
	fan := c.buf[OffsetMode] & FanMask

	if req.Mode != nil {
		if n, ok := req.Mode.Nibble(); ok {
			mode = n
		}
	}

	if req.FanSpeed != nil && mode != acModeDry {
		if n, ok := req.FanSpeed.Nibble(); ok {
			fan = n
		}
	}

	if mode == acModeDry {
		fan = acFanLow
	}

	if req.TargetTemperature != nil {
		if raw, ok := EncodeTemperature(*req.TargetTemperature); ok {
			c.buf[OffsetTemperature] = raw
		}
	}

	c.buf[OffsetMode] = mode | fan
}

// Adopt copies the mode/fan byte and the target temperature byte of a
// decoded read frame, so later merges start from the unit's own state.
func (c *CommandFrame) Adopt(st *Status) {
	c.buf[OffsetMode] = st.ModeRaw
	c.buf[OffsetTemperature] = st.TemperatureRaw
}

// SetForceUpdate sets or clears the one-shot marker telling the unit that
// the next frame carries a user change rather than a periodic resend.
func (c *CommandFrame) SetForceUpdate(on bool) {
	if on {
		c.buf[OffsetForceUpdate] = ForceUpdateNow
		return
	}
	c.buf[OffsetForceUpdate] = ForceUpdateIdle
}

// ForceUpdate reports whether the marker is currently set.
func (c *CommandFrame) ForceUpdate() bool {
	return c.buf[OffsetForceUpdate] != ForceUpdateIdle
}

// Encode writes the checksum into the frame and returns a copy ready to send.
func (c *CommandFrame) Encode() []byte {
	sealWrite(c.buf[:])
	out := make([]byte, FrameSize)
	copy(out, c.buf[:])
	return out
}

// Bytes returns a copy of the current buffer without touching the checksum.
func (c *CommandFrame) Bytes() []byte {
	out := make([]byte, FrameSize)
	copy(out, c.buf[:])
	return out
}

// ModeByte returns the raw mode/fan byte.
func (c *CommandFrame) ModeByte() byte { return c.buf[OffsetMode] }

// Mode returns the mode currently stored in the frame.
func (c *CommandFrame) Mode() Mode {
	m, _ := ModeFromNibble(c.buf[OffsetMode] & ModeMask)
	return m
}

// FanSpeed returns the fan speed currently stored in the frame.
func (c *CommandFrame) FanSpeed() FanSpeed {
	f, _ := FanSpeedFromNibble(c.buf[OffsetMode] & FanMask)
	return f
}

// TargetTemperature returns the target temperature currently stored in the frame.
func (c *CommandFrame) TargetTemperature() int {
	return DecodeTemperature(c.buf[OffsetTemperature])
}

func (c *CommandFrame) String() string {
	return fmt.Sprintf("CommandFrame{mode=%s, fan=%s, target=%d, force=%v, hex=%s}",
		c.Mode(), c.FanSpeed(), c.TargetTemperature(), c.ForceUpdate(), hex.EncodeToString(c.buf[:]))
}
