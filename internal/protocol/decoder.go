package protocol

import "fmt"

// Status is the state decoded from one valid read frame.
//
// Mode and FanSpeed are ModeUnknown / FanSpeedUnknown when the unit reports a
// nibble missing from the protocol tables; ModeRaw keeps the byte as received
// so callers can report it and decide whether to keep their previous value.
type Status struct {
	Mode               Mode
	FanSpeed           FanSpeed
	TargetTemperature  int
	CurrentTemperature int

	ModeRaw        byte // mode/fan byte as received
	TemperatureRaw byte // target temperature byte as received
}

// Decode validates a read frame and interprets it.
//
// raw must be exactly FrameSize bytes. Frames with bad sync bytes or the noise
// marker are rejected with ErrSyncMismatch / ErrNoiseFrame (see IsSilentDrop);
// a bad checksum yields a *ChecksumError. Unknown mode or fan nibbles do not
// fail the decode, see Status.Unknowns.
func Decode(raw []byte) (*Status, error) {
	if len(raw) != FrameSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(raw), FrameSize)
	}
	if raw[OffsetSync0] != SyncByte || raw[OffsetSync1] != SyncByte {
		return nil, fmt.Errorf("%w: 0x%02x 0x%02x", ErrSyncMismatch, raw[OffsetSync0], raw[OffsetSync1])
	}
	if raw[OffsetFrameType] == NoiseSentinel {
		return nil, ErrNoiseFrame
	}
	if err := VerifyChecksum(raw); err != nil {
		return nil, err
	}

	modeByte := raw[OffsetMode]
	st := &Status{
		TargetTemperature:  DecodeTemperature(raw[OffsetTemperature]),
		CurrentTemperature: DecodeIndoorTemperature(raw[OffsetIndoorTemperature]),
		ModeRaw:            modeByte,
		TemperatureRaw:     raw[OffsetTemperature],
	}
	st.Mode, _ = ModeFromNibble(modeByte & ModeMask)
	st.FanSpeed, _ = FanSpeedFromNibble(modeByte & FanMask)
	return st, nil
}

// Unknowns returns one *UnknownValueError per field whose nibble was not recognised.
func (s *Status) Unknowns() []error {
	var errs []error
	if s.Mode == ModeUnknown {
		errs = append(errs, &UnknownValueError{Field: "mode", Raw: s.ModeRaw & ModeMask})
	}
	if s.FanSpeed == FanSpeedUnknown {
		errs = append(errs, &UnknownValueError{Field: "fan_speed", Raw: s.ModeRaw & FanMask})
	}
	return errs
}

func (s *Status) String() string {
	return fmt.Sprintf("Status{mode=%s, fan=%s, target=%d, current=%d, raw_mode=0x%02x}",
		s.Mode, s.FanSpeed, s.TargetTemperature, s.CurrentTemperature, s.ModeRaw)
}
