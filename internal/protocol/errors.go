package protocol

import (
	"errors"
	"fmt"
)

// Frame rejection reasons. None of them are fatal: the frame is dropped and
// the next periodic status frame supersedes it.
var (
	ErrFrameSize        = errors.New("unexpected frame size")
	ErrSyncMismatch     = errors.New("sync bytes mismatch")
	ErrNoiseFrame       = errors.New("noise frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrUnknownValue     = errors.New("unknown protocol value")
)

// ChecksumError reports the checksum carried by a frame and the one computed over it.
type ChecksumError struct {
	Expected byte
	Actual   byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: frame=0x%02x computed=0x%02x", e.Actual, e.Expected)
}

func (e *ChecksumError) Is(target error) bool { return target == ErrChecksumMismatch }

// UnknownValueError reports a mode or fan nibble missing from the protocol tables.
type UnknownValueError struct {
	Field string // "mode" or "fan_speed"
	Raw   byte
}

func (e *UnknownValueError) Error() string {
	return fmt.Sprintf("unknown %s value 0x%02x", e.Field, e.Raw)
}

func (e *UnknownValueError) Is(target error) bool { return target == ErrUnknownValue }

// IsSilentDrop reports whether err marks a frame that is ignored without a diagnostic.
func IsSilentDrop(err error) bool {
	return errors.Is(err, ErrSyncMismatch) || errors.Is(err, ErrNoiseFrame)
}
