package protocol

import (
	"fmt"
	"strings"
)

// Mode is the operating mode of the indoor unit.
type Mode uint8

const (
	ModeUnknown Mode = iota
	ModeOff
	ModeAuto
	ModeCool
	ModeDry
	ModeFanOnly
	ModeHeat
)

// FanSpeed is the indoor fan speed.
type FanSpeed uint8

const (
	FanSpeedUnknown FanSpeed = iota
	FanSpeedAuto
	FanSpeedLow
	FanSpeedMedium
	FanSpeedHigh
)

// SwingMode is accepted in control requests but has no encoding yet.
type SwingMode uint8

const (
	SwingUnknown SwingMode = iota
	SwingOff
	SwingVertical
	SwingHorizontal
	SwingBoth
)

// Protocol values of the mode nibble (high half of OffsetMode)
const (
	acModeOff     = 0x00
	acModeAuto    = 0x10
	acModeCool    = 0x20
	acModeDry     = 0x30
	acModeFanOnly = 0x40
	acModeHeat    = 0x50
)

// Protocol values of the fan nibble (low half of OffsetMode)
const (
	acFanAuto   = 0x00
	acFanLow    = 0x01
	acFanMedium = 0x03
	acFanHigh   = 0x05
)

var modeToNibble = map[Mode]byte{
	ModeOff:     acModeOff,
	ModeAuto:    acModeAuto,
	ModeCool:    acModeCool,
	ModeDry:     acModeDry,
	ModeFanOnly: acModeFanOnly,
	ModeHeat:    acModeHeat,
}

var nibbleToMode = invert(modeToNibble)

var fanToNibble = map[FanSpeed]byte{
	FanSpeedAuto:   acFanAuto,
	FanSpeedLow:    acFanLow,
	FanSpeedMedium: acFanMedium,
	FanSpeedHigh:   acFanHigh,
}

var nibbleToFan = invert(fanToNibble)

func invert[K comparable](m map[K]byte) map[byte]K {
	out := make(map[byte]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// ModeFromNibble maps the masked high nibble of the mode byte to a Mode.
func ModeFromNibble(nibble byte) (Mode, bool) {
	m, ok := nibbleToMode[nibble&ModeMask]
	if !ok {
		return ModeUnknown, false
	}
	return m, true
}

// Nibble returns the protocol value of m, already shifted into the high nibble.
func (m Mode) Nibble() (byte, bool) {
	n, ok := modeToNibble[m]
	return n, ok
}

// FanSpeedFromNibble maps the masked low nibble of the mode byte to a FanSpeed.
func FanSpeedFromNibble(nibble byte) (FanSpeed, bool) {
	f, ok := nibbleToFan[nibble&FanMask]
	if !ok {
		return FanSpeedUnknown, false
	}
	return f, true
}

// Nibble returns the protocol value of f for the low nibble.
func (f FanSpeed) Nibble() (byte, bool) {
	n, ok := fanToNibble[f]
	return n, ok
}

var modeNames = map[Mode]string{
	ModeUnknown: "unknown",
	ModeOff:     "off",
	ModeAuto:    "auto",
	ModeCool:    "cool",
	ModeDry:     "dry",
	ModeFanOnly: "fan_only",
	ModeHeat:    "heat",
}

var fanNames = map[FanSpeed]string{
	FanSpeedUnknown: "unknown",
	FanSpeedAuto:    "auto",
	FanSpeedLow:     "low",
	FanSpeedMedium:  "medium",
	FanSpeedHigh:    "high",
}

var swingNames = map[SwingMode]string{
	SwingUnknown:    "unknown",
	SwingOff:        "off",
	SwingVertical:   "vertical",
	SwingHorizontal: "horizontal",
	SwingBoth:       "both",
}

// Modes lists the modes the unit supports, in display order.
func Modes() []Mode {
	return []Mode{ModeOff, ModeAuto, ModeCool, ModeDry, ModeFanOnly, ModeHeat}
}

// FanSpeeds lists the fan speeds the unit supports, in display order.
func FanSpeeds() []FanSpeed {
	return []FanSpeed{FanSpeedAuto, FanSpeedLow, FanSpeedMedium, FanSpeedHigh}
}

// SwingModes lists the swing modes a request may carry.
func SwingModes() []SwingMode {
	return []SwingMode{SwingOff, SwingVertical, SwingHorizontal, SwingBoth}
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func (f FanSpeed) String() string {
	if s, ok := fanNames[f]; ok {
		return s
	}
	return fmt.Sprintf("fan(%d)", uint8(f))
}

func (s SwingMode) String() string {
	if n, ok := swingNames[s]; ok {
		return n
	}
	return fmt.Sprintf("swing(%d)", uint8(s))
}

// ParseMode parses the text form of a mode ("cool", "fan_only", ...).
// "unknown" is not accepted.
func ParseMode(s string) (Mode, error) {
	key := normalize(s)
	for m, name := range modeNames {
		if m != ModeUnknown && name == key {
			return m, nil
		}
	}
	return ModeUnknown, fmt.Errorf("invalid mode %q", s)
}

// ParseFanSpeed parses the text form of a fan speed ("auto", "low", ...).
func ParseFanSpeed(s string) (FanSpeed, error) {
	key := normalize(s)
	for f, name := range fanNames {
		if f != FanSpeedUnknown && name == key {
			return f, nil
		}
	}
	return FanSpeedUnknown, fmt.Errorf("invalid fan speed %q", s)
}

// ParseSwingMode parses the text form of a swing mode.
func ParseSwingMode(s string) (SwingMode, error) {
	key := normalize(s)
	for sw, name := range swingNames {
		if sw != SwingUnknown && name == key {
			return sw, nil
		}
	}
	return SwingUnknown, fmt.Errorf("invalid swing mode %q", s)
}

// normalize accepts "Fan Only", "fan-only" and "FAN_ONLY" alike
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (f FanSpeed) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FanSpeed) UnmarshalText(text []byte) error {
	v, err := ParseFanSpeed(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (s SwingMode) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SwingMode) UnmarshalText(text []byte) error {
	v, err := ParseSwingMode(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
