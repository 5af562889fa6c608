package protocol

// Frame geometry. Read (unit -> bridge) and write (bridge -> unit) frames
// share the same length in the current protocol generation.
const (
	FrameSize     = 50
	SyncByte      = 0x7e
	NoiseSentinel = 0x33 // value of OffsetFrameType on frames we drop as line noise
)

// Byte offsets inside a frame
const (
	OffsetSync0       = 0
	OffsetSync1       = 1
	OffsetFrameType   = 3
	OffsetForceUpdate = 7
	OffsetMode        = 8 // mode in the high nibble, fan speed in the low nibble
	OffsetTemperature = 9
	OffsetSwing       = 12 // reserved, not encoded yet

	// Read frame only
	OffsetIndoorTemperature = 46
	OffsetChecksumRead      = 49

	// Write frame only
	OffsetChecksumWrite = 46
)

// Masks for the shared mode/fan byte
const (
	ModeMask = 0xf0
	FanMask  = 0x0f
)

// Force-update marker values
const (
	ForceUpdateIdle = 0x00
	ForceUpdateNow  = 0xaf
)

// Comfort band accepted for the target temperature, in whole degrees Celsius
const (
	MinValidTemperature = 16
	MaxValidTemperature = 30
	TemperatureStep     = 1

	// indoorTemperatureOffset is subtracted from the raw ambient byte
	indoorTemperatureOffset = 40
	// temperatureScale converts between degrees above the minimum and the raw byte
	temperatureScale = 16
)

// UART settings the indoor unit expects: 4800 baud, 8 data bits, even parity, 1 stop bit
const (
	BaudRate = 4800
	DataBits = 8
	StopBits = 1
	Parity   = "even"
)

// EncodeTemperature converts a target temperature to its raw byte.
// The second return is false when celsius lies outside the comfort band.
func EncodeTemperature(celsius int) (byte, bool) {
	if celsius < MinValidTemperature || celsius > MaxValidTemperature {
		return 0, false
	}
	return byte((celsius - MinValidTemperature) * temperatureScale), true
}

// DecodeTemperature converts a raw target temperature byte to whole degrees.
func DecodeTemperature(raw byte) int {
	return int(raw)/temperatureScale + MinValidTemperature
}

// DecodeIndoorTemperature converts the raw ambient byte to whole degrees.
func DecodeIndoorTemperature(raw byte) int {
	return int(raw) - indoorTemperatureOffset
}

// EncodeIndoorTemperature is the inverse of DecodeIndoorTemperature,
// saturating at the byte range.
func EncodeIndoorTemperature(celsius int) byte {
	v := celsius + indoorTemperatureOffset
	switch {
	case v < 0:
		return 0
	case v > 0xff:
		return 0xff
	}
	return byte(v)
}
