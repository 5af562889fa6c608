package protocol

// StatusFields describes the content of a read frame as the indoor unit would send it.
type StatusFields struct {
	ModeByte           byte // mode nibble | fan nibble
	TemperatureByte    byte // raw target temperature
	CurrentTemperature int
}

// BuildStatusFrame builds a checksummed read frame. It mirrors what the
// indoor unit transmits and is used by the simulator and by tests.
func BuildStatusFrame(f StatusFields) []byte {
	frame := make([]byte, FrameSize)
	frame[OffsetSync0] = SyncByte
	frame[OffsetSync1] = SyncByte
	frame[OffsetMode] = f.ModeByte
	frame[OffsetTemperature] = f.TemperatureByte
	frame[OffsetIndoorTemperature] = EncodeIndoorTemperature(f.CurrentTemperature)
	sealRead(frame)
	return frame
}

// StatusFromCommand realigns an encoded write frame into a read frame: the
// shared bytes are kept, the ambient temperature is placed at
// OffsetIndoorTemperature and the checksum moves to OffsetChecksumRead.
func StatusFromCommand(write []byte, currentTemperature int) []byte {
	frame := make([]byte, FrameSize)
	copy(frame, write[:OffsetChecksumWrite])
	frame[OffsetForceUpdate] = ForceUpdateIdle
	frame[OffsetIndoorTemperature] = EncodeIndoorTemperature(currentTemperature)
	sealRead(frame)
	return frame
}
