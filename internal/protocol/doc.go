// Package protocol implements the UART frame codec of Gree indoor units.
//
// The unit and the bridge exchange fixed 50-byte frames over a 4800 baud,
// 8E1 serial line. This package validates and decodes the status frames sent
// by the unit, and keeps the command frame the bridge sends back.
//
// # Frame Layout
//
//	Offset  Field                 Encoding
//	0-1     sync                  0x7e 0x7e
//	3       frame type marker     0x33 = line noise, dropped
//	7       force-update flag     0x00 idle, 0xaf on a user change
//	8       mode + fan speed      mode high nibble, fan low nibble
//	9       target temperature    (°C - 16) * 16
//	12      swing                 reserved, not encoded
//	46      ambient temperature   byte - 40 (read frames)
//	46      checksum              write frames
//	49      checksum              read frames
//
// The checksum is the 8-bit wrapping sum of every byte between the sync bytes
// and the checksum byte.
//
// # Decoding
//
//	st, err := protocol.Decode(frame)
//	switch {
//	case protocol.IsSilentDrop(err):
//	    // wrong sync or noise marker, ignore
//	case err != nil:
//	    // checksum mismatch, log and wait for the next frame
//	}
//
// Unknown mode or fan nibbles do not fail the decode; Status.Unknowns reports
// them and the caller keeps its previous value.
//
// # Commanding
//
// A CommandFrame lives as long as the bridge. Control requests are merged into
// it, preserving every field they do not mention:
//
//	cmd := protocol.NewCommandFrame()
//	cool := protocol.ModeCool
//	cmd.Merge(protocol.Request{Mode: &cool})
//	cmd.SetForceUpdate(true)
//	port.Write(cmd.Encode())
//	cmd.SetForceUpdate(false)
//
// After every successful decode, CommandFrame.Adopt copies the unit's mode and
// temperature bytes so that the next merge starts from the unit's state.
//
// # Thread Safety
//
// Decode and the checksum helpers are pure. CommandFrame is not synchronised;
// its owner must hold one lock across merge, encode and send.
package protocol
