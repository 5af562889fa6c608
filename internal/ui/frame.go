package ui

import (
	"fmt"
	"strings"

	"github.com/muurk/greeac/internal/protocol"
)

const frameBytesPerRow = 10

// FrameFields names the offsets the codec reads in a read frame, or writes in
// a write frame.
func FrameFields(write bool) map[int]string {
	fields := map[int]string{
		protocol.OffsetSync0:       "sync",
		protocol.OffsetSync1:       "sync",
		protocol.OffsetFrameType:   "frame type",
		protocol.OffsetForceUpdate: "force update",
		protocol.OffsetMode:        "mode|fan",
		protocol.OffsetTemperature: "target temperature",
	}
	if write {
		fields[protocol.OffsetChecksumWrite] = "checksum"
	} else {
		fields[protocol.OffsetIndoorTemperature] = "indoor temperature"
		fields[protocol.OffsetChecksumRead] = "checksum"
	}
	return fields
}

// RenderFrame renders frame as rows of hex bytes with the codec's fields
// highlighted, followed by a legend.
func RenderFrame(frame []byte, write bool) string {
	fields := FrameFields(write)

	var b strings.Builder
	for row := 0; row < len(frame); row += frameBytesPerRow {
		b.WriteString(FrameOffsetStyle.Render(fmt.Sprintf("  %02d  ", row)))
		end := min(row+frameBytesPerRow, len(frame))
		for i := row; i < end; i++ {
			cell := fmt.Sprintf("%02X", frame[i])
			if _, ok := fields[i]; ok {
				b.WriteString(FrameFieldStyle.Render(cell))
			} else {
				b.WriteString(FrameByteStyle.Render(cell))
			}
			if i < end-1 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}

	seen := make(map[string]bool)
	for i := 0; i < len(frame); i++ {
		name, ok := fields[i]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		b.WriteString(FrameOffsetStyle.Render(fmt.Sprintf("  [%02d] ", i)))
		b.WriteString(HeaderParamValueStyle.Render(fmt.Sprintf("%-20s 0x%02X", name, frame[i])))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
