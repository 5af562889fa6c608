package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/muurk/greeac/internal/protocol"
)

func TestRenderHeader(t *testing.T) {
	out := RenderHeader("Frame decode", "greeac decode", []Detail{D("Port", "/dev/ttyUSB0")}, 80)
	assert.Contains(t, out, "FRAME DECODE")
	assert.Contains(t, out, "greeac decode")
	assert.Contains(t, out, "Port:")
	assert.Contains(t, out, "/dev/ttyUSB0")

	bare := RenderHeader("Version", "greeac version", nil, 80)
	assert.Contains(t, bare, "VERSION")
	assert.NotContains(t, bare, ":")
}

func TestRenderErrorBox(t *testing.T) {
	out := RenderErrorBox("Decode failed", errors.New("checksum mismatch"), []string{"Check the wiring"}, 80)
	assert.Contains(t, out, FailureMarker)
	assert.Contains(t, out, "checksum mismatch")
	assert.Contains(t, out, "Troubleshooting:")
	assert.Contains(t, out, "Check the wiring")
}

func TestPrinter_DetailsKeepOrder(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(80)
	p.PrintSuccess("Decoded", D("Mode", "cool"), D("Fan", "medium"), D("Target", "18°C"))

	out := buf.String()
	mode := strings.Index(out, "Mode:")
	fan := strings.Index(out, "Fan:")
	target := strings.Index(out, "Target:")
	assert.True(t, mode >= 0 && mode < fan && fan < target, out)
}

func TestPrinter_Width(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{})
	assert.Equal(t, MinTerminalWidth, p.SetWidth(10).Width())
	assert.Equal(t, MaxContentWidth, p.SetWidth(500).Width())
}

func TestRenderFrame(t *testing.T) {
	frame := protocol.BuildStatusFrame(protocol.StatusFields{ModeByte: 0x23, TemperatureByte: 0x20, CurrentTemperature: 40})

	out := RenderFrame(frame, false)
	lines := strings.Split(out, "\n")

	rows := protocol.FrameSize / frameBytesPerRow
	assert.GreaterOrEqual(t, len(lines), rows)
	assert.Contains(t, lines[0], "7E 7E")
	assert.Contains(t, out, "mode|fan")
	assert.Contains(t, out, "0x23")
	assert.Contains(t, out, "indoor temperature")
	assert.Contains(t, out, "[49]")

	write := RenderFrame(make([]byte, protocol.FrameSize), true)
	assert.Contains(t, write, "[46]")
	assert.NotContains(t, write, "indoor temperature")
}

func TestFrameFields(t *testing.T) {
	read := FrameFields(false)
	assert.Equal(t, "checksum", read[protocol.OffsetChecksumRead])
	assert.Equal(t, "indoor temperature", read[protocol.OffsetIndoorTemperature])

	write := FrameFields(true)
	assert.Equal(t, "checksum", write[protocol.OffsetChecksumWrite])
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"  yes  \n", true},
		{"no\n", false},
		{"YES\n", false},
		{"", false},
		{"yes", true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got := Confirm(strings.NewReader(tt.input), &out, "TEST", []string{"something happens"}, "yes")
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "something happens")
	}
}

func TestConfirmSend(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, ConfirmSend(strings.NewReader("yes\n"), &out, "/dev/ttyUSB0"))
	assert.Contains(t, out.String(), "/dev/ttyUSB0")
}
