package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/greeac/internal/climate"
	"github.com/muurk/greeac/internal/protocol"
	"github.com/muurk/greeac/internal/server"
	"github.com/muurk/greeac/internal/simulator"
	"github.com/muurk/greeac/internal/transport"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseHexFrame(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"7e7e00", []byte{0x7e, 0x7e, 0x00}, false},
		{"7E 7E 00", []byte{0x7e, 0x7e, 0x00}, false},
		{"7e:7e:af", []byte{0x7e, 0x7e, 0xaf}, false},
		{"0x7E, 0x7E", []byte{0x7e, 0x7e}, false},
		{"7e7", nil, true},
		{"zz", nil, true},
	}
	for _, tt := range tests {
		got, err := parseHexFrame(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatHex(t *testing.T) {
	assert.Equal(t, "7E 7E 00 AF", formatHex([]byte{0x7e, 0x7e, 0x00, 0xaf}))
	assert.Equal(t, "", formatHex(nil))
}

func newRequestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addRequestFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestRequestFromFlags(t *testing.T) {
	req, err := requestFromFlags(newRequestCmd(t, "--mode", "fan-only", "--temp", "16"))
	require.NoError(t, err)
	require.NotNil(t, req.Mode)
	assert.Equal(t, protocol.ModeFanOnly, *req.Mode)
	assert.Nil(t, req.FanSpeed)
	require.NotNil(t, req.TargetTemperature)
	assert.Equal(t, 16, *req.TargetTemperature)

	req, err = requestFromFlags(newRequestCmd(t))
	require.NoError(t, err)
	assert.True(t, req.IsEmpty())

	_, err = requestFromFlags(newRequestCmd(t, "--mode", "turbo"))
	assert.Error(t, err)
	_, err = requestFromFlags(newRequestCmd(t, "--fan", "hurricane"))
	assert.Error(t, err)
	_, err = requestFromFlags(newRequestCmd(t, "--temp", "31"))
	assert.ErrorContains(t, err, "outside 16..30")
}

func TestEncodeRaw(t *testing.T) {
	out, err := execute(t, "encode", "--mode", "cool", "--fan", "low", "--temp", "22", "--raw")
	require.NoError(t, err)

	frame, err := parseHexFrame(strings.TrimSpace(out))
	require.NoError(t, err)
	require.Len(t, frame, protocol.FrameSize)
	assert.Equal(t, byte(0x21), frame[protocol.OffsetMode])
	assert.Equal(t, byte(0x60), frame[protocol.OffsetTemperature])
	assert.Equal(t, byte(protocol.ForceUpdateIdle), frame[protocol.OffsetForceUpdate])
	assert.NoError(t, protocol.VerifyChecksum(frame[:protocol.OffsetChecksumWrite+1]))
}

func TestDecode(t *testing.T) {
	frame := protocol.BuildStatusFrame(protocol.StatusFields{ModeByte: 0x23, TemperatureByte: 0x20, CurrentTemperature: 40})

	out, err := execute(t, "decode", "--write=false", formatHex(frame))
	require.NoError(t, err)
	assert.Contains(t, out, "Decoded")
	assert.Contains(t, out, "cool (0x20)")
	assert.Contains(t, out, "medium (0x03)")
	assert.Contains(t, out, "18°C")
	assert.Contains(t, out, "40°C")

	frame[protocol.OffsetChecksumRead]++
	out, err = execute(t, "decode", "--write=false", formatHex(frame))
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Frame rejected")
	assert.Contains(t, out, "8E1")
}

func TestDecodeCommandFrame(t *testing.T) {
	c := protocol.NewCommandFrame()
	mode, temp := protocol.ModeHeat, 27
	c.Merge(protocol.Request{Mode: &mode, TargetTemperature: &temp})
	c.SetForceUpdate(true)

	out, err := execute(t, "decode", "--write", formatHex(c.Encode()))
	require.NoError(t, err)
	assert.Contains(t, out, "Decoded command")
	assert.Contains(t, out, "heat")
	assert.Contains(t, out, "27°C")
	assert.Contains(t, out, "true")

	out, err = execute(t, "decode", "--write", "7e7e00")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "50 bytes")
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	defer func() { configPath = "" }()

	out, err := execute(t, "config", "path", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))

	out, err = execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Config written")
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "baud_rate: 4800")
	assert.Contains(t, out, "parity: even")
	assert.NotContains(t, out, "warning:")
}

// startBridge serves the API for a controller talking to a simulated unit.
func startBridge(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	host, unitSide := transport.NewPipe()
	unit := simulator.NewUnit(protocol.ModeCool, protocol.FanSpeedAuto, 24, 26)
	go func() { _ = unit.Serve(ctx, unitSide, 20*time.Millisecond) }()

	ctrl := climate.NewController(host, climate.Options{PollInterval: 5 * time.Millisecond})
	go func() { _ = ctrl.Run(ctx) }()

	srv, err := server.New(server.Config{}, ctrl)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())

	require.Eventually(t, func() bool { return ctrl.State().Known() }, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		ts.Close()
		_ = host.Close()
		bridgeAddr = ""
	})
	return ts.URL
}

func TestStatusAndSet(t *testing.T) {
	addr := startBridge(t)

	out, err := execute(t, "status", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Unit state")
	assert.Contains(t, out, "cool")
	assert.Contains(t, out, "26°C")

	out, err = execute(t, "set", "--addr", addr, "--mode", "heat", "--temp", "21")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent to the unit")
	assert.Contains(t, out, "heat")
	assert.Contains(t, out, "21°C")
}

func TestInstanceName(t *testing.T) {
	assert.Equal(t, "living-room", instanceName("living-room"))
	assert.True(t, strings.HasPrefix(instanceName(""), "greeac"))
}
