package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/greeac/internal/climate"
	"github.com/muurk/greeac/internal/protocol"
	"github.com/muurk/greeac/internal/transport"
)

func TestUnit_StatusFrameDecodes(t *testing.T) {
	u := NewUnit(protocol.ModeHeat, protocol.FanSpeedHigh, 26, 19)

	st, err := protocol.Decode(u.StatusFrame())
	require.NoError(t, err)
	assert.Equal(t, protocol.ModeHeat, st.Mode)
	assert.Equal(t, protocol.FanSpeedHigh, st.FanSpeed)
	assert.Equal(t, 26, st.TargetTemperature)
	assert.Equal(t, 19, st.CurrentTemperature)

	u.SetCurrentTemperature(21)
	st, err = protocol.Decode(u.StatusFrame())
	require.NoError(t, err)
	assert.Equal(t, 21, st.CurrentTemperature)
}

func TestUnit_HandleCommand(t *testing.T) {
	u := NewUnit(protocol.ModeOff, protocol.FanSpeedAuto, 24, 25)

	cmd := protocol.NewCommandFrame()
	cool, low, temp := protocol.ModeCool, protocol.FanSpeedLow, 19
	cmd.Merge(protocol.Request{Mode: &cool, FanSpeed: &low, TargetTemperature: &temp})
	cmd.SetForceUpdate(true)

	require.NoError(t, u.HandleCommand(cmd.Encode()))

	st, err := protocol.Decode(u.StatusFrame())
	require.NoError(t, err)
	assert.Equal(t, protocol.ModeCool, st.Mode)
	assert.Equal(t, protocol.FanSpeedLow, st.FanSpeed)
	assert.Equal(t, 19, st.TargetTemperature)

	handled, forced := u.Counts()
	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, forced)
}

func TestUnit_HandleCommandRejects(t *testing.T) {
	u := NewUnit(protocol.ModeOff, protocol.FanSpeedAuto, 24, 25)
	good := protocol.NewCommandFrame().Encode()

	badSum := append([]byte(nil), good...)
	badSum[protocol.OffsetChecksumWrite]++
	assert.ErrorIs(t, u.HandleCommand(badSum), protocol.ErrChecksumMismatch)

	badSync := append([]byte(nil), good...)
	badSync[1] = 0
	assert.ErrorIs(t, u.HandleCommand(badSync), protocol.ErrSyncMismatch)

	assert.ErrorIs(t, u.HandleCommand(good[:10]), protocol.ErrFrameSize)

	handled, _ := u.Counts()
	assert.Zero(t, handled)
}

func TestReadFrames_Resync(t *testing.T) {
	bridge, unit := transport.NewPipe()
	frame := protocol.NewCommandFrame().Encode()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan []byte, 2)
	go func() { _ = readFrames(ctx, unit, out) }()

	// Garbage, then a frame split across writes, then a second frame
	require.NoError(t, bridge.Write([]byte{0x01, 0x02, protocol.SyncByte}))
	require.NoError(t, bridge.Write(frame[1:20]))
	require.NoError(t, bridge.Write(frame[20:]))
	require.NoError(t, bridge.Write(frame))

	for i := 0; i < 2; i++ {
		select {
		case got := <-out:
			assert.Equal(t, frame, got)
		case <-time.After(time.Second):
			t.Fatalf("frame %d not delivered", i)
		}
	}
	bridge.Close()
}

func TestServe_EndToEnd(t *testing.T) {
	bridgeEnd, unitEnd := transport.NewPipe()
	unit := NewUnit(protocol.ModeCool, protocol.FanSpeedAuto, 24, 27)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- unit.Serve(ctx, unitEnd, 0) }()

	ctrl := climate.NewController(bridgeEnd, climate.Options{})

	heat, high, temp := protocol.ModeHeat, protocol.FanSpeedHigh, 28
	_, err := ctrl.Control(protocol.Request{Mode: &heat, FanSpeed: &high, TargetTemperature: &temp})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		if _, err := ctrl.Poll(); err != nil {
			return false
		}
		return ctrl.State().Known()
	}, 2*time.Second, 10*time.Millisecond)

	st := ctrl.State()
	assert.Equal(t, protocol.ModeHeat, st.Mode)
	assert.Equal(t, protocol.FanSpeedHigh, st.FanSpeed)
	assert.Equal(t, 28, st.TargetTemperature)
	assert.Equal(t, 27, st.CurrentTemperature)

	handled, forced := unit.Counts()
	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, forced)

	cancel()
	bridgeEnd.Close()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestServe_UnsolicitedStatus(t *testing.T) {
	bridgeEnd, unitEnd := transport.NewPipe()
	unit := NewUnit(protocol.ModeDry, protocol.FanSpeedLow, 22, 24)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = unit.Serve(ctx, unitEnd, 10*time.Millisecond) }()

	got, err := bridgeEnd.ReadExact(protocol.FrameSize)
	require.NoError(t, err)

	st, err := protocol.Decode(got)
	require.NoError(t, err)
	assert.Equal(t, protocol.ModeDry, st.Mode)
	assert.Equal(t, 22, st.TargetTemperature)

	cancel()
	bridgeEnd.Close()
}
