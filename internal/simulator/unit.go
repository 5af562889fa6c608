// Package simulator emulates a Gree indoor unit on the UART side.
//
// It answers every command frame with a status frame, which is enough to
// exercise the bridge end to end without hardware:
//
//	bridgeEnd, unitEnd := transport.NewPipe()
//	unit := simulator.NewUnit(protocol.ModeCool, protocol.FanSpeedAuto, 24, 27)
//	go unit.Serve(ctx, unitEnd, 0)
package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/greeac/internal/logging"
	"github.com/muurk/greeac/internal/protocol"
)

// Link is the unit's side of the UART.
type Link interface {
	io.Reader
	Write(p []byte) error
}

// Unit holds the state a real indoor unit would report.
type Unit struct {
	mu       sync.Mutex
	modeByte byte
	tempByte byte
	current  int
	forced   int
	handled  int
}

// NewUnit creates a unit running mode/fan at target °C in a room at current °C.
func NewUnit(mode protocol.Mode, fan protocol.FanSpeed, target, current int) *Unit {
	m, _ := mode.Nibble()
	f, _ := fan.Nibble()
	t, ok := protocol.EncodeTemperature(target)
	if !ok {
		t, _ = protocol.EncodeTemperature(protocol.MinValidTemperature)
	}
	return &Unit{modeByte: m | f, tempByte: t, current: current}
}

// HandleCommand validates a write frame and adopts its mode and temperature.
func (u *Unit) HandleCommand(frame []byte) error {
	if len(frame) != protocol.FrameSize {
		return fmt.Errorf("%w: got %d bytes", protocol.ErrFrameSize, len(frame))
	}
	if frame[0] != protocol.SyncByte || frame[1] != protocol.SyncByte {
		return protocol.ErrSyncMismatch
	}
	if err := protocol.VerifyChecksum(frame[:protocol.OffsetChecksumWrite+1]); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.modeByte = frame[protocol.OffsetMode]
	u.tempByte = frame[protocol.OffsetTemperature]
	u.handled++
	if frame[protocol.OffsetForceUpdate] == protocol.ForceUpdateNow {
		u.forced++
	}
	return nil
}

// StatusFrame builds the read frame the unit would send now.
func (u *Unit) StatusFrame() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return protocol.BuildStatusFrame(protocol.StatusFields{
		ModeByte:           u.modeByte,
		TemperatureByte:    u.tempByte,
		CurrentTemperature: u.current,
	})
}

// SetCurrentTemperature changes the simulated room temperature.
func (u *Unit) SetCurrentTemperature(c int) {
	u.mu.Lock()
	u.current = c
	u.mu.Unlock()
}

// Counts returns how many commands were accepted and how many carried the
// force marker.
func (u *Unit) Counts() (handled, forced int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.handled, u.forced
}

// Serve answers commands read from link until ctx is done or the link fails.
// A non-zero interval also sends unsolicited status frames. Close the link to
// release a pending read after cancelling ctx.
func (u *Unit) Serve(ctx context.Context, link Link, interval time.Duration) error {
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readFrames(ctx, link, frames)
	}()

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err

		case frame := <-frames:
			logging.LogFrame("Simulator received", frame)
			if err := u.HandleCommand(frame); err != nil {
				logging.Warn("Simulator rejected command", zap.Error(err))
				continue
			}
			if err := u.reply(link); err != nil {
				return err
			}

		case <-tick:
			if err := u.reply(link); err != nil {
				return err
			}
		}
	}
}

func (u *Unit) reply(link Link) error {
	out := u.StatusFrame()
	if err := link.Write(out); err != nil {
		return fmt.Errorf("simulator write: %w", err)
	}
	logging.LogFrame("Simulator sent", out)
	return nil
}

var syncPrefix = []byte{protocol.SyncByte, protocol.SyncByte}

// readFrames splits the byte stream into 50-byte frames, skipping garbage
// until a sync pair is found.
func readFrames(ctx context.Context, r io.Reader, out chan<- []byte) error {
	buf := make([]byte, 0, 2*protocol.FrameSize)
	chunk := make([]byte, protocol.FrameSize)

	for {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			return err
		}

		for {
			i := bytes.Index(buf, syncPrefix)
			if i < 0 {
				// Keep a trailing sync byte that may pair with the next read
				if len(buf) > 0 && buf[len(buf)-1] == protocol.SyncByte {
					buf = append(buf[:0], protocol.SyncByte)
				} else {
					buf = buf[:0]
				}
				break
			}
			buf = buf[i:]
			if len(buf) < protocol.FrameSize {
				break
			}

			frame := append([]byte(nil), buf[:protocol.FrameSize]...)
			buf = append(buf[:0], buf[protocol.FrameSize:]...)

			select {
			case out <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
