package climate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/greeac/internal/logging"
	"github.com/muurk/greeac/internal/metrics"
	"github.com/muurk/greeac/internal/protocol"
)

// Transport is the byte link to the indoor unit.
type Transport interface {
	// Available reports how many bytes can be read without blocking.
	Available() (int, error)
	// ReadExact reads exactly n bytes.
	ReadExact(n int) ([]byte, error)
	// Write sends p in full.
	Write(p []byte) error
}

const (
	DefaultUpdateInterval = 30 * time.Second
	DefaultPollInterval   = 50 * time.Millisecond
)

// Options tunes a Controller. Zero values take the defaults.
type Options struct {
	UpdateInterval time.Duration // Periodic resend of the command frame
	PollInterval   time.Duration
	Metrics        *metrics.AppMetrics
	Now            func() time.Time
}

// Controller owns the command frame of one indoor unit.
type Controller struct {
	transport Transport
	opts      Options

	mu        sync.Mutex // guards frame, state and lastFrame
	frame     *protocol.CommandFrame
	state     State
	lastFrame time.Time

	subMu   sync.Mutex
	subs    map[int]chan State
	nextSub int
}

// NewController creates a controller with an empty command frame.
func NewController(t Transport, opts Options) *Controller {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = DefaultUpdateInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		transport: t,
		opts:      opts,
		frame:     protocol.NewCommandFrame(),
		subs:      make(map[int]chan State),
	}
}

// Poll reads and handles one status frame if a whole one is buffered.
// It reports whether a frame was consumed. Malformed frames are dropped
// and do not produce an error; only transport failures do.
func (c *Controller) Poll() (bool, error) {
	c.mu.Lock()

	n, err := c.transport.Available()
	if err != nil {
		c.mu.Unlock()
		c.opts.Metrics.TransportError()
		return false, fmt.Errorf("poll: %w", err)
	}
	if n < protocol.FrameSize {
		c.mu.Unlock()
		return false, nil
	}

	raw, err := c.transport.ReadExact(protocol.FrameSize)
	if err != nil {
		c.mu.Unlock()
		c.opts.Metrics.TransportError()
		return false, fmt.Errorf("read frame: %w", err)
	}
	logging.LogFrame("UART frame received", raw)

	st, err := protocol.Decode(raw)
	if err != nil {
		c.mu.Unlock()
		c.dropped(err)
		return true, nil
	}

	// Keep the command frame in step with the unit so the next merge starts
	// from what the unit actually runs.
	c.frame.Adopt(st)
	now := c.opts.Now()
	prev := c.state
	c.state = c.state.Apply(st, now)
	c.lastFrame = now
	state := c.state
	c.mu.Unlock()

	c.opts.Metrics.FrameReceived(metrics.ResultOK)
	c.opts.Metrics.Temperatures(state.TargetTemperature, state.CurrentTemperature)
	for _, uerr := range st.Unknowns() {
		var uv *protocol.UnknownValueError
		if errors.As(uerr, &uv) {
			c.opts.Metrics.UnknownValue(uv.Field)
		}
		logging.Warn("Unknown value in status frame",
			zap.Error(uerr),
			zap.String("mode_byte", fmt.Sprintf("0x%02x", st.ModeRaw)),
		)
	}

	if prev.Mode != state.Mode || prev.FanSpeed != state.FanSpeed ||
		prev.TargetTemperature != state.TargetTemperature || !prev.Known() {
		logging.Info("Unit state changed", zap.Stringer("state", state))
	}

	c.publish(state)
	return true, nil
}

func (c *Controller) dropped(err error) {
	switch {
	case errors.Is(err, protocol.ErrSyncMismatch):
		c.opts.Metrics.FrameReceived(metrics.ResultSync)
		logging.Debug("Dropped frame without sync bytes")
	case errors.Is(err, protocol.ErrNoiseFrame):
		c.opts.Metrics.FrameReceived(metrics.ResultNoise)
		logging.Debug("Dropped noise frame")
	case errors.Is(err, protocol.ErrChecksumMismatch):
		c.opts.Metrics.FrameReceived(metrics.ResultChecksum)
		fields := []zap.Field{zap.Error(err)}
		var ce *protocol.ChecksumError
		if errors.As(err, &ce) {
			fields = append(fields,
				zap.String("expected", fmt.Sprintf("0x%02x", ce.Expected)),
				zap.String("actual", fmt.Sprintf("0x%02x", ce.Actual)),
			)
		}
		logging.Warn("Invalid checksum", fields...)
	default:
		c.opts.Metrics.FrameReceived(metrics.ResultError)
		logging.Warn("Dropped undecodable frame", zap.Error(err))
	}
}

// Update resends the current command frame without the force marker.
func (c *Controller) Update() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(c.frame.Encode()); err != nil {
		return err
	}
	c.opts.Metrics.FrameSent(metrics.SendPeriodic)
	return nil
}

// Control merges req into the command frame and sends it at once with the
// force marker set. The marker is cleared again before Control returns,
// whether or not the write succeeded. The returned State is what the unit
// was asked to do; the published State follows once the unit reports back.
func (c *Controller) Control(req protocol.Request) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frame.Merge(req)
	c.frame.SetForceUpdate(true)
	out := c.frame.Encode()
	c.frame.SetForceUpdate(false)

	logging.Info("Control request", zap.Stringer("request", req), zap.Stringer("frame", c.frame))

	requested := c.state
	requested.Mode = c.frame.Mode()
	requested.FanSpeed = c.frame.FanSpeed()
	requested.TargetTemperature = c.frame.TargetTemperature()

	if err := c.send(out); err != nil {
		return requested, err
	}
	c.opts.Metrics.FrameSent(metrics.SendControl)
	return requested, nil
}

// send writes one frame; c.mu must be held.
func (c *Controller) send(frame []byte) error {
	if err := c.transport.Write(frame); err != nil {
		c.opts.Metrics.TransportError()
		return fmt.Errorf("send frame: %w", err)
	}
	logging.LogFrame("UART frame sent", frame)
	return nil
}

// State returns the last published state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CommandFrame returns a copy of the command frame as it would be sent now.
func (c *Controller) CommandFrame() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame.Encode()
}

// LastFrameAge reports how long ago the last valid status frame arrived.
// ok is false until the first one.
func (c *Controller) LastFrameAge() (age time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFrame.IsZero() {
		return 0, false
	}
	return c.opts.Now().Sub(c.lastFrame), true
}

// Traits returns the advertised capabilities.
func (c *Controller) Traits() Traits {
	return DefaultTraits()
}

// Subscribe registers for state updates. Slow subscribers only see the
// latest state. The returned func unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

func (c *Controller) publish(s State) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
			// Replace the stale value
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Run polls the transport and resends the command frame until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	poll := time.NewTicker(c.opts.PollInterval)
	defer poll.Stop()
	update := time.NewTicker(c.opts.UpdateInterval)
	defer update.Stop()

	logging.Info("Controller started",
		zap.Duration("update_interval", c.opts.UpdateInterval),
		zap.Duration("poll_interval", c.opts.PollInterval),
	)

	for {
		select {
		case <-ctx.Done():
			logging.Info("Controller stopped")
			return nil

		case <-poll.C:
			for {
				consumed, err := c.Poll()
				if err != nil {
					logging.Error("UART poll failed", zap.Error(err))
					break
				}
				if !consumed {
					break
				}
			}

		case <-update.C:
			if err := c.Update(); err != nil {
				logging.Error("Periodic update failed", zap.Error(err))
			}
		}
	}
}
