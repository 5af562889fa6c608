package transport

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	serial "github.com/albenik/go-serial/v2"
	"go.uber.org/zap"

	"github.com/muurk/greeac/internal/logging"
)

// ErrShortRead is returned when the port stops delivering bytes before a
// full frame arrived.
var ErrShortRead = errors.New("transport: short read")

// Config describes how to open the UART.
type Config struct {
	Port        string // Device path; empty means look up VID/PID
	VID         string
	PID         string
	BaudRate    int
	DataBits    int
	Parity      string
	StopBits    int
	ReadTimeout time.Duration
}

// Serial is a UART connection to the indoor unit.
type Serial struct {
	name string
	port *serial.Port

	closeOnce sync.Once
}

// Open resolves the port (by path or USB IDs) and opens it.
func Open(cfg Config) (*Serial, error) {
	name := cfg.Port
	if name == "" {
		if cfg.VID == "" || cfg.PID == "" {
			return nil, errors.New("transport: no port and no vid/pid given")
		}
		details, err := FindUSB(cfg.VID, cfg.PID)
		if err != nil {
			return nil, err
		}
		name = details.Name
	}

	parity, err := parseParity(cfg.Parity)
	if err != nil {
		return nil, err
	}
	stopBits, err := parseStopBits(cfg.StopBits)
	if err != nil {
		return nil, err
	}

	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}

	port, err := serial.Open(name,
		serial.WithBaudrate(cfg.BaudRate),
		serial.WithDataBits(cfg.DataBits),
		serial.WithParity(parity),
		serial.WithStopBits(stopBits),
		serial.WithReadTimeout(int(timeout/time.Millisecond)),
		serial.WithWriteTimeout(int(timeout/time.Millisecond)),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	// Discard whatever the unit sent before we were listening
	if err := port.ResetInputBuffer(); err != nil {
		logging.Warn("Failed to reset UART input buffer", zap.String("port", name), zap.Error(err))
	}

	logging.Info("Serial port opened",
		zap.String("port", name),
		zap.Int("baud", cfg.BaudRate),
		zap.Int("data_bits", cfg.DataBits),
		zap.String("parity", cfg.Parity),
		zap.Int("stop_bits", cfg.StopBits),
	)

	return &Serial{name: name, port: port}, nil
}

// Name returns the device path the port was opened on.
func (s *Serial) Name() string {
	return s.name
}

// Available reports how many bytes are waiting in the receive buffer.
func (s *Serial) Available() (int, error) {
	n, err := s.port.ReadyToRead()
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", s.name, err)
	}
	return int(n), nil
}

// ReadExact reads exactly n bytes.
func (s *Serial) ReadExact(n int) ([]byte, error) {
	return readExact(s.port, n)
}

// Write sends p in full.
func (s *Serial) Write(p []byte) error {
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return fmt.Errorf("write %s: %w", s.name, err)
		}
		p = p[n:]
	}
	return nil
}

// Read implements io.Reader for the simulator.
func (s *Serial) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

// Close releases the port. Safe to call more than once.
func (s *Serial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.port.Close()
	})
	return err
}

// readExact keeps reading until n bytes arrived. A read that returns no
// data (timeout) ends the attempt.
func readExact(r interface{ Read([]byte) (int, error) }, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := r.Read(buf[got:])
		got += m
		if err != nil {
			return buf[:got], err
		}
		if m == 0 {
			return buf[:got], fmt.Errorf("%w: %d of %d bytes", ErrShortRead, got, n)
		}
	}
	return buf, nil
}

func parseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return serial.NoParity, nil
	case "odd":
		return serial.OddParity, nil
	case "even":
		return serial.EvenParity, nil
	case "mark":
		return serial.MarkParity, nil
	case "space":
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("transport: unknown parity %q", s)
	}
}

func parseStopBits(n int) (serial.StopBits, error) {
	switch n {
	case 1, 0:
		return serial.OneStopBit, nil
	case 2:
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("transport: unsupported stop bits %d", n)
	}
}
