package transport

import (
	"errors"
	"io"
	"testing"
	"time"

	serial "github.com/albenik/go-serial/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchUSB(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6015"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1A86", PID: "7523"},
	}

	got := matchUSB(ports, "1a86", "7523")
	require.NotNil(t, got)
	assert.Equal(t, "/dev/ttyUSB1", got.Name)

	assert.Nil(t, matchUSB(ports, "dead", "beef"))
	assert.Nil(t, matchUSB(nil, "0403", "6015"))
}

func TestPortInfo_String(t *testing.T) {
	assert.Equal(t, "/dev/ttyS0", PortInfo{Name: "/dev/ttyS0"}.String())
	assert.Equal(t, "/dev/ttyUSB0 (USB 0403:6015 FT230X)",
		PortInfo{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6015", Product: "FT230X"}.String())
}

func TestParseParity(t *testing.T) {
	tests := []struct {
		in      string
		want    serial.Parity
		wantErr bool
	}{
		{"even", serial.EvenParity, false},
		{"EVEN", serial.EvenParity, false},
		{"odd", serial.OddParity, false},
		{"none", serial.NoParity, false},
		{"", serial.NoParity, false},
		{"mark", serial.MarkParity, false},
		{"space", serial.SpaceParity, false},
		{"sometimes", serial.NoParity, true},
	}
	for _, tt := range tests {
		got, err := parseParity(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseStopBits(t *testing.T) {
	got, err := parseStopBits(1)
	require.NoError(t, err)
	assert.Equal(t, serial.OneStopBit, got)

	got, err = parseStopBits(2)
	require.NoError(t, err)
	assert.Equal(t, serial.TwoStopBits, got)

	_, err = parseStopBits(3)
	assert.Error(t, err)
}

// chunkReader hands out data a few bytes at a time, then times out with (0, nil).
type chunkReader struct {
	data  []byte
	chunk int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, nil
	}
	n := c.chunk
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestReadExact(t *testing.T) {
	data := make([]byte, 50)
	for i := range data {
		data[i] = byte(i)
	}

	got, err := readExact(&chunkReader{data: data, chunk: 7}, 50)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = readExact(&chunkReader{data: data[:20], chunk: 7}, 50)
	assert.True(t, errors.Is(err, ErrShortRead))
	assert.Len(t, got, 20)
}

func TestOpen_NeedsPortOrIDs(t *testing.T) {
	_, err := Open(Config{BaudRate: 4800, DataBits: 8, Parity: "even", StopBits: 1})
	assert.Error(t, err)
}

func TestPipe(t *testing.T) {
	a, b := NewPipe()

	require.NoError(t, a.Write([]byte{1, 2, 3}))
	require.NoError(t, a.Write([]byte{4}))

	n, err := b.Available()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := b.ReadExact(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	n, _ = a.Available()
	assert.Zero(t, n, "writes must not loop back to the writer")

	require.NoError(t, b.Write([]byte{9}))
	got, err = a.ReadExact(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, got)
}

func TestPipe_ReadBlocksUntilWrite(t *testing.T) {
	a, b := NewPipe()

	done := make(chan []byte)
	go func() {
		got, _ := b.ReadExact(3)
		done <- got
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Write([]byte{7, 8, 9}))

	select {
	case got := <-done:
		assert.Equal(t, []byte{7, 8, 9}, got)
	case <-time.After(time.Second):
		t.Fatal("ReadExact did not return")
	}
}

func TestPipe_Close(t *testing.T) {
	a, b := NewPipe()

	done := make(chan error)
	go func() {
		_, err := b.ReadExact(1)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("read was not released by Close")
	}

	assert.ErrorIs(t, a.Write([]byte{1}), ErrClosed)
}
