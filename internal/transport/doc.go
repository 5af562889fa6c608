// Package transport moves raw bytes between the bridge and the indoor unit.
//
// Serial wraps a UART opened with go-serial. Pipe is an in-memory pair used
// by tests and by the simulator loopback. Both satisfy climate.Transport:
//
//	Available() (int, error)
//	ReadExact(n int) ([]byte, error)
//	Write(p []byte) error
//
// The indoor unit speaks 4800 baud, 8 data bits, even parity, 1 stop bit.
package transport
