// Package climate drives one Gree indoor unit over a byte transport.
//
// The Controller owns the protocol.CommandFrame. It polls the transport for
// status frames, writes the unit's reported mode and temperature back into
// the command frame, publishes a State to subscribers, and turns control
// requests into command frames. A single mutex serialises the write-back and
// the merge-encode-send path, so HTTP and WebSocket callers may call Control
// concurrently with the poll loop.
//
//	ctrl := climate.NewController(port, climate.Options{})
//	go ctrl.Run(ctx)
//
//	mode := protocol.ModeCool
//	state, err := ctrl.Control(protocol.Request{Mode: &mode})
package climate
