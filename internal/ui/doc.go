// Package ui provides terminal output for the greeac CLI.
//
// Most commands print once and exit: a Printer renders a command header,
// success/warning/error boxes built from ordered Details, and annotated
// dumps of UART frames with the fields the codec reads highlighted.
//
// The monitor command is the one interactive screen. MonitorModel is a
// Bubble Tea model that connects to a bridge through a Watcher (normally a
// *client.Stream), shows the unit's state as it changes, and turns key
// presses into control requests:
//
//	m    cycle mode        f    cycle fan speed
//	↑/+  warmer            ↓/-  cooler
//	o    on/off            r    reconnect
//
// # Logging Integration
//
// CLI commands leave zap silent unless GREEAC_LOG_LEVEL is set, so log lines
// do not interleave with the styled output.
package ui
