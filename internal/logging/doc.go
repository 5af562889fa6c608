// Package logging provides structured logging for the greeac bridge.
//
// This package wraps zap with package-level helpers so the protocol,
// controller and server code can log without threading a logger through
// every constructor.
//
// # Log Levels
//
//   - Debug: frame hex dumps, poll ticks, resend ticks
//   - Info: state changes, client connections, startup
//   - Warn: checksum mismatches, unknown mode/fan values, UART settings
//   - Error: transport failures, server startup failures
//
// # Silent by Default
//
// CLI commands are silent unless GREEAC_LOG_LEVEL is set:
//
//	GREEAC_LOG_LEVEL=debug greeac decode 7e7e...
//
// # File Output
//
// Long running bridges can add a rotating log file:
//
//	logging.InitializeWithOptions(logging.Options{
//	    Level: "info",
//	    File:  &logging.FileOptions{Path: "/var/log/greeac.log", MaxSizeMB: 10},
//	})
//
// Rotation is handled by lumberjack.
//
// # Frame Dumps
//
//	logging.LogFrame("UART frame received", frame)
//
// renders "7E 7E 00 ..." at debug level and costs nothing when debug is off.
package logging
