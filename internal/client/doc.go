// Package client talks to a running greeac bridge.
//
// Client wraps the REST API (/healthz, /api/state, /api/traits,
// /api/control) with retries and exponential backoff for reads. Watch opens
// the /ws endpoint and returns a Stream of server.Message values: traits and
// the current state first, then one state message per change.
//
// Errors are *BridgeError values classified by ErrorType, so the CLI can
// print a troubleshooting hint:
//
//	st, err := c.Control(ctx, req)
//	if err != nil {
//		fmt.Println(client.TroubleshootingHint(err))
//	}
package client
