// Package server exposes a bridge's climate controller over HTTP and WebSocket.
//
// # Routes
//
//	GET  /healthz       status, last status frame age, build info
//	GET  /metrics       Prometheus exposition (when a registry is configured)
//	GET  /api/state     current climate.State
//	GET  /api/traits    climate.Traits
//	POST /api/control   protocol.Request JSON, every field optional
//	GET  /ws            WebSocket state stream and control channel
//
// A control body looks like:
//
//	{"mode":"cool","fan_speed":"low","target_temperature":22}
//
// Unknown enum names and temperatures outside the comfort band are rejected
// with 400. Transport failures while sending the frame return 502. With
// Config.ControlRate set, requests over the limit get 429; this covers
// control messages on the WebSocket too.
//
// # WebSocket
//
// On connect the server sends a traits message and the current state, then a
// state message every time the unit reports a change. Clients control the
// unit with:
//
//	{"type":"control","request":{"mode":"heat"}}
//
// Errors come back as {"type":"error","error":"..."}. The server pings every
// 54 seconds and drops clients that miss a pong for 60.
//
// # TLS
//
// When Config.CertFile and Config.KeyFile are set the API is served over
// TLS 1.2 or newer.
package server
