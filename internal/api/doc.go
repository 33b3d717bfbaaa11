// Package api implements the HTTP API and WebSocket event stream for the TV
// bridge.
//
// This package provides:
//   - REST endpoints to read TV status, press keys, type text, switch power,
//     open or close the control channel and submit a pairing PIN
//   - Prometheus exposition on /metrics
//   - A WebSocket hub relaying TV state and command acks from MQTT
//   - JWT bearer authentication with role permissions and per-client rate
//     limiting
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Security
//
// Every /api/v1/tv route requires a bearer token minted with
// "tvbridge token". WebSocket connections authenticate with a single-use
// ticket from POST /api/v1/ws/ticket so the token never appears in a URL.
//
// # Graceful Degradation
//
// The server operates without MQTT. REST endpoints drive the remote
// directly; only the WebSocket relay is disabled.
package api
