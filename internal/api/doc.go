// Package api implements the indicator's HTTP API and WebSocket server.
//
// This package provides:
//   - REST endpoints for state, history, metrics, and mode commands
//   - The WebSocket hub that is the browser panel's display surface
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Commands
//
// PUT /api/v1/modes/{mode} and POST /api/v1/modes/{mode}/toggle do not call
// the controller directly. They queue a widget press on the presentation
// bridge, so the controller only ever sees the poll loop and the network
// callback as sources, and answer 202 Accepted with the state at the time
// of acceptance.
//
// # Security
//
// Operators log in with the operator password; panels use long-lived
// tokens issued on the device. WebSocket connections use single-use
// tickets so tokens never appear in URLs.
package api
