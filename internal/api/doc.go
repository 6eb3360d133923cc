// Package api implements the HTTP REST API and WebSocket server for the
// railcontrol core.
//
// This package provides:
//   - REST endpoints for locomotive control and automode
//   - Read access to tracks, streets, devices and feedbacks
//   - WebSocket hub relaying manager events in real time
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, permissions)
//
// # Architecture
//
// The API server is a thin layer over the manager. Every request is
// translated into one manager call; reservation and automode logic never
// runs on a request goroutine. State changes flow back through the manager's
// observer fan-out into the WebSocket hub.
//
// # Security
//
// Accounts come from the security.users configuration section. Observers
// may read the layout and follow the event stream; operators may also drive
// locomotives, switch devices and control the booster.
// WebSocket connections use single-use tickets to prevent token leakage in URLs.
package api
