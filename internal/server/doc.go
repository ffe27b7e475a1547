// Package server provides the HTTP server for the INS Monitor dashboard and API.
//
// This package is internal to insmonitor and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded map dashboard at "/"
//   - REST API: JSON endpoints under "/api" for latest readings, positions,
//     history, polling status and configured devices
//   - Server-Sent Events: Real-time updates at "/api/sse"
//   - Operations: Prometheus metrics at "/metrics", liveness at "/health"
//
// Routing uses chi. The server supports graceful shutdown via context
// cancellation, with a 5-second timeout for in-flight requests.
//
// Users of the insmonitor library should not need to interact with this
// package directly. The server is started automatically by [insmonitor.Monitor.Start].
package server
