// Package poller provides periodic device polling for insmonitor.
//
// This package is internal to insmonitor. It binds each configured device
// to a fetch adapter by connection kind and polls every device once per
// tick, writing the readings to a sink (normally the hybrid store).
//
// The main components are:
//
//   - [Scheduler]: Runs the polling loop with an optional concurrency limit
//   - [Fetcher]: Retrieves one reading from one device
//   - [RESTFetcher]: INS units reachable over their HTTP API
//   - [SerialFetcher]: INS units attached to a serial line
//   - [SimulatedFetcher]: Synthetic random-walk devices
//   - [Client]: Pooled HTTP client with timeout and size limits
//   - [Metrics]: Prometheus collectors for ticks and fetch outcomes
//
// Users of the insmonitor library should not need to interact with this
// package directly. Configuration is done through the main insmonitor package.
package poller
