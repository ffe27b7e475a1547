// Package insmonitor polls a fleet of inertial navigation systems (INS) and
// other telemetry devices, keeps their recent readings in memory, and serves
// them through an HTTP API and a live map dashboard.
//
// insmonitor is designed as an SDK-first library. Devices are immutable
// values built with functional options, and the [Monitor] orchestrator is
// configured the same way.
//
// # Quick Start
//
// Create devices and start the monitor with graceful shutdown:
//
//	ins, _ := insmonitor.NewDevice("ins-1", insmonitor.KindREST,
//	    insmonitor.WithAddress("192.168.1.50", 80),
//	)
//	m, _ := insmonitor.New(insmonitor.WithDevice(ins))
//	defer m.Close()
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until context is cancelled
//
// # Connection Kinds
//
// Each device names how it is reached:
//
//   - [KindREST]: GET /api/v1/status, /data, /gnss1 and /gnss2 on the unit
//   - [KindSerial]: GET_INFO request and one JSON reply line on a serial port
//   - [KindSimulated]: a deterministic random walk, useful for demos and tests
//
// Other kinds are polled through adapters registered with [WithAdapter];
// devices of a kind with no adapter are skipped with a warning.
//
// # Readings
//
// A [Reading] is a JSON-shaped document. Online readings carry "position",
// "attitude" and "gnss" sections normalised from the unit's reply. A fetch
// that fails, times out or panics never stops polling: the device gets an
// offline reading carrying "error_message" for that tick.
//
// Readings are held twice. [Monitor.Latest] answers from a TTL cache and
// forgets a silent device after the cache TTL. [Monitor.AllLatest],
// [Monitor.History] and [Monitor.Positions] answer from a bounded
// per-device history that keeps the last readings until they age out.
//
// # Architecture
//
// insmonitor consists of several internal packages (under internal/):
//
//   - internal/telemetry: Reading document and normalisation
//   - internal/cache: Generic expiring key/value cache
//   - internal/timeseries: Generic bounded time-series store
//   - internal/store: Hybrid store with pub/sub for real-time updates
//   - internal/poller: Fetch adapters, polling scheduler and metrics
//   - internal/server: HTTP API, Server-Sent Events and Prometheus metrics
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package insmonitor
