// Package store provides the device-facing reading store.
//
// This package is internal to insmonitor and combines two in-memory
// structures behind one façade:
//
//   - a TTL cache holding each device's freshest reading (see internal/cache)
//   - bounded per-device histories (see internal/timeseries)
//
// The main components are:
//
//   - [Store]: Interface defining write, read and subscription operations
//   - [HybridStore]: In-memory implementation of Store with pub/sub
//   - [Record]: A reading together with the time it was stored
//   - [Update]: Notification published to subscribers on every write
//
// The store is designed for concurrent access: one writer (the polling
// scheduler) and any number of readers. Subscribers receive updates via
// channels with non-blocking sends (slow subscribers will miss updates
// rather than block the writer).
package store
