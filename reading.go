package insmonitor

import (
	"context"
	"time"

	"github.com/jpalmerr/insmonitor/internal/store"
	"github.com/jpalmerr/insmonitor/internal/telemetry"
)

// Reading is one device's state at one moment, as a JSON-shaped document.
//
// Every reading carries "online". Online readings from INS units carry
// "position" {latitude, longitude, altitude}, "attitude" {roll, pitch, yaw}
// and "gnss" {fixType, numSatellites, hdop, signalQuality}, plus the raw
// documents returned by the unit. Offline readings carry "error_message".
//
// Readings are shared between the store, subscribers and callbacks and must
// be treated as read-only.
type Reading = telemetry.Reading

// LatLon is a latitude/longitude pair. It marshals as a two-element array.
type LatLon = telemetry.LatLon

// Record is a reading together with the time it was stored.
type Record = store.Record

// ReadingEvent is delivered to reading callbacks after each stored reading.
type ReadingEvent struct {
	// DeviceID identifies the polled device.
	DeviceID string

	// Timestamp is when the reading was produced.
	Timestamp time.Time

	// Reading is the stored reading.
	Reading Reading
}

// FetchFunc retrieves one reading from one device.
//
// Returning an error, or panicking, stores an offline reading carrying the
// error message. A panic is logged with a correlation ID and never crashes
// the monitor.
type FetchFunc func(ctx context.Context) (Reading, error)

// Offline returns an offline reading with the given error message.
func Offline(message string) Reading {
	return telemetry.Offline(message)
}
