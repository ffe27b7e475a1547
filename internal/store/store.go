package store

import (
	"time"

	"github.com/jpalmerr/insmonitor/internal/telemetry"
)

// Record is a reading as held in history: the reading plus the time the
// store received it.
type Record struct {
	// Timestamp is when the reading was stored.
	Timestamp time.Time `json:"timestamp"`

	// Data is the reading itself.
	Data telemetry.Reading `json:"data"`
}

// Update is published to subscribers on every stored reading.
type Update struct {
	// DeviceID identifies the device the reading belongs to.
	DeviceID string `json:"device_id"`

	// Timestamp is when the reading was stored.
	Timestamp time.Time `json:"timestamp"`

	// Data is the stored reading.
	Data telemetry.Reading `json:"data"`
}

// Store defines the device-facing storage operations.
//
// Store implementations must be safe for concurrent access. Writes come from
// the polling scheduler; reads come from any number of request goroutines.
// Read operations never fail on missing data: they return an absence marker
// or an empty collection instead.
type Store interface {
	// Store records a reading for a device. It refreshes the device's
	// latest-value entry and appends to the device's history.
	Store(deviceID string, reading telemetry.Reading)

	// Latest returns the device's most recent reading if it is still
	// fresh (within the cache TTL).
	Latest(deviceID string) (telemetry.Reading, bool)

	// AllLatest returns the most recent history record for every device,
	// independent of the cache TTL.
	AllLatest() map[string]Record

	// History returns the device's records from the last window, oldest first.
	History(deviceID string, window time.Duration) []Record

	// Positions returns, for every device, the latitude/longitude pairs of
	// its online readings within the last window, oldest first. Devices
	// with no such readings map to an empty slice.
	Positions(window time.Duration) map[string][]telemetry.LatLon

	// Subscribe returns a channel that receives an [Update] per stored reading.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Update

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Update)
}
