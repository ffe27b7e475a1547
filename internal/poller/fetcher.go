package poller

import (
	"context"
	"time"

	"github.com/jpalmerr/insmonitor/internal/telemetry"
)

// Connection kinds understood by the scheduler.
const (
	KindREST      = "rest"
	KindSerial    = "serial"
	KindSimulated = "simulated"
)

const (
	// DefaultTimeout bounds a single device fetch when the device sets none.
	DefaultTimeout = 5 * time.Second

	// DefaultBaudRate is used for serial devices that set no baud rate.
	DefaultBaudRate = 115200
)

// DeviceInfo contains the configuration needed to poll a single device.
//
// This is the poller-internal representation of a device, decoupled from
// the main insmonitor.Device type to avoid circular dependencies.
type DeviceInfo struct {
	// ID uniquely identifies the device and keys its readings.
	ID string

	// Name is the display name of the device.
	Name string

	// Kind selects the fetch adapter (rest, serial, simulated).
	Kind string

	// Address and Port locate a REST device.
	Address string
	Port    int

	// SerialPort and BaudRate locate a serial device.
	SerialPort string
	BaudRate   int

	// Timeout bounds a single fetch.
	Timeout time.Duration
}

func (d DeviceInfo) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

// Fetcher retrieves one reading from one device.
//
// A Fetcher may report device unavailability either as an offline reading
// with a nil error or as an error; the scheduler stores both as offline.
type Fetcher interface {
	Fetch(ctx context.Context) (telemetry.Reading, error)
}

// FetcherFunc adapts an ordinary function to the [Fetcher] interface.
type FetcherFunc func(ctx context.Context) (telemetry.Reading, error)

// Fetch calls f(ctx).
func (f FetcherFunc) Fetch(ctx context.Context) (telemetry.Reading, error) {
	return f(ctx)
}

// FetcherFactory builds the fetcher for a device of a given kind.
type FetcherFactory func(DeviceInfo) Fetcher
