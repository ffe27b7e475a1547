package insmonitor

import (
	"errors"
	"strings"
	"time"
)

const (
	defaultDeviceTimeout = 5 * time.Second
	defaultRESTPort      = 80
	defaultBaudRate      = 115200
)

// ConnectionKind selects how a device is polled.
type ConnectionKind string

const (
	// KindREST polls an INS unit over its HTTP API (/api/v1/...).
	KindREST ConnectionKind = "rest"

	// KindSerial polls an INS unit attached to a serial line.
	KindSerial ConnectionKind = "serial"

	// KindSimulated produces synthetic readings; no hardware is needed.
	KindSimulated ConnectionKind = "simulated"
)

// String returns the string representation of the kind.
func (k ConnectionKind) String() string {
	return string(k)
}

// Known reports whether the kind has a built-in fetch adapter.
func (k ConnectionKind) Known() bool {
	switch k {
	case KindREST, KindSerial, KindSimulated:
		return true
	default:
		return false
	}
}

// ParseConnectionKind normalises a configured connection type. The legacy
// spellings "ethernet" and "fake" map to [KindREST] and [KindSimulated];
// other values are returned lower-cased and unchanged.
func ParseConnectionKind(s string) ConnectionKind {
	switch k := strings.ToLower(strings.TrimSpace(s)); k {
	case "ethernet", "http":
		return KindREST
	case "fake", "sim":
		return KindSimulated
	default:
		return ConnectionKind(k)
	}
}

// Device describes one monitored unit.
//
// Device is immutable after creation via [NewDevice]. All fields are
// private with getter methods. Devices are configured using the functional
// options pattern with [DeviceOption] functions such as [WithName],
// [WithColor], [WithAddress], [WithSerial] and [WithTimeout].
type Device struct {
	id         string
	name       string
	color      string
	kind       ConnectionKind
	address    string
	port       int
	serialPort string
	baudRate   int
	timeout    time.Duration
}

// ID returns the device's unique identifier. Readings are keyed by it.
func (d Device) ID() string {
	return d.id
}

// Name returns the device's display name. Defaults to the ID.
func (d Device) Name() string {
	return d.name
}

// Color returns the dashboard marker colour, or "" for the default.
func (d Device) Color() string {
	return d.color
}

// Kind returns the device's connection kind.
func (d Device) Kind() ConnectionKind {
	return d.kind
}

// Address returns the host of a REST device.
func (d Device) Address() string {
	return d.address
}

// Port returns the HTTP port of a REST device. Defaults to 80.
func (d Device) Port() int {
	return d.port
}

// SerialPort returns the serial line path of a serial device.
func (d Device) SerialPort() string {
	return d.serialPort
}

// BaudRate returns the serial line speed. Defaults to 115200.
func (d Device) BaudRate() int {
	return d.baudRate
}

// Timeout returns the per-fetch timeout. Defaults to 5 seconds.
func (d Device) Timeout() time.Duration {
	return d.timeout
}

// NewDevice creates a [Device] with the given ID, connection kind and options.
//
// REST devices require [WithAddress] and serial devices require [WithSerial].
// Kinds without a built-in adapter are accepted; the monitor skips them with
// a warning at startup unless an adapter is registered via [WithAdapter].
//
// Returns an error if the ID or kind is empty or a required option is missing.
//
// Example:
//
//	dev, err := insmonitor.NewDevice("ins-1", insmonitor.KindREST,
//	    insmonitor.WithName("Survey vessel"),
//	    insmonitor.WithAddress("192.168.1.50", 80),
//	)
func NewDevice(id string, kind ConnectionKind, opts ...DeviceOption) (Device, error) {
	if strings.TrimSpace(id) == "" {
		return Device{}, errors.New("device id cannot be empty")
	}
	if kind == "" {
		return Device{}, errors.New("device connection kind cannot be empty")
	}

	cfg := &deviceConfig{
		port:     defaultRESTPort,
		baudRate: defaultBaudRate,
		timeout:  defaultDeviceTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Device{}, err
		}
	}

	switch kind {
	case KindREST:
		if cfg.address == "" {
			return Device{}, errors.New("rest device requires an address")
		}
	case KindSerial:
		if cfg.serialPort == "" {
			return Device{}, errors.New("serial device requires a serial port")
		}
	}

	name := cfg.name
	if name == "" {
		name = id
	}

	return Device{
		id:         id,
		name:       name,
		color:      cfg.color,
		kind:       kind,
		address:    cfg.address,
		port:       cfg.port,
		serialPort: cfg.serialPort,
		baudRate:   cfg.baudRate,
		timeout:    cfg.timeout,
	}, nil
}
