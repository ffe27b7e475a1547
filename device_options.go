package insmonitor

import (
	"errors"
	"fmt"
	"time"
)

// deviceConfig holds mutable state during device construction.
type deviceConfig struct {
	name       string
	color      string
	address    string
	port       int
	serialPort string
	baudRate   int
	timeout    time.Duration
}

// DeviceOption is a function that configures a [Device] during construction.
//
// DeviceOption implements the functional options pattern, allowing optional
// configuration to be passed to [NewDevice] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithName], [WithColor], [WithAddress], [WithSerial],
// [WithTimeout].
type DeviceOption func(*deviceConfig) error

// WithName sets the device's display name.
func WithName(name string) DeviceOption {
	return func(cfg *deviceConfig) error {
		cfg.name = name
		return nil
	}
}

// WithColor sets the dashboard marker colour, e.g. "#e6194b" or "red".
func WithColor(color string) DeviceOption {
	return func(cfg *deviceConfig) error {
		cfg.color = color
		return nil
	}
}

// WithAddress sets the host and HTTP port of a REST device.
//
// A port of 0 keeps the default of 80.
//
// Example:
//
//	dev, err := insmonitor.NewDevice("ins-1", insmonitor.KindREST,
//	    insmonitor.WithAddress("192.168.1.50", 8080),
//	)
//
// Returns an error if host is empty or the port is outside 0-65535.
func WithAddress(host string, port int) DeviceOption {
	return func(cfg *deviceConfig) error {
		if host == "" {
			return errors.New("address cannot be empty")
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", port)
		}
		cfg.address = host
		if port != 0 {
			cfg.port = port
		}
		return nil
	}
}

// WithSerial sets the serial line path and baud rate of a serial device.
//
// A baud rate of 0 keeps the default of 115200.
//
// Example:
//
//	dev, err := insmonitor.NewDevice("ins-2", insmonitor.KindSerial,
//	    insmonitor.WithSerial("/dev/ttyUSB0", 0),
//	)
//
// Returns an error if path is empty or the baud rate is negative.
func WithSerial(path string, baudRate int) DeviceOption {
	return func(cfg *deviceConfig) error {
		if path == "" {
			return errors.New("serial port cannot be empty")
		}
		if baudRate < 0 {
			return fmt.Errorf("baud rate must be positive, got %d", baudRate)
		}
		cfg.serialPort = path
		if baudRate != 0 {
			cfg.baudRate = baudRate
		}
		return nil
	}
}

// WithTimeout sets the per-fetch timeout for the device.
//
// For REST devices the timeout applies to each of the four requests of a
// fetch; for serial devices it bounds the wait for the reply line.
// Defaults to 5 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) DeviceOption {
	return func(cfg *deviceConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}
