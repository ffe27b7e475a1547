package insmonitor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	title            string
	devices          []Device
	pollingInterval  time.Duration
	port             int
	maxConcurrency   int
	logger           *slog.Logger
	readingCallbacks []func(ReadingEvent)
	cacheTTL         time.Duration
	historySize      int
	retention        time.Duration
	positionWindow   time.Duration
	stopTimeout      time.Duration
	registry         *prometheus.Registry
	adapters         map[ConnectionKind]func(Device) FetchFunc
}

// Option is a function that configures a [Monitor] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*monitorConfig) error

// WithDevice adds a single [Device] to the polling list.
//
// Can be called multiple times to add multiple devices.
//
// Example:
//
//	m, err := insmonitor.New(
//	    insmonitor.WithDevice(ins1),
//	    insmonitor.WithDevice(ins2),
//	)
func WithDevice(d Device) Option {
	return func(cfg *monitorConfig) error {
		cfg.devices = append(cfg.devices, d)
		return nil
	}
}

// WithDevices adds multiple [Device] values to the polling list.
// Equivalent to calling [WithDevice] multiple times.
func WithDevices(devices ...Device) Option {
	return func(cfg *monitorConfig) error {
		cfg.devices = append(cfg.devices, devices...)
		return nil
	}
}

// WithPollingInterval sets the target time between the starts of two
// polling ticks. Defaults to 1 second if not specified.
//
// A tick that takes longer than the interval is followed immediately by the
// next one; missed ticks are not made up.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard and API server.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *monitorConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency sets how many devices may be fetched at once during a
// tick. With the default of 1 devices are polled one after another in
// configuration order.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Monitor instance.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithReadingCallback registers a function to be called after every stored
// reading, online or offline.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They run on the polling
// goroutine and delay the rest of the tick. With [WithMaxConcurrency] above
// 1, callbacks for different devices may run concurrently.
//
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	m, err := insmonitor.New(
//	    insmonitor.WithDevice(ins1),
//	    insmonitor.WithReadingCallback(func(ev insmonitor.ReadingEvent) {
//	        if !ev.Reading.Online() {
//	            log.Printf("ALERT: %s offline: %s", ev.DeviceID, ev.Reading.ErrorMessage())
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithReadingCallback(cb func(ReadingEvent)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.readingCallbacks = append(cfg.readingCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
// If not specified, defaults to "INS Monitor".
func WithTitle(title string) Option {
	return func(cfg *monitorConfig) error {
		cfg.title = title
		return nil
	}
}

// WithCacheTTL sets how long a reading stays visible through [Monitor.Latest].
// Defaults to 300 seconds.
//
// Returns an error if the duration is zero or negative.
func WithCacheTTL(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("cache ttl must be positive")
		}
		cfg.cacheTTL = d
		return nil
	}
}

// WithHistorySize caps the number of readings kept per device.
// Defaults to 1000.
//
// Returns an error if the value is zero or negative.
func WithHistorySize(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("history size must be positive")
		}
		cfg.historySize = n
		return nil
	}
}

// WithRetention sets the maximum age of readings kept per device.
// Defaults to 24 hours.
//
// Returns an error if the duration is zero or negative.
func WithRetention(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("retention must be positive")
		}
		cfg.retention = d
		return nil
	}
}

// WithPositionWindow sets the default window of the positions and history
// API endpoints. Defaults to 5 minutes.
//
// Returns an error if the duration is zero or negative.
func WithPositionWindow(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("position window must be positive")
		}
		cfg.positionWindow = d
		return nil
	}
}

// WithStopTimeout bounds how long shutdown waits for an in-flight tick.
// Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithStopTimeout(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("stop timeout must be positive")
		}
		cfg.stopTimeout = d
		return nil
	}
}

// WithMetricsRegistry registers the monitor's Prometheus collectors on reg
// and serves reg at /metrics. By default a private registry is used.
//
// Returns an error if reg is nil.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(cfg *monitorConfig) error {
		if reg == nil {
			return errors.New("metrics registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}

// WithAdapter registers a fetch adapter for a connection kind, replacing the
// built-in adapter if the kind has one. build is called once per device of
// that kind.
//
// Example:
//
//	m, err := insmonitor.New(
//	    insmonitor.WithDevice(buoy),
//	    insmonitor.WithAdapter("mqtt", func(d insmonitor.Device) insmonitor.FetchFunc {
//	        return subscriber.Latest(d.ID())
//	    }),
//	)
//
// Returns an error if the kind is empty or build is nil.
func WithAdapter(kind ConnectionKind, build func(Device) FetchFunc) Option {
	return func(cfg *monitorConfig) error {
		if kind == "" {
			return errors.New("adapter kind cannot be empty")
		}
		if build == nil {
			return errors.New("adapter builder cannot be nil")
		}
		if cfg.adapters == nil {
			cfg.adapters = make(map[ConnectionKind]func(Device) FetchFunc)
		}
		cfg.adapters[kind] = build
		return nil
	}
}
