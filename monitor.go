package insmonitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jpalmerr/insmonitor/dashboard"
	"github.com/jpalmerr/insmonitor/internal/poller"
	"github.com/jpalmerr/insmonitor/internal/server"
	"github.com/jpalmerr/insmonitor/internal/store"
	"github.com/jpalmerr/insmonitor/internal/telemetry"
)

const (
	defaultPollingInterval = time.Second
	defaultPort            = 8080
	defaultMaxConcurrency  = 1
	defaultCacheTTL        = 300 * time.Second
	defaultHistorySize     = 1000
	defaultRetention       = 24 * time.Hour
	defaultPositionWindow  = 5 * time.Minute
	defaultStopTimeout     = 10 * time.Second
)

// Monitor is the main orchestrator for device polling and dashboard serving.
//
// Monitor polls every configured device once per tick, stores each reading
// in a TTL cache and a bounded per-device history, and serves both through
// an HTTP API and a live map dashboard. It is created using [New] with
// functional options and started with [Monitor.Start].
//
// The typical lifecycle is:
//
//	m, err := insmonitor.New(insmonitor.WithDevice(dev))
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//	defer m.Close()
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
//
// The read methods ([Monitor.Latest], [Monitor.AllLatest],
// [Monitor.Positions], [Monitor.History]) are safe for concurrent use and
// may be called whether or not the monitor is running.
type Monitor struct {
	title           string
	devices         []Device
	pollingInterval time.Duration
	port            int
	maxConcurrency  int
	positionWindow  time.Duration
	logger          *slog.Logger

	store     *store.HybridStore
	scheduler *poller.Scheduler
	registry  *prometheus.Registry

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a new [Monitor] instance with the given options.
//
// At least one device must be configured via [WithDevice] or [WithDevices].
// Other options have sensible defaults:
//   - Polling interval: 1 second
//   - Port: 8080
//   - Max concurrency: 1 (devices polled in order)
//   - Cache TTL: 300 seconds
//   - History: 1000 readings or 24 hours per device
//
// Returns an error if no devices are configured, device IDs are not unique,
// or any option is invalid.
//
// Example:
//
//	m, err := insmonitor.New(
//	    insmonitor.WithDevice(dev),
//	    insmonitor.WithPollingInterval(500 * time.Millisecond),
//	    insmonitor.WithPort(9090),
//	)
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		devices:         []Device{},
		pollingInterval: defaultPollingInterval,
		port:            defaultPort,
		maxConcurrency:  defaultMaxConcurrency,
		cacheTTL:        defaultCacheTTL,
		historySize:     defaultHistorySize,
		retention:       defaultRetention,
		positionWindow:  defaultPositionWindow,
		stopTimeout:     defaultStopTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.devices) == 0 {
		return nil, errors.New("at least one device is required")
	}

	// readings are keyed by device id, so ids must be unique
	seen := make(map[string]bool, len(cfg.devices))
	for _, d := range cfg.devices {
		if d.id == "" {
			return nil, errors.New("device must be created with NewDevice")
		}
		if seen[d.id] {
			return nil, fmt.Errorf("duplicate device id: %q", d.id)
		}
		seen[d.id] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	st := store.NewHybridStore(store.Options{
		LatestTTL:   cfg.cacheTTL,
		HistorySize: cfg.historySize,
		Retention:   cfg.retention,
	})

	sink := &callbackSink{
		store:     st,
		callbacks: cfg.readingCallbacks,
		logger:    logger,
	}

	schedOpts := []poller.SchedulerOption{
		poller.WithStopTimeout(cfg.stopTimeout),
		poller.WithMetrics(poller.NewMetrics(registry)),
	}
	byID := make(map[string]Device, len(cfg.devices))
	for _, d := range cfg.devices {
		byID[d.id] = d
	}
	for kind, build := range cfg.adapters {
		schedOpts = append(schedOpts, poller.WithFetcherFactory(kind.String(), adapterFactory(byID, build)))
	}

	scheduler := poller.NewScheduler(sink, cfg.pollingInterval, cfg.maxConcurrency, logger, schedOpts...)

	m := &Monitor{
		title:           cfg.title,
		devices:         cfg.devices,
		pollingInterval: cfg.pollingInterval,
		port:            cfg.port,
		maxConcurrency:  cfg.maxConcurrency,
		positionWindow:  cfg.positionWindow,
		logger:          logger,
		store:           st,
		scheduler:       scheduler,
		registry:        registry,
	}

	scheduler.Setup(m.toDeviceInfos())

	return m, nil
}

// Start begins polling devices and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - All configured devices are polled immediately, then every polling interval
//   - The HTTP server starts on the configured port
//   - Fetch failures are logged and stored as offline readings
//   - The dashboard is available at http://localhost:<port>
//
// Start may be called again after it returns; polling resumes with the
// stored history intact. Calling Start while it is already running returns
// an error.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start or the monitor has been closed.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("monitor is closed")
	}
	if m.started {
		m.mu.Unlock()
		return errors.New("monitor already started")
	}
	m.started = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
	}()

	m.logger.Info("insmonitor starting", "device_count", len(m.devices))
	m.logger.Info("polling configured",
		"interval", m.pollingInterval.String(),
		"max_concurrency", m.maxConcurrency,
	)
	m.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", m.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	m.scheduler.Start(ctx)

	httpServer := server.NewServer(m.store, m.port, dashboard.Assets, m.title, m.logger,
		server.WithDevices(m.summaries()),
		server.WithStatus(m.scheduler),
		server.WithGatherer(m.registry),
		server.WithPositionWindow(m.positionWindow),
	)
	if err := httpServer.Start(ctx); err != nil {
		m.scheduler.Stop()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	m.scheduler.Stop()
	m.logger.Info("insmonitor stopped")
	return nil
}

// Close releases device connections and stops background maintenance of
// the store. Readings already stored stay readable. Close is idempotent.
//
// Close must not be called while [Monitor.Start] is running; cancel its
// context first.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.scheduler.Close()
	m.store.Close()
}

// Latest returns the device's most recent reading if it was stored within
// the cache TTL.
func (m *Monitor) Latest(deviceID string) (Reading, bool) {
	return m.store.Latest(deviceID)
}

// AllLatest returns the most recent record of every device with history,
// regardless of the cache TTL.
func (m *Monitor) AllLatest() map[string]Record {
	return m.store.AllLatest()
}

// Positions returns, for every device with history, the positions of its
// online readings stored within window, oldest first.
func (m *Monitor) Positions(window time.Duration) map[string][]LatLon {
	return m.store.Positions(window)
}

// History returns the device's records stored within window, oldest first.
func (m *Monitor) History(deviceID string, window time.Duration) []Record {
	return m.store.History(deviceID, window)
}

// Running reports whether the polling loop is active.
func (m *Monitor) Running() bool {
	return m.scheduler.Running()
}

// Devices returns a copy of the configured devices.
//
// The returned slice is a copy; modifying it does not affect the Monitor.
// Each [Device] in the slice is immutable.
func (m *Monitor) Devices() []Device {
	cp := make([]Device, len(m.devices))
	copy(cp, m.devices)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (m *Monitor) Port() int {
	return m.port
}

// PollingInterval returns the configured target time between ticks.
func (m *Monitor) PollingInterval() time.Duration {
	return m.pollingInterval
}

// toDeviceInfos converts the Device slice to poller.DeviceInfo values.
func (m *Monitor) toDeviceInfos() []poller.DeviceInfo {
	result := make([]poller.DeviceInfo, len(m.devices))

	for i, d := range m.devices {
		result[i] = poller.DeviceInfo{
			ID:         d.id,
			Name:       d.name,
			Kind:       d.kind.String(),
			Address:    d.address,
			Port:       d.port,
			SerialPort: d.serialPort,
			BaudRate:   d.baudRate,
			Timeout:    d.timeout,
		}
	}

	return result
}

// summaries lists the devices for the API's device endpoint.
func (m *Monitor) summaries() []server.DeviceSummary {
	result := make([]server.DeviceSummary, len(m.devices))
	for i, d := range m.devices {
		result[i] = server.DeviceSummary{
			ID:    d.id,
			Name:  d.name,
			Color: d.color,
			Kind:  d.kind.String(),
		}
	}
	return result
}

// adapterFactory wraps a user adapter as a poller factory.
func adapterFactory(byID map[string]Device, build func(Device) FetchFunc) poller.FetcherFactory {
	return func(info poller.DeviceInfo) poller.Fetcher {
		fetch := build(byID[info.ID])
		if fetch == nil {
			return poller.FetcherFunc(func(context.Context) (telemetry.Reading, error) {
				return nil, fmt.Errorf("no fetch adapter for device %q", info.ID)
			})
		}
		return poller.FetcherFunc(fetch)
	}
}

// callbackSink stores readings and then hands them to the reading callbacks.
type callbackSink struct {
	store     *store.HybridStore
	callbacks []func(ReadingEvent)
	logger    *slog.Logger
}

func (s *callbackSink) Store(deviceID string, reading telemetry.Reading) {
	// store first, callbacks fire after data is persisted
	s.store.Store(deviceID, reading)

	if len(s.callbacks) == 0 {
		return
	}
	ev := ReadingEvent{
		DeviceID:  deviceID,
		Timestamp: time.Now(),
		Reading:   reading,
	}
	for _, cb := range s.callbacks {
		invokeCallbackSafe(cb, ev, s.logger)
	}
}

// invokeCallbackSafe calls a reading callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(ReadingEvent), ev ReadingEvent, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("reading callback panicked",
				"panic", r,
				"device", ev.DeviceID,
			)
		}
	}()
	cb(ev)
}
