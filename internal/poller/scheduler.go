package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/insmonitor/internal/telemetry"
)

const (
	// DefaultInterval is the polling cadence used when none is configured.
	DefaultInterval = time.Second

	// DefaultStopTimeout bounds how long [Scheduler.Stop] waits for the
	// polling goroutine to exit.
	DefaultStopTimeout = 10 * time.Second
)

var errFetchPanic = errors.New("fetch panic")

// Sink receives every reading produced by the scheduler.
type Sink interface {
	Store(deviceID string, reading telemetry.Reading)
}

type binding struct {
	device  DeviceInfo
	fetcher Fetcher
}

// Scheduler polls every bound device once per tick and writes the results
// to its [Sink].
//
// A tick visits each device, sequentially when maxConcurrency is 1 or less
// and otherwise with at most maxConcurrency fetches in flight. A failed or
// panicking fetch is logged and stored as an offline reading; it never
// stops the tick. After a tick the scheduler sleeps for whatever remains of
// the interval. Ticks that overrun the interval are followed immediately by
// the next tick, and missed ticks are not queued.
//
// All lifecycle methods (Setup, Start, Stop) are safe for concurrent use.
// A stopped scheduler can be started again.
type Scheduler struct {
	sink           Sink
	interval       time.Duration
	maxConcurrency int
	logger         *slog.Logger
	stopTimeout    time.Duration
	metrics        *Metrics
	client         *Client
	serialOpener   SerialOpener
	factories      map[string]FetcherFactory

	mu       sync.Mutex
	bindings []binding
	running  bool
	stop     chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}

	ticks    atomic.Int64
	lastTick atomic.Int64 // unix nanoseconds of the last completed tick's start
}

// SchedulerOption configures a [Scheduler].
type SchedulerOption func(*Scheduler)

// WithStopTimeout bounds how long Stop waits. Non-positive values are ignored.
func WithStopTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithMetrics records tick and fetch metrics.
func WithMetrics(m *Metrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithFetcherFactory binds devices of kind to fetchers built by factory,
// replacing the built-in adapter for that kind if any.
func WithFetcherFactory(kind string, factory FetcherFactory) SchedulerOption {
	return func(s *Scheduler) {
		if factory != nil {
			s.factories[kind] = factory
		}
	}
}

// WithSerialOpener replaces the system serial driver used by serial devices.
func WithSerialOpener(open SerialOpener) SchedulerOption {
	return func(s *Scheduler) {
		s.serialOpener = open
	}
}

// NewScheduler creates a new polling [Scheduler].
//
// Parameters:
//   - sink: Destination for every reading
//   - interval: Target time between tick starts (non-positive selects 1s)
//   - maxConcurrency: Maximum number of fetches in flight during a tick
//   - logger: Logger for fetch failures and lifecycle events
//
// Devices are bound with [Scheduler.Setup]; the scheduler is driven with
// [Scheduler.Start] and [Scheduler.Stop].
func NewScheduler(sink Sink, interval time.Duration, maxConcurrency int, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		sink:           sink,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		logger:         logger,
		stopTimeout:    DefaultStopTimeout,
		client:         NewClient(),
		factories:      make(map[string]FetcherFactory),
	}

	s.factories[KindREST] = func(d DeviceInfo) Fetcher { return NewRESTFetcher(s.client, d) }
	s.factories[KindSerial] = func(d DeviceInfo) Fetcher { return NewSerialFetcher(d, s.serialOpener) }
	s.factories[KindSimulated] = func(d DeviceInfo) Fetcher { return NewSimulatedFetcher(d) }

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Setup binds one fetcher per device according to its kind, replacing any
// previous bindings. Devices of an unknown kind are skipped with a warning.
// Returns the number of devices bound.
func (s *Scheduler) Setup(devices []DeviceInfo) int {
	bindings := make([]binding, 0, len(devices))
	for _, d := range devices {
		factory, ok := s.factories[d.Kind]
		if !ok {
			s.logger.Warn("skipping device with unknown connection kind",
				"device", d.ID,
				"kind", d.Kind,
			)
			continue
		}
		bindings = append(bindings, binding{device: d, fetcher: factory(d)})
	}

	s.mu.Lock()
	old := s.bindings
	s.bindings = bindings
	s.mu.Unlock()

	closeFetchers(old)
	s.metrics.setDevices(len(bindings))

	return len(bindings)
}

// Start begins the polling loop in a background goroutine. The first tick
// runs at once.
//
// The loop ends between ticks once ctx is done or [Scheduler.Stop] is
// called; a tick already under way still visits every device. If a loop
// abandoned by an expired Stop is still finishing its tick, Start waits for
// it to exit first, so at most one loop ever polls.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is a no-op while the scheduler is running.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.aliveLocked() {
			return
		}
		prev := s.done
		if prev == nil || isClosed(prev) {
			break
		}
		s.mu.Unlock()
		<-prev
		s.mu.Lock()
	}
	if s.cancel != nil {
		s.cancel()
	}

	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := make(chan struct{})
	done := make(chan struct{})

	s.running = true
	s.stop = stop
	s.cancel = cancel
	s.done = done

	go s.loop(ctx, fetchCtx, stop, done)
}

// Stop signals the polling loop to exit after its current tick and waits up
// to the stop timeout for it to do so. When the timeout expires the
// in-flight fetches are cancelled and the partial tick is not counted.
//
// Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stop, cancel, done := s.stop, s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	close(stop)

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		s.client.Close()
	case <-timer.C:
		s.logger.Warn("polling loop did not stop in time", "timeout", s.stopTimeout)
	}
	cancel()
}

// Close stops the scheduler and releases device connections.
func (s *Scheduler) Close() {
	s.Stop()

	s.mu.Lock()
	old := s.bindings
	s.bindings = nil
	s.mu.Unlock()

	closeFetchers(old)
	s.client.Close()
}

// Running reports whether the polling loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliveLocked()
}

// Ticks returns the number of completed ticks since creation.
func (s *Scheduler) Ticks() int64 {
	return s.ticks.Load()
}

// LastTick returns the start time of the last completed tick, or the zero
// time if none has completed.
func (s *Scheduler) LastTick() time.Time {
	ns := s.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// aliveLocked reports whether a polling loop exists and has not exited on
// its own (e.g. because its parent context was cancelled).
func (s *Scheduler) aliveLocked() bool {
	if !s.running {
		return false
	}
	return !isClosed(s.done)
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// loop runs ticks until parent is done or stop is closed. Both are checked
// only between ticks; fetchCtx is cancelled only when Stop gives up.
func (s *Scheduler) loop(parent, fetchCtx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case <-parent.Done():
			return
		default:
		}

		start := time.Now()
		s.tick(fetchCtx)

		wait := s.interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-parent.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tick polls every bound device once. A tick cut short by cancellation of
// ctx is not counted.
func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	bindings := s.bindings
	s.mu.Unlock()

	if s.maxConcurrency <= 1 || len(bindings) <= 1 {
		for _, b := range bindings {
			if ctx.Err() != nil {
				break
			}
			s.poll(ctx, b)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.maxConcurrency)
		for _, b := range bindings {
			b := b
			g.Go(func() error {
				if ctx.Err() == nil {
					s.poll(ctx, b)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if ctx.Err() != nil {
		return
	}

	s.ticks.Add(1)
	s.lastTick.Store(start.UnixNano())
	s.metrics.observeTick(time.Since(start))
}

// poll fetches one device and stores the outcome.
func (s *Scheduler) poll(ctx context.Context, b binding) {
	id := b.device.ID
	reading, err := s.safeFetch(ctx, b.fetcher)

	// a fetch abandoned by Stop is not a device outage
	if ctx.Err() != nil && (err != nil || !reading.Online()) {
		return
	}

	switch {
	case errors.Is(err, errFetchPanic):
		s.metrics.observeFetch(id, outcomePanic)
		reading = telemetry.Offline(err.Error())
	case err != nil:
		s.logger.Warn("device fetch failed", "device", id, "error", err)
		s.metrics.observeFetch(id, outcomeError)
		reading = telemetry.Offline(err.Error())
	case !reading.Online():
		s.logger.Debug("device offline", "device", id, "error", reading.ErrorMessage())
		s.metrics.observeFetch(id, outcomeOffline)
	default:
		s.metrics.observeFetch(id, outcomeOnline)
	}

	s.sink.Store(id, reading)
}

// safeFetch calls the fetcher with panic recovery.
// If the fetcher panics, it logs the full stack trace with a correlation ID
// and returns an error containing the ID.
func (s *Scheduler) safeFetch(ctx context.Context, f Fetcher) (reading telemetry.Reading, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			s.logger.Error("fetch panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			reading = nil
			err = fmt.Errorf("%w (correlation_id: %s)", errFetchPanic, correlationID)
		}
	}()

	reading, err = f.Fetch(ctx)
	if err == nil && reading == nil {
		err = errors.New("fetcher returned no reading")
	}
	return reading, err
}

func closeFetchers(bindings []binding) {
	for _, b := range bindings {
		if c, ok := b.fetcher.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
