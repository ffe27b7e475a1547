package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/insmonitor/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "INS Monitor"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"

	// defaultPositionWindow applies when ?minutes= is absent.
	defaultPositionWindow = 5 * time.Minute

	// maxWindow caps ?minutes= so the conversion to time.Duration cannot overflow.
	maxWindow = 100 * 365 * 24 * time.Hour
)

// DeviceSummary describes a configured device for the dashboard.
type DeviceSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Kind  string `json:"connection_type"`
}

// StatusProvider reports the polling loop's state.
type StatusProvider interface {
	Running() bool
	Ticks() int64
	LastTick() time.Time
}

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Monitoring  bool       `json:"monitoring"`
	DeviceCount int        `json:"device_count"`
	LastUpdate  *time.Time `json:"last_update"`
	Ticks       int64      `json:"ticks"`
}

// Server handles HTTP requests for the INS Monitor dashboard and API.
//
// Server provides these endpoints:
//   - GET /: Serves the embedded dashboard HTML
//   - GET /api/data: Latest record of every device
//   - GET /api/data/{id}: Fresh reading of one device, or null
//   - GET /api/positions: Recent coordinates of every device
//   - GET /api/history/{id}: Recent records of one device
//   - GET /api/status: Polling loop state
//   - GET /api/devices: Configured devices
//   - GET /api/sse: Server-Sent Events stream for real-time updates
//   - GET /metrics: Prometheus exposition
//   - GET /health: Liveness probe
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger

	devices        []DeviceSummary
	status         StatusProvider
	gatherer       prometheus.Gatherer
	positionWindow time.Duration
}

// Option configures optional [Server] collaborators.
type Option func(*Server)

// WithDevices sets the device list served by /api/devices.
func WithDevices(devices []DeviceSummary) Option {
	return func(s *Server) {
		s.devices = devices
	}
}

// WithStatus sets the source of /api/status.
func WithStatus(p StatusProvider) Option {
	return func(s *Server) {
		s.status = p
	}
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithPositionWindow sets the default window of /api/positions and /api/history.
func WithPositionWindow(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.positionWindow = d
		}
	}
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store implementation for reading data
//   - port: TCP port to listen on (0 picks a free port)
//   - assets: Embedded filesystem containing dashboard assets (may be nil)
//   - title: Dashboard title (defaults to "INS Monitor" if empty)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, port int, assets fs.FS, title string, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:          st,
		port:           port,
		assets:         assets,
		title:          title,
		logger:         logger,
		gatherer:       prometheus.DefaultGatherer,
		positionWindow: defaultPositionWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router serving all endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/data", s.handleData)
		r.Get("/data/{id}", s.handleDeviceData)
		r.Get("/positions", s.handlePositions)
		r.Get("/history/{id}", s.handleHistory)
		r.Get("/status", s.handleStatus)
		r.Get("/devices", s.handleDevices)
		r.Get("/sse", s.handleSSE)
	})

	if s.assets != nil {
		r.Get("/", s.handleDashboard)
	}

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleData returns the latest history record of every device.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.store.AllLatest())
}

// handleDeviceData returns the device's fresh reading, or null if it has
// none within the cache TTL.
func (s *Server) handleDeviceData(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.store.Latest(chi.URLParam(r, "id"))
	if !ok {
		s.writeJSON(w, nil)
		return
	}
	s.writeJSON(w, reading)
}

// handlePositions returns {id: [[lat, lon], ...]} over ?minutes=N.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	window, ok := s.window(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, s.store.Positions(window))
}

// handleHistory returns the device's records over ?minutes=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	window, ok := s.window(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, s.store.History(chi.URLParam(r, "id"), window))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{DeviceCount: len(s.devices)}
	if s.status != nil {
		resp.Monitoring = s.status.Running()
		resp.Ticks = s.status.Ticks()
		if last := s.status.LastTick(); !last.IsZero() {
			resp.LastUpdate = &last
		}
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.devices
	if devices == nil {
		devices = []DeviceSummary{}
	}
	s.writeJSON(w, devices)
}

// window parses ?minutes=N, writing a 400 on malformed input.
func (s *Server) window(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	raw := r.URL.Query().Get("minutes")
	if raw == "" {
		return s.positionWindow, true
	}
	minutes, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(minutes > 0) {
		http.Error(w, "minutes must be a positive number", http.StatusBadRequest)
		return 0, false
	}
	if minutes >= maxWindow.Minutes() {
		return maxWindow, true
	}
	return time.Duration(minutes * float64(time.Minute)), true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleSSE streams store updates via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// replay the latest record of every device so new clients start populated
	for id, rec := range s.store.AllLatest() {
		data, err := json.Marshal(store.Update{DeviceID: id, Timestamp: rec.Timestamp, Data: rec.Data})
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case update, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
