package main

import (
	"encoding/json"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// mockUnit is the drifting state of one simulated INS unit.
type mockUnit struct {
	mu       sync.Mutex
	lat, lon float64
	heading  float64
	started  time.Time
}

// step advances the unit along a gently curving track.
func (u *mockUnit) step() (lat, lon, heading float64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.heading = math.Mod(u.heading+rand.Float64()*6-2, 360)
	rad := u.heading * math.Pi / 180
	u.lat += 0.00005 * math.Cos(rad)
	u.lon += 0.00005 * math.Sin(rad)
	return u.lat, u.lon, u.heading
}

// StartMockINS serves the INS REST API (/api/v1/status, /data, /gnss1,
// /gnss2) for one unit drifting around (lat, lon).
// Call this in a goroutine before starting the monitor.
func StartMockINS(addr string, lat, lon float64) {
	unit := &mockUnit{lat: lat, lon: lon, heading: rand.Float64() * 360, started: time.Now()}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeMockJSON(w, map[string]any{
				"state":     "RUNNING",
				"uptime_s":  int(time.Since(unit.started).Seconds()),
				"firmware":  "4.2.1",
				"ekf_valid": true,
			})
		})
		r.Get("/data", func(w http.ResponseWriter, r *http.Request) {
			lat, lon, heading := unit.step()
			writeMockJSON(w, map[string]any{
				"ekf": map[string]any{
					"latitude":  lat,
					"longitude": lon,
					"altitude":  12 + rand.Float64(),
				},
				"attitude": map[string]any{
					"roll":  rand.Float64()*4 - 2,
					"pitch": rand.Float64()*2 - 1,
					"yaw":   heading,
				},
				"gnss": map[string]any{
					"fixType":       "RTK_FIXED",
					"numSatellites": 12 + rand.Intn(8),
					"hdop":          0.6 + rand.Float64()*0.4,
					"signalQuality": "GOOD",
				},
			})
		})
		gnss := func(w http.ResponseWriter, r *http.Request) {
			writeMockJSON(w, map[string]any{
				"fixType":       "RTK_FIXED",
				"numSatellites": 12 + rand.Intn(8),
				"hdop":          0.6 + rand.Float64()*0.4,
			})
		}
		r.Get("/gnss1", gnss)
		r.Get("/gnss2", gnss)
	})

	slog.Info("mock INS unit listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("mock INS unit error", "addr", addr, "error", err)
	}
}

func writeMockJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
