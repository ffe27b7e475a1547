// Standalone mock INS units for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/insmonitor serve -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"
)

type unitState struct {
	mu       sync.Mutex
	lat, lon float64
}

func main() {
	units := map[string]*unitState{
		":9101": {lat: 48.8566, lon: 2.3522},
		":9102": {lat: 48.8584, lon: 2.2945},
	}

	fmt.Println("Mock INS units starting on :9101 and :9102")
	fmt.Println("Each serves /api/v1/status, /data, /gnss1 and /gnss2")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	errs := make(chan error, len(units))
	for addr, u := range units {
		addr, u := addr, u
		go func() {
			errs <- http.ListenAndServe(addr, newRouter(u))
		}()
	}

	if err := <-errs; err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newRouter(u *unitState) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"state": "RUNNING"})
	})
	r.Get("/api/v1/data", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.lat += (rand.Float64() - 0.5) * 0.0001
		u.lon += (rand.Float64() - 0.5) * 0.0001
		lat, lon := u.lat, u.lon
		u.mu.Unlock()

		writeJSON(w, map[string]any{
			"ekf":      map[string]any{"latitude": lat, "longitude": lon, "altitude": 12.0},
			"attitude": map[string]any{"roll": 0.0, "pitch": 0.0, "yaw": rand.Float64() * 360},
			"gnss":     map[string]any{"fixType": "RTK_FIXED", "numSatellites": 14, "hdop": 0.7, "signalQuality": "GOOD"},
		})
	})
	gnss := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"fixType": "RTK_FIXED", "numSatellites": 14})
	}
	r.Get("/api/v1/gnss1", gnss)
	r.Get("/api/v1/gnss2", gnss)
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
