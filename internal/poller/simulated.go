package poller

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"

	"github.com/jpalmerr/insmonitor/internal/telemetry"
)

// default anchor for simulated devices
const (
	simulatedLatitude  = 48.8566
	simulatedLongitude = 2.3522
	simulatedAltitude  = 35.0
)

// SimulatedFetcher produces synthetic INS readings by random walk.
//
// The walk is seeded from the device ID, so a given device always
// replays the same track. Useful for demos and for running without
// hardware.
type SimulatedFetcher struct {
	mu  sync.Mutex
	rng *rand.Rand

	lat, lon, alt float64
	yaw           float64
}

// NewSimulatedFetcher creates a fetcher whose track starts near a fixed
// anchor, offset per device so several simulated devices do not overlap.
func NewSimulatedFetcher(device DeviceInfo) *SimulatedFetcher {
	h := fnv.New64a()
	_, _ = h.Write([]byte(device.ID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	return &SimulatedFetcher{
		rng: rng,
		lat: simulatedLatitude + (rng.Float64()-0.5)*0.02,
		lon: simulatedLongitude + (rng.Float64()-0.5)*0.02,
		alt: simulatedAltitude,
		yaw: rng.Float64() * 360,
	}
}

// Fetch advances the walk by one step and returns the new reading.
// It never fails.
func (f *SimulatedFetcher) Fetch(ctx context.Context) (telemetry.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lat += (f.rng.Float64() - 0.5) * 0.0002
	f.lon += (f.rng.Float64() - 0.5) * 0.0002
	f.alt += (f.rng.Float64() - 0.5) * 0.5
	f.yaw += (f.rng.Float64() - 0.5) * 10
	for f.yaw < 0 {
		f.yaw += 360
	}
	for f.yaw >= 360 {
		f.yaw -= 360
	}

	sats := 8 + f.rng.Intn(8)
	measurement := map[string]any{
		"ekf": map[string]any{
			"latitude":  f.lat,
			"longitude": f.lon,
			"altitude":  f.alt,
		},
		"attitude": map[string]any{
			"roll":  (f.rng.Float64() - 0.5) * 4,
			"pitch": (f.rng.Float64() - 0.5) * 4,
			"yaw":   f.yaw,
		},
		"gnss": map[string]any{
			"fixType":       "RTK_FIXED",
			"numSatellites": float64(sats),
			"hdop":          0.6 + f.rng.Float64()*0.6,
			"signalQuality": "GOOD",
		},
	}

	r := telemetry.FromMeasurement(measurement)
	r["ins_measurement"] = measurement
	return r, nil
}
