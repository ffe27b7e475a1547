// Package telemetry defines the reading payload exchanged between fetch
// adapters, the store and the HTTP layer.
//
// A [Reading] is a loosely structured JSON-like document. Adapters normalise
// device responses into a common layout so that consumers can rely on a
// handful of well-known keys:
//
//	online         bool
//	error_message  string                     (offline only)
//	position       {latitude, longitude, altitude}
//	attitude       {roll, pitch, yaw}
//	gnss           {fixType, numSatellites, hdop, signalQuality}
//
// Readings are treated as immutable once produced.
package telemetry

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Well-known reading keys.
const (
	KeyOnline       = "online"
	KeyErrorMessage = "error_message"
	KeyPosition     = "position"
	KeyAttitude     = "attitude"
	KeyGNSS         = "gnss"
)

// Reading is one telemetry payload from one device.
type Reading map[string]any

// LatLon is a latitude/longitude pair. It marshals to a two element JSON
// array, which is what map clients expect.
type LatLon [2]float64

// Lat returns the latitude.
func (p LatLon) Lat() float64 { return p[0] }

// Lon returns the longitude.
func (p LatLon) Lon() float64 { return p[1] }

// Offline builds the reading recorded for a device that could not be reached.
func Offline(message string) Reading {
	return Reading{
		KeyOnline:       false,
		KeyErrorMessage: message,
	}
}

// Online reports whether the reading carries live data.
// A missing or non-boolean flag counts as offline.
func (r Reading) Online() bool {
	v, ok := r[KeyOnline].(bool)
	return ok && v
}

// ErrorMessage returns the error recorded on an offline reading.
func (r Reading) ErrorMessage() string {
	s, _ := r[KeyErrorMessage].(string)
	return s
}

// Position extracts the latitude/longitude pair from the position sub-record.
// ok is false when either coordinate is missing or not numeric.
func (r Reading) Position() (LatLon, bool) {
	lat, ok := ToFloat(r.Lookup(KeyPosition + ".latitude"))
	if !ok {
		return LatLon{}, false
	}
	lon, ok := ToFloat(r.Lookup(KeyPosition + ".longitude"))
	if !ok {
		return LatLon{}, false
	}
	return LatLon{lat, lon}, true
}

// Lookup walks the reading using dot notation, e.g. "gnss.fixType".
// Returns nil if any segment is missing or not an object.
func (r Reading) Lookup(path string) any {
	var current any = map[string]any(r)

	for _, part := range strings.Split(path, ".") {
		obj, ok := asObject(current)
		if !ok {
			return nil
		}
		current, ok = obj[part]
		if !ok {
			return nil
		}
	}
	return current
}

// Object returns the named sub-record as a map, or nil.
func (r Reading) Object(key string) map[string]any {
	obj, _ := asObject(r[key])
	return obj
}

// asObject accepts both plain maps and nested Readings.
func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case Reading:
		return map[string]any(o), true
	default:
		return nil, false
	}
}

// ToFloat converts the numeric representations produced by encoding/json and
// by adapters into a float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
