package telemetry

// Defaults applied when a device omits GNSS status fields.
const (
	DefaultFixType       = "NO_FIX"
	DefaultSignalQuality = "UNKNOWN"
)

// FromMeasurement builds an online reading from a raw INS measurement
// document. The document is expected to carry "ekf", "attitude" and "gnss"
// objects; missing objects yield empty sub-records and missing fields fall
// back to zero values.
func FromMeasurement(measurement map[string]any) Reading {
	r := Reading{
		KeyOnline:   true,
		KeyPosition: map[string]any{},
		KeyAttitude: map[string]any{},
		KeyGNSS:     map[string]any{},
	}

	if ekf, ok := asObject(measurement["ekf"]); ok {
		r[KeyPosition] = map[string]any{
			"latitude":  floatOr(ekf["latitude"], 0),
			"longitude": floatOr(ekf["longitude"], 0),
			"altitude":  floatOr(ekf["altitude"], 0),
		}
	}

	if att, ok := asObject(measurement["attitude"]); ok {
		r[KeyAttitude] = map[string]any{
			"roll":  floatOr(att["roll"], 0),
			"pitch": floatOr(att["pitch"], 0),
			"yaw":   floatOr(att["yaw"], 0),
		}
	}

	if gnss, ok := asObject(measurement["gnss"]); ok {
		r[KeyGNSS] = map[string]any{
			"fixType":       stringOr(gnss["fixType"], DefaultFixType),
			"numSatellites": int(floatOr(gnss["numSatellites"], 0)),
			"hdop":          floatOr(gnss["hdop"], 0),
			"signalQuality": stringOr(gnss["signalQuality"], DefaultSignalQuality),
		}
	}

	return r
}

func floatOr(v any, fallback float64) float64 {
	if f, ok := ToFloat(v); ok {
		return f
	}
	return fallback
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
