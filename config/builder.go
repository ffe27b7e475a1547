package config

import (
	"fmt"

	"github.com/jpalmerr/insmonitor"
)

// BuildDevices converts parsed configuration into SDK Device objects, in
// configuration order.
func BuildDevices(cfg *Config) ([]insmonitor.Device, error) {
	devices := make([]insmonitor.Device, 0, len(cfg.Devices))

	for i, dc := range cfg.Devices {
		d, err := buildDevice(dc)
		if err != nil {
			return nil, fmt.Errorf("devices[%d] (%s): %w", i, dc.ID, err)
		}
		devices = append(devices, d)
	}

	return devices, nil
}

// buildDevice converts a single DeviceConfig to an SDK Device.
func buildDevice(dc DeviceConfig) (insmonitor.Device, error) {
	var opts []insmonitor.DeviceOption

	if dc.Name != "" {
		opts = append(opts, insmonitor.WithName(dc.Name))
	}

	if dc.Color != "" {
		opts = append(opts, insmonitor.WithColor(dc.Color))
	}

	if dc.IPAddress != "" {
		opts = append(opts, insmonitor.WithAddress(dc.IPAddress, dc.Port))
	}

	if dc.SerialPort != "" {
		opts = append(opts, insmonitor.WithSerial(dc.SerialPort, dc.SerialBaudrate))
	}

	if dc.Timeout != 0 {
		opts = append(opts, insmonitor.WithTimeout(dc.Timeout.Duration()))
	}

	return insmonitor.NewDevice(dc.ID, dc.Kind(), opts...)
}

// MonitorOptions converts parsed configuration into the options for
// [insmonitor.New]: the devices plus every monitor setting the file sets.
// Settings left at zero keep the SDK defaults.
func MonitorOptions(cfg *Config) ([]insmonitor.Option, error) {
	devices, err := BuildDevices(cfg)
	if err != nil {
		return nil, err
	}

	opts := []insmonitor.Option{
		insmonitor.WithDevices(devices...),
		insmonitor.WithPort(cfg.Port),
		insmonitor.WithPollingInterval(cfg.PollInterval.Duration()),
	}

	if cfg.Title != "" {
		opts = append(opts, insmonitor.WithTitle(cfg.Title))
	}
	if cfg.CacheTTL != 0 {
		opts = append(opts, insmonitor.WithCacheTTL(cfg.CacheTTL.Duration()))
	}
	if cfg.HistorySize != 0 {
		opts = append(opts, insmonitor.WithHistorySize(cfg.HistorySize))
	}
	if cfg.Retention != 0 {
		opts = append(opts, insmonitor.WithRetention(cfg.Retention.Duration()))
	}
	if cfg.MaxConcurrency != 0 {
		opts = append(opts, insmonitor.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if cfg.PositionWindow != 0 {
		opts = append(opts, insmonitor.WithPositionWindow(cfg.PositionWindow.Duration()))
	}

	return opts, nil
}
