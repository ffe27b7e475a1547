// Package config provides YAML configuration parsing for INS Monitor.
//
// This package enables running INS Monitor as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	poll_interval: 1s
//	cache_ttl: 300s
//
//	devices:
//	  - id: ins-1
//	    name: Survey vessel
//	    color: "#e6194b"
//	    connection_type: rest
//	    ip_address: ${INS1_HOST:-192.168.1.50}
//	  - id: ins-2
//	    connection_type: serial
//	    serial_port: /dev/ttyUSB0
//	    serial_baudrate: 115200
//	    timeout: 2.5
//
// A file whose top level is a list is read as the device list alone, so
// the JSON device files of earlier deployments load unchanged.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/insmonitor"
)

const (
	defaultPort         = 8080
	defaultPollInterval = time.Second

	minPollInterval = 100 * time.Millisecond
)

// Config is the root configuration structure for INS Monitor.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "INS Monitor" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the target time between polling ticks.
	// Accepts duration strings like "1s", "500ms" or a number of seconds.
	// Defaults to 1s.
	PollInterval Duration `yaml:"poll_interval"`

	// CacheTTL is how long a reading counts as the device's latest.
	CacheTTL Duration `yaml:"cache_ttl"`

	// HistorySize caps the readings kept per device.
	HistorySize int `yaml:"history_size"`

	// Retention is the maximum age of readings kept per device.
	Retention Duration `yaml:"retention"`

	// MaxConcurrency is how many devices are fetched at once.
	MaxConcurrency int `yaml:"max_concurrency"`

	// PositionWindow is the default window of the positions API.
	PositionWindow Duration `yaml:"position_window"`

	// Devices lists the monitored units.
	Devices []DeviceConfig `yaml:"devices"`
}

// DeviceConfig defines a single monitored unit.
type DeviceConfig struct {
	// ID uniquely identifies the device.
	ID string `yaml:"id"`

	// Name is the display name shown in the dashboard. Defaults to ID.
	Name string `yaml:"name"`

	// Color is the dashboard marker colour.
	Color string `yaml:"color"`

	// ConnectionType is "rest", "serial" or "simulated". The spellings
	// "ethernet" and "fake" are accepted as aliases.
	ConnectionType string `yaml:"connection_type"`

	// IPAddress is the host of a REST device.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	IPAddress string `yaml:"ip_address"`

	// Port is the HTTP port of a REST device. Defaults to 80.
	Port int `yaml:"port"`

	// SerialPort is the serial line of a serial device.
	// Supports environment variable substitution.
	SerialPort string `yaml:"serial_port"`

	// SerialBaudrate is the serial line speed. Defaults to 115200.
	SerialBaudrate int `yaml:"serial_baudrate"`

	// Timeout bounds each request to the device. Defaults to 5s.
	Timeout Duration `yaml:"timeout"`
}

// Kind returns the normalised connection kind of the device.
func (d DeviceConfig) Kind() insmonitor.ConnectionKind {
	return insmonitor.ParseConnectionKind(d.ConnectionType)
}

// Duration wraps time.Duration for YAML unmarshalling.
//
// Both duration strings ("5s", "250ms") and plain numbers of seconds
// (5, 2.5) are accepted.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && (node.Tag == "!!int" || node.Tag == "!!float") {
		var secs float64
		if err := node.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML or JSON configuration file.
//
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data. JSON is accepted as well, since it
// is valid YAML.
//
// Environment variables are expanded in device addresses and serial ports.
// Defaults are applied for Port (8080) and PollInterval (1s).
func Parse(data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var cfg Config
	if len(root.Content) > 0 {
		doc := root.Content[0]
		var err error
		if doc.Kind == yaml.SequenceNode {
			err = doc.Decode(&cfg.Devices)
		} else {
			err = doc.Decode(&cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative, got %s", c.CacheTTL.Duration())
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention cannot be negative, got %s", c.Retention.Duration())
	}
	if c.PositionWindow < 0 {
		return fmt.Errorf("position_window cannot be negative, got %s", c.PositionWindow.Duration())
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("history_size cannot be negative, got %d", c.HistorySize)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	if len(c.Devices) == 0 {
		return errors.New("at least one device must be defined")
	}

	seen := make(map[string]int, len(c.Devices))
	for i := range c.Devices {
		d := &c.Devices[i]

		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("devices[%d]: id is required", i)
		}
		if first, dup := seen[d.ID]; dup {
			return fmt.Errorf("devices[%d] (%s): duplicate id, first defined at devices[%d]", i, d.ID, first)
		}
		seen[d.ID] = i

		if d.ConnectionType == "" {
			return fmt.Errorf("devices[%d] (%s): connection_type is required", i, d.ID)
		}

		expanded, err := expandEnvVars(d.IPAddress)
		if err != nil {
			return fmt.Errorf("devices[%d] (%s): ip_address: %w", i, d.ID, err)
		}
		d.IPAddress = expanded

		expanded, err = expandEnvVars(d.SerialPort)
		if err != nil {
			return fmt.Errorf("devices[%d] (%s): serial_port: %w", i, d.ID, err)
		}
		d.SerialPort = expanded

		switch d.Kind() {
		case insmonitor.KindREST:
			if d.IPAddress == "" {
				return fmt.Errorf("devices[%d] (%s): ip_address is required for rest devices", i, d.ID)
			}
		case insmonitor.KindSerial:
			if d.SerialPort == "" {
				return fmt.Errorf("devices[%d] (%s): serial_port is required for serial devices", i, d.ID)
			}
		}

		if d.Port < 0 || d.Port > 65535 {
			return fmt.Errorf("devices[%d] (%s): port must be between 1 and 65535, got %d", i, d.ID, d.Port)
		}
		if d.SerialBaudrate < 0 {
			return fmt.Errorf("devices[%d] (%s): serial_baudrate cannot be negative, got %d", i, d.ID, d.SerialBaudrate)
		}
		if d.Timeout < 0 {
			return fmt.Errorf("devices[%d] (%s): timeout cannot be negative, got %s", i, d.ID, d.Timeout.Duration())
		}
	}

	return nil
}

// UnknownKinds returns the IDs of devices whose connection kind has no
// built-in adapter. Such devices are skipped when polling.
func (c *Config) UnknownKinds() []string {
	var ids []string
	for _, d := range c.Devices {
		if !d.Kind().Known() {
			ids = append(ids, d.ID)
		}
	}
	return ids
}
