package insmonitor

import (
	"strings"
	"testing"
	"time"
)

func TestNewDevice_Defaults(t *testing.T) {
	d, err := NewDevice("ins-1", KindREST, WithAddress("10.0.0.5", 0))
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}

	if d.ID() != "ins-1" {
		t.Errorf("ID() = %q, want %q", d.ID(), "ins-1")
	}
	if d.Name() != "ins-1" {
		t.Errorf("Name() = %q, want %q", d.Name(), "ins-1")
	}
	if d.Kind() != KindREST {
		t.Errorf("Kind() = %q, want %q", d.Kind(), KindREST)
	}
	if d.Port() != 80 {
		t.Errorf("Port() = %d, want %d", d.Port(), 80)
	}
	if d.BaudRate() != 115200 {
		t.Errorf("BaudRate() = %d, want %d", d.BaudRate(), 115200)
	}
	if d.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want %v", d.Timeout(), 5*time.Second)
	}
	if d.Color() != "" {
		t.Errorf("Color() = %q, want empty", d.Color())
	}
}

func TestNewDevice_AllOptions(t *testing.T) {
	d, err := NewDevice("ins-2", KindSerial,
		WithName("Survey vessel"),
		WithColor("#e6194b"),
		WithSerial("/dev/ttyUSB0", 57600),
		WithTimeout(2*time.Second),
	)
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}

	if d.Name() != "Survey vessel" {
		t.Errorf("Name() = %q, want %q", d.Name(), "Survey vessel")
	}
	if d.Color() != "#e6194b" {
		t.Errorf("Color() = %q, want %q", d.Color(), "#e6194b")
	}
	if d.SerialPort() != "/dev/ttyUSB0" {
		t.Errorf("SerialPort() = %q, want %q", d.SerialPort(), "/dev/ttyUSB0")
	}
	if d.BaudRate() != 57600 {
		t.Errorf("BaudRate() = %d, want %d", d.BaudRate(), 57600)
	}
	if d.Timeout() != 2*time.Second {
		t.Errorf("Timeout() = %v, want %v", d.Timeout(), 2*time.Second)
	}
}

func TestNewDevice_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		kind    ConnectionKind
		opts    []DeviceOption
		wantErr string
	}{
		{"empty id", "", KindSimulated, nil, "id cannot be empty"},
		{"blank id", "   ", KindSimulated, nil, "id cannot be empty"},
		{"empty kind", "a", "", nil, "kind cannot be empty"},
		{"rest without address", "a", KindREST, nil, "requires an address"},
		{"serial without port", "a", KindSerial, nil, "requires a serial port"},
		{"empty address", "a", KindREST, []DeviceOption{WithAddress("", 80)}, "address cannot be empty"},
		{"port too high", "a", KindREST, []DeviceOption{WithAddress("h", 70000)}, "port must be between"},
		{"negative port", "a", KindREST, []DeviceOption{WithAddress("h", -1)}, "port must be between"},
		{"empty serial path", "a", KindSerial, []DeviceOption{WithSerial("", 9600)}, "serial port cannot be empty"},
		{"negative baud", "a", KindSerial, []DeviceOption{WithSerial("/dev/ttyS0", -1)}, "baud rate"},
		{"zero timeout", "a", KindSimulated, []DeviceOption{WithTimeout(0)}, "timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDevice(tt.id, tt.kind, tt.opts...)
			if err == nil {
				t.Fatal("NewDevice() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewDevice() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewDevice_UnknownKindAccepted(t *testing.T) {
	d, err := NewDevice("buoy", "mqtt")
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	if d.Kind().Known() {
		t.Errorf("Kind().Known() = true, want false for %q", d.Kind())
	}
}

func TestParseConnectionKind(t *testing.T) {
	tests := []struct {
		in   string
		want ConnectionKind
	}{
		{"rest", KindREST},
		{"REST", KindREST},
		{"ethernet", KindREST},
		{"http", KindREST},
		{"serial", KindSerial},
		{" Serial ", KindSerial},
		{"simulated", KindSimulated},
		{"fake", KindSimulated},
		{"sim", KindSimulated},
		{"MQTT", "mqtt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseConnectionKind(tt.in); got != tt.want {
				t.Errorf("ParseConnectionKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConnectionKind_Known(t *testing.T) {
	tests := []struct {
		kind ConnectionKind
		want bool
	}{
		{KindREST, true},
		{KindSerial, true},
		{KindSimulated, true},
		{"ethernet", false},
		{"mqtt", false},
	}

	for _, tt := range tests {
		if got := tt.kind.Known(); got != tt.want {
			t.Errorf("%q.Known() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}
