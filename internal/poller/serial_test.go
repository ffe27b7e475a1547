package poller

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeSerial answers each GET_INFO with the next queued response.
type fakeSerial struct {
	mu        sync.Mutex
	responses []string
	pending   bytes.Buffer
	written   bytes.Buffer
	closed    bool
	readErr   error
}

func (f *fakeSerial) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errors.New("port closed")
	}
	f.written.Write(p)
	if string(p) == serialCommand && len(f.responses) > 0 {
		f.pending.WriteString(f.responses[0])
		f.responses = f.responses[1:]
	}
	return len(p), nil
}

func (f *fakeSerial) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.readErr != nil {
		err := f.readErr
		f.mu.Unlock()
		return 0, err
	}
	if f.pending.Len() > 0 {
		defer f.mu.Unlock()
		return f.pending.Read(p)
	}
	f.mu.Unlock()

	// idle line: emulate the driver's read timeout
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (f *fakeSerial) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSerial) SetReadTimeout(time.Duration) error { return nil }

func openerFor(conns ...*fakeSerial) (SerialOpener, *int) {
	opened := 0
	return func(path string, baudRate int) (SerialConn, error) {
		if opened >= len(conns) {
			return nil, errors.New("no such device")
		}
		c := conns[opened]
		opened++
		return c, nil
	}, &opened
}

const serialMeasurement = `{"ekf":{"latitude":1.5,"longitude":2.5,"altitude":3},"gnss":{"fixType":"3D"}}` + "\n"

func TestSerialFetcher_Fetch(t *testing.T) {
	conn := &fakeSerial{responses: []string{serialMeasurement, serialMeasurement}}
	open, opened := openerFor(conn)

	f := NewSerialFetcher(DeviceInfo{ID: "s1", SerialPort: "/dev/ttyUSB0", Timeout: time.Second}, open)
	defer f.Close()

	for i := 0; i < 2; i++ {
		r, err := f.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if !r.Online() {
			t.Fatalf("Online() = false, error_message = %q", r.ErrorMessage())
		}
		if pos, _ := r.Position(); pos.Lat() != 1.5 || pos.Lon() != 2.5 {
			t.Errorf("Position() = %v, want [1.5 2.5]", pos)
		}
		if got := r.Lookup("gnss.fixType"); got != "3D" {
			t.Errorf("gnss.fixType = %v, want 3D", got)
		}
	}

	if *opened != 1 {
		t.Errorf("port opened %d times, want 1 (kept open across fetches)", *opened)
	}
	if got := conn.written.String(); got != strings.Repeat(serialCommand, 2) {
		t.Errorf("written = %q, want two GET_INFO commands", got)
	}
}

func TestSerialFetcher_DefaultBaudRate(t *testing.T) {
	var gotBaud int
	open := func(path string, baudRate int) (SerialConn, error) {
		gotBaud = baudRate
		return nil, errors.New("no such device")
	}

	_, _ = NewSerialFetcher(DeviceInfo{SerialPort: "/dev/ttyS0"}, open).Fetch(context.Background())
	if gotBaud != DefaultBaudRate {
		t.Errorf("baud rate = %d, want %d", gotBaud, DefaultBaudRate)
	}
}

func TestSerialFetcher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		conn    *fakeSerial
		wantErr string
	}{
		{"open fails", nil, "no such device"},
		{"no response", &fakeSerial{}, "timed out"},
		{"invalid json", &fakeSerial{responses: []string{"garbage\n"}}, "invalid JSON"},
		{"read error", &fakeSerial{readErr: errors.New("device unplugged")}, "device unplugged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var open SerialOpener
			if tt.conn == nil {
				open, _ = openerFor()
			} else {
				open, _ = openerFor(tt.conn)
			}

			f := NewSerialFetcher(DeviceInfo{SerialPort: "/dev/ttyUSB0", Timeout: 50 * time.Millisecond}, open)
			r, err := f.Fetch(context.Background())
			if err != nil {
				t.Fatalf("Fetch() error = %v, want offline reading", err)
			}
			if r.Online() {
				t.Error("Online() = true, want false")
			}
			if !strings.Contains(r.ErrorMessage(), tt.wantErr) {
				t.Errorf("ErrorMessage() = %q, want containing %q", r.ErrorMessage(), tt.wantErr)
			}
			if tt.conn != nil && !tt.conn.closed {
				t.Error("port not closed after failure")
			}
		})
	}
}

func TestSerialFetcher_ReopensAfterFailure(t *testing.T) {
	broken := &fakeSerial{readErr: errors.New("device unplugged")}
	healthy := &fakeSerial{responses: []string{serialMeasurement}}
	open, opened := openerFor(broken, healthy)

	f := NewSerialFetcher(DeviceInfo{SerialPort: "/dev/ttyUSB0", Timeout: time.Second}, open)

	if r, _ := f.Fetch(context.Background()); r.Online() {
		t.Fatal("first Fetch() online, want offline")
	}
	if r, _ := f.Fetch(context.Background()); !r.Online() {
		t.Fatalf("second Fetch() offline: %q", r.ErrorMessage())
	}
	if *opened != 2 {
		t.Errorf("port opened %d times, want 2", *opened)
	}
}

func TestReadLine_SplitReads(t *testing.T) {
	r := &chunkReader{chunks: []string{`{"a":`, "", `1}`, "\nrest"}}
	line, err := readLine(context.Background(), r, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("readLine() error = %v", err)
	}
	if string(line) != `{"a":1}` {
		t.Errorf("readLine() = %q, want {\"a\":1}", line)
	}
}

func TestReadLine_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := readLine(ctx, &chunkReader{}, time.Now().Add(time.Second))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("readLine() error = %v, want context.Canceled", err)
	}
}

// chunkReader returns one chunk per Read, then idles.
type chunkReader struct {
	chunks []string
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}
