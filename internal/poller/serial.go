package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/jpalmerr/insmonitor/internal/telemetry"
)

// serialCommand asks the unit for one measurement line.
const serialCommand = "GET_INFO\n"

// serialReadStep bounds each blocking read so a fetch can notice its deadline.
const serialReadStep = 100 * time.Millisecond

// SerialConn is the subset of [serial.Port] used by [SerialFetcher].
type SerialConn interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// SerialOpener opens a serial line at the given baud rate.
type SerialOpener func(path string, baudRate int) (SerialConn, error)

func openSerial(path string, baudRate int) (SerialConn, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// SerialFetcher polls an INS unit over a serial line.
//
// The line is opened lazily on first fetch and kept open across fetches;
// any I/O error closes it so the next fetch reopens. Each fetch writes
// GET_INFO and reads one newline-terminated JSON measurement.
type SerialFetcher struct {
	device DeviceInfo
	open   SerialOpener

	mu   sync.Mutex
	conn SerialConn
}

// NewSerialFetcher creates a fetcher for the device's serial port. A nil
// opener uses the system serial driver.
func NewSerialFetcher(device DeviceInfo, open SerialOpener) *SerialFetcher {
	if device.BaudRate <= 0 {
		device.BaudRate = DefaultBaudRate
	}
	if open == nil {
		open = openSerial
	}
	return &SerialFetcher{device: device, open: open}
}

// Fetch returns the normalised reading, or an offline reading if the line
// cannot be opened, written or read. The error result is always nil.
func (f *SerialFetcher) Fetch(ctx context.Context) (telemetry.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	measurement, err := f.exchange(ctx)
	if err != nil {
		_ = f.closeLocked()
		return telemetry.Offline(err.Error()), nil
	}

	r := telemetry.FromMeasurement(measurement)
	r["ins_measurement"] = measurement
	return r, nil
}

// Close releases the serial line if open.
func (f *SerialFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeLocked()
}

func (f *SerialFetcher) closeLocked() error {
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}

func (f *SerialFetcher) exchange(ctx context.Context) (map[string]any, error) {
	if f.conn == nil {
		conn, err := f.open(f.device.SerialPort, f.device.BaudRate)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.device.SerialPort, err)
		}
		if err := conn.SetReadTimeout(serialReadStep); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("configure %s: %w", f.device.SerialPort, err)
		}
		f.conn = conn
	}

	if _, err := io.WriteString(f.conn, serialCommand); err != nil {
		return nil, fmt.Errorf("write %s: %w", f.device.SerialPort, err)
	}

	deadline := time.Now().Add(f.device.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	line, err := readLine(ctx, f.conn, deadline)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.device.SerialPort, err)
	}

	var measurement map[string]any
	if err := json.Unmarshal(line, &measurement); err != nil {
		return nil, fmt.Errorf("read %s: invalid JSON: %w", f.device.SerialPort, err)
	}
	if measurement == nil {
		measurement = map[string]any{}
	}
	return measurement, nil
}

var errSerialTimeout = errors.New("timed out waiting for response")

// readLine reads until a newline, the deadline or context cancellation.
// The read timeout on r makes each Read return (0, nil) when idle.
func readLine(ctx context.Context, r io.Reader, deadline time.Time) ([]byte, error) {
	var line bytes.Buffer
	buf := make([]byte, 256)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, errSerialTimeout
		}

		n, err := r.Read(buf)
		if n > 0 {
			if i := bytes.IndexByte(buf[:n], '\n'); i >= 0 {
				line.Write(buf[:i])
				return bytes.TrimSpace(line.Bytes()), nil
			}
			line.Write(buf[:n])
			if line.Len() > maxResponseBodySize {
				return nil, errors.New("response line too long")
			}
		}
		if err != nil {
			return nil, err
		}
	}
}
