package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jpalmerr/insmonitor"
)

func main() {
	// start two mock INS units (see mock_server.go)
	go StartMockINS(":9101", 48.8566, 2.3522)
	go StartMockINS(":9102", 48.8584, 2.2945)
	time.Sleep(100 * time.Millisecond)

	vessel, err := insmonitor.NewDevice("ins-1", insmonitor.KindREST,
		insmonitor.WithName("Survey vessel"),
		insmonitor.WithColor("#e6194b"),
		insmonitor.WithAddress("localhost", 9101),
	)
	if err != nil {
		slog.Error("failed to create device", "error", err)
		os.Exit(1)
	}

	tender, _ := insmonitor.NewDevice("ins-2", insmonitor.KindREST,
		insmonitor.WithName("Tender"),
		insmonitor.WithColor("#3cb44b"),
		insmonitor.WithAddress("localhost", 9102),
		insmonitor.WithTimeout(time.Second),
	)

	// nothing listens on 9103: this unit shows up offline
	spare, _ := insmonitor.NewDevice("ins-3", insmonitor.KindREST,
		insmonitor.WithName("Spare (offline)"),
		insmonitor.WithAddress("localhost", 9103),
		insmonitor.WithTimeout(500*time.Millisecond),
	)

	demo, _ := insmonitor.NewDevice("sim-1", insmonitor.KindSimulated,
		insmonitor.WithName("Simulated"),
		insmonitor.WithColor("#4363d8"),
	)

	// log each device when it goes offline or comes back
	var mu sync.Mutex
	online := make(map[string]bool)
	onReading := func(ev insmonitor.ReadingEvent) {
		mu.Lock()
		defer mu.Unlock()

		was, seen := online[ev.DeviceID]
		now := ev.Reading.Online()
		if seen && was == now {
			return
		}
		online[ev.DeviceID] = now
		if now {
			slog.Info("device online", "device", ev.DeviceID)
		} else {
			slog.Warn("device offline", "device", ev.DeviceID, "error", ev.Reading.ErrorMessage())
		}
	}

	m, err := insmonitor.New(
		insmonitor.WithDevices(vessel, tender, spare, demo),
		insmonitor.WithPollingInterval(time.Second),
		insmonitor.WithMaxConcurrency(4),
		insmonitor.WithPort(8080),
		insmonitor.WithTitle("INS Monitor Demo"),
		insmonitor.WithReadingCallback(onReading),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	fmt.Println()
	fmt.Println("  INS Monitor Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println()
	fmt.Println("  Devices:")
	fmt.Println("    - 2 mock INS units over REST (:9101, :9102)")
	fmt.Println("    - 1 unreachable unit (:9103)")
	fmt.Println("    - 1 simulated unit")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		slog.Error("insmonitor error", "error", err)
		os.Exit(1)
	}
}
