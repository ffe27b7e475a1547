package poller

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/jpalmerr/insmonitor/internal/telemetry"
)

const restAPIPrefix = "/api/v1"

// RESTFetcher polls an INS unit over its HTTP API.
//
// Each fetch reads four documents in order: status, data (the INS
// measurement), gnss1 and gnss2. Any failure turns the whole reading
// offline with the failure as its error message.
type RESTFetcher struct {
	client  *Client
	baseURL string
	device  DeviceInfo
}

// NewRESTFetcher creates a fetcher for the device's address and port.
// A zero port defaults to 80.
func NewRESTFetcher(client *Client, device DeviceInfo) *RESTFetcher {
	port := device.Port
	if port == 0 {
		port = 80
	}
	return &RESTFetcher{
		client:  client,
		baseURL: "http://" + net.JoinHostPort(device.Address, strconv.Itoa(port)),
		device:  device,
	}
}

// Fetch returns the normalised reading, or an offline reading if any of the
// four requests fails. The error result is always nil.
func (f *RESTFetcher) Fetch(ctx context.Context) (telemetry.Reading, error) {
	timeout := f.device.timeout()

	docs := make(map[string]map[string]any, 4)
	for _, path := range []string{"status", "data", "gnss1", "gnss2"} {
		doc, err := f.client.GetJSON(ctx, f.url(path), timeout)
		if err != nil {
			return telemetry.Offline(err.Error()), nil
		}
		docs[path] = doc
	}

	r := telemetry.FromMeasurement(docs["data"])
	r["status"] = docs["status"]
	r["ins_measurement"] = docs["data"]
	r["gnss1_measurement"] = docs["gnss1"]
	r["gnss2_measurement"] = docs["gnss2"]
	return r, nil
}

func (f *RESTFetcher) url(path string) string {
	return fmt.Sprintf("%s%s/%s", f.baseURL, restAPIPrefix, path)
}
