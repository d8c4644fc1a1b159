package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/noolite-core/internal/bulb"
	"github.com/nerrad567/noolite-core/internal/infrastructure/config"
	"github.com/nerrad567/noolite-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/noolite-core/internal/noolite"
)

// fakeInflux answers /ping and collects line protocol posted to /api/v2/write.
type fakeInflux struct {
	*httptest.Server

	mu       sync.Mutex
	healthy  bool
	writeErr bool
	writes   chan string
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{healthy: true, writes: make(chan string, 16)}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		healthy, writeErr := f.healthy, f.writeErr
		f.mu.Unlock()

		switch r.URL.Path {
		case "/ping":
			if !healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
			if writeErr {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"code":"invalid","message":"bad point"}`) //nolint:errcheck // test server
				return
			}
			f.writes <- string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) setHealthy(v bool) {
	f.mu.Lock()
	f.healthy = v
	f.mu.Unlock()
}

func (f *fakeInflux) nextWrite(t *testing.T) string {
	t.Helper()
	select {
	case body := <-f.writes:
		return body
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for write")
		return ""
	}
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "noolite-dev-token",
		Org:           "noolite",
		Bucket:        "bulbs",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, f *fakeInflux) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig(f.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connect(t, newFakeInflux(t))
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	f := newFakeInflux(t)
	f.setHealthy(false)

	_, err := influxdb.Connect(testConfig(f.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	f := newFakeInflux(t)
	cfg := testConfig(f.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false with default batch settings")
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	f.setHealthy(false)
	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error from unhealthy server")
	}
}

func TestClose(t *testing.T) {
	client := connect(t, newFakeInflux(t))

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// No-ops after close.
	client.Flush()
	client.HandleBulbEvent(context.Background(), bulb.Event{Action: "toggle"})
}

// =============================================================================
// Write Tests
// =============================================================================

func TestHandleBulbEvent(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	frame := noolite.SwitchOn(3, false)
	client.HandleBulbEvent(context.Background(), bulb.Event{
		Type:   bulb.EventChanged,
		Action: "set_state",
		Bulb: &bulb.Bulb{
			ID: 4, Channel: 3, State: bulb.StateOn,
			Color: "FFFFFF", Brightness: 80,
		},
		Frame: &frame,
		Time:  time.Unix(1700000000, 0),
	})
	client.Flush()

	line := f.nextWrite(t)
	for _, want := range []string{
		"bulb_command,",
		"action=set_state",
		"bulb_id=4",
		"channel=3",
		"outcome=ok",
		"brightness=80i",
		"ok=true",
		"state_on=true",
		`frame="` + frame.String() + `"`,
		"1700000000000000000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestHandleBulbEvent_DeviceErrorAndClear(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.HandleBulbEvent(context.Background(), bulb.Event{
		Type:   bulb.EventChanged,
		Action: "toggle",
		Bulb:   &bulb.Bulb{ID: 1, Channel: 0, State: bulb.StateOff, Color: "FFFFFF", Brightness: 100},
		Err:    bulb.ErrDevice,
	})
	client.HandleBulbEvent(context.Background(), bulb.Event{
		Type:   bulb.EventCleared,
		Action: "delete_all",
	})
	client.Flush()

	body := f.nextWrite(t)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), body)
	}
	if !strings.Contains(lines[0], "outcome=device_error") || !strings.Contains(lines[0], "ok=false") {
		t.Errorf("device error line = %q", lines[0])
	}
	if strings.Contains(lines[1], "bulb_id=") || !strings.Contains(lines[1], "action=delete_all") {
		t.Errorf("clear line = %q", lines[1])
	}
}

func TestWritePoint(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WritePointWithTime("gateway_stats",
		map[string]string{"site": "home"},
		map[string]any{"free_channels": 28},
		time.Unix(1, 0))
	client.Flush()

	if line := f.nextWrite(t); !strings.HasPrefix(line, "gateway_stats,site=home free_channels=28i 1000000000") {
		t.Errorf("line = %q", line)
	}
}

func TestSetOnError(t *testing.T) {
	f := newFakeInflux(t)
	f.mu.Lock()
	f.writeErr = true
	f.mu.Unlock()

	client := connect(t, f)

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WritePoint("gateway_stats", nil, map[string]any{"free_channels": 1})
	client.Flush()

	select {
	case err := <-errCh:
		if !errors.Is(err, influxdb.ErrWriteFailed) {
			t.Errorf("OnError error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("OnError not called for rejected write")
	}
}
