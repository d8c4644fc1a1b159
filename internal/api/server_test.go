package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/noolite-core/internal/audit"
	"github.com/nerrad567/noolite-core/internal/bulb"
	"github.com/nerrad567/noolite-core/internal/infrastructure/config"
	"github.com/nerrad567/noolite-core/internal/infrastructure/database"
	"github.com/nerrad567/noolite-core/internal/infrastructure/logging"
	"github.com/nerrad567/noolite-core/internal/noolite"
	_ "github.com/nerrad567/noolite-core/migrations"
)

// fakeTransmitter records frames and fails while err is set.
type fakeTransmitter struct {
	mu     sync.Mutex
	frames []noolite.Frame
	err    error
}

func (f *fakeTransmitter) Send(_ context.Context, frame noolite.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeTransmitter) sent() []noolite.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]noolite.Frame(nil), f.frames...)
}

func (f *fakeTransmitter) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type testEnv struct {
	srv      *Server
	router   http.Handler
	registry *bulb.Registry
	tx       *fakeTransmitter
	db       *database.DB
}

// newTestEnv builds a server over a SQLite-backed registry with the audit
// recorder and hub subscribed, as main wires them.
func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	tx := &fakeTransmitter{}
	registry := bulb.NewRegistry(bulb.NewSQLiteStore(db.DB), tx)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	registry.Subscribe(audit.NewRecorder(auditRepo, nil))

	log := logging.Discard()
	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(wsCfg, log)
	registry.Subscribe(hub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:          wsCfg,
		Logger:      log,
		Registry:    registry,
		AuditRepo:   auditRepo,
		DB:          db.DB,
		ExternalHub: hub,
		Version:     "test",
	}
	for _, m := range mutate {
		m(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return &testEnv{srv: srv, router: srv.buildRouter(), registry: registry, tx: tx, db: db}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) create(t *testing.T, name, location string) bulb.Bulb {
	t.Helper()
	form := url.Values{"name": {name}, "location": {location}}
	w := e.do(t, http.MethodPost, "/bulbs", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	bulbs := decodeBulbs(t, w, http.StatusOK)
	if len(bulbs) != 1 {
		t.Fatalf("create returned %d bulbs", len(bulbs))
	}
	return bulbs[0]
}

type bulbEnvelope struct {
	Success bool        `json:"success"`
	Data    []bulb.Bulb `json:"data"`
	Reason  string      `json:"reason"`
	Message string      `json:"message"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, wantStatus int) bulbEnvelope {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d; body %s", w.Code, wantStatus, w.Body.String())
	}
	var env bulbEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding %s: %v", w.Body.String(), err)
	}
	return env
}

func decodeBulbs(t *testing.T, w *httptest.ResponseRecorder, wantStatus int) []bulb.Bulb {
	t.Helper()
	env := decodeEnvelope(t, w, wantStatus)
	if !env.Success {
		t.Fatalf("success = false, reason %q", env.Reason)
	}
	return env.Data
}

// ─── Server Tests ──────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger succeeded")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without registry succeeded")
	}
}

func TestServer_StartAndClose(t *testing.T) {
	env := newTestEnv(t)

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil")
	}
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() after Start error = %v", err)
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantStatus int
		wantHealth string
	}{
		{name: "no components", wantStatus: http.StatusOK, wantHealth: "ok"},
		{name: "all healthy", checks: map[string]HealthChecker{"store": stubChecker{}}, wantStatus: http.StatusOK, wantHealth: "ok"},
		{
			name:       "degraded",
			checks:     map[string]HealthChecker{"store": stubChecker{}, "mqtt": stubChecker{err: errors.New("down")}},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(d *Deps) { d.HealthCheck = tt.checks })
			w := env.do(t, http.MethodGet, "/api/v1/health", nil, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var resp struct {
				Status     string            `json:"status"`
				Version    string            `json:"version"`
				Components map[string]string `json:"components"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decoding health: %v", err)
			}
			if resp.Status != tt.wantHealth || resp.Version != "test" || len(resp.Components) != len(tt.checks) {
				t.Errorf("health = %+v", resp)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", nil, "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-id" {
		t.Errorf("X-Request-ID = %q, want client-id", got)
	}
}

func TestCORS_PreflightAllowsLink(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/bulbs/1/", nil)
	req.Header.Set("Origin", "http://panel.local")
	req.Header.Set("Access-Control-Request-Method", "LINK")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	methods := w.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(methods, "LINK") || !strings.Contains(methods, "UNLINK") {
		t.Errorf("Allow-Methods = %q", methods)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://panel.local"}
	})

	req := httptest.NewRequest(http.MethodGet, "/bulbs", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin received CORS headers")
	}
}

func TestRecovery(t *testing.T) {
	env := newTestEnv(t)
	h := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// ─── Bulb Endpoint Tests ───────────────────────────────────────────

func TestListBulbs_Empty(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/bulbs", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"success":true,"data":[]}` {
		t.Errorf("body = %s", body)
	}
}

func TestCreateBulb_ParameterSources(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		body        string
		contentType string
		wantName    string
		wantLoc     string
	}{
		{
			name:        "form",
			target:      "/bulbs",
			body:        "name=Desk&location=Office",
			contentType: "application/x-www-form-urlencoded",
			wantName:    "Desk",
			wantLoc:     "Office",
		},
		{
			name:        "json body",
			target:      "/bulbs",
			body:        `{"name":"Desk","location":"Office","type":null}`,
			contentType: "application/json",
			wantName:    "Desk",
			wantLoc:     "Office",
		},
		{
			name:     "query",
			target:   "/bulbs?name=Desk&location=Office",
			wantName: "Desk",
			wantLoc:  "Office",
		},
		{
			name:     "data parameter",
			target:   "/bulbs?data=" + url.QueryEscape(`{"name":"Desk","location":"Office"}`),
			wantName: "Desk",
			wantLoc:  "Office",
		},
		{
			name:     "explicit parameter wins over data",
			target:   "/bulbs?name=Lamp&data=" + url.QueryEscape(`{"name":"Desk","location":"Office"}`),
			wantName: "Lamp",
			wantLoc:  "Office",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			bulbs := decodeBulbs(t, env.do(t, http.MethodPost, tt.target, body, tt.contentType), http.StatusOK)
			b := bulbs[0]
			if b.ID != 1 || b.Channel != 0 || b.Name != tt.wantName || b.Location != tt.wantLoc {
				t.Errorf("created = %+v", b)
			}
			if b.State != bulb.StateOff || b.Color != bulb.DefaultColor || b.Brightness != bulb.DefaultBrightness || b.Binded {
				t.Errorf("defaults = %+v", b)
			}
		})
	}
}

func TestCreateBulb_BadInput(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/bulbs", strings.NewReader(`{"name":`), "application/json")
	env2 := decodeEnvelope(t, w, http.StatusBadRequest)
	if env2.Success || env2.Reason != ReasonBadRequest {
		t.Errorf("envelope = %+v", env2)
	}

	w = env.do(t, http.MethodPost, "/bulbs?data=notjson", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad data param status = %d", w.Code)
	}
}

func TestCreateBulb_NoChannelAvailable(t *testing.T) {
	env := newTestEnv(t)
	for range bulb.MaxChannels {
		env.create(t, "", "")
	}

	env2 := decodeEnvelope(t, env.do(t, http.MethodPost, "/bulbs", nil, ""), http.StatusConflict)
	if env2.Success || env2.Reason != ReasonNoChannelAvailable {
		t.Errorf("envelope = %+v", env2)
	}
}

func TestGetBulb(t *testing.T) {
	env := newTestEnv(t)
	created := env.create(t, "Desk", "Office")

	bulbs := decodeBulbs(t, env.do(t, http.MethodGet, fmt.Sprintf("/bulbs/%d", created.ID), nil, ""), http.StatusOK)
	if bulbs[0] != created {
		t.Errorf("get = %+v, want %+v", bulbs[0], created)
	}

	for _, target := range []string{"/bulbs/99", "/bulbs/abc"} {
		env2 := decodeEnvelope(t, env.do(t, http.MethodGet, target, nil, ""), http.StatusNotFound)
		if env2.Success || env2.Reason != ReasonNotFound {
			t.Errorf("%s envelope = %+v", target, env2)
		}
	}
}

func TestUpdateBulb(t *testing.T) {
	env := newTestEnv(t)
	created := env.create(t, "Desk", "Office")

	w := env.do(t, http.MethodPut, fmt.Sprintf("/bulbs/%d", created.ID),
		strings.NewReader(`{"location":"Bedroom"}`), "application/json")
	b := decodeBulbs(t, w, http.StatusOK)[0]

	if b.Name != "Desk" || b.Location != "Bedroom" || b.Channel != created.Channel {
		t.Errorf("updated = %+v", b)
	}
	if len(env.tx.sent()) != 0 {
		t.Error("update transmitted a frame")
	}
}

func TestBulbMutations(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantAction noolite.Action
		check      func(t *testing.T, b bulb.Bulb)
	}{
		{
			name: "state on", method: http.MethodPut, path: "/state/on", wantAction: noolite.ActionOn,
			check: func(t *testing.T, b bulb.Bulb) {
				if b.State != bulb.StateOn {
					t.Errorf("state = %s", b.State)
				}
			},
		},
		{name: "state smooth off", method: http.MethodPut, path: "/state/off?smooth=true", wantAction: noolite.ActionSmoothOff},
		{
			name: "toggle", method: http.MethodPut, path: "/toggle", wantAction: noolite.ActionToggle,
			check: func(t *testing.T, b bulb.Bulb) {
				if b.State != bulb.StateOn {
					t.Errorf("state = %s", b.State)
				}
			},
		},
		{name: "smooth toggle", method: http.MethodPut, path: "/toggle?smooth=1", wantAction: noolite.ActionSmoothToggle},
		{
			name: "brightness", method: http.MethodPut, path: "/brightness/50", wantAction: noolite.ActionSet,
			check: func(t *testing.T, b bulb.Bulb) {
				if b.Brightness != 50 {
					t.Errorf("brightness = %d", b.Brightness)
				}
			},
		},
		{
			name: "color", method: http.MethodPut, path: "/color/1A2B3C", wantAction: noolite.ActionSet,
			check: func(t *testing.T, b bulb.Bulb) {
				if b.Color != "1A2B3C" {
					t.Errorf("color = %s", b.Color)
				}
			},
		},
		{name: "command roll", method: http.MethodPut, path: "/command/roll", wantAction: noolite.ActionStartColorPlay},
		{name: "command stop", method: http.MethodPut, path: "/command/stop", wantAction: noolite.ActionStopColorPlay},
		{
			name: "link", method: methodLink, path: "/", wantAction: noolite.ActionBind,
			check: func(t *testing.T, b bulb.Bulb) {
				if !b.Binded {
					t.Error("binded = false")
				}
			},
		},
		{name: "link without slash", method: methodLink, path: "", wantAction: noolite.ActionBind},
		{name: "put bind", method: http.MethodPut, path: "/bind", wantAction: noolite.ActionBind},
		{
			name: "unlink", method: methodUnlink, path: "/", wantAction: noolite.ActionUnbind,
			check: func(t *testing.T, b bulb.Bulb) {
				if b.Binded {
					t.Error("binded = true")
				}
			},
		},
		{name: "put unbind", method: http.MethodPut, path: "/unbind", wantAction: noolite.ActionUnbind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.create(t, "", "")
			created := env.create(t, "", "")

			w := env.do(t, tt.method, fmt.Sprintf("/bulbs/%d%s", created.ID, tt.path), nil, "")
			b := decodeBulbs(t, w, http.StatusOK)[0]

			frames := env.tx.sent()
			if len(frames) != 1 {
				t.Fatalf("sent %d frames, want 1", len(frames))
			}
			if frames[0].Action() != tt.wantAction || frames[0].Channel() != created.Channel {
				t.Errorf("frame = %s, want action %v on channel %d", frames[0], tt.wantAction, created.Channel)
			}
			if tt.check != nil {
				tt.check(t, b)
			}
		})
	}
}

func TestBulbMutations_Rejected(t *testing.T) {
	paths := []string{
		"/brightness/101",
		"/brightness/-1",
		"/brightness/abc",
		"/color/GGGGGG",
		"/color/FFF",
		"/state/dim",
		"/command/dance",
	}

	for _, strict := range []bool{false, true} {
		for _, path := range paths {
			t.Run(fmt.Sprintf("strict=%v%s", strict, path), func(t *testing.T) {
				env := newTestEnv(t, func(d *Deps) { d.Config.StrictValidation = strict })
				created := env.create(t, "", "")

				w := env.do(t, http.MethodPut, fmt.Sprintf("/bulbs/%d%s", created.ID, path), nil, "")
				if strict {
					env2 := decodeEnvelope(t, w, http.StatusBadRequest)
					if env2.Success || env2.Reason != ReasonValidation {
						t.Errorf("envelope = %+v", env2)
					}
				} else {
					bulbs := decodeBulbs(t, w, http.StatusOK)
					if bulbs[0] != created {
						t.Errorf("returned %+v, want unchanged %+v", bulbs[0], created)
					}
				}

				if len(env.tx.sent()) != 0 {
					t.Error("rejected input transmitted a frame")
				}
				stored, err := env.registry.Get(context.Background(), created.ID)
				if err != nil || *stored != created {
					t.Errorf("stored = %+v, %v", stored, err)
				}
			})
		}
	}
}

func TestBulbMutations_DeviceError(t *testing.T) {
	env := newTestEnv(t)
	created := env.create(t, "", "")
	env.tx.fail(errors.New("device not found"))

	w := env.do(t, http.MethodPut, fmt.Sprintf("/bulbs/%d/state/on", created.ID), nil, "")
	env2 := decodeEnvelope(t, w, http.StatusBadGateway)
	if env2.Success || env2.Reason != ReasonDeviceError || env2.Message == "" {
		t.Errorf("envelope = %+v", env2)
	}
	if len(env2.Data) != 1 || env2.Data[0].State != bulb.StateOn {
		t.Errorf("data = %+v, want persisted bulb with state on", env2.Data)
	}
}

func TestBulbMutations_SerializationError(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.db.Exec(
		`INSERT INTO bulbs (id, channel, data, updated_at) VALUES (7, 3, ?, ?)`,
		[]byte(`{"id":7,"channel":"x"`), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		t.Fatalf("seeding corrupt record: %v", err)
	}

	env2 := decodeEnvelope(t, env.do(t, http.MethodPut, "/bulbs/7/toggle", nil, ""), http.StatusUnprocessableEntity)
	if env2.Success || env2.Reason != ReasonError || env2.Message == "" {
		t.Errorf("envelope = %+v", env2)
	}

	// The corrupt record does not break the listing.
	w := env.do(t, http.MethodGet, "/bulbs", nil, "")
	if bulbs := decodeBulbs(t, w, http.StatusOK); len(bulbs) != 0 {
		t.Errorf("list = %+v", bulbs)
	}
}

func TestBulbMutations_NotFound(t *testing.T) {
	env := newTestEnv(t)
	targets := []struct{ method, path string }{
		{http.MethodPut, "/bulbs/9"},
		{http.MethodPut, "/bulbs/9/state/on"},
		{http.MethodPut, "/bulbs/9/toggle"},
		{http.MethodPut, "/bulbs/9/brightness/10"},
		{http.MethodPut, "/bulbs/9/color/FFFFFF"},
		{http.MethodPut, "/bulbs/9/command/roll"},
		{methodLink, "/bulbs/9/"},
		{methodUnlink, "/bulbs/9/"},
		{http.MethodDelete, "/bulbs/9"},
		{http.MethodDelete, "/bulbs/x"},
	}

	for _, tt := range targets {
		w := env.do(t, tt.method, tt.path, nil, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", tt.method, tt.path, w.Code)
		}
	}
	if len(env.tx.sent()) != 0 {
		t.Error("frame sent for missing bulb")
	}
}

func TestDeleteBulb(t *testing.T) {
	env := newTestEnv(t)
	first := env.create(t, "", "")
	env.create(t, "", "")

	w := env.do(t, http.MethodDelete, fmt.Sprintf("/bulbs/%d", first.ID), nil, "")
	if body := strings.TrimSpace(w.Body.String()); w.Code != http.StatusOK || body != `{"success":true}` {
		t.Fatalf("delete = %d %s", w.Code, body)
	}

	// The freed channel is reused by the next bulb.
	next := env.create(t, "", "")
	if next.Channel != first.Channel || next.ID != 3 {
		t.Errorf("next = %+v, want id 3 on channel %d", next, first.Channel)
	}
}

func TestDeleteAllBulbs(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "", "")
	env.create(t, "", "")

	w := env.do(t, http.MethodDelete, "/bulbs/all", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if bulbs := decodeBulbs(t, env.do(t, http.MethodGet, "/bulbs", nil, ""), http.StatusOK); len(bulbs) != 0 {
		t.Errorf("bulbs after delete all = %+v", bulbs)
	}
	if b := env.create(t, "", ""); b.ID != 1 || b.Channel != 0 {
		t.Errorf("first bulb after reset = %+v", b)
	}
}

// ─── Location Tests ────────────────────────────────────────────────

func TestLocations(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "a", "Living Room")
	env.create(t, "b", "Hall")
	env.create(t, "c", "Living Room")

	for _, target := range []string{"/locations/", "/locations"} {
		w := env.do(t, http.MethodGet, target, nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", target, w.Code)
		}
		var resp struct {
			Success bool           `json:"success"`
			Data    []locationView `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if len(resp.Data) != 2 || resp.Data[0].Name != "Living Room" || len(resp.Data[0].Bulbs) != 2 || resp.Data[1].Name != "Hall" {
			t.Fatalf("locations = %+v", resp.Data)
		}
		if resp.Data[0].BulbsListURL != "/location/Living%20Room/bulbs" {
			t.Errorf("bulbs_list_url = %q", resp.Data[0].BulbsListURL)
		}
	}

	bulbs := decodeBulbs(t, env.do(t, http.MethodGet, "/location/Living%20Room/bulbs", nil, ""), http.StatusOK)
	if len(bulbs) != 2 || bulbs[0].Name != "a" || bulbs[1].Name != "c" {
		t.Errorf("living room bulbs = %+v", bulbs)
	}
	if bulbs := decodeBulbs(t, env.do(t, http.MethodGet, "/location/Attic/bulbs", nil, ""), http.StatusOK); len(bulbs) != 0 {
		t.Errorf("attic bulbs = %+v", bulbs)
	}
}

// ─── Metrics and Audit Tests ───────────────────────────────────────

type brokerStatus struct {
	connected bool
	subs      int
}

func (b brokerStatus) IsConnected() bool      { return b.connected }
func (b brokerStatus) SubscriptionCount() int { return b.subs }

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.MQTT = brokerStatus{connected: true, subs: 1} })
	created := env.create(t, "", "")
	env.do(t, http.MethodPut, fmt.Sprintf("/bulbs/%d/state/on", created.ID), nil, "")

	w := env.do(t, http.MethodGet, "/api/v1/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding metrics: %v", err)
	}
	if m.Version != "test" || m.Runtime.Goroutines == 0 {
		t.Errorf("metrics = %+v", m)
	}
	if m.MQTT == nil || !m.MQTT.Connected || m.MQTT.Subscriptions != 1 {
		t.Errorf("mqtt = %+v", m.MQTT)
	}
	if m.Bulbs == nil || m.Bulbs.Total != 1 || m.Bulbs.On != 1 || m.Bulbs.FreeChannels != bulb.MaxChannels-1 {
		t.Errorf("bulbs = %+v", m.Bulbs)
	}
	if m.Database == nil {
		t.Error("database metrics missing")
	}
}

func TestAuditLog(t *testing.T) {
	env := newTestEnv(t)
	created := env.create(t, "", "")
	env.do(t, http.MethodPut, fmt.Sprintf("/bulbs/%d/brightness/500", created.ID), nil, "")
	env.do(t, http.MethodPut, fmt.Sprintf("/bulbs/%d/toggle", created.ID), nil, "")

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/audit?bulb_id=%d", created.ID), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var result audit.ListResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding audit: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("total = %d, want 3", result.Total)
	}
	if result.Logs[0].Action != "toggle" || result.Logs[0].Source != "api" {
		t.Errorf("newest = %+v", result.Logs[0])
	}

	w = env.do(t, http.MethodGet, "/api/v1/audit?outcome=rejected", nil, "")
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding audit: %v", err)
	}
	if result.Total != 1 || result.Logs[0].Action != "set_brightness" {
		t.Errorf("rejected = %+v", result)
	}
}

func TestAuditLog_NotConfigured(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.AuditRepo = nil })
	if w := env.do(t, http.MethodGet, "/api/v1/audit", nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

// ─── WebSocket Tests ───────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logging.Discard())

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"bulb.changed": {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"bulb.deleted": {}},
	}
	all := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{WSChannelAll: {}},
	}
	hub.Register(client)
	hub.Register(other)
	hub.Register(all)

	hub.HandleBulbEvent(context.Background(), bulb.Event{
		Type:   bulb.EventChanged,
		Action: "toggle",
		Bulb:   &bulb.Bulb{ID: 1, State: bulb.StateOn},
	})

	for name, c := range map[string]*WSClient{"subscribed": client, "wildcard": all} {
		select {
		case msg := <-c.send:
			var wsMsg WSMessage
			if err := json.Unmarshal(msg, &wsMsg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if wsMsg.Type != WSTypeEvent || wsMsg.EventType != "bulb.changed" {
				t.Errorf("%s got %+v", name, wsMsg)
			}
		case <-time.After(time.Second):
			t.Errorf("%s timed out waiting for broadcast", name)
		}
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client received message")
	case <-time.After(100 * time.Millisecond):
	}

	hub.Unregister(client)
	hub.Unregister(other)
	hub.Unregister(all)
	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d", hub.ClientCount())
	}
}

func TestWebSocket_ReceivesBulbEvents(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("websocket connect failed: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{string(bulb.EventCreated)}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil || resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v, %v", resp, err)
	}

	env.create(t, "Desk", "Office")

	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if resp.Type != WSTypeEvent || resp.EventType != string(bulb.EventCreated) {
		t.Errorf("broadcast = %+v", resp)
	}
	payload, _ := resp.Payload.(map[string]any) //nolint:errcheck // checked below
	if payload["action"] != "create" || payload["outcome"] != bulb.OutcomeOK {
		t.Errorf("payload = %v", resp.Payload)
	}

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if err := ws.ReadJSON(&resp); err != nil || resp.Type != WSTypePong || resp.ID != "p1" {
		t.Errorf("pong = %+v, %v", resp, err)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write invalid: %v", err)
	}
	if err := ws.ReadJSON(&resp); err != nil || resp.Type != WSTypeError {
		t.Errorf("error reply = %+v, %v", resp, err)
	}
}
