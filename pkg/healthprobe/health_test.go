package healthprobe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(context.Context) error {
	return p.err
}

func decode(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestNew(t *testing.T) {
	hc := New(nil)

	if hc == nil {
		t.Fatal("New() returned nil")
	}

	if time.Since(hc.startTime) > 1*time.Second {
		t.Errorf("Start time is too old: %v", hc.startTime)
	}

	if hc.ready.Load() {
		t.Error("HealthChecker should not be ready by default")
	}
}

func TestHealth_AlwaysReturnsOK(t *testing.T) {
	hc := New(&fakePinger{err: errors.New("down")})

	for _, ready := range []bool{false, true} {
		hc.SetReady(ready)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		hc.Health()(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Health handler status = %d, want %d (ready=%v)", w.Code, http.StatusOK, ready)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		resp := decode(t, w)
		if resp.Status != "healthy" || resp.Uptime == "" {
			t.Errorf("unexpected health response %+v", resp)
		}
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		store      Pinger
		wantStatus int
		wantBody   string
		wantMsg    string
	}{
		{
			name:       "not_ready_initially",
			ready:      false,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "not_ready",
			wantMsg:    "starting",
		},
		{
			name:       "ready_without_store",
			ready:      true,
			wantStatus: http.StatusOK,
			wantBody:   "ready",
		},
		{
			name:       "ready_with_reachable_store",
			ready:      true,
			store:      &fakePinger{},
			wantStatus: http.StatusOK,
			wantBody:   "ready",
		},
		{
			name:       "ready_with_unreachable_store",
			ready:      true,
			store:      &fakePinger{err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "not_ready",
			wantMsg:    "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := New(tt.store)
			hc.SetReady(tt.ready)

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			hc.Ready()(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Ready handler status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := decode(t, w)
			if resp.Status != tt.wantBody {
				t.Errorf("Status = %s, want %s", resp.Status, tt.wantBody)
			}
			if tt.wantMsg != "" && !strings.Contains(resp.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", resp.Message, tt.wantMsg)
			}
		})
	}
}

func TestReady_StateChanges(t *testing.T) {
	hc := New(&fakePinger{})
	handler := hc.Ready()

	for _, step := range []struct {
		ready bool
		want  int
	}{
		{false, http.StatusServiceUnavailable},
		{true, http.StatusOK},
		{false, http.StatusServiceUnavailable},
	} {
		hc.SetReady(step.ready)
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if w.Code != step.want {
			t.Errorf("ready=%v status = %d, want %d", step.ready, w.Code, step.want)
		}
	}
}

func TestHealthChecker_ConcurrentAccess(t *testing.T) {
	hc := New(&fakePinger{})
	handler := hc.Ready()

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			hc.SetReady(i%2 == 0)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handler(w, req)
		}
		done <- true
	}()

	<-done
	<-done
}
