package llama

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testAPI() *API {
	c := NewCollection(testTargets(), 8100, 5, 0, time.Second)
	return NewAPI(c, time.Minute, "127.0.0.1:0")
}

func TestAPIStatusHandler(t *testing.T) {
	a := testAPI()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rw := httptest.NewRecorder()
	a.statusHandler(rw, req)
	if rw.Code != http.StatusOK {
		t.Error("expected 200, got", rw.Code)
	}
	if rw.Body.String() != "ok" {
		t.Error(`expected body "ok", got`, rw.Body.String())
	}
}

func TestAPILatencyHandler(t *testing.T) {
	a := testAPI()
	req := httptest.NewRequest(http.MethodGet, "/latency", nil)
	rw := httptest.NewRecorder()
	a.latencyHandler(rw, req)
	if rw.Code != http.StatusOK {
		t.Error("expected 200, got", rw.Code)
	}
	var stats []TargetStats
	if err := json.Unmarshal(rw.Body.Bytes(), &stats); err != nil {
		t.Fatal("response wasn't valid JSON:", err)
	}
	if len(stats) != 2 {
		t.Error("expected 2 targets in /latency response, got", len(stats))
	}
}

func TestAPIInfluxHandler(t *testing.T) {
	a := testAPI()
	req := httptest.NewRequest(http.MethodGet, "/influxdata", nil)
	rw := httptest.NewRecorder()
	a.influxHandler(rw, req)
	var points []InfluxPoint
	if err := json.Unmarshal(rw.Body.Bytes(), &points); err != nil {
		t.Fatal("response wasn't valid JSON:", err)
	}
	if len(points) != 4 {
		t.Error("expected 4 influx points, got", len(points))
	}
}

func TestAPIQuitquitInvokesCallback(t *testing.T) {
	a := testAPI()
	called := make(chan struct{}, 1)
	a.OnQuit(func() { called <- struct{}{} })

	req := httptest.NewRequest(http.MethodGet, "/quitquit", nil)
	rw := httptest.NewRecorder()
	a.quitquitHandler(rw, req)

	if rw.Code != http.StatusOK {
		t.Error("expected 200, got", rw.Code)
	}
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Error("expected onQuit callback to run after /quitquit")
	}
}

func TestAPIIndexHandlerRendersTargetCount(t *testing.T) {
	a := testAPI()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := httptest.NewRecorder()
	a.indexHandler(rw, req)
	if rw.Code != http.StatusOK {
		t.Error("expected 200, got", rw.Code)
	}
	if rw.Body.Len() == 0 {
		t.Error("expected a non-empty status page body")
	}
	if !strings.Contains(rw.Body.String(), "Targets: 2") {
		t.Error("expected the status page to render the target count 2, got", rw.Body.String())
	}
}
