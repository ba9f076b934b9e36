package llama

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClient struct {
	hostname string
	points   []InfluxPoint
	err      error
	calls    int32
	delay    time.Duration
}

func (f *fakeClient) Hostname() string { return f.hostname }

func (f *fakeClient) GetPoints() ([]InfluxPoint, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.points, f.err
}

func influxTestWriter(t *testing.T, handler func(http.ResponseWriter, *http.Request)) (*InfluxDbWriter, func()) {
	server := httptest.NewServer(http.HandlerFunc(handler))
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	writer, err := NewInfluxDbWriter(u.Hostname(), u.Port(), "", "", "llama")
	if err != nil {
		t.Fatal(err)
	}
	return writer, server.Close
}

func TestInfluxDbWriterBatchSkipsNilFields(t *testing.T) {
	writer, closeFn := influxTestWriter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	defer closeFn()

	v := 1.5
	points := []InfluxPoint{
		{Measurement: "rtt", Tags: Tags{"role": "edge"}, Time: time.Now().UnixNano(), Fields: map[string]*float64{"value": &v}},
		{Measurement: "loss", Tags: Tags{"role": "edge"}, Fields: map[string]*float64{"value": nil}},
	}
	batch, err := writer.Batch(points)
	if err != nil {
		t.Fatal("Batch failed:", err)
	}
	if len(batch.Points()) != 1 {
		t.Error("expected the unwritten (nil-valued) point to be dropped, got", len(batch.Points()))
	}
}

func TestScraperRunSkipsBusyCollector(t *testing.T) {
	writer, closeFn := influxTestWriter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	defer closeFn()

	slow := &fakeClient{hostname: "slow", delay: 200 * time.Millisecond}
	s := &Scraper{
		writer: writer,
		jobs:   []*collectorJob{{client: slow}},
	}

	go s.Run()
	time.Sleep(20 * time.Millisecond) // let the first cycle's GetPoints start
	s.Run()                           // second tick while the first is still in flight

	time.Sleep(400 * time.Millisecond)
	if atomic.LoadInt32(&slow.calls) != 1 {
		t.Error("expected exactly 1 call (the second tick should have skipped a busy collector), got", slow.calls)
	}
}

func TestScraperRunWritesFetchedPoints(t *testing.T) {
	var gotWrite bool
	writer, closeFn := influxTestWriter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/write" {
			gotWrite = true
		}
		w.WriteHeader(http.StatusNoContent)
	})
	defer closeFn()

	v := 1.0
	fc := &fakeClient{hostname: "c1", points: []InfluxPoint{
		{Measurement: "rtt", Tags: Tags{}, Time: time.Now().UnixNano(), Fields: map[string]*float64{"value": &v}},
	}}
	s := &Scraper{writer: writer, jobs: []*collectorJob{{client: fc}}}
	s.Run()

	if atomic.LoadInt32(&fc.calls) != 1 {
		t.Error("expected GetPoints to be called once, got", fc.calls)
	}
	if !gotWrite {
		t.Error("expected a write request to the TSDB")
	}
}
