package llama

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"testing"
)

func fakeGetFunc(status int, body string, err error) func(string) (*http.Response, error) {
	return func(string) (*http.Response, error) {
		if err != nil {
			return nil, err
		}
		return &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Body:       ioutil.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func TestHttpClientGetPoints(t *testing.T) {
	v := 12.5
	points := []InfluxPoint{{Measurement: "rtt", Tags: Tags{"role": "edge"}, Time: 1, Fields: map[string]*float64{"value": &v}}}
	body, err := json.Marshal(points)
	if err != nil {
		t.Fatal(err)
	}

	c := &httpClient{hostname: "collector1", port: "5000", getFunc: fakeGetFunc(200, string(body), nil)}
	got, err := c.GetPoints()
	if err != nil {
		t.Fatal("GetPoints failed:", err)
	}
	if len(got) != 1 || got[0].Measurement != "rtt" {
		t.Error("unexpected points:", got)
	}
}

func TestHttpClientGetPointsNonOKStatus(t *testing.T) {
	c := &httpClient{hostname: "collector1", port: "5000", getFunc: fakeGetFunc(500, "boom", nil)}
	if _, err := c.GetPoints(); err == nil {
		t.Error("expected an error for a non-2xx response")
	}
}

func TestHttpClientGetPointsTransportError(t *testing.T) {
	c := &httpClient{hostname: "collector1", port: "5000", getFunc: fakeGetFunc(0, "", io.ErrClosedPipe)}
	if _, err := c.GetPoints(); err == nil {
		t.Error("expected an error when the transport fails")
	}
}

func TestHttpClientHostname(t *testing.T) {
	c := NewClient("collector1", "5000")
	if c.Hostname() != "collector1" {
		t.Error("expected hostname collector1, got", c.Hostname())
	}
}
