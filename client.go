package llama

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
)

// Client pulls the current TSDB points from a single collector.
type Client interface {
	GetPoints() ([]InfluxPoint, error)
	Hostname() string
}

type httpClient struct {
	hostname string
	port     string
	getFunc  func(url string) (*http.Response, error)
}

// NewClient builds a Client for the collector at hostname:port.
func NewClient(hostname, port string) Client {
	return &httpClient{hostname: hostname, port: port, getFunc: http.Get}
}

func (c *httpClient) Hostname() string {
	return c.hostname
}

// GetPoints fetches and parses /influxdata from the collector. Any
// connection failure, network error, or non-2xx response is returned as
// an error for the caller to log and move on from — no retry here.
func (c *httpClient) GetPoints() ([]InfluxPoint, error) {
	url := fmt.Sprintf("http://%s:%s/influxdata", c.hostname, c.port)
	resp, err := c.getFunc(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llama: %s: status %s (%s)", c.hostname, resp.Status, body)
	}
	var points []InfluxPoint
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, err
	}
	return points, nil
}
