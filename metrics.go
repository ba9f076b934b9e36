package llama

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Tags is a key/value map of arbitrary tag names to values, forwarded
// verbatim to the TSDB.
type Tags map[string]string

// Target describes a single configured probe destination. Targets are
// created at config load time and are immutable for the life of the
// process.
type Target struct {
	Address string // IPv4 dotted-quad
	Tags    Tags
}

// datapointName enumerates the small, known set of metrics a Metrics entry
// tracks, per the spec's descriptor-per-datapoint re-architecture guidance:
// a plain {value, timestamp} record instead of Python's attribute
// descriptor protocol.
type datapointName string

const (
	datapointRTT  datapointName = "rtt"
	datapointLoss datapointName = "loss"
)

// Datapoint is a single named value with the wall-clock second at which it
// was last written. The zero value represents "never written": Value is 0
// and Timestamp is the zero time.
type Datapoint struct {
	Name      string
	Value     float64
	Timestamp time.Time
	written   bool
}

// Written reports whether this datapoint has ever been assigned a value.
func (d Datapoint) Written() bool {
	return d.written
}

// Metrics holds the immutable tags and latest observed datapoints for one
// target. A single writer (Collection.Collect) overwrites both datapoints
// atomically per cycle; many readers may observe it concurrently via the
// HTTP handlers.
type Metrics struct {
	tags Tags

	mu   sync.RWMutex
	rtt  Datapoint
	loss Datapoint
}

// NewMetrics returns a Metrics entry for the given tags, with both
// datapoints unwritten.
func NewMetrics(tags Tags) *Metrics {
	return &Metrics{
		tags: tags,
		rtt:  Datapoint{Name: string(datapointRTT)},
		loss: Datapoint{Name: string(datapointLoss)},
	}
}

// Update atomically replaces both datapoints with a fresh observation at
// the given timestamp.
func (m *Metrics) Update(rttMs, lossPct float64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rtt = Datapoint{Name: string(datapointRTT), Value: rttMs, Timestamp: at, written: true}
	m.loss = Datapoint{Name: string(datapointLoss), Value: lossPct, Timestamp: at, written: true}
}

// Tags returns the tag map for this entry.
func (m *Metrics) Tags() Tags {
	return m.tags
}

// Data returns the current rtt and loss datapoints, in that order.
func (m *Metrics) Data() []Datapoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return []Datapoint{m.rtt, m.loss}
}

// InfluxPoint is a single TSDB point as exposed by /influxdata and consumed
// by the scraper.
type InfluxPoint struct {
	Measurement string             `json:"measurement"`
	Tags        Tags               `json:"tags"`
	Time        int64              `json:"time"`
	Fields      map[string]*float64 `json:"fields"`
}

// AsInflux converts both datapoints on m into an InfluxPoint each. A
// datapoint that has never been written still produces a point, with its
// Fields["value"] left nil so it serializes as JSON null rather than being
// silently absent from the response.
func (m *Metrics) AsInflux() []InfluxPoint {
	var points []InfluxPoint
	for _, dp := range m.Data() {
		point := InfluxPoint{
			Measurement: dp.Name,
			Tags:        m.tags,
			Fields:      map[string]*float64{"value": nil},
		}
		if dp.Written() {
			// Influx time is seconds-precision: the timestamp is rounded to
			// the nearest second before being scaled to nanoseconds, matching
			// the original's int(round(time.time())) * 1e9.
			point.Time = dp.Timestamp.Round(time.Second).Unix() * int64(time.Second)
			v := dp.Value
			point.Fields["value"] = &v
		}
		points = append(points, point)
	}
	return points
}

// ValidateIPv4 returns an error if address is not a valid IPv4 dotted-quad.
func ValidateIPv4(address string) error {
	ip := net.ParseIP(address)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("llama: %q is not a valid IPv4 address", address)
	}
	return nil
}
