package llama

import (
	"log"
	"strings"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
)

// TargetStats is one entry of the read-only /latency view: a target's tags
// plus its current named datapoints.
type TargetStats struct {
	Tags Tags        `json:"tags"`
	Data []Datapoint `json:"data"`
}

// Collection maintains a table of targets and their tags, and produces a
// rolling snapshot of loss/RTT metrics for each by running a Sender
// against every target on demand.
type Collection struct {
	Count   int
	Tos     byte
	Timeout time.Duration
	Port    int

	mu      sync.RWMutex
	order   []string
	entries map[string]*Metrics
}

// NewCollection builds a Collection over the given immutable target table.
func NewCollection(targets []Target, port, count int, tos byte, timeout time.Duration) *Collection {
	c := &Collection{
		Count:   count,
		Tos:     tos,
		Timeout: timeout,
		Port:    port,
		entries: make(map[string]*Metrics, len(targets)),
	}
	for _, t := range targets {
		c.entries[t.Address] = NewMetrics(t.Tags)
		c.order = append(c.order, t.Address)
	}
	return c
}

// Collect runs a Sender against every target concurrently (bounded by a
// worker pool capped at MaxWorkers) and atomically replaces each target's
// Metrics with the resulting (rtt_avg_ms, loss_pct) pair and the current
// wall-clock second. Collect is idempotent from the caller's perspective:
// repeated calls only ever replace the snapshot, never accumulate it.
func (c *Collection) Collect() {
	cycleID := shortUUID()
	log.Println("llama: collection cycle", cycleID, "starting")

	c.mu.RLock()
	targets := make([]string, len(c.order))
	copy(targets, c.order)
	c.mu.RUnlock()

	sem := make(chan struct{}, MaxWorkers)
	var wg sync.WaitGroup
	now := time.Now()

	for _, addr := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(addr string) {
			defer wg.Done()
			defer func() { <-sem }()
			sender := NewSender(addr, c.Port, c.Count, c.Tos, c.Timeout)
			sender.Run()
			stats := sender.Stats()

			c.mu.RLock()
			metrics := c.entries[addr]
			c.mu.RUnlock()
			if metrics == nil {
				return // target was removed by a Reload mid-cycle
			}
			metrics.Update(stats.RTTAvg, stats.LossPct, now)
		}(addr)
	}
	wg.Wait()
	log.Println("llama: collection cycle", cycleID, "complete")
}

// Stats returns the /latency read view: one entry per target.
func (c *Collection) Stats() []TargetStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]TargetStats, 0, len(c.order))
	for _, addr := range c.order {
		m := c.entries[addr]
		out = append(out, TargetStats{Tags: m.Tags(), Data: m.Data()})
	}
	return out
}

// StatsInflux returns the flattened /influxdata read view.
func (c *Collection) StatsInflux() []InfluxPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var points []InfluxPoint
	for _, addr := range c.order {
		points = append(points, c.entries[addr].AsInflux()...)
	}
	return points
}

// TargetCount returns the number of configured targets.
func (c *Collection) TargetCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// SetTargets atomically replaces the target table, used by Reload. Targets
// no longer present are dropped; new targets start with unwritten
// datapoints.
func (c *Collection) SetTargets(targets []Target) {
	entries := make(map[string]*Metrics, len(targets))
	order := make([]string, 0, len(targets))
	for _, t := range targets {
		entries[t.Address] = NewMetrics(t.Tags)
		order = append(order, t.Address)
	}
	c.mu.Lock()
	c.entries = entries
	c.order = order
	c.mu.Unlock()
}

// shortUUID returns a short opaque string used only for correlating log
// lines from a single collection cycle.
func shortUUID() string {
	id := uuid.NewV4()
	return strings.Split(id.String(), "-")[0]
}
