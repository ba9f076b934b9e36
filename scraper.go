// Package llama's Scraper pulls stats from Collectors and writes them to an InfluxDB-compatible TSDB.
package llama

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	influxdb_client "github.com/influxdata/influxdb1-client/v2"
)

// DefaultWriteTimeout bounds a single InfluxDB write.
const DefaultWriteTimeout = 5 * time.Second

// NewInfluxDbWriter builds a writer for the InfluxDB instance at host:port.
func NewInfluxDbWriter(host, port, user, pass, db string) (*InfluxDbWriter, error) {
	url := fmt.Sprintf("http://%s:%s", host, port)
	log.Println("llama: creating InfluxDB writer for", url)
	ifdbc, err := influxdb_client.NewHTTPClient(influxdb_client.HTTPConfig{
		Addr:     url,
		Username: user,
		Password: pass,
		Timeout:  DefaultWriteTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &InfluxDbWriter{client: ifdbc, db: db}, nil
}

// InfluxDbWriter writes InfluxPoints to a database.
type InfluxDbWriter struct {
	client influxdb_client.Client
	db     string
}

// Close releases the underlying HTTP connection.
func (w *InfluxDbWriter) Close() error {
	return w.client.Close()
}

// Batch converts points into an InfluxDB batch for the writer's database.
// A point with an unwritten field (nil) is skipped for that field, so a
// target with only a fresh loss datapoint and no RTT yet still writes.
func (w *InfluxDbWriter) Batch(points []InfluxPoint) (influxdb_client.BatchPoints, error) {
	bp, err := influxdb_client.NewBatchPoints(influxdb_client.BatchPointsConfig{
		Database:  w.db,
		Precision: "s",
	})
	if err != nil {
		return nil, err
	}
	for _, dp := range points {
		fields := make(map[string]interface{}, len(dp.Fields))
		for key, value := range dp.Fields {
			if value == nil {
				continue
			}
			fields[key] = *value
		}
		if len(fields) == 0 {
			continue
		}
		pt, err := influxdb_client.NewPoint(dp.Measurement, dp.Tags, fields, time.Unix(0, dp.Time))
		if err != nil {
			return nil, err
		}
		bp.AddPoint(pt)
	}
	return bp, nil
}

// BatchWrite batches and writes points in one call.
func (w *InfluxDbWriter) BatchWrite(points []InfluxPoint) error {
	batch, err := w.Batch(points)
	if err != nil {
		return fmt.Errorf("llama: building batch: %w", err)
	}
	start := time.Now()
	if err := w.client.Write(batch); err != nil {
		return fmt.Errorf("llama: writing batch after %s: %w", time.Since(start), err)
	}
	log.Println("llama: DB write completed in", time.Since(start))
	return nil
}

// collectorJob tracks a single collector's scrape state: whether a cycle is
// currently in flight, so a new tick can be skipped rather than queued.
type collectorJob struct {
	client Client
	busy   int32 // accessed atomically
}

// Scraper pulls stats from a fixed set of collectors and writes them to a
// TSDB. Each Run scrapes every collector concurrently; if Run is called
// again while a collector's scrape from an earlier Run is still in flight,
// that collector is skipped rather than scraped concurrently with itself.
type Scraper struct {
	writer *InfluxDbWriter
	jobs   []*collectorJob
}

// NewScraper builds a Scraper for the given collector hostnames, all
// reachable on cPort, writing into the named InfluxDB database.
func NewScraper(collectors []string, cPort, dbHost, dbPort, dbUser, dbPass, dbName string) (*Scraper, error) {
	jobs := make([]*collectorJob, 0, len(collectors))
	for _, host := range collectors {
		jobs = append(jobs, &collectorJob{client: NewClient(host, cPort)})
	}
	writer, err := NewInfluxDbWriter(dbHost, dbPort, dbUser, dbPass, dbName)
	if err != nil {
		return nil, err
	}
	return &Scraper{writer: writer, jobs: jobs}, nil
}

// Run performs one scrape cycle across all collectors concurrently, waiting
// for every non-skipped collector to finish before returning.
func (s *Scraper) Run() {
	log.Println("llama: scrape cycle starting")
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		if !atomic.CompareAndSwapInt32(&job.busy, 0, 1) {
			log.Println(job.client.Hostname(), "- previous cycle still running, skipping tick")
			continue
		}
		wg.Add(1)
		go func(j *collectorJob) {
			defer wg.Done()
			defer atomic.StoreInt32(&j.busy, 0)
			s.scrapeOne(j.client)
		}(job)
	}
	wg.Wait()
	log.Println("llama: scrape cycle complete")
}

func (s *Scraper) scrapeOne(collector Client) {
	log.Println(collector.Hostname(), "- pulling datapoints")
	points, err := collector.GetPoints()
	if err != nil {
		log.Println(collector.Hostname(), "- collection failed:", err)
		return
	}
	log.Println(collector.Hostname(), "- pulled", len(points), "datapoints")
	if err := s.writer.BatchWrite(points); err != nil {
		log.Println(collector.Hostname(), "- write failed:", err)
		return
	}
	log.Println(collector.Hostname(), "- wrote datapoints")
}

// Close releases the underlying TSDB connection.
func (s *Scraper) Close() error {
	return s.writer.Close()
}

// ScraperRunner wraps a Scraper in a fixed-interval Scheduler, mirroring
// the Collector's own run loop. The Scheduler calls Scraper.Run
// synchronously and Run waits for every collector, so cycles never
// overlap: a cycle that outlasts the interval delays the next cycle for all
// collectors instead of skipping it, and Run's busy-collector skip does not
// come into play.
type ScraperRunner struct {
	Interval time.Duration

	scraper   *Scraper
	scheduler *Scheduler
}

// NewScraperRunner builds a ScraperRunner around an existing Scraper.
func NewScraperRunner(scraper *Scraper, interval time.Duration) *ScraperRunner {
	r := &ScraperRunner{Interval: interval, scraper: scraper}
	r.scheduler = NewScheduler(interval, scraper.Run)
	return r
}

// Run starts the scrape scheduler.
func (r *ScraperRunner) Run() {
	r.scheduler.Run()
}

// Stop drains any in-flight scrape cycle and closes the TSDB connection.
func (r *ScraperRunner) Stop() {
	r.scheduler.Stop()
	if err := r.scraper.Close(); err != nil {
		HandleMinorError(err)
	}
}
