package llama

import (
	"log"
	"time"
)

// Scheduler fires a single job on a fixed interval. Stop signals the
// ticker to stop accepting new ticks and waits for any in-flight job to
// drain before returning — there is no hard timeout on that drain, since
// the worst case is bounded by the Sender's own per-probe timeout.
type Scheduler struct {
	interval time.Duration
	job      func()

	stop chan struct{}
	done chan struct{}
}

// NewScheduler builds a Scheduler that calls job every interval.
func NewScheduler(interval time.Duration, job func()) *Scheduler {
	return &Scheduler{
		interval: interval,
		job:      job,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run starts the ticker loop in a background goroutine.
func (s *Scheduler) Run() {
	go s.run()
}

func (s *Scheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.job()
		}
	}
}

// Stop signals the scheduler to stop ticking and blocks until the current
// tick (if any) has finished running.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Collector ties a target table, a fixed-interval collection scheduler,
// and the HTTP surface together into the single long-running process
// described by the spec.
type Collector struct {
	ConfigPath string
	Bind       string
	Interval   time.Duration
	Count      int
	Tos        byte
	Port       int
	Timeout    time.Duration

	collection *Collection
	scheduler  *Scheduler
	api        *API
	quit       chan struct{}
}

// Setup loads configuration, builds the target table, and wires the
// scheduler and HTTP surface together. Must be called before Run.
func (c *Collector) Setup() {
	start := time.Now()
	log.Println("llama: loading collector config from", c.ConfigPath)
	cfg, err := LoadTargetConfig(c.ConfigPath)
	HandleFatalError(err)

	if c.Timeout <= 0 {
		c.Timeout = DefaultReadTimeout
	}
	c.collection = NewCollection(cfg.Targets(), c.Port, c.Count, c.Tos, c.Timeout)
	c.scheduler = NewScheduler(c.Interval, c.collection.Collect)
	c.api = NewAPI(c.collection, c.Interval, c.Bind)
	c.quit = make(chan struct{})
	c.api.OnQuit(c.Stop)
	c.api.RecordSetupTime(time.Since(start))
}

// Reload re-reads the configuration file and replaces the target table in
// place, without restarting the scheduler or HTTP server.
func (c *Collector) Reload() {
	log.Println("llama: reloading collector config")
	cfg, err := LoadTargetConfig(c.ConfigPath)
	if err != nil {
		HandleMinorError(err)
		return
	}
	c.collection.SetTargets(cfg.Targets())
	log.Println("llama: reload complete,", c.collection.TargetCount(), "targets")
}

// Run starts the HTTP server and the collection scheduler.
func (c *Collector) Run() {
	log.Println("llama: starting collector")
	c.api.Run()
	c.scheduler.Run()
}

// Stop gracefully shuts the collector down: stop the scheduler (draining
// any in-flight cycle), then close the HTTP listener. Safe to call more
// than once.
func (c *Collector) Stop() {
	select {
	case <-c.quit:
		return
	default:
		close(c.quit)
	}
	c.scheduler.Stop()
	if err := c.api.Stop(); err != nil {
		HandleMinorError(err)
	}
}
