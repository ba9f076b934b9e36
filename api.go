package llama

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"
)

const statusPageTemplate = `<!DOCTYPE html>
<html>
<head><title>LLAMA Collector</title></head>
<body>
<h1>LLAMA Collector</h1>
<p>Targets: {{.TargetCount}}</p>
<p>Interval: {{.Interval}}</p>
<p>Uptime: {{.Uptime}}</p>
<p>Setup time: {{.SetupTime}}</p>
</body>
</html>
`

// statusPageData feeds the "/" template.
type statusPageData struct {
	TargetCount int
	Interval    time.Duration
	Uptime      time.Duration
	SetupTime   time.Duration
}

// API is the HTTP surface exposed by a Collector: a read-only status page,
// a liveness probe, the rolling latency snapshot, and the flattened TSDB
// view the Scraper pulls from.
type API struct {
	collection *Collection
	interval   time.Duration
	startTime  time.Time
	setupTime  time.Duration

	server   *http.Server
	tmpl     *template.Template
	onQuit   func()
}

// NewAPI builds an API bound to addr (e.g. "0.0.0.0:5000"), serving
// collection's current snapshot.
func NewAPI(collection *Collection, interval time.Duration, addr string) *API {
	tmpl := template.Must(template.New("status").Parse(statusPageTemplate))
	a := &API{
		collection: collection,
		interval:   interval,
		startTime:  time.Now(),
		tmpl:       tmpl,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", a.indexHandler)
	mux.HandleFunc("/status", a.statusHandler)
	mux.HandleFunc("/latency", a.latencyHandler)
	mux.HandleFunc("/influxdata", a.influxHandler)
	mux.HandleFunc("/quitquit", a.quitquitHandler)
	a.server = &http.Server{Addr: addr, Handler: mux}
	return a
}

// OnQuit registers the callback invoked when /quitquit is hit, before the
// HTTP listener itself is closed. Used by Collector to stop the
// scheduler and let any in-flight cycle drain.
func (a *API) OnQuit(fn func()) {
	a.onQuit = fn
}

// RecordSetupTime stamps how long startup took, surfaced on the status page.
func (a *API) RecordSetupTime(d time.Duration) {
	a.setupTime = d
}

func (a *API) indexHandler(rw http.ResponseWriter, req *http.Request) {
	rw.Header().Set("Content-Type", "text/html")
	data := statusPageData{
		TargetCount: a.collection.TargetCount(),
		Interval:    a.interval,
		Uptime:      time.Since(a.startTime),
		SetupTime:   a.setupTime,
	}
	if err := a.tmpl.Execute(rw, data); err != nil {
		HandleMinorError(err)
	}
}

func (a *API) statusHandler(rw http.ResponseWriter, req *http.Request) {
	rw.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(rw, "ok")
}

func (a *API) latencyHandler(rw http.ResponseWriter, req *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(a.collection.Stats()); err != nil {
		HandleMinorError(err)
		rw.WriteHeader(http.StatusInternalServerError)
	}
}

func (a *API) influxHandler(rw http.ResponseWriter, req *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(a.collection.StatsInflux()); err != nil {
		HandleMinorError(err)
		rw.WriteHeader(http.StatusInternalServerError)
	}
}

func (a *API) quitquitHandler(rw http.ResponseWriter, req *http.Request) {
	log.Println("llama: /quitquit received, shutting down")
	rw.Header().Set("Content-Type", "text/plain")
	rw.WriteHeader(http.StatusOK)
	fmt.Fprint(rw, "quitting")
	if a.onQuit != nil {
		go a.onQuit()
	}
}

// Run starts serving in a background goroutine.
func (a *API) Run() {
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("llama: API server failed: ", err)
		}
	}()
}

// Stop closes the listener, causing Run's goroutine to exit.
func (a *API) Stop() error {
	return a.server.Close()
}
