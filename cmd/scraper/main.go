// Command scraper pulls stats from a fixed set of collectors and writes
// them to an InfluxDB-compatible TSDB on a fixed interval.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/llama-metrics/llama"
	"golang.org/x/sys/unix"
)

var (
	interval      = flag.Duration("interval", 30*time.Second, "How often to pull stats from collectors")
	influxHost    = flag.String("influx-host", "127.0.0.1", "Hostname/IP of the InfluxDB server")
	influxPort    = flag.String("influx-port", "8086", "Port the InfluxDB server is listening on")
	influxDb      = flag.String("influx-db", "llama", "InfluxDB database name")
	influxUser    = flag.String("influx-user", "", "InfluxDB username")
	influxPass    = flag.String("influx-pass", "", "InfluxDB password")
	collectorPort = flag.String("collector-port", "5000", "Port collectors are listening on")
)

func main() {
	flag.Parse()

	hosts := flag.Args()
	if len(hosts) == 0 {
		if env := os.Getenv("LLAMA_COLLECTORS"); env != "" {
			hosts = strings.Split(env, ",")
		}
	}
	if len(hosts) == 0 {
		log.Fatal("llama: no collectors given; pass one or more as positional arguments")
	}

	scraper, err := llama.NewScraper(hosts, *collectorPort, *influxHost, *influxPort, *influxUser, *influxPass, *influxDb)
	if err != nil {
		log.Fatal("llama: unable to create scraper: ", err)
	}

	runner := llama.NewScraperRunner(scraper, *interval)
	runner.Run()
	log.Println("llama: scraping", len(hosts), "collectors every", *interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGINT, unix.SIGTERM)
	sig := <-sigChan
	log.Printf("llama: received %s, shutting down", sig)
	runner.Stop()
}
