package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/llama-metrics/llama"
	"golang.org/x/sys/unix"
)

var (
	bind      = flag.String("bind", "0.0.0.0:5000", "Address to serve the HTTP API on")
	config    = flag.String("config", "/etc/llama/targets.yaml", "Path to the target configuration file")
	interval  = flag.Duration("interval", 60*time.Second, "How often to probe every target")
	count     = flag.Int("count", 10, "Number of probes sent to each target per interval")
	tos       = flag.Int("tos", 0, "TOS/DSCP byte programmed on outgoing probes")
	probePort = flag.Int("port", 8100, "UDP port probes are sent to on each target's reflector")
	timeout   = flag.Duration("timeout", llama.DefaultReadTimeout, "Per-probe receive timeout")
	useHping3 = flag.Bool("hping3", false, "Use hping3 TCP-SYN probing instead of UDP (not implemented)")
)

func main() {
	flag.Parse()

	if *useHping3 {
		log.Fatal("llama: --hping3 is not implemented; this collector only supports the UDP probe engine")
	}

	start := time.Now()
	collector := &llama.Collector{
		ConfigPath: *config,
		Bind:       *bind,
		Interval:   *interval,
		Count:      *count,
		Tos:        byte(*tos),
		Port:       *probePort,
		Timeout:    *timeout,
	}
	collector.Setup()
	collector.Run()

	setupElapsed := time.Since(start)
	log.Println("llama: collector ready, setup took", setupElapsed)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)
	for sig := range sigChan {
		switch sig {
		case unix.SIGINT, unix.SIGTERM:
			log.Printf("llama: received %s, shutting down", sig)
			collector.Stop()
			return
		case unix.SIGHUP:
			log.Printf("llama: received %s, reloading config", sig)
			collector.Reload()
		}
	}
}
