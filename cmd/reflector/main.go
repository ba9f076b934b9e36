package main

import (
	"flag"
	"log"
	"strconv"

	"github.com/llama-metrics/llama"
	"golang.org/x/time/rate"
)

var (
	port   = flag.Int("port", 8100, "Port to listen on for probes")
	maxPPS = flag.Float64("max-pps", 5000, "Rate limit on packets per second; exceeding it buffers and may drop")
)

func main() {
	flag.Parse()

	limiter := rate.NewLimiter(rate.Limit(*maxPPS), int(*maxPPS))

	reflector, err := llama.NewReflector(":"+strconv.Itoa(*port), limiter)
	llama.HandleFatalError(err)
	defer reflector.Close()

	log.Println("llama: reflector listening on port", *port)
	llama.HandleFatalError(reflector.Run())
}
