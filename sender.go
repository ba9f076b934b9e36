package llama

import (
	"fmt"
	"net"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MaxBatchSize and MaxWorkers are the Sender's tuning constants: batches of
// up to 50 sockets, dispatched across a pool of up to 50 concurrent
// workers. Exposed so callers can override them, but the defaults match
// the values the original implementation settled on.
var (
	MaxBatchSize = 50
	MaxWorkers   = 50
)

var resolveCache = gocache.New(30*time.Second, time.Minute)

// resolveTarget resolves target (an IPv4 literal or hostname) to a net.IP,
// caching hostname lookups briefly so a single collection cycle against
// many ports on the same host doesn't hammer the resolver.
func resolveTarget(target string) (net.IP, error) {
	if ip := net.ParseIP(target); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("llama: %s is not an IPv4 address", target)
	}
	if cached, ok := resolveCache.Get(target); ok {
		return cached.(net.IP), nil
	}
	addrs, err := net.LookupIP(target)
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if ip4 := addr.To4(); ip4 != nil {
			resolveCache.SetDefault(target, ip4)
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("llama: %s has no IPv4 address", target)
}

// ProbeResult is a single completed (or timed-out) probe, as observed by
// the sender.
type ProbeResult struct {
	Tos    byte
	SentMs float64
	RcvdMs float64
	RttMs  float64
	Lost   bool
}

// Stats summarizes a set of ProbeResults per spec: loss_pct is an
// un-rounded float percentage; rtt_min/avg/max are computed over every
// result's RttMs, including the zero value synthesized for lost probes.
type Stats struct {
	Sent    int
	Lost    int
	LossPct float64
	RTTMin  float64
	RTTAvg  float64
	RTTMax  float64
}

// ReduceStats computes a Stats summary over results. Returns an all-zero
// Stats for an empty result set.
func ReduceStats(results []ProbeResult) Stats {
	sent := len(results)
	if sent == 0 {
		return Stats{}
	}
	lost := 0
	var total, min, max float64
	min = results[0].RttMs
	for _, r := range results {
		if r.Lost {
			lost++
		}
		total += r.RttMs
		if r.RttMs < min {
			min = r.RttMs
		}
		if r.RttMs > max {
			max = r.RttMs
		}
	}
	return Stats{
		Sent:    sent,
		Lost:    lost,
		LossPct: 100 * float64(lost) / float64(sent),
		RTTMin:  min,
		RTTAvg:  total / float64(sent),
		RTTMax:  max,
	}
}

// Sender sends a fixed count of independent LLAMA probes at a single
// target and port, and reduces the replies into Stats.
//
// One socket is allocated per outstanding probe: the reply to probe i
// arrives on socket i or not at all, so no correlation ID is needed to
// pair replies with requests. Sockets are partitioned into batches of up
// to MaxBatchSize and processed by a pool of up to MaxWorkers concurrent
// workers, each handling its batch strictly sequentially (send, then recv,
// per socket).
type Sender struct {
	Target  string
	Port    int
	Count   int
	Tos     byte
	Timeout time.Duration

	mu      sync.Mutex
	results []ProbeResult
}

// NewSender constructs a Sender for the given target/port/count/tos/timeout.
func NewSender(target string, port, count int, tos byte, timeout time.Duration) *Sender {
	return &Sender{
		Target:  target,
		Port:    port,
		Count:   count,
		Tos:     tos,
		Timeout: timeout,
	}
}

// Run allocates Count sockets, dispatches them in batches across a bounded
// worker pool, and blocks until every batch has completed. Socket
// allocation failure is logged and yields a zero-result run (callers will
// see an all-zero Stats). Every allocated socket is closed on every exit
// path.
func (s *Sender) Run() {
	s.results = nil

	ip, err := resolveTarget(s.Target)
	if err != nil {
		HandleMinorError(err)
		return
	}

	sockets := make([]*Socket, 0, s.Count)
	for i := 0; i < s.Count; i++ {
		sock, err := NewSocket(":0", s.Tos, s.Timeout)
		if err != nil {
			HandleMinorError(fmt.Errorf("llama: socket allocation failed: %w", err))
			for _, allocated := range sockets {
				allocated.Close()
			}
			return
		}
		sockets = append(sockets, sock)
	}
	defer func() {
		for _, sock := range sockets {
			sock.Close()
		}
	}()

	batches := batchSockets(sockets, MaxBatchSize)

	sem := make(chan struct{}, MaxWorkers)
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex
	var errCount int

	for _, batch := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(batch []*Socket) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					errMu.Lock()
					errCount++
					if firstErr == nil {
						firstErr = fmt.Errorf("llama: sender worker panic: %v", r)
					}
					errMu.Unlock()
				}
			}()
			s.sendAndRecvBatch(batch, ip)
		}(batch)
	}
	wg.Wait()

	if errCount > 0 {
		HandleMinorError(fmt.Errorf("llama: %d sender worker(s) failed, logging one representative: %w", errCount, firstErr))
	}
}

// sendAndRecvBatch sends one probe on each socket in batch, in order,
// receiving the reply (or timeout) before moving to the next socket.
func (s *Sender) sendAndRecvBatch(batch []*Socket, ip net.IP) {
	var local []ProbeResult
	for _, sock := range batch {
		sentMs := nowMillis()
		payload, err := EncodeProbe(s.Tos, sentMs)
		if err != nil {
			HandleMinorError(err)
			local = append(local, ProbeResult{Tos: s.Tos, Lost: true})
			continue
		}
		if err := sock.Send(ip, s.Port, payload); err != nil {
			HandleMinorError(err)
			local = append(local, ProbeResult{Tos: s.Tos, SentMs: sentMs, Lost: true})
			continue
		}
		reply, _, err := sock.Recv()
		if err != nil {
			if err != ErrTimeout {
				HandleMinorError(err)
			}
			local = append(local, ProbeResult{Tos: s.Tos, SentMs: sentMs, Lost: true})
			continue
		}
		rcvdMs := nowMillis()
		decoded, err := DecodeProbe(reply)
		if err != nil {
			HandleMinorError(err)
			local = append(local, ProbeResult{Tos: s.Tos, SentMs: sentMs, Lost: true})
			continue
		}
		local = append(local, ProbeResult{
			Tos:    decoded.Tos,
			SentMs: decoded.SentMs,
			RcvdMs: rcvdMs,
			RttMs:  rcvdMs - decoded.SentMs,
			Lost:   false,
		})
	}
	s.mu.Lock()
	s.results = append(s.results, local...)
	s.mu.Unlock()
}

// Results returns the probe results collected by the most recent Run.
func (s *Sender) Results() []ProbeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProbeResult, len(s.results))
	copy(out, s.results)
	return out
}

// Stats reduces the most recent Run's results into a Stats summary.
func (s *Sender) Stats() Stats {
	return ReduceStats(s.Results())
}

// batchSockets splits sockets into chunks of up to size, matching the
// original's util.array_split behavior.
func batchSockets(sockets []*Socket, size int) [][]*Socket {
	var batches [][]*Socket
	for i := 0; i < len(sockets); i += size {
		end := i + size
		if end > len(sockets) {
			end = len(sockets)
		}
		batches = append(batches, sockets[i:end])
	}
	return batches
}
