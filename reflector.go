package llama

import (
	"context"
	"log"

	"golang.org/x/time/rate"
)

// Reflector listens on a single UDP port, echoing back valid LLAMA probes
// with the socket's TOS byte reprogrammed to match the probe's requested
// value. It is strictly single-threaded by design: ordering and per-flow
// fairness are left to the kernel's socket receive buffer.
type Reflector struct {
	sock    *Socket
	limiter *rate.Limiter

	processed int
	malformed int
}

// NewReflector binds a reflector to the given local address (e.g.
// ":60000"). A nil limiter disables packet-rate limiting.
func NewReflector(localAddr string, limiter *rate.Limiter) (*Reflector, error) {
	sock, err := NewSocket(localAddr, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Reflector{sock: sock, limiter: limiter}, nil
}

// Run loops forever: receive, validate, reprogram TOS, echo. Malformed
// frames are dropped silently (but counted) rather than answered. Returns
// only if the underlying socket is closed, recv fails unrecoverably, or the
// rate limiter's Wait returns an error.
func (r *Reflector) Run() error {
	log.Println("llama: reflector listening on", r.sock.LocalAddr())
	currentTos := byte(0)
	for {
		if r.limiter != nil {
			if err := r.limiter.Wait(context.Background()); err != nil {
				return err
			}
		}

		raw, addr, err := r.sock.Recv()
		if err != nil {
			if err == ErrTimeout {
				continue
			}
			return err
		}

		probe, err := DecodeProbe(raw)
		if err != nil {
			r.malformed++
			if r.malformed%512 == 0 {
				log.Println("llama: reflector has dropped", r.malformed, "malformed frames")
			}
			continue
		}

		if probe.Tos != currentTos {
			if err := r.sock.SetTos(probe.Tos); err != nil {
				HandleMinorError(err)
			} else {
				currentTos = probe.Tos
			}
		}

		if err := r.sock.Send(addr.IP, addr.Port, raw); err != nil {
			HandleMinorError(err)
			continue
		}

		r.processed++
		if r.processed%512 == 0 {
			log.Println("llama: reflector has processed", r.processed, "frames")
		}
	}
}

// Close releases the reflector's socket.
func (r *Reflector) Close() error {
	return r.sock.Close()
}
