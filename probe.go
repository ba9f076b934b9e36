// Package llama implements the LLAMA loss/latency measurement system: a
// fixed-format UDP probe, a batched sender, a reflector, and a collector
// that exposes rolling statistics over HTTP.
package llama

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ProbeSize is the exact on-wire size of a probe datagram, in bytes.
const ProbeSize = 36

const signatureSize = 10

// signatureText is "__llama__" null-padded to 10 bytes. Used to reject
// foreign UDP traffic arriving on a LLAMA port.
var signatureText = [signatureSize]byte{'_', '_', 'l', 'l', 'a', 'm', 'a', '_', '_', 0}

// ProbeData is the decoded form of a 36-byte probe datagram.
//
// Signature, Tos, and SentMs are set by the sender at encode time. RcvdMs,
// RttMs, and Lost are zero on the wire and filled in by the sender after a
// reply arrives (or synthesized on timeout).
type ProbeData struct {
	Signature [signatureSize]byte
	Tos       byte
	SentMs    float64
	RcvdMs    float64
	RttMs     float64
	Lost      uint8
}

// MalformedProbeError indicates a datagram that isn't a valid LLAMA probe.
type MalformedProbeError struct {
	reason string
}

func (e *MalformedProbeError) Error() string {
	return fmt.Sprintf("malformed probe: %s", e.reason)
}

// EncodeProbe packs a fresh outbound probe: signature, tos, and the current
// send timestamp. RcvdMs, RttMs, and Lost are left at their wire-zero value.
func EncodeProbe(tos byte, sentMs float64) ([]byte, error) {
	data := ProbeData{
		Signature: signatureText,
		Tos:       tos,
		SentMs:    sentMs,
	}
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, &data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeProbe unpacks a received datagram into a ProbeData, rejecting it if
// the length is wrong, the signature doesn't match, or the lost byte isn't
// a valid boolean (0 or 1).
func DecodeProbe(raw []byte) (*ProbeData, error) {
	if len(raw) != ProbeSize {
		return nil, &MalformedProbeError{reason: fmt.Sprintf("length %d, want %d", len(raw), ProbeSize)}
	}
	data := &ProbeData{}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, data); err != nil {
		return nil, &MalformedProbeError{reason: err.Error()}
	}
	if data.Signature != signatureText {
		return nil, &MalformedProbeError{reason: "signature mismatch"}
	}
	if data.Lost > 1 {
		return nil, &MalformedProbeError{reason: "invalid lost byte"}
	}
	return data, nil
}
