package llama

import (
	"testing"
	"time"
)

func TestReflectorEchoesAndReprogramsTos(t *testing.T) {
	reflector, err := NewReflector(":0", nil)
	if err != nil {
		t.Fatal("failed to build reflector:", err)
	}
	defer reflector.Close()
	go reflector.Run()

	client, err := NewSocket(":0", 0, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	addr := reflector.sock.LocalAddr()
	payload, err := EncodeProbe(184, nowMillis())
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Send(addr.IP, addr.Port, payload); err != nil {
		t.Fatal("send to reflector failed:", err)
	}

	reply, _, err := client.Recv()
	if err != nil {
		t.Fatal("no reply from reflector:", err)
	}
	probe, err := DecodeProbe(reply)
	if err != nil {
		t.Fatal("reflected frame didn't decode:", err)
	}
	if probe.Tos != 184 {
		t.Error("expected echoed tos 184, got", probe.Tos)
	}
	reflectorTos, err := reflector.sock.Tos()
	if err != nil {
		t.Fatal("reading the reflector's TOS failed:", err)
	}
	if reflectorTos != 184 {
		t.Error("expected the reflector socket's TOS to be reprogrammed to 184, got", reflectorTos)
	}
}

func TestReflectorDropsMalformedFrames(t *testing.T) {
	reflector, err := NewReflector(":0", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reflector.Close()
	go reflector.Run()

	client, err := NewSocket(":0", 0, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	addr := reflector.sock.LocalAddr()
	if err := client.Send(addr.IP, addr.Port, []byte("not a probe")); err != nil {
		t.Fatal(err)
	}

	_, _, err = client.Recv()
	if err != ErrTimeout {
		t.Error("expected no reply (ErrTimeout) for a malformed frame, got", err)
	}
}
