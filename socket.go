package llama

import (
	"errors"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// ErrTimeout is returned by Socket.Recv when no datagram arrives within the
// configured read timeout.
var ErrTimeout = errors.New("llama: receive timed out")

const recvBufSize = 512

// Socket wraps a single connection-less IPv4 UDP socket, adding the
// TOS-in-payload capability LLAMA relies on to avoid requiring raw sockets
// or CAP_NET_RAW: programming IP_TOS on an unprivileged UDP socket is fine,
// but reading it back cheaply requires this wrapper's Tos/SetTos pair.
type Socket struct {
	conn *net.UDPConn
}

// NewSocket opens a UDP socket bound to localAddr (use ":0" for an
// ephemeral port on all interfaces), with the given TOS and read timeout.
func NewSocket(localAddr string, tos byte, timeout time.Duration) (*Socket, error) {
	addr, err := net.ResolveUDPAddr("udp4", localAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	s := &Socket{conn: conn}
	if err := s.SetTos(tos); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.conn.SetReadBuffer(DefaultRcvBuff); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.SetTimeout(timeout); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// SetTos programs IP_TOS on the socket. Only the low 8 bits are honored.
func (s *Socket) SetTos(tos byte) error {
	file, err := s.conn.File()
	if err != nil {
		return err
	}
	defer fileCloseHandler(file)
	return unix.SetsockoptByte(int(file.Fd()), unix.IPPROTO_IP, unix.IP_TOS, tos)
}

// Tos reads back the currently programmed IP_TOS value.
func (s *Socket) Tos() (byte, error) {
	file, err := s.conn.File()
	if err != nil {
		return 0, err
	}
	defer fileCloseHandler(file)
	value, err := unix.GetsockoptInt(int(file.Fd()), unix.IPPROTO_IP, unix.IP_TOS)
	if err != nil {
		return 0, err
	}
	return byte(value), nil
}

// SetTimeout sets the read deadline used by Recv. Writes never block
// materially, so no write deadline is applied.
func (s *Socket) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return s.conn.SetReadDeadline(time.Time{})
	}
	return s.conn.SetReadDeadline(time.Now().Add(timeout))
}

// Send fires a payload at the given target, fire-and-forget: failures are
// reported but never retried.
func (s *Socket) Send(ip net.IP, port int, payload []byte) error {
	_, err := s.conn.WriteToUDP(payload, &net.UDPAddr{IP: ip, Port: port})
	return err
}

// Recv reads a single datagram of up to 512 bytes, returning ErrTimeout if
// none arrives before the configured read deadline.
func (s *Socket) Recv() ([]byte, *net.UDPAddr, error) {
	buf := make([]byte, recvBufSize)
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, ErrTimeout
		}
		return nil, nil, err
	}
	return buf[:n], addr, nil
}

// LocalAddr returns the socket's local address.
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	return s.conn.Close()
}
