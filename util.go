package llama

import (
	"log"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// DefaultRcvBuff is the socket receive buffer size used throughout,
	// since the kernel default doesn't scale well with many sockets.
	DefaultRcvBuff = 2097600 // just over 2MiB (2MiB is 2097152)
	// DefaultReadTimeout is used when a caller doesn't specify one.
	DefaultReadTimeout = 200 * time.Millisecond
)

// HandleFatalError logs and exits the process if err is non-nil.
//
// Reserved for startup-time conditions (config load, socket bind) that
// leave the process with nothing useful to do.
func HandleFatalError(err error) {
	if err != nil {
		log.Fatal("ERROR: ", err)
	}
}

// HandleMinorError logs and continues if err is non-nil.
//
// Reserved for per-probe/per-request conditions that shouldn't interrupt
// an otherwise-healthy process.
func HandleMinorError(err error) {
	if err != nil {
		log.Println("ERROR: ", err)
	}
}

// fileCloseHandler closes an open File opened via (*net.UDPConn).File().
//
// NOTE: conn.File() dups the descriptor into blocking mode. If left that
// way, subsequent SetReadDeadline calls on the original conn silently stop
// working. Flip it back to non-blocking before closing the dup.
func fileCloseHandler(f *os.File) {
	err := unix.SetNonblock(int(f.Fd()), true)
	HandleMinorError(err)
	err = f.Close()
	HandleMinorError(err)
}

// nowMillis returns the current wall-clock time as float64 milliseconds
// since the Unix epoch, matching the probe wire format's sent_ms/rcvd_ms.
func nowMillis() float64 {
	return float64(time.Now().UnixNano()) / 1e6
}
