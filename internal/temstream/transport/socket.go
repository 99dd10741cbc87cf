// Package transport implements FramedSocket: a pure byte pipe over plain
// TCP or TLS. It knows nothing about frames, headers, or Packets — that
// belongs to the connection package sitting above it.
package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
)

// Socket is the one abstraction shared by the three concrete transport
// variants: plain TCP, TLS client (dial), and TLS server (accept result).
type Socket interface {
	// Read polls for readable data with the given timeout. If readAll,
	// it drains up to ~64 KiB or until the socket would block; otherwise
	// it returns after the first chunk read. Bytes read are appended to
	// buf. ok is false on hangup or error; a timeout with no data
	// available is not a failure and returns true.
	Read(timeout time.Duration, buf *[]byte, readAll bool) (ok bool)

	// Write writes all of b, retrying on partial writes. Returns false
	// on any write error.
	Write(b []byte) (ok bool)

	// PeerIPAndPort reports the remote endpoint.
	PeerIPAndPort() (ip string, port uint16)

	// Close shuts the socket down. Best-effort: TLS variants send a
	// close-notify before closing the underlying descriptor.
	Close() error
}

const readChunk = 64 * 1024

// tcpSocket wraps a plain net.Conn (TCP).
type tcpSocket struct {
	conn net.Conn
}

// Dial connects a plain TCP socket to host:port.
func Dial(host string, port uint16) (Socket, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, classifyDialErr(err)
	}
	return &tcpSocket{conn: conn}, nil
}

// DialTLS connects a TLS client socket to host:port using cfg (nil uses a
// default config with the server name set to host).
func DialTLS(host string, port uint16, cfg *tls.Config) (Socket, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if cfg == nil {
		cfg = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, cfg)
	if err != nil {
		return nil, classifyDialErr(err)
	}
	return &tlsSocket{conn: conn}, nil
}

func classifyDialErr(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return temerrors.NewTimeoutError("transport.connect", 10*time.Second, err)
	}
	return temerrors.NewTransportError("transport.connect", err)
}

func (s *tcpSocket) Read(timeout time.Duration, buf *[]byte, readAll bool) bool {
	return readLoop(s.conn, timeout, buf, readAll)
}

func (s *tcpSocket) Write(b []byte) bool { return writeAll(s.conn, b) }

func (s *tcpSocket) PeerIPAndPort() (string, uint16) { return peerIPAndPort(s.conn) }

func (s *tcpSocket) Close() error { return s.conn.Close() }

// tlsSocket wraps a *tls.Conn, used for both the client-dial and the
// server-accept variants, so the read/write/close logic is shared. A dialed
// conn has completed its handshake; an accepted one runs the server-side
// handshake on its first Read or Write.
type tlsSocket struct {
	conn *tls.Conn
}

func (s *tlsSocket) Read(timeout time.Duration, buf *[]byte, readAll bool) bool {
	return readLoop(s.conn, timeout, buf, readAll)
}

func (s *tlsSocket) Write(b []byte) bool { return writeAll(s.conn, b) }

func (s *tlsSocket) PeerIPAndPort() (string, uint16) { return peerIPAndPort(s.conn) }

func (s *tlsSocket) Close() error {
	_ = s.conn.CloseWrite()
	return s.conn.Close()
}

// readLoop implements the shared Read contract for net.Conn-backed sockets.
// The first read blocks up to timeout waiting for the initial data. A
// timeout on that first read means no data arrived within the deadline, not
// hangup or error, so it is not a failure — the caller's poll loop is meant
// to come back around. When readAll is set, subsequent reads use a short,
// non-blocking-equivalent deadline: a timeout there means "nothing more
// readily available", which is also success (we return what we have).
func readLoop(conn net.Conn, timeout time.Duration, buf *[]byte, readAll bool) bool {
	defer conn.SetReadDeadline(time.Time{})
	chunk := make([]byte, readChunk)

	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}
	n, err := conn.Read(chunk)
	if n > 0 {
		*buf = append(*buf, chunk[:n]...)
	}
	if err != nil {
		if ne, isNetErr := err.(net.Error); isNetErr && ne.Timeout() {
			return true
		}
		return false
	}
	if !readAll || n < readChunk {
		return true
	}

	const drainDeadline = 5 * time.Millisecond
	for {
		_ = conn.SetReadDeadline(time.Now().Add(drainDeadline))
		n, err := conn.Read(chunk)
		if n > 0 {
			*buf = append(*buf, chunk[:n]...)
		}
		if err != nil {
			return true
		}
		if n < readChunk {
			return true
		}
	}
}

func writeAll(conn net.Conn, b []byte) bool {
	for len(b) > 0 {
		n, err := conn.Write(b)
		if err != nil {
			return false
		}
		b = b[n:]
	}
	return true
}

func peerIPAndPort(conn net.Conn) (string, uint16) {
	addr := conn.RemoteAddr()
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	var port uint16
	fmt.Sscanf(portStr, "%d", &port)
	return host, port
}
