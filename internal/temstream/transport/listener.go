package transport

import (
	"crypto/tls"
	"net"
	"time"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
)

// Listener accepts incoming FramedSockets. A plain TCP listener yields
// tcpSocket values; a TLS listener yields tlsSocket values whose
// server-side handshake runs on their first Read or Write.
type Listener struct {
	ln  net.Listener
	tls bool
}

// Listen binds a plain TCP listener on addr (host:port).
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, temerrors.NewTransportError("transport.listen", err)
	}
	return &Listener{ln: ln}, nil
}

// ListenTLS binds a TLS listener on addr using cfg.
func ListenTLS(addr string, cfg *tls.Config) (*Listener, error) {
	ln, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return nil, temerrors.NewTransportError("transport.listen", err)
	}
	return &Listener{ln: ln, tls: true}, nil
}

// Accept blocks up to timeout for an incoming connection. A zero timeout
// blocks indefinitely. The timeout is applied only to a plain TCP listener;
// on a TLS listener Accept blocks until a connection arrives or the
// listener is closed. ok is false on timeout (not fatal, caller should
// retry) and err is non-nil on a fatal listener error (caller should stop
// accepting).
func (l *Listener) Accept(timeout time.Duration) (sock Socket, ok bool, err error) {
	if tl, isTCP := l.ln.(*net.TCPListener); isTCP && timeout > 0 {
		_ = tl.SetDeadline(time.Now().Add(timeout))
	}
	conn, err := l.ln.Accept()
	if err != nil {
		if ne, isNetErr := err.(net.Error); isNetErr && ne.Timeout() {
			return nil, false, nil
		}
		return nil, false, temerrors.NewTransportError("transport.accept", err)
	}
	if l.tls {
		tconn, isTLS := conn.(*tls.Conn)
		if !isTLS {
			_ = conn.Close()
			return nil, false, temerrors.NewTransportError("transport.accept", nil)
		}
		return &tlsSocket{conn: tconn}, true, nil
	}
	return &tcpSocket{conn: conn}, true, nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }
