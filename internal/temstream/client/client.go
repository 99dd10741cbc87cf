// Package client implements the client side of a stream connection:
// dialing a server, completing the credentials handshake, and delivering
// decoded Packets to a caller-supplied sink instead of the original
// implementation's GUI event queue.
package client

import (
	"log/slog"
	"sync"
	"time"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
	"github.com/temdog007/temstream-go/internal/logger"
	"github.com/temdog007/temstream-go/internal/temstream/connection"
	"github.com/temdog007/temstream-go/internal/temstream/transport"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// AudioSink receives Audio payloads directly, bypassing the normal packet
// queue. The original implementation routes Audio straight to the GUI's
// audio device from flushPackets, ahead of (and in addition to) the normal
// display queue; this is that same fast path, generalized to any sink a
// caller provides.
type AudioSink interface {
	EnqueueAudio(bytes []byte)
}

// Connection is the client-side analogue of server.Peer: one socket, the
// VerifyLogin/ServerInformation it has learned, and the channel packets are
// delivered on.
type Connection struct {
	conn *connection.Connection

	log *slog.Logger

	mu               sync.Mutex
	opened           bool
	verifyLogin      wire.VerifyLogin
	haveVerifyLogin  bool
	serverInfo       wire.ServerInformation
	lastSentAt       time.Time

	audioSink AudioSink
	inbound   chan wire.Packet
}

// New wraps sock as an opened Connection. audioSink may be nil, in which
// case Audio payloads are delivered only through the normal inbound
// channel.
func New(sock transport.Socket, address wire.Address, audioSink AudioSink) *Connection {
	return &Connection{
		conn:      connection.New(sock, address),
		log:       logger.WithSource(logger.Logger(), "", address.String()),
		opened:    true,
		audioSink: audioSink,
		inbound:   make(chan wire.Packet, 64),
	}
}

// Inbound returns the channel decoded Packets are delivered on. The
// Audio fast path still also arrives here — addPacket always enqueues,
// matching the original's addPacket call following its gui.useAudio
// shortcut.
func (c *Connection) Inbound() <-chan wire.Packet { return c.inbound }

// IsOpened reports whether Close has not yet been called.
func (c *Connection) IsOpened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Close is idempotent: it marks the connection closed and releases the
// socket, but never closes the inbound channel (a reader ranging over it
// should instead watch IsOpened or a surrounding context).
func (c *Connection) Close() error {
	c.mu.Lock()
	if !c.opened {
		c.mu.Unlock()
		return nil
	}
	c.opened = false
	c.mu.Unlock()
	return c.conn.Close()
}

// GetInfo returns the VerifyLogin received from the server, if any.
func (c *Connection) GetInfo() (wire.VerifyLogin, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verifyLogin, c.haveVerifyLogin
}

// SetVerifyLogin records the server's handshake response.
func (c *Connection) SetVerifyLogin(v wire.VerifyLogin) {
	c.mu.Lock()
	c.verifyLogin = v
	c.haveVerifyLogin = true
	c.mu.Unlock()
}

// GetServerInformation returns the last ServerInformation snapshot
// received, if any.
func (c *Connection) GetServerInformation() wire.ServerInformation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// SetServerInformation records a new ServerInformation snapshot.
func (c *Connection) SetServerInformation(info wire.ServerInformation) {
	c.mu.Lock()
	c.serverInfo = info
	c.mu.Unlock()
}

// GetSource derives this connection's Source from its VerifyLogin and
// address, mirroring the original getSource: {serverName, address}.
func (c *Connection) GetSource() wire.Source {
	c.mu.Lock()
	name := c.verifyLogin.ServerName
	c.mu.Unlock()
	return wire.Source{Address: c.conn.Address(), ServerName: name}
}

// SendPacket queues p for transport and, if sendImmediately is set,
// flushes right away. lastSentAt is updated regardless, so
// NextSendInterval reflects it.
func (c *Connection) SendPacket(p wire.Packet, sendImmediately bool) error {
	if err := c.conn.SendPacket(p); err != nil {
		return err
	}
	c.mu.Lock()
	c.lastSentAt = time.Now()
	c.mu.Unlock()
	if sendImmediately {
		if !c.conn.Flush() {
			return temerrors.NewTransportError("client.sendPacket", nil)
		}
	}
	return nil
}

// Flush writes any packets queued by SendPacket with sendImmediately
// false.
func (c *Connection) Flush() bool { return c.conn.Flush() }

// NextSendInterval returns the duration the caller must still wait before
// its next stream payload is permitted under the server's SendRateSecs, and
// ok=false if there is no such constraint (no VerifyLogin yet, or
// SendRateSecs == 0) — mirroring the original's std::optional<duration>
// return of nullopt in those two cases — and also once the interval has
// already elapsed.
func (c *Connection) NextSendInterval() (wait time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveVerifyLogin || c.verifyLogin.SendRateSecs == 0 {
		return 0, false
	}
	rate := time.Duration(c.verifyLogin.SendRateSecs) * time.Second
	nextAllowed := c.lastSentAt.Add(rate)
	if remaining := time.Until(nextAllowed); remaining > 0 {
		return remaining, true
	}
	return 0, false
}

// ReadAndDeliver pumps one ReadAndHandle cycle and pushes every decoded
// Packet onto the inbound channel (and, for Audio, onto audioSink first).
// Returns false on hangup or protocol error, matching Connection's own
// contract.
func (c *Connection) ReadAndDeliver(timeout time.Duration) bool {
	if !c.conn.ReadAndHandle(timeout) {
		return false
	}
	for _, p := range c.conn.DrainPackets() {
		c.addPacket(p)
	}
	return true
}

// addPacket is the Audio fast path: an Audio payload is handed to
// audioSink immediately, ahead of the normal channel delivery that follows
// unconditionally — matching flushPackets's gui.useAudio(...).enqueueAudio
// shortcut, which still falls through to addPacket.
func (c *Connection) addPacket(p wire.Packet) {
	if audio, ok := p.Payload.(wire.Audio); ok && c.audioSink != nil {
		c.audioSink.EnqueueAudio(audio.Bytes)
	}
	select {
	case c.inbound <- p:
	default:
		c.log.Warn("inbound channel full, dropping packet")
	}
}
