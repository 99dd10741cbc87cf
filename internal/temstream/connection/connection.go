// Package connection implements the single-stream reassembly state machine
// sitting directly on top of a transport.Socket: it owns the inbound byte
// buffer, tracks at most one outstanding "next body size" between a valid
// Header and its body's arrival, and queues fully decoded Packets for the
// caller to drain.
package connection

import (
	"sync"
	"time"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
	"github.com/temdog007/temstream-go/internal/temstream/transport"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

const defaultMaxMessageSize = 1 << 20 // 1 MiB

// Connection owns one transport.Socket exclusively. It is not safe for
// concurrent use by multiple goroutines beyond the caller serializing reads
// on one side and writes on the other, matching the original readAndHandle
// / sendPacket split.
type Connection struct {
	sock           transport.Socket
	address        wire.Address
	maxMessageSize uint64

	buf          []byte
	nextBodySize *uint64

	mu      sync.Mutex
	packets []wire.Packet

	outMu sync.Mutex
	out   []byte
}

// New wraps sock, which the Connection now owns exclusively.
func New(sock transport.Socket, address wire.Address) *Connection {
	return &Connection{
		sock:           sock,
		address:        address,
		maxMessageSize: defaultMaxMessageSize,
	}
}

// SetMaxMessageSize overrides the default 1 MiB header.size cap.
func (c *Connection) SetMaxMessageSize(n uint64) { c.maxMessageSize = n }

// Address returns the remote endpoint this Connection was constructed for.
func (c *Connection) Address() wire.Address { return c.address }

// Socket exposes the underlying transport, e.g. for PeerIPAndPort or Close.
func (c *Connection) Socket() transport.Socket { return c.sock }

// ReadAndHandle reads available bytes (blocking up to timeout for the
// first chunk) and decodes as many complete Packets as are now available,
// appending them to the internal queue. It returns false on hangup, a
// malformed Header, or a decode error — the caller must treat false as
// fatal to the connection, matching spec §4.2.
func (c *Connection) ReadAndHandle(timeout time.Duration) bool {
	if c.sock == nil || !c.sock.Read(timeout, &c.buf, true) {
		return false
	}

	for {
		if c.nextBodySize == nil {
			if uint64(len(c.buf)) < wire.HeaderSize {
				return true
			}
			h, err := wire.DecodeHeader(c.buf[:wire.HeaderSize])
			if err != nil || !h.Valid(c.maxMessageSize) || h.Magic != wire.MagicGUID() {
				return false
			}
			size := h.Size
			c.nextBodySize = &size
			c.buf = c.buf[wire.HeaderSize:]
		}

		size := *c.nextBodySize
		switch {
		case uint64(len(c.buf)) == size:
			pkt, err := wire.Decode(c.buf)
			if err != nil {
				return false
			}
			c.enqueue(pkt)
			c.buf = c.buf[:0]
			c.nextBodySize = nil
			return true
		case uint64(len(c.buf)) > size:
			pkt, err := wire.Decode(c.buf[:size])
			if err != nil {
				return false
			}
			c.enqueue(pkt)
			c.buf = c.buf[size:]
			c.nextBodySize = nil
			// loop: more data may already be buffered
		default:
			return true
		}
	}
}

func (c *Connection) enqueue(p wire.Packet) {
	c.mu.Lock()
	c.packets = append(c.packets, p)
	c.mu.Unlock()
}

// DrainPackets removes and returns all Packets decoded so far.
func (c *Connection) DrainPackets() []wire.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.packets) == 0 {
		return nil
	}
	out := c.packets
	c.packets = nil
	return out
}

// SendPacket appends the framed encoding of p to the outbound buffer
// without writing to the socket. Call Flush to write everything queued so
// far — this lets callers batch several packets into one Write.
func (c *Connection) SendPacket(p wire.Packet) error {
	framed, err := wire.EncodeFramed(p)
	if err != nil {
		return temerrors.NewProtocolError("connection.sendPacket", err)
	}
	c.outMu.Lock()
	c.out = append(c.out, framed...)
	c.outMu.Unlock()
	return nil
}

// Flush writes everything queued by SendPacket to the socket. Returns false
// on write failure, matching spec §4.1's FramedSocket.write contract.
func (c *Connection) Flush() bool {
	c.outMu.Lock()
	pending := c.out
	c.out = nil
	c.outMu.Unlock()
	if len(pending) == 0 {
		return true
	}
	return c.sock.Write(pending)
}

// Close shuts down the underlying socket.
func (c *Connection) Close() error {
	if c.sock == nil {
		return nil
	}
	return c.sock.Close()
}
