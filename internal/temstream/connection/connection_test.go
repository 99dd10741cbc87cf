package connection

import (
	"testing"
	"time"

	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// fakeSocket is an in-memory transport.Socket stand-in: Write appends to an
// internal outbox, Read serves from a preloaded inbox.
type fakeSocket struct {
	inbox  []byte
	outbox []byte
	closed bool
}

func (f *fakeSocket) Read(timeout time.Duration, buf *[]byte, readAll bool) bool {
	if len(f.inbox) == 0 {
		return false
	}
	*buf = append(*buf, f.inbox...)
	f.inbox = nil
	return true
}

func (f *fakeSocket) Write(b []byte) bool {
	f.outbox = append(f.outbox, b...)
	return true
}

func (f *fakeSocket) PeerIPAndPort() (string, uint16) { return "127.0.0.1", 4000 }

func (f *fakeSocket) Close() error { f.closed = true; return nil }

func TestReadAndHandleDecodesSinglePacket(t *testing.T) {
	pkt := wire.Packet{
		Source:  wire.Source{Address: wire.Address{Host: "h", Port: 1}, ServerName: "s"},
		Payload: wire.Chat{Author: "a", Message: "hi", TimestampMs: 1},
	}
	framed, err := wire.EncodeFramed(pkt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	sock := &fakeSocket{inbox: framed}
	c := New(sock, wire.Address{Host: "h", Port: 1})

	if !c.ReadAndHandle(time.Second) {
		t.Fatalf("readAndHandle returned false")
	}
	got := c.DrainPackets()
	if len(got) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(got))
	}
	chat, ok := got[0].Payload.(wire.Chat)
	if !ok || chat.Message != "hi" {
		t.Fatalf("unexpected payload: %+v", got[0].Payload)
	}
}

func TestReadAndHandleDecodesMultiplePacketsInOneRead(t *testing.T) {
	p1 := wire.Packet{Payload: wire.Text("one")}
	p2 := wire.Packet{Payload: wire.Text("two")}
	f1, _ := wire.EncodeFramed(p1)
	f2, _ := wire.EncodeFramed(p2)

	sock := &fakeSocket{inbox: append(append([]byte{}, f1...), f2...)}
	c := New(sock, wire.Address{})

	if !c.ReadAndHandle(time.Second) {
		t.Fatalf("readAndHandle returned false")
	}
	got := c.DrainPackets()
	if len(got) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(got))
	}
	if got[0].Payload.(wire.Text) != "one" || got[1].Payload.(wire.Text) != "two" {
		t.Fatalf("unexpected payload order: %+v", got)
	}
}

func TestReadAndHandleWaitsOnPartialBody(t *testing.T) {
	pkt := wire.Packet{Payload: wire.Text("partial-body")}
	framed, _ := wire.EncodeFramed(pkt)

	sock := &fakeSocket{inbox: framed[:wire.HeaderSize+2]}
	c := New(sock, wire.Address{})

	if !c.ReadAndHandle(time.Second) {
		t.Fatalf("expected true (more data pending), got false")
	}
	if len(c.DrainPackets()) != 0 {
		t.Fatalf("expected no packets yet")
	}

	sock.inbox = framed[wire.HeaderSize+2:]
	if !c.ReadAndHandle(time.Second) {
		t.Fatalf("expected true on completing the body")
	}
	got := c.DrainPackets()
	if len(got) != 1 || got[0].Payload.(wire.Text) != "partial-body" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestReadAndHandleRejectsBadMagic(t *testing.T) {
	pkt := wire.Packet{Payload: wire.Text("x")}
	framed, _ := wire.EncodeFramed(pkt)
	framed[0] ^= 0xFF // corrupt magic

	sock := &fakeSocket{inbox: framed}
	c := New(sock, wire.Address{})
	if c.ReadAndHandle(time.Second) {
		t.Fatalf("expected false on bad magic")
	}
}

func TestReadAndHandleReturnsFalseOnHangup(t *testing.T) {
	sock := &fakeSocket{}
	c := New(sock, wire.Address{})
	if c.ReadAndHandle(time.Second) {
		t.Fatalf("expected false on hangup")
	}
}

func TestSendPacketAndFlush(t *testing.T) {
	sock := &fakeSocket{}
	c := New(sock, wire.Address{})
	pkt := wire.Packet{Payload: wire.Text("outgoing")}
	if err := c.SendPacket(pkt); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sock.outbox) != 0 {
		t.Fatalf("expected nothing written before Flush")
	}
	if !c.Flush() {
		t.Fatalf("flush failed")
	}
	h, err := wire.DecodeHeader(sock.outbox[:wire.HeaderSize])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	body, err := wire.Decode(sock.outbox[wire.HeaderSize : wire.HeaderSize+int(h.Size)])
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Payload.(wire.Text) != "outgoing" {
		t.Fatalf("unexpected payload: %+v", body.Payload)
	}
}

func TestCloseClosesSocket(t *testing.T) {
	sock := &fakeSocket{}
	c := New(sock, wire.Address{})
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sock.closed {
		t.Fatalf("expected underlying socket to be closed")
	}
}
