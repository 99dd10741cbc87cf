package server

import (
	"testing"
	"time"

	"github.com/temdog007/temstream-go/internal/temstream/access"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// fakeSocket is a minimal in-memory transport.Socket for exercising Peer
// and Core dispatch without a real network connection.
type fakeSocket struct {
	inbox  []byte
	outbox []byte
}

func (f *fakeSocket) Read(timeout time.Duration, buf *[]byte, readAll bool) bool {
	if len(f.inbox) == 0 {
		return false
	}
	*buf = append(*buf, f.inbox...)
	f.inbox = nil
	return true
}
func (f *fakeSocket) Write(b []byte) bool             { f.outbox = append(f.outbox, b...); return true }
func (f *fakeSocket) PeerIPAndPort() (string, uint16) { return "10.0.0.5", 5555 }
func (f *fakeSocket) Close() error                    { return nil }

func newTestPeer() (*Peer, *fakeSocket) {
	sock := &fakeSocket{}
	conn := newConnectionFor(sock, "10.0.0.5", 5555)
	return NewPeer(conn), sock
}

func TestPeerAuthenticateWithoutVerifierAcceptsAnyCredential(t *testing.T) {
	p, _ := newTestPeer()
	vl, err := p.Authenticate(nil, wire.NewUserPassCredentials("alice", "x"), "lobby", wire.ServerTypeChat, 0, nil)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if vl.PeerInformation.Name != "alice" {
		t.Fatalf("unexpected name: %s", vl.PeerInformation.Name)
	}
	if p.State() != PeerLive {
		t.Fatalf("expected Live state, got %s", p.State())
	}
}

func TestPeerAuthenticateDeniesBannedUser(t *testing.T) {
	p, _ := newTestPeer()
	isBanned := func(name string) bool { return name == "troll" }
	_, err := p.Authenticate(nil, wire.NewUserPassCredentials("troll", "x"), "lobby", wire.ServerTypeChat, 0, isBanned)
	if err == nil {
		t.Fatalf("expected ban to reject authentication")
	}
	if p.State() != PeerAwaitingCredentials {
		t.Fatalf("expected to remain AwaitingCredentials, got %s", p.State())
	}
}

func TestPeerRateLimitDropsTooFrequentMessages(t *testing.T) {
	p, _ := newTestPeer()
	if _, err := p.Authenticate(nil, wire.NewUserPassCredentials("bob", "x"), "lobby", wire.ServerTypeChat, 10, nil); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !p.AllowStreamPayload() {
		t.Fatalf("expected first message to be allowed")
	}
	if p.AllowStreamPayload() {
		t.Fatalf("expected second immediate message to be rate-limited")
	}
}

func TestDispatchRejectsWrongVariantForServerType(t *testing.T) {
	c := NewCore(Config{Name: "lobby", Type: wire.ServerTypeChat}, access.New(true))
	p, _ := newTestPeer()
	p.Authenticate(nil, wire.NewUserPassCredentials("alice", "x"), "lobby", wire.ServerTypeChat, 0, nil)
	c.AddPeer(p)

	badPacket := wire.Packet{Payload: wire.Text("wrong variant for Chat server")}
	if c.Dispatch(p, badPacket) {
		t.Fatalf("expected dispatch to reject mismatched payload variant")
	}
}

func TestDispatchAcceptsStreamPayloadAndBroadcasts(t *testing.T) {
	c := NewCore(Config{Name: "lobby", Type: wire.ServerTypeChat}, access.New(true))

	sender, _ := newTestPeer()
	sender.Authenticate(nil, wire.NewUserPassCredentials("alice", "x"), "lobby", wire.ServerTypeChat, 0, nil)
	c.AddPeer(sender)

	recvSock := &fakeSocket{}
	recvConn := newConnectionFor(recvSock, "10.0.0.6", 6000)
	receiver := NewPeer(recvConn)
	receiver.Authenticate(nil, wire.NewUserPassCredentials("bob", "x"), "lobby", wire.ServerTypeChat, 0, nil)
	c.AddPeer(receiver)

	pkt := wire.Packet{Payload: wire.Chat{Author: "alice", Message: "hi", TimestampMs: 1}}
	if !c.Dispatch(sender, pkt) {
		t.Fatalf("expected dispatch to accept valid stream payload")
	}
	if len(recvSock.outbox) == 0 {
		t.Fatalf("expected receiver to get broadcast bytes")
	}
}

func TestDispatchBanUserRequiresModerator(t *testing.T) {
	c := NewCore(Config{Name: "lobby", Type: wire.ServerTypeChat}, access.New(true))
	p, _ := newTestPeer()
	p.Authenticate(nil, wire.NewUserPassCredentials("alice", "x"), "lobby", wire.ServerTypeChat, 0, nil)
	c.AddPeer(p)

	if c.Dispatch(p, wire.Packet{Payload: wire.BanUser{Name: "troll"}}) {
		t.Fatalf("expected ban to be rejected for non-moderator")
	}
}

func TestDispatchGetTimeRangeWithoutRecordingReturnsNoReplay(t *testing.T) {
	c := NewCore(Config{Name: "lobby", Type: wire.ServerTypeChat}, access.New(true))
	p, sock := newTestPeer()
	p.Authenticate(nil, wire.NewUserPassCredentials("alice", "x"), "lobby", wire.ServerTypeChat, 0, nil)
	c.AddPeer(p)

	if !c.Dispatch(p, wire.Packet{Payload: wire.GetTimeRange{}}) {
		t.Fatalf("expected dispatch to handle GetTimeRange")
	}
	if len(sock.outbox) == 0 {
		t.Fatalf("expected a NoReplay response to be written")
	}
}
