// Package server implements the server side: Peer (one per accepted
// socket, AwaitingCredentials → Live → Closed) and Core (listener, peer
// registry, Access, recording, moderator dispatch).
package server

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
	"github.com/temdog007/temstream-go/internal/logger"
	"github.com/temdog007/temstream-go/internal/temstream/auth"
	"github.com/temdog007/temstream-go/internal/temstream/connection"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// PeerState is Peer's position in the AwaitingCredentials → Live → Closed
// machine (spec §4.3).
type PeerState int

const (
	PeerAwaitingCredentials PeerState = iota
	PeerLive
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerAwaitingCredentials:
		return "awaiting_credentials"
	case PeerLive:
		return "live"
	case PeerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Peer is one accepted socket's session state. Dispatch logic (what happens
// to a validated inbound Packet) lives in Core/dispatch.go — Peer itself
// only owns the state machine, identity, and rate limiter.
type Peer struct {
	conn *connection.Connection
	log  *slog.Logger

	mu    sync.Mutex
	state PeerState

	info         wire.PeerInformation
	limiter      *rate.Limiter
	lastStreamAt time.Time
}

// NewPeer wraps an accepted Connection, starting in AwaitingCredentials.
func NewPeer(conn *connection.Connection) *Peer {
	ip, port := conn.Socket().PeerIPAndPort()
	return &Peer{
		conn:  conn,
		log:   logger.WithPeer(logger.Logger(), "", ip+":"+strconv.Itoa(int(port))),
		state: PeerAwaitingCredentials,
	}
}

// State returns the peer's current state.
func (p *Peer) State() PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Info returns the peer's PeerInformation, valid once Live.
func (p *Peer) Info() wire.PeerInformation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info
}

// Connection exposes the underlying Connection for Core's read/broadcast
// loops.
func (p *Peer) Connection() *connection.Connection { return p.conn }

// Authenticate verifies creds via v, applies access, and on success
// transitions AwaitingCredentials → Live, returning the VerifyLogin to
// send. Any failure leaves the peer in AwaitingCredentials and the caller
// must close the connection (spec §4.3: "any unexpected payload ... close
// the connection").
func (p *Peer) Authenticate(v auth.Verifier, creds wire.Credentials, serverName string, serverType wire.ServerType, sendRateSecs uint32, isBanned func(name string) bool) (wire.VerifyLogin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PeerAwaitingCredentials {
		return wire.VerifyLogin{}, temerrors.NewProtocolError("peer.authenticate", nil)
	}

	var id auth.Identity
	if v == nil {
		name := creds.User
		if creds.IsToken {
			name = creds.Token
		}
		id = auth.Identity{Name: name, Flags: wire.FlagWriteAccess}
	} else {
		var err error
		id, err = v.Verify(creds)
		if err != nil {
			return wire.VerifyLogin{}, temerrors.NewAuthError("peer.authenticate", err)
		}
	}

	if isBanned != nil && isBanned(id.Name) {
		return wire.VerifyLogin{}, temerrors.NewAuthError("peer.authenticate", nil)
	}

	p.info = wire.PeerInformation{Name: id.Name, Flags: id.Flags}
	if sendRateSecs > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Duration(sendRateSecs)*time.Second), 1)
	}
	p.state = PeerLive
	p.log = logger.WithPeer(p.log, id.Name, "")

	return wire.VerifyLogin{
		ServerName:      serverName,
		PeerInformation: p.info,
		ServerType:      serverType,
		SendRateSecs:    sendRateSecs,
	}, nil
}

// AllowStreamPayload applies the messageRateInSeconds rule (spec §4.3): a
// stream payload arriving too soon after the previous one from this peer is
// rejected and the connection must be closed.
func (p *Peer) AllowStreamPayload() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limiter == nil {
		return true
	}
	return p.limiter.Allow()
}

// Close transitions to Closed and releases the underlying connection.
// Idempotent.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.state == PeerClosed {
		p.mu.Unlock()
		return nil
	}
	p.state = PeerClosed
	p.mu.Unlock()
	return p.conn.Close()
}
