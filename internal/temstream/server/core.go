package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/temdog007/temstream-go/internal/logger"
	"github.com/temdog007/temstream-go/internal/temstream/access"
	"github.com/temdog007/temstream-go/internal/temstream/auth"
	"github.com/temdog007/temstream-go/internal/temstream/connection"
	"github.com/temdog007/temstream-go/internal/temstream/replay"
	"github.com/temdog007/temstream-go/internal/temstream/transport"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
	"github.com/temdog007/temstream-go/internal/temstream/workpool"
)

const defaultPoolWorkers = 64

func newConnectionFor(sock transport.Socket, ip string, port uint16) *connection.Connection {
	return connection.New(sock, wire.Address{Host: ip, Port: port})
}

// Config configures a Core instance, corresponding to spec §6.4's server CLI
// flags.
type Config struct {
	Name             string
	Type             wire.ServerType
	MaxClients       int
	MessageRateSecs  uint32
	MaxMessageSize   uint64
	Recording        bool
	ReplayDir        string
	Verifier         auth.Verifier
	ReplayBucketSize int64
}

// Core owns the set of live Peers, the Access list, the recording log, and
// dispatch, and runs the accept loop over a listener the caller supplies to
// Accept. One Core per server process, generalizing
// the teacher's Registry + relay.DestinationManager + hooks pair into a
// single-purpose broadcast-and-moderate loop.
type Core struct {
	cfg Config
	log *slog.Logger

	mu    sync.RWMutex
	peers map[*Peer]struct{}

	access *access.Access

	replayMu  sync.Mutex
	replayLog *replay.Log
	startedAt int64

	pool *workpool.Pool
}

// NewCore constructs a Core. acc may be nil (no access restriction).
func NewCore(cfg Config, acc *access.Access) *Core {
	if acc == nil {
		acc = access.New(true)
	}
	return &Core{
		cfg:    cfg,
		log:    logger.WithServer(logger.Logger(), cfg.Type.String(), cfg.Name),
		peers:  make(map[*Peer]struct{}),
		access: acc,
		pool:   workpool.New(defaultPoolWorkers),
	}
}

// Pool returns the shared workpool.Pool backing per-peer dispatch loops, so
// a live connection never needs a dedicated goroutine for the lifetime of
// its session.
func (c *Core) Pool() *workpool.Pool { return c.pool }

// Stop halts the shared pool. In-flight dispatch passes finish their
// current call; nothing is re-enqueued afterward.
func (c *Core) Stop() { c.pool.Stop() }

// Source returns this server's own Source identity (address is filled in by
// the caller once the listener is bound; serverName is fixed at Config
// time).
func (c *Core) Source(addr wire.Address) wire.Source {
	return wire.Source{Address: addr, ServerName: c.cfg.Name}
}

// StartRecording creates the replay log file, named per spec §6.6's
// convention, rooted at cfg.ReplayDir.
func (c *Core) StartRecording(nowMs int64) error {
	if !c.cfg.Recording {
		return nil
	}
	path := c.cfg.ReplayDir + "/" + replay.FileName(c.cfg.Name, c.cfg.Type, nowMs)
	l, err := replay.Create(path)
	if err != nil {
		return err
	}
	c.replayMu.Lock()
	c.replayLog = l
	c.startedAt = nowMs
	c.replayMu.Unlock()
	return nil
}

// StopRecording closes the replay log, if any, and returns its path so the
// caller can compact/archive it.
func (c *Core) StopRecording() string {
	c.replayMu.Lock()
	defer c.replayMu.Unlock()
	if c.replayLog == nil {
		return ""
	}
	path := c.replayLog.Path()
	c.replayLog.Close()
	c.replayLog = nil
	return path
}

// AddPeer registers a live peer, enforcing MaxClients if configured.
func (c *Core) AddPeer(p *Peer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.MaxClients > 0 && len(c.peers) >= c.cfg.MaxClients {
		return false
	}
	c.peers[p] = struct{}{}
	return true
}

// RemovePeer unregisters a peer (on Close or ban).
func (c *Core) RemovePeer(p *Peer) {
	c.mu.Lock()
	delete(c.peers, p)
	c.mu.Unlock()
}

// livePeers returns a snapshot of currently registered peers: copy out
// under lock, then operate lock-free, matching the teacher's
// DestinationManager.RelayMessage pattern so a slow or failing recipient
// cannot block admission of new peers or iteration over the others.
func (c *Core) livePeers() []*Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Peer, 0, len(c.peers))
	for p := range c.peers {
		out = append(out, p)
	}
	return out
}

// PeerInformationSnapshot returns PeerInformation for every live, Live-state
// peer, for ServerInformation responses.
func (c *Core) PeerInformationSnapshot() []wire.PeerInformation {
	peers := c.livePeers()
	out := make([]wire.PeerInformation, 0, len(peers))
	for _, p := range peers {
		if p.State() == PeerLive {
			out = append(out, p.Info())
		}
	}
	return out
}

// Access exposes the Core's Access list.
func (c *Core) Access() *access.Access { return c.access }

// Config returns the Core's configuration, used by the accept loop to
// authenticate new peers with the configured Verifier/serverName/type.
func (c *Core) Config() Config { return c.cfg }

// FindPeerByName returns the live peer with PeerInformation.Name == name,
// if any.
func (c *Core) FindPeerByName(name string) *Peer {
	for _, p := range c.livePeers() {
		if p.State() == PeerLive && p.Info().Name == name {
			return p
		}
	}
	return nil
}

// Accept runs the accept loop against ln until stop is closed, constructing
// and handing off a Peer per connection via onPeer, each on its own
// goroutine. Accept timeouts do not stop the loop; any listener error is
// returned.
func (c *Core) Accept(ln *transport.Listener, stop <-chan struct{}, onPeer func(*Peer)) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		sock, ok, err := ln.Accept(time.Second)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		ip, port := sock.PeerIPAndPort()
		c.log.Info("accepted connection", "ip", ip, "port", port)
		go onPeer(NewPeer(newConnectionFor(sock, ip, port)))
	}
}
