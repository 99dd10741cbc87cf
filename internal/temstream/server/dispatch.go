package server

import (
	"time"

	"github.com/temdog007/temstream-go/internal/temstream/replay"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// nowMs is overridden in tests; production uses wall-clock milliseconds.
var nowMs = func() int64 { return time.Now().UnixMilli() }

// Dispatch implements spec §4.4's per-packet rules for a validated inbound
// Packet p from peer k, once k is Live. Returns false if k must be closed
// (payload not permitted for this ServerType / state, or a ban).
func (c *Core) Dispatch(k *Peer, p wire.Packet) bool {
	tag, err := wire.PayloadTag(p.Payload)
	if err != nil {
		return false
	}

	if streamTag, isStream := wire.StreamPayloadTag(c.cfg.Type); isStream && tag == streamTag {
		return c.dispatchStream(k, p)
	}
	if wire.IsControlTag(tag) {
		return c.dispatchControl(k, p)
	}
	return false
}

func (c *Core) dispatchStream(k *Peer, p wire.Packet) bool {
	if !k.AllowStreamPayload() {
		return false
	}

	stamped := p
	stamped.Source = c.Source(p.Source.Address)

	c.appendReplay(stamped)
	c.broadcast(k, stamped)
	return true
}

// appendReplay records stamped if recording is enabled. A disk error
// disables recording for the remainder of this process's run rather than
// closing any connection (spec §7: Resource errors are recoverable).
func (c *Core) appendReplay(p wire.Packet) {
	c.replayMu.Lock()
	l := c.replayLog
	c.replayMu.Unlock()
	if l == nil {
		return
	}
	if err := l.Append(p, nowMs()); err != nil {
		c.log.Warn("replay append failed, disabling recording", "error", err)
		c.replayMu.Lock()
		c.replayLog = nil
		c.replayMu.Unlock()
	}
}

// broadcast fans stamped out to every other live peer the Access list
// allows. Per-recipient send failures are logged and do not affect other
// recipients, matching the teacher's DestinationManager.RelayMessage
// isolation.
func (c *Core) broadcast(from *Peer, stamped wire.Packet) {
	for _, peer := range c.livePeers() {
		if peer == from || peer.State() != PeerLive {
			continue
		}
		if c.access.IsBanned(peer.Info().Name) {
			continue
		}
		if err := peer.Connection().SendPacket(stamped); err != nil {
			c.log.Warn("broadcast send failed", "peer", peer.Info().Name, "error", err)
			continue
		}
		if !peer.Connection().Flush() {
			c.log.Warn("broadcast flush failed", "peer", peer.Info().Name)
		}
	}
}

func (c *Core) dispatchControl(k *Peer, p wire.Packet) bool {
	switch msg := p.Payload.(type) {
	case wire.RequestServerInformation:
		return c.handleRequestServerInformation(k)
	case wire.BanUser:
		return c.handleBanUser(k, msg)
	case wire.GetTimeRange:
		return c.handleGetTimeRange(k)
	case wire.GetReplay:
		return c.handleGetReplay(k, msg)
	default:
		// Credentials/VerifyLogin only valid during the handshake, handled
		// by Peer.Authenticate before Dispatch is ever called; anything
		// else reaching here is a state violation.
		return false
	}
}

func (c *Core) handleRequestServerInformation(k *Peer) bool {
	if !k.Info().Flags.IsModerator() {
		return false
	}
	info := wire.ServerInformation{
		Peers:   c.PeerInformationSnapshot(),
		BanList: c.access.Members(),
	}
	return sendTo(k, wire.Packet{Source: c.Source(wire.Address{}), Payload: info})
}

func (c *Core) handleBanUser(k *Peer, msg wire.BanUser) bool {
	if !k.Info().Flags.IsModerator() {
		return false
	}
	c.access.Add(msg.Name)
	if target := c.FindPeerByName(msg.Name); target != nil {
		c.RemovePeer(target)
		target.Close()
	}
	return true
}

func (c *Core) handleGetTimeRange(k *Peer) bool {
	c.replayMu.Lock()
	l := c.replayLog
	c.replayMu.Unlock()
	if l == nil || l.Count() == 0 {
		return sendTo(k, wire.Packet{Payload: wire.NoReplay{}})
	}
	records, err := replay.ReadAll(l.Path())
	if err != nil {
		return sendTo(k, wire.Packet{Payload: wire.NoReplay{}})
	}
	first, last, ok := replay.TimeRange(records)
	if !ok {
		return sendTo(k, wire.Packet{Payload: wire.NoReplay{}})
	}
	return sendTo(k, wire.Packet{Payload: wire.TimeRange{First: first, Last: last}})
}

func (c *Core) handleGetReplay(k *Peer, msg wire.GetReplay) bool {
	c.replayMu.Lock()
	l := c.replayLog
	c.replayMu.Unlock()
	if l == nil {
		return sendTo(k, wire.Packet{Payload: wire.NoReplay{}})
	}
	records, err := replay.ReadAll(l.Path())
	if err != nil {
		return sendTo(k, wire.Packet{Payload: wire.NoReplay{}})
	}
	matches := replay.GetReplay(records, msg.Timestamp, c.cfg.ReplayBucketSize)
	for _, rec := range matches {
		if k.State() != PeerLive {
			return true // peer closed mid-stream, cancellation permitted
		}
		encoded, err := wire.Encode(rec.Packet)
		if err != nil {
			continue
		}
		if !sendTo(k, wire.Packet{Payload: wire.Replay{EncodedPacket: encoded}}) {
			return false
		}
	}
	return sendTo(k, wire.Packet{Payload: wire.NoReplay{}})
}

func sendTo(k *Peer, p wire.Packet) bool {
	if err := k.Connection().SendPacket(p); err != nil {
		return false
	}
	return k.Connection().Flush()
}
