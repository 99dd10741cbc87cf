// Package replay implements the server-side replay log: an append-only
// on-disk file of RecordedPackets, one per server instance, plus the
// GetTimeRange/GetReplay query logic and optional gzip compaction and
// Azure Blob archival.
package replay

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// RecordedPacket is one entry in the replay log: a Packet plus the
// timestamp (ms since epoch) it was recorded at.
type RecordedPacket struct {
	Packet      wire.Packet
	TimestampMs int64
}

// recordHeaderSize is the fixed prefix before each record's encoded packet:
// an 8-byte timestamp followed by an 8-byte size, matching spec §6.6's
// on-disk layout `{u64 timestampMs, u64 size, bytes encodedPacket}`.
const recordHeaderSize = 16

// FileName builds the conventional `<name>_<serverTypeNum>_<startTsMs>.tsd`
// layout spec §6.6 requires.
func FileName(serverName string, serverType wire.ServerType, startTsMs int64) string {
	return fmt.Sprintf("%s_%d_%d.tsd", serverName, serverType, startTsMs)
}

// Log is an append-only replay log for one server instance. Writes are
// serialized; timestamps must be non-decreasing (§3 invariant: "monotonic
// in timestamp").
type Log struct {
	mu       sync.Mutex
	f        *os.File
	w        *bufio.Writer
	path     string
	lastTsMs int64
	count    int
}

// Create opens a new, empty replay log file at path. The file must not
// already exist — a server process creates exactly one log per run.
func Create(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, temerrors.NewResourceError("replay.create", err)
	}
	return &Log{f: f, w: bufio.NewWriter(f), path: path}, nil
}

// Append records p at timestampMs. Returns a ResourceError (never fatal to
// the connection per spec §7) on any disk failure or on a non-monotonic
// timestamp.
func (l *Log) Append(p wire.Packet, timestampMs int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if timestampMs < l.lastTsMs {
		return temerrors.NewResourceError("replay.append", fmt.Errorf("non-monotonic timestamp %d < %d", timestampMs, l.lastTsMs))
	}

	body, err := wire.Encode(p)
	if err != nil {
		return temerrors.NewResourceError("replay.append", err)
	}

	var hdr [recordHeaderSize]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(timestampMs))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(body)))
	if _, err := l.w.Write(hdr[:]); err != nil {
		return temerrors.NewResourceError("replay.append", err)
	}
	if _, err := l.w.Write(body); err != nil {
		return temerrors.NewResourceError("replay.append", err)
	}
	if err := l.w.Flush(); err != nil {
		return temerrors.NewResourceError("replay.append", err)
	}
	l.lastTsMs = timestampMs
	l.count++
	return nil
}

// Count returns the number of records appended so far.
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Close flushes and closes the underlying file. The log is no longer
// writable after Close; readers should use Open on the same path.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return temerrors.NewResourceError("replay.close", err)
	}
	return l.f.Close()
}

// Path returns the backing file path.
func (l *Log) Path() string { return l.path }

// ReadAll re-reads every record from a closed (or still-open, via a fresh
// fd) log file at path, in append order.
func ReadAll(path string) ([]RecordedPacket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, temerrors.NewResourceError("replay.readAll", err)
	}
	defer f.Close()

	var out []RecordedPacket
	r := bufio.NewReader(f)
	for {
		var hdr [recordHeaderSize]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, temerrors.NewResourceError("replay.readAll", err)
		}
		ts := int64(binary.LittleEndian.Uint64(hdr[0:8]))
		size := binary.LittleEndian.Uint64(hdr[8:16])
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, temerrors.NewResourceError("replay.readAll", err)
		}
		pkt, err := wire.Decode(body)
		if err != nil {
			return nil, temerrors.NewResourceError("replay.readAll", err)
		}
		out = append(out, RecordedPacket{Packet: pkt, TimestampMs: ts})
	}
	return out, nil
}

// TimeRange returns the first and last recorded timestamps, and false if
// the log has no records.
func TimeRange(records []RecordedPacket) (first, last int64, ok bool) {
	if len(records) == 0 {
		return 0, 0, false
	}
	return records[0].TimestampMs, records[len(records)-1].TimestampMs, true
}

// GetReplay implements spec §4.4 step 6 and §9's resolved open question:
// GetReplay{ts} returns every record whose timestamp falls within a
// contiguous bucket of width bucketWindowMs starting at ts. The default
// bucket width is 0, which reduces to "every record with timestamp == ts"
// exactly — the literal reading of spec scenario 5, without inventing a
// different contract where the spec explicitly declines to pick one.
func GetReplay(records []RecordedPacket, ts int64, bucketWindowMs int64) []RecordedPacket {
	var out []RecordedPacket
	hi := ts + bucketWindowMs
	for _, r := range records {
		if r.TimestampMs == ts || (bucketWindowMs > 0 && r.TimestampMs >= ts && r.TimestampMs <= hi) {
			out = append(out, r)
		}
	}
	return out
}

