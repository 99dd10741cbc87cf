package replay

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

func TestAppendAndReadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lobby_3_1000.tsd")
	l, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pkts := []RecordedPacket{
		{Packet: wire.Packet{Payload: wire.Chat{Author: "a", Message: "one", TimestampMs: 1000}}, TimestampMs: 1000},
		{Packet: wire.Packet{Payload: wire.Chat{Author: "a", Message: "two", TimestampMs: 1500}}, TimestampMs: 1500},
		{Packet: wire.Packet{Payload: wire.Chat{Author: "a", Message: "three", TimestampMs: 2500}}, TimestampMs: 2500},
	}
	for _, p := range pkts {
		if err := l.Append(p.Packet, p.TimestampMs); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if l.Count() != 3 {
		t.Fatalf("expected count 3, got %d", l.Count())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("readAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, r := range got {
		if r.TimestampMs != pkts[i].TimestampMs {
			t.Fatalf("record %d: timestamp mismatch got %d want %d", i, r.TimestampMs, pkts[i].TimestampMs)
		}
	}

	first, last, ok := TimeRange(got)
	if !ok || first != 1000 || last != 2500 {
		t.Fatalf("unexpected time range: first=%d last=%d ok=%v", first, last, ok)
	}
}

func TestAppendRejectsNonMonotonicTimestamp(t *testing.T) {
	dir := t.TempDir()
	l, err := Create(filepath.Join(dir, "a_1_0.tsd"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer l.Close()

	if err := l.Append(wire.Packet{Payload: wire.Text("x")}, 2000); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(wire.Packet{Payload: wire.Text("y")}, 1000); err == nil {
		t.Fatalf("expected error on non-monotonic timestamp")
	}
}

func TestGetReplayExactTimestampByDefault(t *testing.T) {
	records := []RecordedPacket{
		{TimestampMs: 1000},
		{TimestampMs: 1500},
		{TimestampMs: 1500},
		{TimestampMs: 2500},
	}
	got := GetReplay(records, 1500, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 records at ts=1500, got %d", len(got))
	}
	for _, r := range got {
		if r.TimestampMs != 1500 {
			t.Fatalf("unexpected record in bucket: %+v", r)
		}
	}
}

func TestGetReplayBucketWindow(t *testing.T) {
	records := []RecordedPacket{
		{TimestampMs: 1000},
		{TimestampMs: 1200},
		{TimestampMs: 1400},
		{TimestampMs: 2000},
	}
	got := GetReplay(records, 1000, 300)
	if len(got) != 2 {
		t.Fatalf("expected 2 records within [1000,1300], got %d", len(got))
	}
}

func TestCompactProducesValidGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a_1_0.tsd")
	l, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := l.Append(wire.Packet{Payload: wire.Text("payload")}, 1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	gzPath, err := Compact(path)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	f, err := os.Open(gzPath)
	if err != nil {
		t.Fatalf("open gz: %v", err)
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gr.Close()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	decompressed, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(decompressed) != string(raw) {
		t.Fatalf("decompressed content does not match original")
	}
}
