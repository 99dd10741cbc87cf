package wire

import (
	"bytes"
	"reflect"
	"testing"
)

func roundTrip(t *testing.T, p Packet) Packet {
	t.Helper()
	body, err := Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestChatRoundTrip(t *testing.T) {
	p := Packet{
		Source:  Source{Address: Address{Host: "10.0.0.1", Port: 9000}, ServerName: "lobby"},
		Payload: Chat{Author: "A", Message: "hi", TimestampMs: 1234},
	}
	got := roundTrip(t, p)
	if !reflect.DeepEqual(got, p) {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, p)
	}
}

func TestCredentialsVariants(t *testing.T) {
	tok := Packet{Payload: NewTokenCredentials("abc123")}
	got := roundTrip(t, tok)
	c, ok := got.Payload.(Credentials)
	if !ok || !c.IsToken || c.Token != "abc123" {
		t.Fatalf("token credentials mismatch: %+v", got.Payload)
	}

	up := Packet{Payload: NewUserPassCredentials("bob", "hunter2")}
	got = roundTrip(t, up)
	c, ok = got.Payload.(Credentials)
	if !ok || c.IsToken || c.User != "bob" || c.Password != "hunter2" {
		t.Fatalf("userpass credentials mismatch: %+v", got.Payload)
	}
}

func TestVerifyLoginRoundTrip(t *testing.T) {
	p := Packet{Payload: VerifyLogin{
		ServerName:      "chat1",
		PeerInformation: PeerInformation{Name: "alice", Flags: FlagWriteAccess | FlagModerator},
		ServerType:      ServerTypeChat,
		SendRateSecs:    2,
	}}
	got := roundTrip(t, p)
	if !reflect.DeepEqual(got, p) {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, p)
	}
}

func TestLargeFileVariants(t *testing.T) {
	for _, lf := range []LargeFile{LargeFileEnd(), LargeFileStart(100000), LargeFileChunkOf([]byte{1, 2, 3})} {
		p := Packet{Payload: Image{LargeFile: lf}}
		got := roundTrip(t, p)
		img, ok := got.Payload.(Image)
		if !ok {
			t.Fatalf("expected Image, got %T", got.Payload)
		}
		if img.LargeFile.Tag != lf.Tag || img.LargeFile.TotalSize != lf.TotalSize || !bytes.Equal(img.LargeFile.Chunk, lf.Chunk) {
			t.Fatalf("large file mismatch: got=%+v want=%+v", img.LargeFile, lf)
		}
	}
}

func TestSplitLargeFileReassembly(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, MaxFileChunk+40000)
	var reassembled []byte
	var sawStart, sawEnd bool
	err := SplitLargeFile(data, func(lf LargeFile) error {
		switch lf.Tag {
		case LargeFileTagStart:
			sawStart = true
			if lf.TotalSize != uint64(len(data)) {
				t.Fatalf("start size = %d, want %d", lf.TotalSize, len(data))
			}
		case LargeFileTagChunk:
			if len(lf.Chunk) > MaxFileChunk {
				t.Fatalf("chunk too large: %d", len(lf.Chunk))
			}
			reassembled = append(reassembled, lf.Chunk...)
		case LargeFileTagEnd:
			sawEnd = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !sawStart || !sawEnd {
		t.Fatalf("missing start/end: start=%v end=%v", sawStart, sawEnd)
	}
	if !bytes.Equal(reassembled, data) {
		t.Fatalf("reassembled bytes do not match: got %d bytes, want %d", len(reassembled), len(data))
	}
}

func TestVideoRoundTrip(t *testing.T) {
	p := Packet{Payload: VideoOfFrame(Frame{Width: 640, Height: 480, Bytes: []byte{9, 9, 9}})}
	got := roundTrip(t, p)
	v, ok := got.Payload.(Video)
	if !ok || v.Tag != VideoTagFrame || v.Frame.Width != 640 || v.Frame.Height != 480 {
		t.Fatalf("video frame mismatch: %+v", got.Payload)
	}
}

func TestReplayControlMessages(t *testing.T) {
	cases := []Payload{
		RequestServerInformation{},
		ServerInformation{Peers: []PeerInformation{{Name: "a", Flags: FlagOwner}}, BanList: []string{"x"}},
		BanUser{Name: "troll"},
		GetReplay{Timestamp: 1500},
		NoReplay{},
		Replay{EncodedPacket: []byte{1, 2, 3}},
		TimeRange{First: 1000, Last: 2500},
		GetTimeRange{},
	}
	for _, payload := range cases {
		got := roundTrip(t, Packet{Payload: payload})
		if reflect.TypeOf(got.Payload) != reflect.TypeOf(payload) {
			t.Fatalf("type mismatch: got %T, want %T", got.Payload, payload)
		}
	}
}

func TestHeaderEncodeMatchesBodySize(t *testing.T) {
	p := Packet{Payload: Text("hello world")}
	framed, err := EncodeFramed(p)
	if err != nil {
		t.Fatalf("encode framed: %v", err)
	}
	h, err := DecodeHeader(framed[:HeaderSize])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if h.Magic != MagicGUID() {
		t.Fatalf("magic mismatch")
	}
	if int(h.Size) != len(framed)-HeaderSize {
		t.Fatalf("header size %d != body length %d", h.Size, len(framed)-HeaderSize)
	}
	if !h.Valid(1 << 20) {
		t.Fatalf("expected header to be valid under 1MiB cap")
	}
}

func TestDecodeTruncatedBodyErrors(t *testing.T) {
	p := Packet{Payload: Chat{Author: "a", Message: "b", TimestampMs: 1}}
	body, err := Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(body[:len(body)-1]); err == nil {
		t.Fatalf("expected error decoding truncated body")
	}
}
