package demux

import (
	"errors"
	"testing"

	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

type fakeAudioSink struct{ received [][]byte }

func (s *fakeAudioSink) EnqueueAudio(b []byte) { s.received = append(s.received, b) }

type fakeDisplay struct{ received []wire.Packet }

func (d *fakeDisplay) Display(p wire.Packet) { d.received = append(d.received, p) }

type fakeDecoder struct {
	decoded int
	fail    bool
}

func (f *fakeDecoder) Decode(frame wire.Frame) error {
	if f.fail {
		return errors.New("boom")
	}
	f.decoded++
	return nil
}
func (f *fakeDecoder) Close() {}

func src(name string) wire.Source {
	return wire.Source{ServerName: name, Address: wire.Address{Host: "h", Port: 1}}
}

func TestAudioDispatchTouchesBookkeepingOnly(t *testing.T) {
	d := New(nil, nil, nil)
	sink := &fakeAudioSink{}
	d.RegisterAudioSink(src("a"), sink)

	d.Dispatch(wire.Packet{Source: src("a"), Payload: wire.Audio{Bytes: []byte("x")}})

	if len(sink.received) != 0 {
		t.Fatalf("expected Dispatch never to re-enqueue Audio to the sink, got %d", len(sink.received))
	}
}

func TestNonAudioDispatchesToRegisteredDisplay(t *testing.T) {
	d := New(nil, nil, nil)
	disp := &fakeDisplay{}
	d.RegisterStreamDisplay(src("b"), disp)

	d.Dispatch(wire.Packet{Source: src("b"), Payload: wire.Text("hi")})

	if len(disp.received) != 1 {
		t.Fatalf("expected display to receive one packet, got %d", len(disp.received))
	}
}

func TestUnregisteredDisplayDroppedWhenConnectionNotLive(t *testing.T) {
	d := New(nil, func(wire.Source) bool { return false }, nil)
	d.Dispatch(wire.Packet{Source: src("c"), Payload: wire.Text("hi")})
	// no panic, no display registered: nothing to assert but completion
}

func TestVideoFrameDecodesAndReportsFrameReady(t *testing.T) {
	var ready []FrameReady
	dec := &fakeDecoder{}
	d := New(func(w, h uint16) (VideoDecoder, error) { return dec, nil }, nil, func(fr FrameReady) {
		ready = append(ready, fr)
	})

	d.Dispatch(wire.Packet{Source: src("v"), Payload: wire.VideoOfFrame(wire.Frame{Width: 10, Height: 20})})
	d.DrainVideoQueue()

	if dec.decoded != 1 {
		t.Fatalf("expected frame to be decoded")
	}
	if len(ready) != 1 || ready[0].Width != 10 {
		t.Fatalf("expected one FrameReady event, got %+v", ready)
	}
}

func TestVideoFrameDecodeFailureIncrementsFailCount(t *testing.T) {
	dec := &fakeDecoder{fail: true}
	d := New(func(w, h uint16) (VideoDecoder, error) { return dec, nil }, nil, nil)

	d.Dispatch(wire.Packet{Source: src("v2"), Payload: wire.VideoOfFrame(wire.Frame{})})
	d.DrainVideoQueue()

	if d.FailCount(src("v2")) != 1 {
		t.Fatalf("expected fail count to be 1, got %d", d.FailCount(src("v2")))
	}
}

func TestLargeFileReassemblyAcrossChunks(t *testing.T) {
	dec := &fakeDecoder{}
	d := New(func(w, h uint16) (VideoDecoder, error) { return dec, nil }, nil, nil)
	s := src("lf")

	var ready []VideoFileReady
	d.RegisterVideoFileReadyHook(func(r VideoFileReady) { ready = append(ready, r) })

	d.Dispatch(wire.Packet{Source: s, Payload: wire.VideoOfLargeFile(wire.LargeFileStart(6))})
	d.Dispatch(wire.Packet{Source: s, Payload: wire.VideoOfLargeFile(wire.LargeFileChunkOf([]byte("abc")))})
	d.Dispatch(wire.Packet{Source: s, Payload: wire.VideoOfLargeFile(wire.LargeFileChunkOf([]byte("def")))})
	d.Dispatch(wire.Packet{Source: s, Payload: wire.VideoOfLargeFile(wire.LargeFileEnd())})
	d.DrainVideoQueue()

	if len(ready) != 1 {
		t.Fatalf("expected one VideoFileReady event, got %d", len(ready))
	}
	if string(ready[0].Data) != "abcdef" {
		t.Fatalf("expected reassembled bytes %q, got %q", "abcdef", ready[0].Data)
	}
	if dec.decoded != 0 {
		t.Fatalf("LargeFile reassembly should not itself invoke the per-frame decoder")
	}
}

func TestLargeFileDiscardedWithoutHookLogsWarning(t *testing.T) {
	d := New(nil, nil, nil)
	s := src("lf2")

	d.Dispatch(wire.Packet{Source: s, Payload: wire.VideoOfLargeFile(wire.LargeFileStart(3))})
	d.Dispatch(wire.Packet{Source: s, Payload: wire.VideoOfLargeFile(wire.LargeFileChunkOf([]byte("abc")))})
	d.Dispatch(wire.Packet{Source: s, Payload: wire.VideoOfLargeFile(wire.LargeFileEnd())})
	d.DrainVideoQueue()
	// No hook registered: finalizeVideoFile only warns. No panic is the assertion.
}

func TestVideoQueueDropsOldestWhenFull(t *testing.T) {
	d := New(func(w, h uint16) (VideoDecoder, error) { return &fakeDecoder{}, nil }, nil, nil)
	for i := 0; i < defaultMaxVideoQueue+10; i++ {
		d.Dispatch(wire.Packet{Source: src("overflow"), Payload: wire.VideoOfFrame(wire.Frame{})})
	}
	if d.DroppedVideoPackets() == 0 {
		t.Fatalf("expected some video packets to be dropped under backpressure")
	}
}

func TestCleanupSourceRemovesAllMapEntries(t *testing.T) {
	d := New(nil, nil, nil)
	s := src("cleanup")
	d.RegisterAudioSink(s, &fakeAudioSink{})
	d.RegisterStreamDisplay(s, &fakeDisplay{})

	d.CleanupSource(s)

	d.mu.Lock()
	_, hasSink := d.audioSinks[s]
	_, hasDisplay := d.streamDisplays[s]
	d.mu.Unlock()
	if hasSink || hasDisplay {
		t.Fatalf("expected CleanupSource to remove all entries for the source")
	}
}
