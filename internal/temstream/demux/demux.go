// Package demux implements the client-side fan-out from one ClientConnection
// per Source into display/audio/video sinks: the StreamDemultiplexer.
//
// Codec decode, audio device output, and on-screen presentation are left as
// interfaces (VideoDecoder, AudioSink, StreamDisplay) for a real caller to
// plug in — e.g. github.com/pion/webrtc/v4 for VideoDecoder,
// github.com/gordonklaus/portaudio or github.com/hraban/opus for AudioSink,
// and a terminal/GUI renderer for StreamDisplay. None of those concerns are
// implemented here.
package demux

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/temdog007/temstream-go/internal/logger"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

var errNoDecoderFactory = errors.New("demux: no VideoDecoderFactory registered")

// VideoDecoder turns successive Frame payloads for one Source into decoded
// planes. A real implementation wraps a hardware or software codec session
// (e.g. pion/webrtc's media engine); Decode returning an error increments
// the per-source fail counter and is otherwise non-fatal.
type VideoDecoder interface {
	Decode(frame wire.Frame) error
	Close()
}

// AudioSink receives raw Audio payload bytes for playback. It has the same
// shape as the client package's fast-path sink; Dispatch does not call
// EnqueueAudio (the client fast path has already delivered the bytes) and
// only checks whether a sink is registered for the Audio's source.
type AudioSink interface {
	EnqueueAudio(bytes []byte)
}

// StreamDisplay receives every Payload variant not otherwise handled above
// (Text, Chat, ServerLinks, Image, ...) for one Source.
type StreamDisplay interface {
	Display(p wire.Packet)
}

// VideoDecoderFactory constructs a VideoDecoder sized from a frame's
// dimensions, the first time a Source's video stream is seen.
type VideoDecoderFactory func(width, height uint16) (VideoDecoder, error)

// FrameReady is posted once a Video Frame decodes successfully.
type FrameReady struct {
	Source wire.Source
	Width  uint16
	Height uint16
}

// VideoFileReady is posted once a LargeFile Start/Chunk*/End sequence fully
// reassembles for a Source. Opening Data as a video container, scheduling
// native-FPS frame reads, and feeding them back through a VideoDecoder is
// codec/container work this module deliberately leaves to the caller (spec's
// Non-goals exclude codec internals); the hook exists so the bytes are
// handed off instead of discarded.
type VideoFileReady struct {
	Source wire.Source
	Data   []byte
}

// ConnectionLiveness reports whether a Source's owning Connection is still
// open, used to decide whether a StreamDisplay may be lazily created for an
// unrecognized Source (spec §4.6: "only if a Connection for that Source is
// still open; otherwise drop").
type ConnectionLiveness func(source wire.Source) bool

const defaultMaxVideoQueue = 1000
const decoderIdleTTL = time.Second

// Demultiplexer owns the four process-wide maps of spec §4.6 and the
// bounded video queue.
type Demultiplexer struct {
	log *slog.Logger

	decoderFactory   VideoDecoderFactory
	isLive           ConnectionLiveness
	onFrameReady     func(FrameReady)
	onVideoFileReady func(VideoFileReady)

	mu              sync.Mutex
	audioSinks      map[wire.Source]AudioSink
	streamDisplays  map[wire.Source]StreamDisplay
	pendingVideo    map[wire.Source]*bytes.Buffer
	pendingVideoCap map[wire.Source]uint64
	failCounts      map[wire.Source]int
	warnedOnce      map[wire.Source]bool

	decoders *lru.LRU[wire.Source, VideoDecoder]

	videoQueue chan videoJob
	dropCount  int
}

type videoJob struct {
	source wire.Source
	video  wire.Video
}

// New constructs a Demultiplexer. decoderFactory and isLive may be nil in
// tests that never exercise Video dispatch; onFrameReady may be nil to
// discard FrameReady events.
func New(decoderFactory VideoDecoderFactory, isLive ConnectionLiveness, onFrameReady func(FrameReady)) *Demultiplexer {
	d := &Demultiplexer{
		log:             logger.Logger(),
		decoderFactory:  decoderFactory,
		isLive:          isLive,
		onFrameReady:    onFrameReady,
		audioSinks:      make(map[wire.Source]AudioSink),
		streamDisplays:  make(map[wire.Source]StreamDisplay),
		pendingVideo:    make(map[wire.Source]*bytes.Buffer),
		pendingVideoCap: make(map[wire.Source]uint64),
		failCounts:      make(map[wire.Source]int),
		warnedOnce:      make(map[wire.Source]bool),
		videoQueue:      make(chan videoJob, defaultMaxVideoQueue),
	}
	d.decoders = lru.NewLRU[wire.Source, VideoDecoder](0, func(_ wire.Source, v VideoDecoder) {
		if v != nil {
			v.Close()
		}
	}, decoderIdleTTL)
	return d
}

// RegisterVideoFileReadyHook sets the callback invoked with the reassembled
// bytes of a completed LargeFile video transfer. Without one registered, a
// reassembled file is logged and discarded.
func (d *Demultiplexer) RegisterVideoFileReadyHook(fn func(VideoFileReady)) {
	d.mu.Lock()
	d.onVideoFileReady = fn
	d.mu.Unlock()
}

// RegisterAudioSink attaches an AudioSink for source, used by both the
// normal Audio-bookkeeping path below and a caller wiring up playback.
func (d *Demultiplexer) RegisterAudioSink(source wire.Source, sink AudioSink) {
	d.mu.Lock()
	d.audioSinks[source] = sink
	d.mu.Unlock()
}

// RegisterStreamDisplay attaches a StreamDisplay for source explicitly,
// pre-empting the lazy-creation path in Dispatch.
func (d *Demultiplexer) RegisterStreamDisplay(source wire.Source, display StreamDisplay) {
	d.mu.Lock()
	d.streamDisplays[source] = display
	d.mu.Unlock()
}

// Dispatch routes one inbound Packet per spec §4.6. Audio is treated as
// already delivered by the client's fast path (SPEC_FULL.md §9): Dispatch
// only updates bookkeeping for it and never re-enqueues to the sink.
func (d *Demultiplexer) Dispatch(p wire.Packet) {
	switch payload := p.Payload.(type) {
	case wire.Audio:
		d.touchAudio(p.Source)
	case wire.Video:
		d.enqueueVideo(p.Source, payload)
	case wire.ServerInformation:
		// Attached to the owning ClientConnection by the caller; demux has
		// no per-source state for it.
	default:
		d.dispatchToDisplay(p)
	}
}

func (d *Demultiplexer) touchAudio(source wire.Source) {
	d.mu.Lock()
	_, ok := d.audioSinks[source]
	d.mu.Unlock()
	if !ok {
		d.log.Debug("audio packet for source with no registered sink", "source", source.String())
	}
}

// enqueueVideo applies the bounded-queue backpressure rule: if the queue is
// full, the oldest item is dropped to make room, and the drop is counted
// and logged (spec §4.6: "the only place packets are silently dropped on
// the client").
func (d *Demultiplexer) enqueueVideo(source wire.Source, v wire.Video) {
	job := videoJob{source: source, video: v}
	select {
	case d.videoQueue <- job:
		return
	default:
	}

	select {
	case old := <-d.videoQueue:
		d.mu.Lock()
		d.dropCount++
		count := d.dropCount
		d.mu.Unlock()
		d.log.Warn("video queue full, dropped oldest packet", "source", old.source.String(), "total_dropped", count)
	default:
	}
	select {
	case d.videoQueue <- job:
	default:
		d.log.Warn("video queue still full after drop, discarding new packet", "source", source.String())
	}
}

// DrainVideoQueue processes every currently queued video job. Callers run
// this from a dedicated goroutine (or a workpool.Task) rather than inline
// with Dispatch, so a slow decoder never blocks packet ingestion.
func (d *Demultiplexer) DrainVideoQueue() {
	for {
		select {
		case job := <-d.videoQueue:
			d.handleVideo(job.source, job.video)
		default:
			return
		}
	}
}

func (d *Demultiplexer) handleVideo(source wire.Source, v wire.Video) {
	switch v.Tag {
	case wire.VideoTagFrame:
		d.handleFrame(source, v.Frame)
	case wire.VideoTagLargeFile:
		d.handleLargeFile(source, v.LargeFile)
	}
}

func (d *Demultiplexer) handleFrame(source wire.Source, f wire.Frame) {
	dec, err := d.decoderFor(source, f.Width, f.Height)
	if err != nil {
		d.recordFailure(source, err)
		return
	}
	if err := dec.Decode(f); err != nil {
		d.recordFailure(source, err)
		return
	}
	if d.onFrameReady != nil {
		d.onFrameReady(FrameReady{Source: source, Width: f.Width, Height: f.Height})
	}
}

func (d *Demultiplexer) decoderFor(source wire.Source, width, height uint16) (VideoDecoder, error) {
	if dec, ok := d.decoders.Get(source); ok {
		return dec, nil
	}
	if d.decoderFactory == nil {
		return nil, errNoDecoderFactory
	}
	dec, err := d.decoderFactory(width, height)
	if err != nil {
		return nil, err
	}
	d.decoders.Add(source, dec)
	return dec, nil
}

func (d *Demultiplexer) recordFailure(source wire.Source, err error) {
	d.mu.Lock()
	d.failCounts[source]++
	warned := d.warnedOnce[source]
	if !warned {
		d.warnedOnce[source] = true
	}
	d.mu.Unlock()
	if !warned {
		d.log.Warn("video decode failed", "source", source.String(), "error", err)
	}
}

func (d *Demultiplexer) handleLargeFile(source wire.Source, lf wire.LargeFile) {
	switch lf.Tag {
	case wire.LargeFileTagStart:
		d.mu.Lock()
		d.pendingVideo[source] = bytes.NewBuffer(make([]byte, 0, lf.TotalSize))
		d.pendingVideoCap[source] = lf.TotalSize
		d.mu.Unlock()
	case wire.LargeFileTagChunk:
		d.mu.Lock()
		buf, ok := d.pendingVideo[source]
		limit := d.pendingVideoCap[source]
		d.mu.Unlock()
		if !ok {
			return
		}
		if uint64(buf.Len()+len(lf.Chunk)) > limit {
			d.log.Warn("video LargeFile chunk exceeds declared size, dropping accumulator", "source", source.String())
			d.mu.Lock()
			delete(d.pendingVideo, source)
			delete(d.pendingVideoCap, source)
			d.mu.Unlock()
			return
		}
		buf.Write(lf.Chunk)
	case wire.LargeFileTagEnd:
		d.mu.Lock()
		buf, ok := d.pendingVideo[source]
		delete(d.pendingVideo, source)
		delete(d.pendingVideoCap, source)
		d.mu.Unlock()
		if !ok {
			return
		}
		d.finalizeVideoFile(source, buf.Bytes())
	}
}

// finalizeVideoFile hands the fully reassembled file off to the registered
// VideoFileReady hook. Opening it as a video stream, scheduling native-FPS
// frame reads, and emitting FrameReady per decoded frame is codec/container
// work this module deliberately does not perform (spec.md's Non-goals
// exclude codec internals).
func (d *Demultiplexer) finalizeVideoFile(source wire.Source, data []byte) {
	d.mu.Lock()
	hook := d.onVideoFileReady
	d.mu.Unlock()
	if hook == nil {
		d.log.Warn("no VideoFileReady hook registered, discarding reassembled file", "source", source.String(), "bytes", len(data))
		return
	}
	hook(VideoFileReady{Source: source, Data: data})
}

func (d *Demultiplexer) dispatchToDisplay(p wire.Packet) {
	d.mu.Lock()
	disp, ok := d.streamDisplays[p.Source]
	if !ok {
		if d.isLive != nil && d.isLive(p.Source) {
			// No concrete StreamDisplay implementation is constructed here
			// (spec.md's Non-goals exclude UI/presentation internals); a
			// caller must RegisterStreamDisplay before traffic for a new
			// Source arrives, or this packet is dropped.
			d.mu.Unlock()
			d.log.Debug("no StreamDisplay registered for live source, dropping", "source", p.Source.String())
			return
		}
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	disp.Display(p)
}

// CleanupSource drops every map entry for source, called when its owning
// Connection closes or a sink is destroyed (spec §4.6 cleanupIfDirty).
func (d *Demultiplexer) CleanupSource(source wire.Source) {
	d.mu.Lock()
	delete(d.audioSinks, source)
	delete(d.streamDisplays, source)
	delete(d.pendingVideo, source)
	delete(d.pendingVideoCap, source)
	delete(d.failCounts, source)
	delete(d.warnedOnce, source)
	d.mu.Unlock()
	d.decoders.Remove(source)
}

// FailCount returns the recorded decode-failure count for source.
func (d *Demultiplexer) FailCount(source wire.Source) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failCounts[source]
}

// DroppedVideoPackets returns the cumulative count of video packets dropped
// by queue backpressure.
func (d *Demultiplexer) DroppedVideoPackets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropCount
}
