package wire

import "fmt"

// LargeFile tags. Fixed by spec §6.1: 0 = End (monostate), 1 = Start(u64
// totalSize), 2 = Chunk(bytes).
const (
	LargeFileTagEnd = iota
	LargeFileTagStart
	LargeFileTagChunk
)

// LargeFile is the sender-driven chunking envelope used by Image and Video
// for payloads bigger than one wire frame.
type LargeFile struct {
	Tag       int
	TotalSize uint64 // valid iff Tag == LargeFileTagStart
	Chunk     []byte // valid iff Tag == LargeFileTagChunk
}

func LargeFileStart(totalSize uint64) LargeFile { return LargeFile{Tag: LargeFileTagStart, TotalSize: totalSize} }
func LargeFileChunkOf(b []byte) LargeFile        { return LargeFile{Tag: LargeFileTagChunk, Chunk: b} }
func LargeFileEnd() LargeFile                    { return LargeFile{Tag: LargeFileTagEnd} }

func (lf LargeFile) encode(w *Writer) {
	switch lf.Tag {
	case LargeFileTagEnd:
		w.WriteUint32(LargeFileTagEnd)
	case LargeFileTagStart:
		w.WriteUint32(LargeFileTagStart)
		w.WriteUint64(lf.TotalSize)
	case LargeFileTagChunk:
		w.WriteUint32(LargeFileTagChunk)
		w.WriteBytes(lf.Chunk)
	}
}

func decodeLargeFile(r *Reader) (LargeFile, error) {
	tag, err := r.ReadUint32()
	if err != nil {
		return LargeFile{}, err
	}
	switch tag {
	case LargeFileTagEnd:
		return LargeFileEnd(), nil
	case LargeFileTagStart:
		n, err := r.ReadUint64()
		if err != nil {
			return LargeFile{}, err
		}
		return LargeFileStart(n), nil
	case LargeFileTagChunk:
		b, err := r.ReadBytes()
		if err != nil {
			return LargeFile{}, err
		}
		return LargeFileChunkOf(b), nil
	default:
		return LargeFile{}, fmt.Errorf("wire: unknown LargeFile tag %d", tag)
	}
}

// MaxFileChunk bounds a single LargeFile Chunk variant, matching the
// original implementation's chunking granularity.
const MaxFileChunk = 64 * 1024

// SplitLargeFile yields the Start/Chunk.../End sequence for data, calling
// emit for each LargeFile value in order.
func SplitLargeFile(data []byte, emit func(LargeFile) error) error {
	if err := emit(LargeFileStart(uint64(len(data)))); err != nil {
		return err
	}
	for off := 0; off < len(data); off += MaxFileChunk {
		end := off + MaxFileChunk
		if end > len(data) {
			end = len(data)
		}
		chunk := make([]byte, end-off)
		copy(chunk, data[off:end])
		if err := emit(LargeFileChunkOf(chunk)); err != nil {
			return err
		}
	}
	return emit(LargeFileEnd())
}
