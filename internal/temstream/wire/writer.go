// Package wire implements the portable binary encoding used for every
// Packet exchanged between TemStream peers: explicit u32 tags for sum
// types, size-prefixed strings and byte blobs, count-prefixed containers.
// Nothing here depends on net.Conn; it operates purely on in-memory byte
// buffers so it can be unit tested without sockets.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer accumulates the portable binary encoding of a single Packet body.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoded body.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// WriteBytes writes a (u64 count, bytes) pair — the same envelope used for
// strings, since a string is just a length-prefixed UTF-8 byte blob.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint64(uint64(len(b)))
	w.buf.Write(b)
}

func (w *Writer) WriteString(s string) { w.WriteBytes([]byte(s)) }

// WriteCount writes a container's element count prefix.
func (w *Writer) WriteCount(n int) { w.WriteUint64(uint64(n)) }

// Reader consumes the portable binary encoding produced by Writer. Every
// method returns an error on short input instead of panicking, since the
// bytes may come directly off an untrusted socket.
type Reader struct {
	b   []byte
	pos int
}

// NewReader wraps b for sequential decoding. b is not copied or retained
// beyond the lifetime of the decode call — callers must not mutate it
// concurrently with reads.
func NewReader(b []byte) *Reader { return &Reader{b: b} }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.b) - r.pos }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.b) {
		return nil, fmt.Errorf("wire: %w: need %d bytes, have %d", io.ErrUnexpectedEOF, n, r.Remaining())
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

const maxBlobSize = 1 << 32 // guards against a corrupt/hostile length prefix forcing a huge allocation

// ReadBytes reads a (u64 count, bytes) pair and returns a copy of the bytes
// (the backing array is the shared decode buffer, so callers that retain
// the slice across further reads need their own copy).
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n > maxBlobSize {
		return nil, fmt.Errorf("wire: blob length %d exceeds maximum", n)
	}
	raw, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadCount reads a container element count, bounding it to a sane upper
// limit so a corrupt prefix cannot force an enormous pre-allocation.
func (r *Reader) ReadCount() (int, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	if n > maxBlobSize {
		return 0, fmt.Errorf("wire: container count %d exceeds maximum", n)
	}
	return int(n), nil
}
