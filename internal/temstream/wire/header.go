package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// HeaderSize is the fixed, wire-exact size of a Header: 16 bytes of magic
// GUID followed by an 8-byte little-endian body size.
const HeaderSize = 16 + 8

// magicGUID is a fixed implementation constant. It is hard-coded rather
// than generated or derived from any runtime hash so that it is identical
// across builds, platforms, and process restarts — see spec §9 ("the
// header's magic GUID must be identical across platforms — do not derive
// it from std::hash").
var magicGUID = uuid.MustParse("7a3c9e2e-7c1b-4b8a-9b0a-1f6e8d2c4a11")

// MagicGUID returns the 16-byte constant every valid Header must carry.
func MagicGUID() [16]byte {
	var out [16]byte
	copy(out[:], magicGUID[:])
	return out
}

// Header precedes every Packet body on the wire.
type Header struct {
	Magic [16]byte
	Size  uint64
}

// Encode writes the bit-exact 24-byte header representation.
func (h Header) Encode() []byte {
	out := make([]byte, HeaderSize)
	copy(out[0:16], h.Magic[:])
	binary.LittleEndian.PutUint64(out[16:24], h.Size)
	return out
}

// DecodeHeader parses a Header from exactly HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short header: need %d bytes, have %d", HeaderSize, len(b))
	}
	var h Header
	copy(h.Magic[:], b[0:16])
	h.Size = binary.LittleEndian.Uint64(b[16:24])
	return h, nil
}

// Valid reports whether the header's magic matches the implementation
// constant and its declared size is within maxMessageSize.
func (h Header) Valid(maxMessageSize uint64) bool {
	return h.Magic == MagicGUID() && h.Size > 0 && h.Size <= maxMessageSize
}
