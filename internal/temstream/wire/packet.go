package wire

// Packet is the unit exchanged between peers: a typed Payload tagged with
// the Source it belongs to. Per spec §6.1, the wire order is
// (Payload, Source) — opposite of the §3 field-declaration order — so
// Encode/Decode follow the wire order exactly.
type Packet struct {
	Source  Source
	Payload Payload
}

// Encode serializes p's body (without the preceding Header) using the
// portable binary encoding.
func Encode(p Packet) ([]byte, error) {
	w := NewWriter()
	if err := encodePayload(w, p.Payload); err != nil {
		return nil, err
	}
	p.Source.encode(w)
	return w.Bytes(), nil
}

// Decode parses a Packet body previously produced by Encode. An error
// indicates either truncated input or a decode mismatch; callers on a
// Connection must treat either as fatal per spec §4.2.
func Decode(body []byte) (Packet, error) {
	r := NewReader(body)
	payload, err := decodePayload(r)
	if err != nil {
		return Packet{}, err
	}
	source, err := decodeSource(r)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Source: source, Payload: payload}, nil
}

// EncodeFramed wraps Encode with the Header that precedes every Packet on
// the wire: magic GUID plus the body's exact length.
func EncodeFramed(p Packet) ([]byte, error) {
	body, err := Encode(p)
	if err != nil {
		return nil, err
	}
	h := Header{Magic: MagicGUID(), Size: uint64(len(body))}
	out := make([]byte, 0, HeaderSize+len(body))
	out = append(out, h.Encode()...)
	out = append(out, body...)
	return out, nil
}
