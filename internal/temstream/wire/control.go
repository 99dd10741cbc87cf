package wire

// Image is the payload carried by Image streams — always a LargeFile
// sequence since images routinely exceed one wire frame.
type Image struct {
	LargeFile LargeFile
}

func (i Image) encode(w *Writer) { i.LargeFile.encode(w) }

func decodeImage(r *Reader) (Image, error) {
	lf, err := decodeLargeFile(r)
	if err != nil {
		return Image{}, err
	}
	return Image{LargeFile: lf}, nil
}

// Audio is the payload carried by Audio streams.
type Audio struct {
	Bytes []byte
}

func (a Audio) encode(w *Writer) { w.WriteBytes(a.Bytes) }

func decodeAudio(r *Reader) (Audio, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return Audio{}, err
	}
	return Audio{Bytes: b}, nil
}

// ServerLinks is the payload carried by Link streams.
type ServerLinks struct {
	Links []ServerLink
}

func (s ServerLinks) encode(w *Writer) {
	w.WriteCount(len(s.Links))
	for _, l := range s.Links {
		l.encode(w)
	}
}

func decodeServerLinks(r *Reader) (ServerLinks, error) {
	n, err := r.ReadCount()
	if err != nil {
		return ServerLinks{}, err
	}
	links := make([]ServerLink, 0, n)
	for i := 0; i < n; i++ {
		l, err := decodeServerLink(r)
		if err != nil {
			return ServerLinks{}, err
		}
		links = append(links, l)
	}
	return ServerLinks{Links: links}, nil
}

// RequestServerInformation carries no fields; it asks the server for a
// ServerInformation snapshot.
type RequestServerInformation struct{}

func (RequestServerInformation) encode(*Writer) {}

func decodeRequestServerInformation(*Reader) (RequestServerInformation, error) {
	return RequestServerInformation{}, nil
}

// ServerInformation is the server's answer to RequestServerInformation.
type ServerInformation struct {
	Peers   []PeerInformation
	BanList []string
}

func (s ServerInformation) encode(w *Writer) {
	w.WriteCount(len(s.Peers))
	for _, p := range s.Peers {
		p.encode(w)
	}
	w.WriteCount(len(s.BanList))
	for _, name := range s.BanList {
		w.WriteString(name)
	}
}

func decodeServerInformation(r *Reader) (ServerInformation, error) {
	n, err := r.ReadCount()
	if err != nil {
		return ServerInformation{}, err
	}
	peers := make([]PeerInformation, 0, n)
	for i := 0; i < n; i++ {
		p, err := decodePeerInformation(r)
		if err != nil {
			return ServerInformation{}, err
		}
		peers = append(peers, p)
	}
	m, err := r.ReadCount()
	if err != nil {
		return ServerInformation{}, err
	}
	banList := make([]string, 0, m)
	for i := 0; i < m; i++ {
		name, err := r.ReadString()
		if err != nil {
			return ServerInformation{}, err
		}
		banList = append(banList, name)
	}
	return ServerInformation{Peers: peers, BanList: banList}, nil
}

// BanUser asks a moderator-privileged server to ban the named user.
type BanUser struct {
	Name string
}

func (b BanUser) encode(w *Writer) { w.WriteString(b.Name) }

func decodeBanUser(r *Reader) (BanUser, error) {
	name, err := r.ReadString()
	if err != nil {
		return BanUser{}, err
	}
	return BanUser{Name: name}, nil
}

// GetReplay asks the server to stream every RecordedPacket in the bucket
// containing timestamp Timestamp (ms since epoch). See replay package for
// the bucket-selection contract.
type GetReplay struct {
	Timestamp int64
}

func (g GetReplay) encode(w *Writer) { w.WriteInt64(g.Timestamp) }

func decodeGetReplay(r *Reader) (GetReplay, error) {
	ts, err := r.ReadInt64()
	if err != nil {
		return GetReplay{}, err
	}
	return GetReplay{Timestamp: ts}, nil
}

// Replay wraps one historical Packet, re-encoded, for transport back to a
// replaying client.
type Replay struct {
	EncodedPacket []byte
}

func (r Replay) encode(w *Writer) { w.WriteBytes(r.EncodedPacket) }

func decodeReplay(r *Reader) (Replay, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return Replay{}, err
	}
	return Replay{EncodedPacket: b}, nil
}

// NoReplay terminates a GetReplay stream, or answers GetTimeRange/GetReplay
// when no recording exists.
type NoReplay struct{}

func (NoReplay) encode(*Writer) {}

func decodeNoReplay(*Reader) (NoReplay, error) { return NoReplay{}, nil }

// TimeRange answers GetTimeRange with the bounds of the replay log.
type TimeRange struct {
	First int64
	Last  int64
}

func (t TimeRange) encode(w *Writer) {
	w.WriteInt64(t.First)
	w.WriteInt64(t.Last)
}

func decodeTimeRange(r *Reader) (TimeRange, error) {
	first, err := r.ReadInt64()
	if err != nil {
		return TimeRange{}, err
	}
	last, err := r.ReadInt64()
	if err != nil {
		return TimeRange{}, err
	}
	return TimeRange{First: first, Last: last}, nil
}

// GetTimeRange carries no fields; it asks for the replay log's timestamp bounds.
type GetTimeRange struct{}

func (GetTimeRange) encode(*Writer) {}

func decodeGetTimeRange(*Reader) (GetTimeRange, error) { return GetTimeRange{}, nil }
