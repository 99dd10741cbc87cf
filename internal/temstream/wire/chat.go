package wire

// Chat is the payload carried by Chat streams.
type Chat struct {
	Author      string
	Message     string
	TimestampMs int64
}

func (c Chat) encode(w *Writer) {
	w.WriteString(c.Author)
	w.WriteString(c.Message)
	w.WriteInt64(c.TimestampMs)
}

func decodeChat(r *Reader) (Chat, error) {
	author, err := r.ReadString()
	if err != nil {
		return Chat{}, err
	}
	msg, err := r.ReadString()
	if err != nil {
		return Chat{}, err
	}
	ts, err := r.ReadInt64()
	if err != nil {
		return Chat{}, err
	}
	return Chat{Author: author, Message: msg, TimestampMs: ts}, nil
}
