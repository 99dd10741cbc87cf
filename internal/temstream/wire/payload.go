package wire

import "fmt"

// Text is the payload carried by Text streams: a single UTF-8 string.
type Text string

func (t Text) encode(w *Writer) { w.WriteString(string(t)) }

func decodeText(r *Reader) (Text, error) {
	s, err := r.ReadString()
	return Text(s), err
}

// Empty is the Payload variant carried by Packets that have no body of
// their own (reserved for future use / as a decode zero value).
type Empty struct{}

func (Empty) encode(*Writer) {}

func decodeEmpty(*Reader) (Empty, error) { return Empty{}, nil }

// Payload is the tagged union carried by every Packet. Implementations are
// the concrete message types declared throughout this package; the
// interface intentionally exposes no methods beyond the unexported encode
// hook, which keeps decode exhaustive (every tag below maps to exactly one
// constructor function) instead of relying on a type switch a caller could
// extend incorrectly.
type Payload interface {
	encode(*Writer)
}

// Payload tags, fixed by spec §3/§6.1 to the order the original C++ source
// declares its std::variant — this is the contract resolving the wire
// layout spec.md itself leaves implicit.
const (
	PayloadTagEmpty = iota
	PayloadTagCredentials
	PayloadTagVerifyLogin
	PayloadTagText
	PayloadTagChat
	PayloadTagServerLinks
	PayloadTagImage
	PayloadTagVideo
	PayloadTagAudio
	PayloadTagRequestServerInformation
	PayloadTagServerInformation
	PayloadTagBanUser
	PayloadTagGetReplay
	PayloadTagNoReplay
	PayloadTagReplay
	PayloadTagTimeRange
	PayloadTagGetTimeRange
)

// PayloadTag returns the wire tag for p, or an error if p is not one of the
// recognized concrete payload types.
func PayloadTag(p Payload) (uint32, error) {
	switch p.(type) {
	case Empty:
		return PayloadTagEmpty, nil
	case Credentials:
		return PayloadTagCredentials, nil
	case VerifyLogin:
		return PayloadTagVerifyLogin, nil
	case Text:
		return PayloadTagText, nil
	case Chat:
		return PayloadTagChat, nil
	case ServerLinks:
		return PayloadTagServerLinks, nil
	case Image:
		return PayloadTagImage, nil
	case Video:
		return PayloadTagVideo, nil
	case Audio:
		return PayloadTagAudio, nil
	case RequestServerInformation:
		return PayloadTagRequestServerInformation, nil
	case ServerInformation:
		return PayloadTagServerInformation, nil
	case BanUser:
		return PayloadTagBanUser, nil
	case GetReplay:
		return PayloadTagGetReplay, nil
	case NoReplay:
		return PayloadTagNoReplay, nil
	case Replay:
		return PayloadTagReplay, nil
	case TimeRange:
		return PayloadTagTimeRange, nil
	case GetTimeRange:
		return PayloadTagGetTimeRange, nil
	default:
		return 0, fmt.Errorf("wire: unrecognized payload type %T", p)
	}
}

func encodePayload(w *Writer, p Payload) error {
	tag, err := PayloadTag(p)
	if err != nil {
		return err
	}
	w.WriteUint32(tag)
	p.encode(w)
	return nil
}

func decodePayload(r *Reader) (Payload, error) {
	tag, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	switch tag {
	case PayloadTagEmpty:
		return decodeEmpty(r)
	case PayloadTagCredentials:
		return decodeCredentials(r)
	case PayloadTagVerifyLogin:
		return decodeVerifyLogin(r)
	case PayloadTagText:
		return decodeText(r)
	case PayloadTagChat:
		return decodeChat(r)
	case PayloadTagServerLinks:
		return decodeServerLinks(r)
	case PayloadTagImage:
		return decodeImage(r)
	case PayloadTagVideo:
		return decodeVideo(r)
	case PayloadTagAudio:
		return decodeAudio(r)
	case PayloadTagRequestServerInformation:
		return decodeRequestServerInformation(r)
	case PayloadTagServerInformation:
		return decodeServerInformation(r)
	case PayloadTagBanUser:
		return decodeBanUser(r)
	case PayloadTagGetReplay:
		return decodeGetReplay(r)
	case PayloadTagNoReplay:
		return decodeNoReplay(r)
	case PayloadTagReplay:
		return decodeReplay(r)
	case PayloadTagTimeRange:
		return decodeTimeRange(r)
	case PayloadTagGetTimeRange:
		return decodeGetTimeRange(r)
	default:
		return nil, fmt.Errorf("wire: unknown payload tag %d", tag)
	}
}

// StreamPayloadTag returns the Payload tag expected as the stream payload
// for serverType, per spec §6.5. ok is false for server types with no
// defined stream payload (ServerTypeUnknown).
func StreamPayloadTag(serverType ServerType) (tag uint32, ok bool) {
	switch serverType {
	case ServerTypeText:
		return PayloadTagText, true
	case ServerTypeChat:
		return PayloadTagChat, true
	case ServerTypeImage:
		return PayloadTagImage, true
	case ServerTypeAudio:
		return PayloadTagAudio, true
	case ServerTypeVideo:
		return PayloadTagVideo, true
	case ServerTypeLink:
		return PayloadTagServerLinks, true
	default:
		return 0, false
	}
}

// IsControlTag reports whether tag names a control-subprotocol message
// (always permitted if connection state allows, independent of ServerType).
func IsControlTag(tag uint32) bool {
	switch tag {
	case PayloadTagCredentials, PayloadTagVerifyLogin, PayloadTagRequestServerInformation,
		PayloadTagServerInformation, PayloadTagBanUser, PayloadTagGetReplay, PayloadTagNoReplay,
		PayloadTagReplay, PayloadTagTimeRange, PayloadTagGetTimeRange, PayloadTagEmpty:
		return true
	default:
		return false
	}
}
