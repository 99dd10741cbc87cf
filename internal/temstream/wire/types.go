package wire

import "fmt"

// Address identifies a TCP endpoint. Equality is structural.
type Address struct {
	Host string
	Port uint16
}

func (a Address) String() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

func (a Address) encode(w *Writer) {
	w.WriteString(a.Host)
	w.WriteUint32(uint32(a.Port))
}

func decodeAddress(r *Reader) (Address, error) {
	host, err := r.ReadString()
	if err != nil {
		return Address{}, err
	}
	port, err := r.ReadUint32()
	if err != nil {
		return Address{}, err
	}
	return Address{Host: host, Port: uint16(port)}, nil
}

// Source identifies one logical stream: the server address plus the name
// the server operator gave it. Source is the key most maps in this system
// use.
type Source struct {
	Address    Address
	ServerName string
}

// Empty reports whether this Source names no stream.
func (s Source) Empty() bool { return s.ServerName == "" }

func (s Source) String() string { return fmt.Sprintf("%s/%s", s.Address, s.ServerName) }

func (s Source) encode(w *Writer) {
	s.Address.encode(w)
	w.WriteString(s.ServerName)
}

func decodeSource(r *Reader) (Source, error) {
	addr, err := decodeAddress(r)
	if err != nil {
		return Source{}, err
	}
	name, err := r.ReadString()
	if err != nil {
		return Source{}, err
	}
	return Source{Address: addr, ServerName: name}, nil
}

// ServerType determines which Payload variant is valid as a stream payload
// on a server.
type ServerType uint8

const (
	ServerTypeUnknown ServerType = iota
	ServerTypeLink
	ServerTypeText
	ServerTypeChat
	ServerTypeImage
	ServerTypeAudio
	ServerTypeVideo
)

func (t ServerType) String() string {
	switch t {
	case ServerTypeLink:
		return "Link"
	case ServerTypeText:
		return "Text"
	case ServerTypeChat:
		return "Chat"
	case ServerTypeImage:
		return "Image"
	case ServerTypeAudio:
		return "Audio"
	case ServerTypeVideo:
		return "Video"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is one of the six concrete stream types.
func (t ServerType) Valid() bool { return t >= ServerTypeLink && t <= ServerTypeVideo }

func (t ServerType) encode(w *Writer) { w.buf.WriteByte(byte(t)) }

func decodeServerType(r *Reader) (ServerType, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return ServerType(b[0]), nil
}

// PeerFlags is a bitset of grants. Owner implies every other flag.
type PeerFlags uint32

const (
	FlagNone         PeerFlags = 0
	FlagWriteAccess  PeerFlags = 1 << 0
	FlagReplayAccess PeerFlags = 1 << 1
	FlagModerator    PeerFlags = 1 << 2
	FlagOwner        PeerFlags = 1 << 3
)

func (f PeerFlags) Has(check PeerFlags) bool {
	return f&(check|FlagOwner) != 0
}

func (f PeerFlags) HasWriteAccess() bool  { return f.Has(FlagWriteAccess) }
func (f PeerFlags) HasReplayAccess() bool { return f.Has(FlagReplayAccess) }
func (f PeerFlags) IsModerator() bool     { return f.Has(FlagModerator) }
func (f PeerFlags) IsOwner() bool         { return f&FlagOwner != 0 }

func (f PeerFlags) encode(w *Writer) { w.WriteUint32(uint32(f)) }

func decodePeerFlags(r *Reader) (PeerFlags, error) {
	v, err := r.ReadUint32()
	return PeerFlags(v), err
}

// PeerInformation names one authenticated peer and its access grants.
type PeerInformation struct {
	Name  string
	Flags PeerFlags
}

func (p PeerInformation) encode(w *Writer) {
	w.WriteString(p.Name)
	p.Flags.encode(w)
}

func decodePeerInformation(r *Reader) (PeerInformation, error) {
	name, err := r.ReadString()
	if err != nil {
		return PeerInformation{}, err
	}
	flags, err := decodePeerFlags(r)
	if err != nil {
		return PeerInformation{}, err
	}
	return PeerInformation{Name: name, Flags: flags}, nil
}

// Credentials tags are the sum's two variants: Token(string) and
// UserPass(string, string).
const (
	credentialsTagToken = iota
	credentialsTagUserPass
)

// Credentials is the sum type offered during AwaitingCredentials.
type Credentials struct {
	Token    string // set iff IsToken
	User     string // set iff !IsToken
	Password string // set iff !IsToken
	IsToken  bool
}

// NewTokenCredentials builds a Credentials carrying a bearer token.
func NewTokenCredentials(token string) Credentials {
	return Credentials{Token: token, IsToken: true}
}

// NewUserPassCredentials builds a Credentials carrying a username/password pair.
func NewUserPassCredentials(user, password string) Credentials {
	return Credentials{User: user, Password: password}
}

func (c Credentials) encode(w *Writer) {
	if c.IsToken {
		w.WriteUint32(credentialsTagToken)
		w.WriteString(c.Token)
		return
	}
	w.WriteUint32(credentialsTagUserPass)
	w.WriteString(c.User)
	w.WriteString(c.Password)
}

func decodeCredentials(r *Reader) (Credentials, error) {
	tag, err := r.ReadUint32()
	if err != nil {
		return Credentials{}, err
	}
	switch tag {
	case credentialsTagToken:
		tok, err := r.ReadString()
		if err != nil {
			return Credentials{}, err
		}
		return NewTokenCredentials(tok), nil
	case credentialsTagUserPass:
		user, err := r.ReadString()
		if err != nil {
			return Credentials{}, err
		}
		pass, err := r.ReadString()
		if err != nil {
			return Credentials{}, err
		}
		return NewUserPassCredentials(user, pass), nil
	default:
		return Credentials{}, fmt.Errorf("wire: unknown credentials tag %d", tag)
	}
}

// VerifyLogin is sent exactly once by the server, immediately after
// successful authentication.
type VerifyLogin struct {
	ServerName      string
	PeerInformation PeerInformation
	ServerType      ServerType
	SendRateSecs    uint32
}

func (v VerifyLogin) encode(w *Writer) {
	w.WriteString(v.ServerName)
	v.PeerInformation.encode(w)
	v.ServerType.encode(w)
	w.WriteUint32(v.SendRateSecs)
}

func decodeVerifyLogin(r *Reader) (VerifyLogin, error) {
	name, err := r.ReadString()
	if err != nil {
		return VerifyLogin{}, err
	}
	info, err := decodePeerInformation(r)
	if err != nil {
		return VerifyLogin{}, err
	}
	st, err := decodeServerType(r)
	if err != nil {
		return VerifyLogin{}, err
	}
	rate, err := r.ReadUint32()
	if err != nil {
		return VerifyLogin{}, err
	}
	return VerifyLogin{ServerName: name, PeerInformation: info, ServerType: st, SendRateSecs: rate}, nil
}

// ServerLink points at another stream, used by Link servers.
type ServerLink struct {
	Address Address
	Name    string
	Type    ServerType
}

func (l ServerLink) encode(w *Writer) {
	l.Address.encode(w)
	w.WriteString(l.Name)
	l.Type.encode(w)
}

func decodeServerLink(r *Reader) (ServerLink, error) {
	addr, err := decodeAddress(r)
	if err != nil {
		return ServerLink{}, err
	}
	name, err := r.ReadString()
	if err != nil {
		return ServerLink{}, err
	}
	st, err := decodeServerType(r)
	if err != nil {
		return ServerLink{}, err
	}
	return ServerLink{Address: addr, Name: name, Type: st}, nil
}
