package auth

import (
	"bufio"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"sync"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// fileEntry is one line of a FileVerifier's backing file:
// name:salt-hex:hash-hex:flags
type fileEntry struct {
	name  string
	salt  []byte
	hash  []byte
	flags wire.PeerFlags
}

// FileVerifier validates Credentials.UserPass against a flat file of
// salted SHA-256 hashes. No bcrypt-equivalent library appears anywhere in
// the example corpus, so hashing is built on the standard library's
// crypto/sha256 plus a per-user random salt rather than a hand-rolled KDF.
type FileVerifier struct {
	mu      sync.RWMutex
	entries map[string]fileEntry
}

// LoadFileVerifier parses path, one entry per line.
func LoadFileVerifier(path string) (*FileVerifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, temerrors.NewResourceError("auth.file.load", err)
	}
	defer f.Close()

	entries := make(map[string]fileEntry)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) != 4 {
			return nil, temerrors.NewResourceError("auth.file.load", nil)
		}
		salt, err := hex.DecodeString(parts[1])
		if err != nil {
			return nil, temerrors.NewResourceError("auth.file.load", err)
		}
		hash, err := hex.DecodeString(parts[2])
		if err != nil {
			return nil, temerrors.NewResourceError("auth.file.load", err)
		}
		flags, err := strconv.ParseUint(parts[3], 10, 32)
		if err != nil {
			return nil, temerrors.NewResourceError("auth.file.load", err)
		}
		entries[parts[0]] = fileEntry{name: parts[0], salt: salt, hash: hash, flags: wire.PeerFlags(flags)}
	}
	if err := sc.Err(); err != nil {
		return nil, temerrors.NewResourceError("auth.file.load", err)
	}
	return &FileVerifier{entries: entries}, nil
}

func (v *FileVerifier) Verify(creds wire.Credentials) (Identity, error) {
	if creds.IsToken {
		return Identity{}, temerrors.NewAuthError("auth.file.verify", nil)
	}
	v.mu.RLock()
	entry, ok := v.entries[creds.User]
	v.mu.RUnlock()
	if !ok {
		return Identity{}, temerrors.NewAuthError("auth.file.verify", nil)
	}
	got := hashPassword(creds.Password, entry.salt)
	if subtle.ConstantTimeCompare(got, entry.hash) != 1 {
		return Identity{}, temerrors.NewAuthError("auth.file.verify", nil)
	}
	return Identity{Name: entry.name, Flags: entry.flags}, nil
}

func hashPassword(password string, salt []byte) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}

// NewFileEntry produces a line suitable for appending to a FileVerifier's
// backing file, for use by an out-of-band admin tool that provisions users.
func NewFileEntry(name, password string, flags wire.PeerFlags, salt []byte) string {
	hash := hashPassword(password, salt)
	return name + ":" + hex.EncodeToString(salt) + ":" + hex.EncodeToString(hash) + ":" + strconv.FormatUint(uint64(flags), 10)
}
