// Package auth implements pluggable Credentials verification for ServerPeer:
// a bearer-token path backed by JWT, a flat-file user/password path, and an
// exec-based plugin path for external authenticators.
package auth

import (
	temerrors "github.com/temdog007/temstream-go/internal/errors"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// Identity is what a successful verification yields: the peer's name and
// the flags it has been granted.
type Identity struct {
	Name  string
	Flags wire.PeerFlags
}

// Verifier checks a Credentials payload and, on success, returns the
// Identity it grants. Implementations must be safe for concurrent use —
// ServerCore calls Verify from each peer's own goroutine.
type Verifier interface {
	Verify(creds wire.Credentials) (Identity, error)
}

// Chain tries each Verifier in order, returning the first success. Used
// when a server accepts both Token and UserPass credentials simultaneously.
type Chain []Verifier

func (c Chain) Verify(creds wire.Credentials) (Identity, error) {
	lastErr := temerrors.NewAuthError("auth.chain", nil)
	for _, v := range c {
		id, err := v.Verify(creds)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return Identity{}, lastErr
}
