package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

func secondsToTime(epochSecs int64) time.Time { return time.Unix(epochSecs, 0) }

// tokenClaims are the custom claims TokenVerifier expects, in addition to
// the registered claims jwt.RegisteredClaims already validates (exp, nbf).
type tokenClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name"`
	Flags uint32 `json:"flags"`
}

// TokenVerifier validates Credentials.Token as a JWT signed with a shared
// HMAC key, extracting the peer's name and flags from its claims.
type TokenVerifier struct {
	key []byte
}

// NewTokenVerifier builds a TokenVerifier keyed by key (the server's
// configured -jwt-key secret).
func NewTokenVerifier(key []byte) *TokenVerifier {
	return &TokenVerifier{key: key}
}

func (v *TokenVerifier) Verify(creds wire.Credentials) (Identity, error) {
	if !creds.IsToken {
		return Identity{}, temerrors.NewAuthError("auth.token.verify", nil)
	}
	raw := strings.TrimSpace(creds.Token)
	if raw == "" {
		return Identity{}, temerrors.NewAuthError("auth.token.verify", nil)
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, temerrors.NewAuthError("auth.token.verify", nil)
		}
		return v.key, nil
	})
	if err != nil {
		return Identity{}, temerrors.NewAuthError("auth.token.verify", err)
	}
	if claims.Name == "" {
		return Identity{}, temerrors.NewAuthError("auth.token.verify", nil)
	}
	return Identity{Name: claims.Name, Flags: wire.PeerFlags(claims.Flags)}, nil
}

// IssueToken signs a token granting name the given flags, expiring at
// expiresAt in Unix seconds (used by a trusted issuer, not by the server
// itself).
func IssueToken(key []byte, name string, flags wire.PeerFlags, expiresAt int64) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(secondsToTime(expiresAt)),
		},
		Name:  name,
		Flags: uint32(flags),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(key)
}
