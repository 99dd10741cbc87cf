package auth

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// PluginVerifier execs an external binary for each credential check: the
// credential is written to its stdin as "token\n" or "user\npassword\n",
// and on success it writes "name\nflags\n" to stdout before exiting 0.
// This is the Go-safe analogue of the original C source's dlopen-based
// AuthenticateFunc — Go has no supported story for loading and calling an
// arbitrary function pointer from a shared object at runtime, so the
// equivalent extension point here is a subprocess boundary instead of an
// in-process one.
type PluginVerifier struct {
	path    string
	timeout time.Duration
}

// NewPluginVerifier wraps the executable at path. timeout bounds how long a
// single verification may run; zero uses a 5 second default.
func NewPluginVerifier(path string, timeout time.Duration) *PluginVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PluginVerifier{path: path, timeout: timeout}
}

func (v *PluginVerifier) Verify(creds wire.Credentials) (Identity, error) {
	var stdin bytes.Buffer
	if creds.IsToken {
		stdin.WriteString(creds.Token)
		stdin.WriteString("\n")
	} else {
		stdin.WriteString(creds.User)
		stdin.WriteString("\n")
		stdin.WriteString(creds.Password)
		stdin.WriteString("\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.path)
	cmd.Stdin = &stdin
	out, err := cmd.Output()
	if err != nil {
		return Identity{}, temerrors.NewAuthError("auth.plugin.verify", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	if !sc.Scan() {
		return Identity{}, temerrors.NewAuthError("auth.plugin.verify", nil)
	}
	name := strings.TrimSpace(sc.Text())
	if name == "" {
		return Identity{}, temerrors.NewAuthError("auth.plugin.verify", nil)
	}
	flags := wire.PeerFlags(0)
	if sc.Scan() {
		if n, err := strconv.ParseUint(strings.TrimSpace(sc.Text()), 10, 32); err == nil {
			flags = wire.PeerFlags(n)
		}
	}
	return Identity{Name: name, Flags: flags}, nil
}
