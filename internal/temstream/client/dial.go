package client

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/avast/retry-go/v4"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
	"github.com/temdog007/temstream-go/internal/logger"
	"github.com/temdog007/temstream-go/internal/temstream/transport"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// DialOptions configures Dial's retry behavior, resolving SPEC_FULL.md
// §4.5's reconnection-on-transport-failure open question: Unreachable and
// Refused are retried with exponential backoff rather than surfaced
// immediately, since both are routinely transient for a client reconnecting
// to a server that is mid-restart.
type DialOptions struct {
	TLS         *tls.Config
	Attempts    uint
	InitialWait time.Duration
	MaxWait     time.Duration
}

// DefaultDialOptions returns sane retry bounds: 5 attempts, starting at
// 200ms and capped at 5s between tries.
func DefaultDialOptions() DialOptions {
	return DialOptions{Attempts: 5, InitialWait: 200 * time.Millisecond, MaxWait: 5 * time.Second}
}

// Dial connects to host:port, retrying transient failures per opts, and
// wraps the resulting socket as an opened Connection. ctx cancels the
// retry loop early (e.g. the caller's own shutdown signal), matching the
// original's opened/appDone cancellation flags generalized to Go's idiom.
func Dial(ctx context.Context, host string, port uint16, audioSink AudioSink, opts DialOptions) (*Connection, error) {
	log := logger.WithSource(logger.Logger(), "", host)

	var sock transport.Socket
	err := retry.Do(
		func() error {
			var dialErr error
			if opts.TLS != nil {
				sock, dialErr = transport.DialTLS(host, port, opts.TLS)
			} else {
				sock, dialErr = transport.Dial(host, port)
			}
			if dialErr != nil {
				log.Warn("dial attempt failed", "error", dialErr)
			}
			return dialErr
		},
		retry.Context(ctx),
		retry.Attempts(opts.Attempts),
		retry.Delay(opts.InitialWait),
		retry.MaxDelay(opts.MaxWait),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return temerrors.IsTransportError(err) || temerrors.IsTimeout(err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	return New(sock, wire.Address{Host: host, Port: port}, audioSink), nil
}
