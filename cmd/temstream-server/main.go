// Command temstream-server runs one TemStream server process: a single
// ServerType, bound to one address, broadcasting stream payloads to every
// authenticated peer per spec §4.4.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/temdog007/temstream-go/internal/logger"
	"github.com/temdog007/temstream-go/internal/temstream/access"
	"github.com/temdog007/temstream-go/internal/temstream/auth"
	"github.com/temdog007/temstream-go/internal/temstream/replay"
	"github.com/temdog007/temstream-go/internal/temstream/server"
	"github.com/temdog007/temstream-go/internal/temstream/transport"
	"github.com/temdog007/temstream-go/internal/temstream/wire"
	"github.com/temdog007/temstream-go/internal/temstream/workpool"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	acc, accWatcher, accFile, err := loadAccess(cfg)
	if err != nil {
		log.Error("failed to load access list", "error", err)
		os.Exit(1)
	}
	if accWatcher != nil {
		defer accWatcher.Close()
	}

	verifier, err := buildVerifier(cfg)
	if err != nil {
		log.Error("failed to build authenticator", "error", err)
		os.Exit(1)
	}

	core := server.NewCore(server.Config{
		Name:             cfg.name,
		Type:             cfg.serverType,
		MaxClients:       cfg.maxClients,
		MessageRateSecs:  uint32(cfg.messageRateSecs),
		MaxMessageSize:   cfg.maxMessageSize,
		Recording:        cfg.recording,
		ReplayDir:        cfg.replayDir,
		Verifier:         verifier,
		ReplayBucketSize: cfg.replayBucketMs,
	}, acc)

	log.Info("starting server",
		"type", cfg.serverType.String(), "name", cfg.name,
		"addr", net.JoinHostPort(cfg.host, strconv.Itoa(int(cfg.port))),
		"max_message_size", humanize.IBytes(cfg.maxMessageSize),
		"version", version,
	)

	if cfg.recording {
		if err := os.MkdirAll(cfg.replayDir, 0o755); err != nil {
			log.Error("failed to create replay dir", "error", err)
			os.Exit(1)
		}
		if err := core.StartRecording(time.Now().UnixMilli()); err != nil {
			log.Error("failed to start recording", "error", err)
			os.Exit(1)
		}
	}

	ln, err := bindListener(cfg)
	if err != nil {
		log.Error("failed to bind listener", "error", err)
		os.Exit(1)
	}

	var admin *server.AdminServer
	if cfg.adminAddr != "" {
		admin = server.NewAdminServer(core)
		go func() {
			if err := admin.Start(cfg.adminAddr); err != nil {
				log.Warn("admin server stopped", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopCh := make(chan struct{})
	acceptDone := make(chan error, 1)
	go func() {
		acceptDone <- core.Accept(ln, stopCh, func(p *server.Peer) {
			servePeer(core, p)
		})
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	close(stopCh)
	ln.Close()
	<-acceptDone

	if admin != nil {
		admin.Shutdown()
	}

	replayPool := workpool.New(2)
	if path := core.StopRecording(); path != "" {
		done := make(chan struct{})
		replayPool.Add(func() bool {
			defer close(done)
			archiveReplay(log, cfg, path)
			return false
		})
		<-done
	}
	replayPool.Stop()
	core.Stop()

	if accFile != "" {
		if err := acc.SaveFile(accFile); err != nil {
			log.Warn("failed to rewrite access list on shutdown", "error", err)
		}
	}

	log.Info("server stopped cleanly")
}

func bindListener(cfg *cliConfig) (*transport.Listener, error) {
	addr := net.JoinHostPort(cfg.host, strconv.Itoa(int(cfg.port)))
	if cfg.certFile == "" {
		return transport.Listen(addr)
	}
	cert, err := tls.LoadX509KeyPair(cfg.certFile, cfg.keyFile)
	if err != nil {
		return nil, err
	}
	return transport.ListenTLS(addr, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
}

// loadAccess loads the configured banlist/allowlist file and starts
// fsnotify-based hot reload on it, so a moderator editing the file by hand
// takes effect without a restart. The returned Watcher is nil when no file
// is configured; accFile is returned separately so the caller can still
// rewrite it on shutdown.
func loadAccess(cfg *cliConfig) (*access.Access, *access.Watcher, string, error) {
	path := cfg.banlistFile
	if path == "" {
		path = cfg.allowlistFile
	}
	if path == "" {
		return access.New(true), nil, "", nil
	}
	w, err := access.WatchFile(path)
	if err != nil {
		return nil, nil, "", err
	}
	return w.Access(), w, path, nil
}

func buildVerifier(cfg *cliConfig) (auth.Verifier, error) {
	var chain auth.Chain
	if cfg.jwtKey != "" {
		chain = append(chain, auth.NewTokenVerifier([]byte(cfg.jwtKey)))
	}
	if cfg.authPlugin != "" {
		chain = append(chain, auth.NewPluginVerifier(cfg.authPlugin, 5*time.Second))
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}

func archiveReplay(log *slog.Logger, cfg *cliConfig, path string) {
	gzPath, err := replay.Compact(path)
	if err != nil {
		log.Warn("failed to compact replay log", "path", path, "error", err)
		return
	}
	if cfg.azureContainer == "" {
		return
	}
	archiver, err := replay.NewArchiver(cfg.azureServiceURL, cfg.azureContainer)
	if err != nil {
		log.Warn("failed to build replay archiver", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := archiver.Upload(ctx, gzPath); err != nil {
		log.Warn("failed to upload replay log", "path", gzPath, "error", err)
		return
	}
	log.Info("replay log archived", "path", gzPath)
}

// servePeer runs the handshake inline on the goroutine Core.Accept starts
// for the connection (it is one-shot and bounded at 30s) and, once the peer
// goes Live, hands the
// steady-state read/dispatch loop to the server's shared workpool.Pool
// instead of keeping a dedicated goroutine alive for the connection's
// lifetime.
func servePeer(core *server.Core, p *server.Peer) {
	if !handshake(core, p) {
		core.RemovePeer(p)
		p.Close()
		return
	}
	core.Pool().Add(dispatchTask(core, p))
}

func handshake(core *server.Core, p *server.Peer) bool {
	cfg := core.Config()
	deadline := time.Now().Add(30 * time.Second)
	for p.State() == server.PeerAwaitingCredentials {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		if !p.Connection().ReadAndHandle(remaining) {
			return false
		}
		packets := p.Connection().DrainPackets()
		if len(packets) == 0 {
			continue
		}
		creds, ok := packets[0].Payload.(wire.Credentials)
		if !ok {
			return false
		}
		vl, err := p.Authenticate(cfg.Verifier, creds, cfg.Name, cfg.Type, cfg.MessageRateSecs, core.Access().IsBanned)
		if err != nil {
			return false
		}
		if err := p.Connection().SendPacket(wire.Packet{Payload: vl}); err != nil || !p.Connection().Flush() {
			return false
		}
		if !core.AddPeer(p) {
			return false
		}
	}
	return true
}

// dispatchTask is the Task submitted per live peer: one read-and-drain pass
// per call, re-enqueued (true) until the connection hangs up or Dispatch
// rejects a packet (false), at which point the peer is torn down.
func dispatchTask(core *server.Core, p *server.Peer) workpool.Task {
	return func() bool {
		if !p.Connection().ReadAndHandle(time.Second) {
			core.RemovePeer(p)
			p.Close()
			return false
		}
		for _, pkt := range p.Connection().DrainPackets() {
			if !core.Dispatch(p, pkt) {
				core.RemovePeer(p)
				p.Close()
				return false
			}
		}
		return true
	}
}
