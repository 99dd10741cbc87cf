// Command temstream-client connects to one TemStream server, completes the
// credentials handshake, and bridges stdin/stdout to the stream: lines typed
// are sent as Chat or Text payloads, and received Chat, Text,
// ServerInformation and NoReplay payloads are printed; other payloads are
// not printed.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/temdog007/temstream-go/internal/logger"
	"github.com/temdog007/temstream-go/internal/temstream/client"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := client.Dial(ctx, cfg.host, uint16(cfg.port), nil, client.DefaultDialOptions())
	if err != nil {
		log.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	creds := credentialsFor(cfg)
	if err := conn.SendPacket(wire.Packet{Payload: creds}, true); err != nil {
		log.Error("failed to send credentials", "error", err)
		os.Exit(1)
	}

	vl, err := awaitVerifyLogin(conn)
	if err != nil {
		log.Error("handshake failed", "error", err)
		os.Exit(1)
	}
	conn.SetVerifyLogin(vl)
	log.Info("connected", "server_name", vl.ServerName, "server_type", vl.ServerType.String(), "you", vl.PeerInformation.Name)

	pool := workpool.New(2)
	defer pool.Stop()
	pool.Add(readTask(conn, log))
	go printLoop(conn)

	stdinLines := make(chan string)
	go scanStdin(stdinLines)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case line, ok := <-stdinLines:
			if !ok {
				return
			}
			if err := sendLine(conn, vl.ServerType, line); err != nil {
				log.Warn("send failed", "error", err)
			}
		}
	}
}

func credentialsFor(cfg *cliConfig) wire.Credentials {
	if cfg.token != "" {
		return wire.NewTokenCredentials(cfg.token)
	}
	return wire.NewUserPassCredentials(cfg.name, cfg.password)
}

// awaitVerifyLogin blocks for the server's handshake response, which must
// be the first packet delivered on the inbound channel.
func awaitVerifyLogin(conn *client.Connection) (wire.VerifyLogin, error) {
	for i := 0; i < 50; i++ {
		if !conn.ReadAndDeliver(time.Second) {
			return wire.VerifyLogin{}, fmt.Errorf("client: connection closed during handshake")
		}
		select {
		case p := <-conn.Inbound():
			if vl, ok := p.Payload.(wire.VerifyLogin); ok {
				return vl, nil
			}
		default:
		}
	}
	return wire.VerifyLogin{}, fmt.Errorf("client: no VerifyLogin received")
}

// readTask is the per-connection read loop submitted to the shared
// workpool.Pool: one ReadAndDeliver pass per call, re-enqueued (true) while
// the connection stays open.
func readTask(conn *client.Connection, log interface{ Warn(string, ...any) }) workpool.Task {
	return func() bool {
		if !conn.IsOpened() {
			return false
		}
		if !conn.ReadAndDeliver(time.Second) {
			log.Warn("connection closed by peer")
			return false
		}
		return true
	}
}

func printLoop(conn *client.Connection) {
	for p := range conn.Inbound() {
		printPacket(p)
	}
}

func printPacket(p wire.Packet) {
	switch payload := p.Payload.(type) {
	case wire.Chat:
		fmt.Printf("[%s] %s: %s\n", p.Source.ServerName, payload.Author, payload.Message)
	case wire.Text:
		fmt.Printf("[%s] %s\n", p.Source.ServerName, string(payload))
	case wire.ServerInformation:
		fmt.Printf("server info: %d peers, %d banned\n", len(payload.Peers), len(payload.BanList))
	case wire.NoReplay:
		fmt.Println("(no more replay)")
	default:
	}
}

func sendLine(conn *client.Connection, st wire.ServerType, line string) error {
	var payload wire.Payload
	switch st {
	case wire.ServerTypeChat:
		payload = wire.Chat{Author: "", Message: line, TimestampMs: time.Now().UnixMilli()}
	case wire.ServerTypeText:
		payload = wire.Text(line)
	default:
		return fmt.Errorf("client: %s server does not accept line-based input", st)
	}
	if wait, ok := conn.NextSendInterval(); ok {
		time.Sleep(wait)
	}
	if err := conn.SendPacket(wire.Packet{Payload: payload}, true); err != nil {
		return err
	}
	return nil
}

func scanStdin(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
}
