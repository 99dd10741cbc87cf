package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliConfig holds the raw flag values from spec §6.4, plus SPEC_FULL.md's
// additional optional surfaces (admin HTTP, JWT/plugin auth, Azure archive).
type cliConfig struct {
	serverType wire.ServerType

	host string
	port uint

	name            string
	maxClients      int
	messageRateSecs uint
	maxMessageSize  uint64
	recording       bool

	certFile string
	keyFile  string

	banlistFile   string
	allowlistFile string
	authPlugin    string

	adminAddr string
	jwtKey    string

	azureContainer    string
	azureServiceURL   string
	replayDir         string
	replayBucketMs    int64

	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("temstream-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	var typeFlags [6]bool
	fs.BoolVar(&typeFlags[0], "T", false, "Text server")
	fs.BoolVar(&typeFlags[1], "C", false, "Chat server")
	fs.BoolVar(&typeFlags[2], "I", false, "Image server")
	fs.BoolVar(&typeFlags[3], "A", false, "Audio server")
	fs.BoolVar(&typeFlags[4], "V", false, "Video server")
	fs.BoolVar(&typeFlags[5], "L", false, "Link server")

	fs.StringVar(&cfg.host, "H", "0.0.0.0", "bind host")
	fs.UintVar(&cfg.port, "P", 10000, "bind port")
	fs.StringVar(&cfg.name, "N", "", "server name (required)")
	fs.IntVar(&cfg.maxClients, "MC", 0, "max concurrent clients (0 = unlimited)")
	fs.UintVar(&cfg.messageRateSecs, "MR", 0, "minimum seconds between a peer's stream payloads (0 = unlimited)")
	fs.Uint64Var(&cfg.maxMessageSize, "MS", 1<<20, "maximum decoded message body size in bytes")
	fs.BoolVar(&cfg.recording, "R", false, "enable replay recording")

	fs.StringVar(&cfg.certFile, "CT", "", "TLS certificate file (enables TLS with -K)")
	fs.StringVar(&cfg.keyFile, "K", "", "TLS key file (enables TLS with -CT)")

	fs.StringVar(&cfg.banlistFile, "B", "", "banlist file (newline-delimited usernames)")
	fs.StringVar(&cfg.allowlistFile, "AL", "", "allowlist file (newline-delimited usernames)")
	fs.StringVar(&cfg.authPlugin, "AU", "", "external auth plugin executable path")

	fs.StringVar(&cfg.adminAddr, "admin-addr", "", "optional admin HTTP listen address (e.g. :9090)")
	fs.StringVar(&cfg.jwtKey, "jwt-key", "", "HMAC key for bearer-token authentication")

	fs.StringVar(&cfg.azureContainer, "azure-container", "", "Azure Blob container for replay log archival")
	fs.StringVar(&cfg.azureServiceURL, "azure-service-url", "", "Azure Blob service URL")
	fs.StringVar(&cfg.replayDir, "replay-dir", "replays", "directory for replay log files")
	fs.Int64Var(&cfg.replayBucketMs, "replay-bucket-ms", 0, "GetReplay bucket window in ms (0 = exact-timestamp match)")

	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.BoolVar(&cfg.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.showVersion {
		return cfg, nil
	}

	st, err := resolveServerType(typeFlags)
	if err != nil {
		return nil, err
	}
	cfg.serverType = st

	if cfg.name == "" {
		return nil, errors.New("-N server name is required")
	}
	if (cfg.certFile == "") != (cfg.keyFile == "") {
		return nil, errors.New("-CT and -K must be given together")
	}
	if cfg.banlistFile != "" && cfg.allowlistFile != "" {
		return nil, errors.New("-B and -AL are mutually exclusive")
	}

	return cfg, nil
}

func resolveServerType(flags [6]bool) (wire.ServerType, error) {
	types := []wire.ServerType{
		wire.ServerTypeText, wire.ServerTypeChat, wire.ServerTypeImage,
		wire.ServerTypeAudio, wire.ServerTypeVideo, wire.ServerTypeLink,
	}
	var chosen wire.ServerType
	count := 0
	for i, set := range flags {
		if set {
			chosen = types[i]
			count++
		}
	}
	switch count {
	case 0:
		return 0, errors.New("exactly one of -T -C -I -A -V -L must be given")
	case 1:
		return chosen, nil
	default:
		return 0, fmt.Errorf("only one of -T -C -I -A -V -L may be given")
	}
}
