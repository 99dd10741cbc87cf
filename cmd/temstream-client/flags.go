package main

import (
	"errors"
	"flag"
	"os"
)

var version = "dev"

type cliConfig struct {
	host string
	port uint

	name     string
	password string
	token    string

	insecure bool

	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("temstream-client", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.host, "H", "127.0.0.1", "server host")
	fs.UintVar(&cfg.port, "P", 10000, "server port")
	fs.StringVar(&cfg.name, "N", "", "username")
	fs.StringVar(&cfg.password, "W", "", "password")
	fs.StringVar(&cfg.token, "token", "", "bearer token (overrides -N/-W)")
	fs.BoolVar(&cfg.insecure, "insecure-tls", false, "connect with TLS but skip certificate verification")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.BoolVar(&cfg.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.showVersion {
		return cfg, nil
	}
	if cfg.token == "" && cfg.name == "" {
		return nil, errors.New("-N username or -token is required")
	}
	return cfg, nil
}
