// Package web wires configuration into the web service run loop.
package web

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"strings"

	"github.com/mtanaka/courseforge/internal/web"
)

const (
	defaultHTTPAddr = "localhost:8080"
	defaultGRPCAddr = "localhost:8081"
	defaultDBPath   = "courseforge.db"
)

// Config holds the web command configuration.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	DBPath      string
	TokenSecret string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config, with environment fallbacks.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		HTTPAddr:    envOrDefault(lookup, "COURSEFORGE_WEB_HTTP_ADDR", defaultHTTPAddr),
		GRPCAddr:    envOrDefault(lookup, "COURSEFORGE_WEB_GRPC_ADDR", defaultGRPCAddr),
		DBPath:      envOrDefault(lookup, "COURSEFORGE_WEB_DB_PATH", defaultDBPath),
		TokenSecret: envOrDefault(lookup, "COURSEFORGE_WEB_TOKEN_SECRET", ""),
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Run starts the web server.
func Run(ctx context.Context, cfg Config) error {
	secret, err := hex.DecodeString(strings.TrimSpace(cfg.TokenSecret))
	if err != nil {
		return fmt.Errorf("decode token secret: %w", err)
	}
	server, err := web.NewServer(web.Config{
		HTTPAddr:    cfg.HTTPAddr,
		GRPCAddr:    cfg.GRPCAddr,
		DBPath:      cfg.DBPath,
		TokenSecret: secret,
	})
	if err != nil {
		return fmt.Errorf("init web server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve web: %w", err)
	}
	return nil
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup == nil {
		return fallback
	}
	value, ok := lookup(key)
	if !ok {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
