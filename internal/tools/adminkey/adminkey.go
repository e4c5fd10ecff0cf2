// Package adminkey generates web token secrets and mints admin session
// tokens out of band.
package adminkey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/mtanaka/courseforge/internal/platform/webtoken"
)

// Config holds configuration for key generation and session minting.
type Config struct {
	Bytes  int
	Secret string
	User   string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random secret bytes (default: 32)")
	fs.StringVar(&cfg.Secret, "secret", cfg.Secret, "hex token secret used to mint a session")
	fs.StringVar(&cfg.User, "session", cfg.User, "mint an admin session token for this user id")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates a secret, or mints a session token when a user is named,
// and writes the result to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if strings.TrimSpace(cfg.User) != "" {
		return mintSession(cfg, out)
	}
	return generateSecret(cfg, out, reader)
}

func generateSecret(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "COURSEFORGE_WEB_TOKEN_SECRET=%s\n", hex.EncodeToString(buf))
	return err
}

func mintSession(cfg Config, out io.Writer) error {
	secret, err := hex.DecodeString(strings.TrimSpace(cfg.Secret))
	if err != nil {
		return fmt.Errorf("decode secret: %w", err)
	}
	tokens, err := webtoken.NewManager(secret)
	if err != nil {
		return err
	}
	token, err := tokens.IssueSession(strings.TrimSpace(cfg.User))
	if err != nil {
		return fmt.Errorf("issue session: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
