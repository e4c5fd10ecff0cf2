package adminkey

import (
	"bytes"
	"encoding/hex"
	"flag"
	"strings"
	"testing"

	"github.com/mtanaka/courseforge/internal/platform/webtoken"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("admin-key", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 32 {
		t.Fatalf("bytes = %d, want 32", cfg.Bytes)
	}
}

func TestRunWritesSecretFromReader(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	reader := bytes.NewReader(bytes.Repeat([]byte{0xab}, 32))
	if err := Run(Config{Bytes: 32}, &out, reader); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "COURSEFORGE_WEB_TOKEN_SECRET=" + strings.Repeat("ab", 32) + "\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
}

func TestRunRejectsNonPositiveBytes(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := Run(Config{Bytes: 0}, &out, nil); err == nil {
		t.Fatal("expected error for zero bytes")
	}
}

func TestRunMintsVerifiableSession(t *testing.T) {
	t.Parallel()

	secret := bytes.Repeat([]byte{0x42}, 32)
	var out bytes.Buffer
	cfg := Config{Secret: hex.EncodeToString(secret), User: "admin-1"}
	if err := Run(cfg, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	tokens, err := webtoken.NewManager(secret)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	userID, err := tokens.VerifySession(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("verify session: %v", err)
	}
	if userID != "admin-1" {
		t.Fatalf("user = %q, want %q", userID, "admin-1")
	}
}
