package auth

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

func TestTokenVerifierRoundTrip(t *testing.T) {
	key := []byte("test-secret-key")
	tok, err := IssueToken(key, "alice", wire.FlagWriteAccess, time.Now().Add(time.Hour).Unix())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	v := NewTokenVerifier(key)
	id, err := v.Verify(wire.NewTokenCredentials(tok))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Name != "alice" || id.Flags != wire.FlagWriteAccess {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestTokenVerifierRejectsExpired(t *testing.T) {
	key := []byte("k")
	tok, err := IssueToken(key, "bob", wire.FlagNone, time.Now().Add(-time.Hour).Unix())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	v := NewTokenVerifier(key)
	if _, err := v.Verify(wire.NewTokenCredentials(tok)); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestTokenVerifierRejectsWrongKey(t *testing.T) {
	tok, err := IssueToken([]byte("key-a"), "bob", wire.FlagNone, time.Now().Add(time.Hour).Unix())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	v := NewTokenVerifier([]byte("key-b"))
	if _, err := v.Verify(wire.NewTokenCredentials(tok)); err == nil {
		t.Fatalf("expected wrong-key verification to fail")
	}
}

func TestFileVerifierRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.txt")
	salt := []byte{1, 2, 3, 4}
	line := NewFileEntry("carol", "hunter2", wire.FlagModerator, salt)
	if err := os.WriteFile(path, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	v, err := LoadFileVerifier(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	id, err := v.Verify(wire.NewUserPassCredentials("carol", "hunter2"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Name != "carol" || id.Flags != wire.FlagModerator {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := v.Verify(wire.NewUserPassCredentials("carol", "wrongpass")); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if _, err := v.Verify(wire.NewUserPassCredentials("dave", "hunter2")); err == nil {
		t.Fatalf("expected unknown user to fail")
	}
}

func TestChainTriesEachVerifier(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.txt")
	salt := []byte{9, 9}
	line := NewFileEntry("eve", "p@ss", wire.FlagNone, salt)
	os.WriteFile(path, []byte(line+"\n"), 0o600)
	fileV, err := LoadFileVerifier(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	key := []byte("chain-key")
	tokenV := NewTokenVerifier(key)
	chain := Chain{tokenV, fileV}

	tok, _ := IssueToken(key, "frank", wire.FlagOwner, time.Now().Add(time.Hour).Unix())
	if id, err := chain.Verify(wire.NewTokenCredentials(tok)); err != nil || id.Name != "frank" {
		t.Fatalf("expected token path to succeed: id=%+v err=%v", id, err)
	}
	if id, err := chain.Verify(wire.NewUserPassCredentials("eve", "p@ss")); err != nil || id.Name != "eve" {
		t.Fatalf("expected file path to succeed: id=%+v err=%v", id, err)
	}
	if _, err := chain.Verify(wire.NewUserPassCredentials("nobody", "x")); err == nil {
		t.Fatalf("expected chain to fail when no verifier matches")
	}
}

func TestPluginVerifierRunsExternalBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script plugin not supported on windows")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "authplugin.sh")
	body := "#!/bin/sh\nread line\nif [ \"$line\" = \"good-token\" ]; then echo grace; echo 3; exit 0; fi\nexit 1\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	v := NewPluginVerifier(script, 2*time.Second)
	id, err := v.Verify(wire.NewTokenCredentials("good-token"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Name != "grace" || id.Flags != 3 {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := v.Verify(wire.NewTokenCredentials("bad-token")); err == nil {
		t.Fatalf("expected rejection for bad token")
	}
}
