package access

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsBannedBanListMode(t *testing.T) {
	a := New(true, "troll")
	if !a.IsBanned("troll") {
		t.Fatalf("expected troll to be banned")
	}
	if a.IsBanned("alice") {
		t.Fatalf("alice should not be banned")
	}
}

func TestIsBannedWhitelistMode(t *testing.T) {
	a := New(false, "alice")
	if a.IsBanned("alice") {
		t.Fatalf("alice is whitelisted, should not be banned")
	}
	if !a.IsBanned("bob") {
		t.Fatalf("bob is not on the whitelist, should be banned")
	}
}

func TestLoadAndSaveFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banlist.txt")
	if err := os.WriteFile(path, []byte("banlist\n# comment\ntroll\nspammer\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !a.IsBanList() {
		t.Fatalf("expected banlist mode")
	}
	if !a.IsBanned("troll") || !a.IsBanned("spammer") {
		t.Fatalf("expected both entries banned")
	}

	a.Add("newtroll")
	outPath := filepath.Join(dir, "out.txt")
	if err := a.SaveFile(outPath); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded, err := LoadFile(outPath)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsBanned("newtroll") {
		t.Fatalf("expected newtroll to persist across save/load")
	}
}

func TestWatchFileReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banlist.txt")
	if err := os.WriteFile(path, []byte("banlist\ntroll\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w, err := WatchFile(path)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	if !w.Access().IsBanned("troll") {
		t.Fatalf("expected initial load to ban troll")
	}

	if err := os.WriteFile(path, []byte("banlist\ntroll\nspammer\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Access().IsBanned("spammer") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected watcher to pick up new ban within timeout")
}
