// Package access implements the Access control list: a flat set of member
// names plus a banList flag that decides whether membership denies or
// whitelists. The list is persisted to a flat file and can be hot-reloaded
// via fsnotify, matching the banlist file a server operator edits by hand.
package access

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	temerrors "github.com/temdog007/temstream-go/internal/errors"
	"github.com/temdog007/temstream-go/internal/logger"
	"github.com/temdog007/temstream-go/internal/temstream/workpool"
)

// debounceWindow coalesces a burst of fsnotify events (an editor's
// write-then-rename routinely fires two or three) into a single reload.
const debounceWindow = 150 * time.Millisecond

// Access decides which peers may use a stream. If BanList is true, Members
// are denied; otherwise Members are the sole allowed set (a whitelist).
type Access struct {
	mu      sync.RWMutex
	members map[string]struct{}
	banList bool
}

// New constructs an Access with the given initial members and mode.
func New(banList bool, members ...string) *Access {
	a := &Access{members: make(map[string]struct{}), banList: banList}
	for _, m := range members {
		a.members[m] = struct{}{}
	}
	return a
}

// IsBanned reports whether username is denied access. When BanList is set,
// membership itself is the ban; otherwise absence from the whitelist is.
func (a *Access) IsBanned(username string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, present := a.members[username]
	if a.banList {
		return present
	}
	return !present
}

// Add inserts username into the member set.
func (a *Access) Add(username string) {
	a.mu.Lock()
	a.members[username] = struct{}{}
	a.mu.Unlock()
}

// Remove deletes username from the member set.
func (a *Access) Remove(username string) {
	a.mu.Lock()
	delete(a.members, username)
	a.mu.Unlock()
}

// Members returns a snapshot of the current member set.
func (a *Access) Members() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.members))
	for m := range a.members {
		out = append(out, m)
	}
	return out
}

// IsBanList reports whether this Access denies (true) or allows (false) its
// members.
func (a *Access) IsBanList() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.banList
}

// replace swaps the member set and mode atomically, used by file reloads.
func (a *Access) replace(banList bool, members map[string]struct{}) {
	a.mu.Lock()
	a.banList = banList
	a.members = members
	a.mu.Unlock()
}

// LoadFile reads a flat banlist/allowlist file: one name per line, blank
// lines and lines starting with '#' ignored. The first non-comment line may
// be exactly "banlist" or "allowlist" to set the mode; absent, banList
// defaults to true (the file denies the names it lists).
func LoadFile(path string) (*Access, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, temerrors.NewResourceError("access.loadFile", err)
	}
	defer f.Close()

	banList := true
	members := make(map[string]struct{})
	first := true
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if first {
			first = false
			switch line {
			case "banlist":
				banList = true
				continue
			case "allowlist":
				banList = false
				continue
			}
		}
		members[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, temerrors.NewResourceError("access.loadFile", err)
	}
	return &Access{members: members, banList: banList}, nil
}

// SaveFile writes a's current state back to path in LoadFile's format.
func (a *Access) SaveFile(path string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return temerrors.NewResourceError("access.saveFile", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if a.banList {
		w.WriteString("banlist\n")
	} else {
		w.WriteString("allowlist\n")
	}
	for m := range a.members {
		w.WriteString(m)
		w.WriteString("\n")
	}
	return w.Flush()
}

// Watcher reloads an Access's membership whenever its backing file changes
// on disk, so a moderator editing the banlist by hand takes effect without
// restarting the server.
type Watcher struct {
	path    string
	access  *Access
	watcher *fsnotify.Watcher
	pool    *workpool.Pool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	reloadMu      sync.Mutex
	reloadPending bool
}

// WatchFile loads path into a fresh Access and starts watching it for
// changes. Call Close to stop watching.
func WatchFile(path string) (*Watcher, error) {
	a, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, temerrors.NewResourceError("access.watchFile", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, temerrors.NewResourceError("access.watchFile", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{path: path, access: a, watcher: fw, pool: workpool.New(1), ctx: ctx, cancel: cancel, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

// Access returns the live Access instance kept up to date by the watcher.
func (w *Watcher) Access() *Access { return w.access }

func (w *Watcher) loop() {
	defer close(w.done)
	log := logger.Logger()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("access: watch error", "path", w.path, "error", err)
		}
	}
}

// scheduleReload debounces a burst of fsnotify events into one reload,
// processed on the watcher's workpool.Pool rather than inline on the event
// loop goroutine. A reload already pending absorbs later events in the same
// window instead of scheduling another one.
func (w *Watcher) scheduleReload() {
	w.reloadMu.Lock()
	if w.reloadPending {
		w.reloadMu.Unlock()
		return
	}
	w.reloadPending = true
	w.reloadMu.Unlock()

	w.pool.Add(func() bool {
		timer := time.NewTimer(debounceWindow)
		defer timer.Stop()
		select {
		case <-w.ctx.Done():
			return false
		case <-timer.C:
		}

		w.reloadMu.Lock()
		w.reloadPending = false
		w.reloadMu.Unlock()

		log := logger.Logger()
		reloaded, err := LoadFile(w.path)
		if err != nil {
			log.Warn("access: reload failed", "path", w.path, "error", err)
			return false
		}
		w.access.replace(reloaded.banList, reloaded.members)
		log.Info("access: reloaded", "path", w.path, "members", len(reloaded.members), "banList", reloaded.banList)
		return false
	})
}

// Close stops the watcher and its pool.
func (w *Watcher) Close() error {
	w.cancel()
	w.pool.Stop()
	err := w.watcher.Close()
	<-w.done
	return err
}
