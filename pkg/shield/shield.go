// Package shield filters leaders by identity (spec §4.5): a
// hot-reloadable blocklist merged from a local file and an optional
// remote URL, published atomically so readers never observe a
// partially updated set.
package shield

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/asymmetric-research/scramjet/internal/metrics"
	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/fsnotify/fsnotify"
	"github.com/gagliardetto/solana-go"
	getter "github.com/hashicorp/go-getter"
	"go.uber.org/zap"
)

// Shield is the blocklist cache.
type Shield struct {
	file         string
	remoteUrl    string
	refreshEvery time.Duration
	logger       *zap.SugaredLogger
	snapshot     atomic.Pointer[map[solana.PublicKey]struct{}]
}

// New builds a Shield. file may be empty (remote-only); remoteUrl may
// be empty (local-only).
func New(file, remoteUrl string, refreshEvery time.Duration) *Shield {
	s := &Shield{
		file:         file,
		remoteUrl:    remoteUrl,
		refreshEvery: refreshEvery,
		logger:       slog.Get(),
	}
	empty := map[solana.PublicKey]struct{}{}
	s.snapshot.Store(&empty)
	return s
}

// IsBlocked checks id against the latest snapshot (spec §4.5
// `is_blocked`, wait-free per spec §5).
func (s *Shield) IsBlocked(id solana.PublicKey) bool {
	snap := s.snapshot.Load()
	if snap == nil {
		return false
	}
	_, blocked := (*snap)[id]
	return blocked
}

// Refresh reloads the local file and, if configured, the remote URL,
// merging duplicates and publishing the result atomically. If either
// source fails wholly (local or remote), every entry of the previous
// merged snapshot is kept alongside whatever the other source loaded;
// per-line parse errors skip only that line (spec §4.5).
func (s *Shield) Refresh(ctx context.Context) error {
	merged := map[solana.PublicKey]struct{}{}

	anyFailed := false

	if s.file != "" {
		ids, err := parseBlocklistFile(s.file)
		if err != nil {
			s.logger.Errorf("shield: reading local blocklist %s failed, keeping prior snapshot: %v", s.file, err)
			anyFailed = true
		} else {
			for _, id := range ids {
				merged[id] = struct{}{}
			}
		}
	}

	if s.remoteUrl != "" {
		ids, err := fetchRemoteBlocklist(ctx, s.remoteUrl)
		if err != nil {
			s.logger.Errorf("shield: fetching remote blocklist %s failed, keeping prior snapshot: %v", s.remoteUrl, err)
			anyFailed = true
		} else {
			for _, id := range ids {
				merged[id] = struct{}{}
			}
		}
	}

	// A wholly failed fetch keeps the prior snapshot (spec §4.5); since
	// entries aren't tagged by source, a failure on either source falls
	// back to the entire previous merged set rather than just dropping
	// that source's contribution.
	if anyFailed {
		if prev := s.prevSnapshot(); prev != nil {
			for id := range prev {
				merged[id] = struct{}{}
			}
		}
	}

	s.snapshot.Store(&merged)
	metrics.ShieldBlocklistSize.Set(float64(len(merged)))
	return nil
}

func (s *Shield) prevSnapshot() map[solana.PublicKey]struct{} {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil
	}
	return *snap
}

// Run performs an initial load, then refreshes every refreshEvery and
// on every fsnotify write event on the local file (supplementing, not
// replacing, the periodic refresh), until ctx is cancelled.
func (s *Shield) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warnf("shield: initial refresh failed: %v", err)
	}

	var watchEvents <-chan fsnotify.Event
	if s.file != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			s.logger.Warnf("shield: fsnotify unavailable, relying on periodic refresh only: %v", err)
		} else {
			defer watcher.Close()
			if err := watcher.Add(s.file); err != nil {
				s.logger.Warnf("shield: watching %s failed, relying on periodic refresh only: %v", s.file, err)
			} else {
				watchEvents = watcher.Events
			}
		}
	}

	ticker := time.NewTicker(s.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warnf("shield: periodic refresh failed: %v", err)
			}
		case ev, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warnf("shield: refresh on file change failed: %v", err)
			}
		}
	}
}

func parseBlocklistFile(path string) ([]solana.PublicKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseBlocklistLines(f)
}

func parseBlocklistLines(f *os.File) ([]solana.PublicKey, error) {
	var ids []solana.PublicKey
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := solana.PublicKeyFromBase58(line)
		if err != nil {
			continue // per-line parse error skips only that line
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func fetchRemoteBlocklist(ctx context.Context, url string) ([]solana.PublicKey, error) {
	dir, err := os.MkdirTemp("", "scramjet-blocklist-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	dst := dir + "/blocklist"

	client := &getter.Client{
		Ctx:  ctx,
		Src:  url,
		Dst:  dst,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	f, err := os.Open(dst)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseBlocklistLines(f)
}
