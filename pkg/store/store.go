// Package store persists market documents and snapshots as pretty-printed
// JSON files, one directory per (exchange, symbol, interval), with
// keep-latest retention so a data directory never accumulates stale pulls.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"perpscan/pkg/market"
)

const (
	defaultDataDir = "data"
	defaultKeep    = 1
	snapshotFolder = "_snapshot"
	stampLayout    = "20060102_150405"
)

// Store writes JSON files under a data directory and prunes older files in
// the same folder after each write.
type Store struct {
	dataDir string
	keep    int
	nowFn   func() time.Time
}

// New constructs a Store rooted at dataDir, keeping the newest keep files
// per folder. Zero values fall back to "data" and 1.
func New(dataDir string, keep int) *Store {
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	if keep <= 0 {
		keep = defaultKeep
	}
	return &Store{dataDir: dataDir, keep: keep, nowFn: time.Now}
}

// WithKeep returns a Store on the same data directory retaining n files per
// folder. Non-positive n returns the receiver unchanged.
func (s *Store) WithKeep(n int) *Store {
	if n <= 0 {
		return s
	}
	return &Store{dataDir: s.dataDir, keep: n, nowFn: s.nowFn}
}

// SaveDocument writes a per-symbol document under
// {dataDir}/{exchange}/{SYMBOL}/{interval}/ and returns the file path. The
// filename carries the write time and the kline count, so consecutive pulls
// never collide across seconds.
func (s *Store) SaveDocument(doc *market.Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("store: nil document")
	}
	if err := doc.Validate(); err != nil {
		return "", err
	}
	interval := strings.ReplaceAll(doc.Interval, "/", "-")
	folder := filepath.Join(s.dataDir, strings.ToLower(doc.Exchange), strings.ToUpper(doc.Symbol), interval)
	name := fmt.Sprintf("%s_%d.json", s.nowFn().UTC().Format(stampLayout), len(doc.Klines))
	path := filepath.Join(folder, name)
	if err := s.write(path, doc); err != nil {
		return "", err
	}
	s.prune(folder, path)
	return path, nil
}

// SaveSnapshot writes a market snapshot under {dataDir}/{exchange}/_snapshot/
// and returns the file path.
func (s *Store) SaveSnapshot(snap *market.Snapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("store: nil snapshot")
	}
	if snap.Exchange == "" {
		return "", fmt.Errorf("store: snapshot has no exchange")
	}
	folder := filepath.Join(s.dataDir, strings.ToLower(snap.Exchange), snapshotFolder)
	name := fmt.Sprintf("%s_snapshot.json", s.nowFn().UTC().Format(stampLayout))
	path := filepath.Join(folder, name)
	if err := s.write(path, snap); err != nil {
		return "", err
	}
	s.prune(folder, path)
	return path, nil
}

func (s *Store) write(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	return nil
}

// prune removes older JSON files from folder, keeping the newest keep files.
// Filenames start with the write timestamp, so name order is age order. The
// just-written file always survives; removal failures are logged and never
// fail the save.
func (s *Store) prune(folder, keepPath string) {
	entries, err := filepath.Glob(filepath.Join(folder, "*.json"))
	if err != nil {
		logx.Errorf("store: scan %s: %v", folder, err)
		return
	}
	if len(entries) <= s.keep {
		return
	}
	sort.Sort(sort.Reverse(sort.StringSlice(entries)))
	for i, entry := range entries {
		if i < s.keep || entry == keepPath {
			continue
		}
		if err := os.Remove(entry); err != nil {
			logx.Errorf("store: remove old file %s: %v", entry, err)
		}
	}
}
