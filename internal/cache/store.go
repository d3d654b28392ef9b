// Package cache owns the current message snapshot. Readers get the previous or
// the new snapshot in full; the on-disk copy is replaced with write-then-rename.
package cache

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chat-purge/internal/index"
	"chat-purge/internal/logger"
	"chat-purge/internal/models"
)

var (
	// ErrCacheMissingOrCorrupt means there is no usable snapshot and a scan is required
	ErrCacheMissingOrCorrupt = errors.New("message cache missing or corrupt")
	// ErrCacheStale means the snapshot is older than the freshness window
	ErrCacheStale = errors.New("message cache is stale")
)

const (
	fileMagic   = "CHATPURGE-SNAPSHOT"
	fileVersion = 1
)

type filePayload struct {
	ID        string                 `json:"id"`
	ScannedAt time.Time              `json:"scanned_at"`
	Messages  []models.CachedMessage `json:"messages"`
	Index     index.InvertedIndex    `json:"index"`
}

// Store holds the current snapshot and its persisted copy
type Store struct {
	path   string
	maxAge time.Duration

	current atomic.Pointer[index.Snapshot]
	// mtime in UnixNano of the file last read or written, 0 when unknown
	diskMod atomic.Int64
	writeMu sync.Mutex
	loadMu  sync.Mutex
}

// NewStore creates a store persisting to path. An empty path keeps the
// snapshot in memory only.
func NewStore(path string, maxAge time.Duration) *Store {
	return &Store{path: path, maxAge: maxAge}
}

// MaxAge returns the freshness window
func (s *Store) MaxAge() time.Duration {
	return s.maxAge
}

// Load returns the current snapshot. The persisted copy is read on first use
// and again whenever another process has rewritten the file since.
func (s *Store) Load() (*index.Snapshot, error) {
	cur := s.current.Load()
	if s.path == "" {
		if cur == nil {
			return nil, fmt.Errorf("%w: no snapshot has been built", ErrCacheMissingOrCorrupt)
		}
		return cur, nil
	}
	if cur != nil && !s.diskChanged() {
		return cur, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	cur = s.current.Load()
	mod, ok := s.fileModTime()
	if cur != nil && (!ok || mod == s.diskMod.Load()) {
		return cur, nil
	}

	snap, err := ReadFile(s.path)
	if err != nil {
		if cur != nil {
			s.diskMod.Store(mod)
			logger.Warningf("Ignoring unreadable cache file %s, keeping snapshot %s: %v", s.path, cur.ID, err)
			return cur, nil
		}
		return nil, err
	}
	s.diskMod.Store(mod)

	// never step back to an older scan than the one already held
	if cur != nil && (snap.ID == cur.ID || !snap.ScannedAt.After(cur.ScannedAt)) {
		return cur, nil
	}
	if !s.current.CompareAndSwap(cur, snap) {
		return s.current.Load(), nil
	}
	logger.Infof("Loaded message cache %s from %s (%d messages, scanned %s)",
		snap.ID, s.path, len(snap.Messages), snap.ScannedAt.Format(time.RFC3339))
	return snap, nil
}

func (s *Store) fileModTime() (int64, bool) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, false
	}
	return info.ModTime().UnixNano(), true
}

func (s *Store) diskChanged() bool {
	mod, ok := s.fileModTime()
	return ok && mod != s.diskMod.Load()
}

// Check returns the current snapshot if it is usable at now
func (s *Store) Check(now time.Time) (*index.Snapshot, error) {
	snap, err := s.Load()
	if err != nil {
		return nil, err
	}
	if !snap.IsFresh(now, s.maxAge) {
		return nil, fmt.Errorf("%w: scanned %s ago, limit %s",
			ErrCacheStale, snap.Age(now).Truncate(time.Second), s.maxAge)
	}
	return snap, nil
}

// IsFresh reports whether a snapshot exists and is within the freshness window
func (s *Store) IsFresh(now time.Time) bool {
	_, err := s.Check(now)
	return err == nil
}

// Replace persists snap and then makes it the current snapshot
func (s *Store) Replace(snap *index.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("cannot store a nil snapshot")
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid snapshot: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.path != "" {
		if err := WriteFile(s.path, snap); err != nil {
			return err
		}
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if mod, ok := s.fileModTime(); ok {
		s.diskMod.Store(mod)
	}
	s.current.Store(snap)
	return nil
}

// WriteFile atomically replaces path with snap: the data goes to a temp file
// in the same directory, is synced, and is renamed over the target.
func WriteFile(path string, snap *index.Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	payload, err := json.Marshal(filePayload{
		ID:        snap.ID,
		ScannedAt: snap.ScannedAt,
		Messages:  snap.Messages,
		Index:     snap.Index,
	})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	sum := sha256.Sum256(payload)

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	if _, err := fmt.Fprintf(w, "%s %d %s %d\n", fileMagic, fileVersion, hex.EncodeToString(sum[:]), len(payload)); err != nil {
		return fmt.Errorf("failed to write cache header: %w", err)
	}
	zw := gzip.NewWriter(w)
	if _, err := zw.Write(payload); err != nil {
		return fmt.Errorf("failed to write cache payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish cache payload: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	committed = true
	return nil
}

// ReadFile decodes and verifies a snapshot file. Any problem, including a
// missing file, is reported as ErrCacheMissingOrCorrupt.
func ReadFile(path string) (*index.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrCacheMissingOrCorrupt, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheMissingOrCorrupt, err)
	}
	defer f.Close()

	return decode(f)
}

func decode(r io.Reader) (*index.Snapshot, error) {
	corrupt := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrCacheMissingOrCorrupt, fmt.Sprintf(format, args...))
	}

	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil {
		return nil, corrupt("unreadable header: %v", err)
	}
	fields := strings.Fields(header)
	if len(fields) != 4 || fields[0] != fileMagic {
		return nil, corrupt("not a snapshot file")
	}
	if fields[1] != strconv.Itoa(fileVersion) {
		return nil, corrupt("unsupported snapshot version %s", fields[1])
	}
	wantSum := fields[2]
	wantLen, err := strconv.Atoi(fields[3])
	if err != nil || wantLen < 0 {
		return nil, corrupt("bad payload length %q", fields[3])
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, corrupt("bad payload stream: %v", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	buf.Grow(wantLen)
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, corrupt("truncated payload: %v", err)
	}
	payload := buf.Bytes()
	if len(payload) != wantLen {
		return nil, corrupt("payload is %d bytes, header says %d", len(payload), wantLen)
	}
	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != wantSum {
		return nil, corrupt("checksum mismatch")
	}

	var p filePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, corrupt("bad payload: %v", err)
	}

	snap := index.NewSnapshot(p.ID, p.ScannedAt, p.Messages, p.Index)
	if err := snap.Validate(); err != nil {
		return nil, corrupt("%v", err)
	}
	return snap, nil
}
