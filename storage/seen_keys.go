package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"goofish-watcher/utils"
)

// ErrStoreCorrupt reports an unreadable seen-key file. Callers treat it as
// an empty set (fail-open): the run may re-notify old items but never dies
// over state it can rebuild.
var ErrStoreCorrupt = errors.New("seen-key store unreadable")

// SeenKeyStore is the persisted set of unique keys already processed for
// one search keyword. Additive only: keys are appended to a line-oriented
// file and never removed, so a crash mid-run can lose at most the keys
// recorded since the last Flush.
type SeenKeyStore struct {
	mu      sync.Mutex
	path    string
	keys    map[string]struct{}
	pending []string
}

// LoadSeenKeys reads the seen-key file for a keyword. A missing file is
// the normal first-run case and yields an empty set. An unreadable file is
// reported through the returned error (wrapping ErrStoreCorrupt) alongside
// a usable empty store, so callers can log and continue.
func LoadSeenKeys(dir, keyword string) (*SeenKeyStore, error) {
	s := &SeenKeyStore{
		path: filepath.Join(dir, SafeKeyword(keyword)+"_seen.txt"),
		keys: make(map[string]struct{}),
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		key := strings.TrimSpace(scanner.Text())
		if key == "" {
			continue
		}
		s.keys[key] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		// Trailing garbage from a torn write: keep what parsed, report it.
		return s, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}

	return s, nil
}

// Contains reports whether key was processed in this or a prior run.
func (s *SeenKeyStore) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Record marks key as processed. Recording a known key is a no-op; the
// return value says whether the key was new.
func (s *SeenKeyStore) Record(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.pending = append(s.pending, key)
	return true
}

// Flush appends the keys recorded since the previous flush. Append-only
// writes leave previously flushed keys untouched whatever happens to this
// call.
func (s *SeenKeyStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("seen keys: create state dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("seen keys: open %q: %w", s.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, key := range s.pending {
		if _, err := w.WriteString(key + "\n"); err != nil {
			return fmt.Errorf("seen keys: append: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("seen keys: flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("seen keys: sync: %w", err)
	}

	s.pending = s.pending[:0]
	return nil
}

// Len returns the number of keys currently known.
func (s *SeenKeyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// FilterNew returns the subset of candidates whose keys are not yet seen,
// preserving order. Candidates with links that produce no key are dropped.
func (s *SeenKeyStore) FilterNew(links []string) []string {
	var fresh []string
	for _, link := range links {
		key, err := utils.LinkUniqueKey(link)
		if err != nil {
			continue
		}
		if !s.Contains(key) {
			fresh = append(fresh, key)
		}
	}
	return fresh
}
