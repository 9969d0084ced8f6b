package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"goofish-watcher/models"
)

// JSONLWriter appends persisted records to the per-keyword output store,
// one JSON object per line. The file is opened in append mode and existing
// lines are never touched, so prior runs' records survive as written.
// It is safe for concurrent use.
type JSONLWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewJSONLWriter opens (or creates) the output store for a keyword.
// Intermediate directories are created automatically.
func NewJSONLWriter(dir, keyword string) (*JSONLWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("jsonl: create output dir: %w", err)
	}

	path := filepath.Join(dir, SafeKeyword(keyword)+"_full_data.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open %q: %w", path, err)
	}

	return &JSONLWriter{path: path, file: f}, nil
}

// Append writes one record as a single line.
func (w *JSONLWriter) Append(rec *models.PersistedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("jsonl: marshal record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("jsonl: append to %q: %w", w.path, err)
	}
	return nil
}

// Path returns the location of the backing file.
func (w *JSONLWriter) Path() string {
	return w.path
}

// Close closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// SafeKeyword makes a keyword usable as a file name component. Path
// separators and the NUL byte are the only characters that can break the
// store layout; everything else (including CJK) passes through.
func SafeKeyword(keyword string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")
	s := replacer.Replace(strings.TrimSpace(keyword))
	if s == "" {
		return "_"
	}
	return s
}
