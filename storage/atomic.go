package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriter writes a file through a temp file and rename, so readers see
// either the old content or the new, never a partial write.
type AtomicWriter struct {
	path    string
	tmpPath string
	file    *os.File
}

// NewAtomicWriter creates the target's directory if needed and opens a temp
// file next to it.
func NewAtomicWriter(path string) (*AtomicWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ytscrape-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &AtomicWriter{path: path, tmpPath: tmp.Name(), file: tmp}, nil
}

func (w *AtomicWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

// Commit flushes the temp file to disk and renames it over the target.
func (w *AtomicWriter) Commit() error {
	if err := w.file.Sync(); err != nil {
		w.Abort()
		return fmt.Errorf("sync: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Abort discards the temp file.
func (w *AtomicWriter) Abort() error {
	w.file.Close()
	return os.Remove(w.tmpPath)
}

// writeJSONAtomic encodes v as indented JSON and atomically replaces path.
func writeJSONAtomic(path string, v any) error {
	w, err := NewAtomicWriter(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		w.Abort()
		return fmt.Errorf("encode: %w", err)
	}
	return w.Commit()
}
