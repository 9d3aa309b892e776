// Package atomicfile provides crash-safe file writes and a sidecar
// advisory lock used by every store that mutates shared state.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes bytes to path by creating path+".tmp" in the same
// directory, fsyncing it, then renaming it over path. Parent directories
// are created as needed. On any failure before the rename, path's existing
// contents are untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomicfile: mkdir %s: %w", dir, err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("atomicfile: create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("atomicfile: write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("atomicfile: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomicfile: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomicfile: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// AppendLine appends a single line (with a trailing newline) to path,
// creating the file if needed. This is not atomic across crashes mid-write
// but is used only for append-only JSONL logs where a torn last line is
// detected and dropped by readers (see channelstore.Inspect).
func AppendLine(path string, line []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomicfile: mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("atomicfile: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("atomicfile: append %s: %w", path, err)
	}
	return f.Sync()
}
