// Package atomicfile implements crash-safe JSON persistence: write to a
// temp file in the same directory, then rename over the destination. A
// corrupt file on load is moved aside with a .bad suffix rather than
// deleted, so an operator can inspect it; a fresh empty value takes its
// place on the next save (spec.md §6 "Persisted state layout").
package atomicfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSON marshals v and atomically replaces path with the result.
func WriteJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file into %s: %w", path, err)
	}
	return nil
}

// ReadJSON reads path and unmarshals it into v. If the file does not exist,
// it returns os.ErrNotExist unchanged so callers can treat "missing" and
// "corrupt" differently (missing files are created lazily; corrupt ones are
// quarantined). If the file exists but fails to parse, it is renamed aside
// with a .bad suffix and the original error is returned wrapped.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		quarantine(path)
		return fmt.Errorf("corrupt json at %s: %w", path, err)
	}
	return nil
}

// quarantine moves a corrupt file aside as path+".bad", overwriting any
// previous quarantine file. Best-effort: failures are not fatal, callers
// proceed with a fresh empty value regardless.
func quarantine(path string) {
	bad := path + ".bad"
	_ = os.Remove(bad)
	_ = os.Rename(path, bad)
}
