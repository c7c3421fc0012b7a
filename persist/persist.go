// Package persist provides whole-file JSON persistence with atomic
// replacement. A reader either sees the previous file or the new one, never
// a partial write.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Error is an I/O or encoding fault on a persisted file.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WriteJSON replaces path with the indented JSON encoding of v. The data is
// written to a temporary file in the same directory, synced and renamed over
// path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &Error{Op: "encode", Path: path, Err: err}
	}
	return WriteFile(path, append(data, '\n'))
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Op: "create directory for", Path: path, Err: err}
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return &Error{Op: "create temp file for", Path: path, Err: err}
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return &Error{Op: "write", Path: path, Err: err}
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return &Error{Op: "sync", Path: path, Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		return &Error{Op: "close", Path: path, Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return &Error{Op: "chmod", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &Error{Op: "replace", Path: path, Err: err}
	}

	success = true
	return nil
}

// ReadJSON decodes path into v. It reports false with a nil error when the
// file does not exist.
func ReadJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &Error{Op: "read", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, &Error{Op: "decode", Path: path, Err: err}
	}
	return true, nil
}

// Remove deletes path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &Error{Op: "remove", Path: path, Err: err}
	}
	return nil
}
