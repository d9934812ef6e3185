// Package safeio is the filesystem collaborator used by the rewrite pipeline:
// existence checks, whole-file text reads, and atomic text writes.
package safeio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FS is the narrow filesystem surface the pipeline depends on.
type FS interface {
	Exists(path string) bool
	ReadText(path string) (string, error)
	WriteText(path, content string) error
}

// OS implements FS on the local disk.
type OS struct{}

var _ FS = OS{}

// Exists reports whether path names an existing regular file.
func (OS) Exists(path string) bool {
	st, err := os.Stat(path)
	if err != nil {
		return false
	}
	return st.Mode().IsRegular()
}

// ReadText reads the whole file as a string.
func (OS) ReadText(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- paths come from the declared file mapping
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteText creates parent directories as needed and writes content atomically.
func (OS) WriteText(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", path, err)
	}
	return WriteFilePreservePerms(path, []byte(content))
}

// WriteFilePreservePerms writes data to path preserving existing file mode when possible.
// When the file does not exist, it uses a sane default of 0644. The data lands in a
// sibling temp file first and is renamed into place.
func WriteFilePreservePerms(path string, data []byte) error {
	var mode os.FileMode = 0o644
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode() & 0o777
		if mode == 0 {
			mode = 0o644
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
