package fsutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic writes a file through fill and renames it into place only when fill and
// the flush succeed, so readers never observe a partially written file.
func WriteAtomic(path string, fill func(w io.Writer) error) error {
	tmp, err := writeTemp(path, fill)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move '%s' into place: %w", path, err)
	}
	return nil
}

// writeTemp fills a hidden temp file next to path and returns its name. The temp file
// is removed on failure.
func writeTemp(path string, fill func(w io.Writer) error) (name string, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for '%s': %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = tmp.Chmod(0644); err != nil {
		return "", fmt.Errorf("failed to chmod temp file for '%s': %w", path, err)
	}
	buf := bufio.NewWriter(tmp)
	if err = fill(buf); err != nil {
		return "", err
	}
	if err = buf.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush '%s': %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close '%s': %w", path, err)
	}
	return tmp.Name(), nil
}
