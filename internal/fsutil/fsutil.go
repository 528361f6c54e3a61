package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// MakeDirs creates dir and any missing parents. Creating a directory that
// already exists is not an error.
func MakeDirs(dir string) error {
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// AtomicReplace writes target through a temporary file in the same
// directory. The write callback receives the temporary path; when it returns
// nil the temporary file is renamed over target, otherwise the temporary
// file is removed and target is left untouched. Readers never observe a
// partially written target.
func AtomicReplace(target string, write func(temporary string) error) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+"-*")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temporary file: %w", err)
	}

	if err := write(tmpName); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temporary file: %w", err)
	}
	return nil
}
