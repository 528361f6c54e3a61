package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/fwiesel/pip-accel/internal/fsutil"
)

// LocalBackend keeps distribution archives in the binary cache directory on
// the local file system.
type LocalBackend struct {
	dir string
	log *logrus.Entry
}

func NewLocalBackend(dir string, log *logrus.Logger) *LocalBackend {
	return &LocalBackend{dir: dir, log: log.WithField("backend", "local")}
}

func (b *LocalBackend) Name() string  { return "local" }
func (b *LocalBackend) Priority() int { return LocalPriority }

func (b *LocalBackend) Get(filename string) (string, error) {
	if err := ValidFilename(filename); err != nil {
		return "", err
	}
	pathname := filepath.Join(b.dir, filename)
	info, err := os.Stat(pathname)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil
	}
	b.log.Debugf("Distribution archive exists in local cache (%s).", pathname)
	return pathname, nil
}

func (b *LocalBackend) Put(filename string, handle io.Reader) error {
	if err := ValidFilename(filename); err != nil {
		return err
	}
	if err := fsutil.MakeDirs(b.dir); err != nil {
		return err
	}
	pathname := filepath.Join(b.dir, filename)
	err := fsutil.AtomicReplace(pathname, func(temporary string) error {
		f, err := os.Create(temporary)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, handle); err != nil {
			f.Close()
			return fmt.Errorf("write local cache file: %w", err)
		}
		return f.Close()
	})
	if err != nil {
		return err
	}
	b.log.Debugf("Finished caching distribution archive locally (%s).", pathname)
	return nil
}
