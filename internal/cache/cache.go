// Package cache stores built distribution archives in pluggable backends: a
// local directory, an OpenStack Swift container, and an S3 bucket. Backends
// are consulted in priority order; remote backends fall through to the local
// binary cache on reads.
package cache

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Backend priorities, lower values are consulted first.
const (
	LocalPriority = 10
	SwiftPriority = 20
	S3Priority    = 30
)

// Backend is one archive cache. Get returns a path on the local file system
// or the empty string when the archive is not cached; it does not return an
// error for a missed or failed remote fetch.
type Backend interface {
	Name() string
	Priority() int
	Get(filename string) (string, error)
	Put(filename string, handle io.Reader) error
}

// DisabledError signals that a backend cannot be used for the rest of the
// process, typically because its remote session could not be established.
// The manager drops the backend instead of retrying per call.
type DisabledError struct {
	Backend string
	Err     error
}

func (e *DisabledError) Error() string {
	return fmt.Sprintf("cache backend %s disabled: %v", e.Backend, e.Err)
}

func (e *DisabledError) Unwrap() error { return e.Err }

// ValidFilename rejects names that cannot be a single path segment.
func ValidFilename(filename string) error {
	if filename == "" {
		return errors.New("archive filename must not be empty")
	}
	if filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("invalid archive filename %q", filename)
	}
	return nil
}

// joinKey composes an object-store key from an optional prefix and a
// filename, omitting empty components.
func joinKey(parts ...string) string {
	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "/")
}

// Manager fans archive reads and writes out over the configured backends.
type Manager struct {
	log      *logrus.Logger
	backends []Backend
}

func NewManager(log *logrus.Logger, backends ...Backend) *Manager {
	sorted := make([]Backend, len(backends))
	copy(sorted, backends)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Manager{log: log, backends: sorted}
}

// Backends lists the currently enabled backends in consultation order.
func (m *Manager) Backends() []Backend {
	out := make([]Backend, len(m.backends))
	copy(out, m.backends)
	return out
}

// Get returns a local path for the archive from the first backend that has
// it, or the empty string when no backend does.
func (m *Manager) Get(filename string) (string, error) {
	if err := ValidFilename(filename); err != nil {
		return "", err
	}
	for _, backend := range m.Backends() {
		path, err := backend.Get(filename)
		if err != nil {
			if m.disableOn(backend, err) {
				continue
			}
			return "", err
		}
		if path != "" {
			return path, nil
		}
	}
	return "", nil
}

// Put stores the archive in every enabled backend. The handle is rewound
// before each backend so all of them see the full content.
func (m *Manager) Put(filename string, handle io.ReadSeeker) error {
	if err := ValidFilename(filename); err != nil {
		return err
	}
	for _, backend := range m.Backends() {
		if _, err := handle.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind archive handle: %w", err)
		}
		if err := backend.Put(filename, handle); err != nil {
			if m.disableOn(backend, err) {
				continue
			}
			return err
		}
	}
	return nil
}

func (m *Manager) disableOn(backend Backend, err error) bool {
	var disabled *DisabledError
	if !errors.As(err, &disabled) {
		return false
	}
	kept := m.backends[:0]
	for _, b := range m.backends {
		if b != backend {
			kept = append(kept, b)
		}
	}
	m.backends = kept
	m.log.WithField("backend", backend.Name()).Warnf("Disabling cache backend: %v", disabled.Err)
	return true
}
