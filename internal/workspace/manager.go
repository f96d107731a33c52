// Package workspace owns the scratch directory that holds decrypted books.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/zeebo/xxh3"

	"github.com/TheMichaelB/shelfkey/internal/events"
	"github.com/TheMichaelB/shelfkey/internal/models"
)

// Manager manages the workspace directory.
type Manager struct {
	root   string
	lock   *flock.Flock
	logger *events.Logger
}

// New creates a manager for root. Nothing touches the disk until Init.
func New(root string, logger *events.Logger) *Manager {
	root = filepath.Clean(root)
	return &Manager{
		root:   root,
		lock:   flock.New(root + ".lock"),
		logger: logger.WithField("component", "workspace"),
	}
}

// Root returns the workspace directory.
func (m *Manager) Root() string {
	return m.root
}

// Init wipes any stale workspace and creates a fresh, empty one. The
// workspace is guarded by a sibling lock file so that two processes never
// wipe each other's files.
func (m *Manager) Init() error {
	if err := os.MkdirAll(filepath.Dir(m.root), 0o755); err != nil {
		return fmt.Errorf("%w: %w", models.ErrWorkspaceInit, err)
	}

	if !m.lock.Locked() {
		ok, err := m.lock.TryLock()
		if err != nil {
			return fmt.Errorf("%w: lock: %w", models.ErrWorkspaceInit, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s is in use by another process", models.ErrWorkspaceInit, m.root)
		}
	}

	_ = os.RemoveAll(m.root)

	if err := os.MkdirAll(m.root, 0o700); err != nil {
		return fmt.Errorf("%w: %w", models.ErrWorkspaceInit, err)
	}

	m.logger.WithField("path", m.root).Debug("Workspace initialised")
	return nil
}

// Cleanup removes the workspace and releases the lock. Failures are logged.
func (m *Manager) Cleanup() {
	if _, err := os.Stat(m.root); err == nil {
		if err := os.RemoveAll(m.root); err != nil {
			m.logger.WithError(err).Warn("Failed to remove workspace")
		}
	}

	if m.lock.Locked() {
		if err := m.lock.Unlock(); err != nil {
			m.logger.WithError(err).Warn("Failed to release workspace lock")
		}
		_ = os.Remove(m.lock.Path())
	}
}

// TempPath returns the deterministic path of a decrypted book. bookID and
// ownerID are fed in that order into one xxh3 accumulator, each followed by
// a 0xff terminator.
func (m *Manager) TempPath(bookID, ownerID, format string) string {
	name := fmt.Sprintf("%s.decrypted.%s", pathHash(bookID, ownerID), format)
	return models.SlashPath(filepath.Join(m.root, name))
}

// pathHash renders the 64-bit digest of the parts as 16 lowercase hex digits.
func pathHash(parts ...string) string {
	h := xxh3.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0xff})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
