package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the descriptor file name inside a package directory.
const FileName = "meta.json"

// ErrNotInstalled reports that a package has no descriptor on disk.
var ErrNotInstalled = errors.New("package is not installed")

// Clock provides time operations. This interface enables deterministic
// testing of the refresh timestamp.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Store loads and saves package descriptors. All writes go through a
// temporary file and an atomic rename so a concurrent reader never sees a
// half-written descriptor.
type Store struct {
	clock Clock
}

// NewStore creates a descriptor store.
func NewStore() *Store {
	return &Store{clock: RealClock{}}
}

// NewStoreWithClock creates a descriptor store with a fixed clock for tests.
func NewStoreWithClock(clock Clock) *Store {
	return &Store{clock: clock}
}

// Load reads the descriptor from a package directory. Returns
// ErrNotInstalled if the descriptor file is absent.
func (s *Store) Load(packageDir string) (*Meta, error) {
	path := filepath.Join(packageDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no %s in %s", ErrNotInstalled, FileName, packageDir)
		}
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	m.applyDefaults(readCurrentLink(packageDir))
	return &m, nil
}

// Save writes the descriptor into a package directory, creating the
// directory if needed.
func (s *Store) Save(packageDir string, m *Meta) error {
	if err := os.MkdirAll(packageDir, 0o755); err != nil {
		return fmt.Errorf("create package dir: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(packageDir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace descriptor: %w", err)
	}
	return nil
}

// RefreshReleases replaces the descriptor's release list, repo details and
// update timestamp while leaving current_version, links, versioned_links
// and filters untouched. This is the operation behind "update fetches info
// but does not upgrade".
func (s *Store) RefreshReleases(m *Meta, info RepoInfo, releases []Release) {
	m.Description = info.Description
	m.Homepage = info.Homepage
	m.License = info.License
	m.UpdatedAt = s.clock.Now().UTC().Format(time.RFC3339)
	m.Releases = releases
	m.SortReleases()
}

// readCurrentLink returns the version named by the package's current
// symlink, or "" if the link is missing or unreadable.
func readCurrentLink(packageDir string) string {
	target, err := os.Readlink(filepath.Join(packageDir, "current"))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}
