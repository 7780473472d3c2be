// Package release resolves which release of a package to install and
// which of its assets to download.
package release

import (
	"github.com/chaifeng/ghri/internal/meta"
)

// maxSuggestedVersions caps the tag list embedded in VersionNotFoundError.
const maxSuggestedVersions = 8

// Resolve picks a release from m. An empty requested version means "latest":
// the first release in descending order, skipping pre-releases unless
// prerelease is set. A non-empty version is matched tag-exactly, tolerating
// a leading "v" on either side.
func Resolve(m *meta.Meta, requested string, prerelease bool) (*meta.Release, error) {
	if requested != "" {
		if rel := m.FindRelease(requested); rel != nil {
			return rel, nil
		}
		return nil, &VersionNotFoundError{
			Package:   m.Name,
			Version:   requested,
			Available: availableVersions(m, maxSuggestedVersions),
		}
	}
	for i := range m.Releases {
		rel := &m.Releases[i]
		if rel.Prerelease && !prerelease {
			continue
		}
		return rel, nil
	}
	return nil, &NoReleaseAvailableError{Package: m.Name, Prerelease: prerelease}
}

func availableVersions(m *meta.Meta, limit int) []string {
	versions := make([]string, 0, limit)
	for i := range m.Releases {
		if len(versions) == limit {
			break
		}
		versions = append(versions, m.Releases[i].Version)
	}
	return versions
}
