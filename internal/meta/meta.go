// Package meta owns the on-disk package descriptor: the meta.json file
// that records everything ghri knows about one installed owner/repo,
// including its releases, link rules, and asset filters.
package meta

import (
	"sort"
	"strings"
)

// DefaultAPIURL is the API endpoint assumed when a descriptor has none.
const DefaultAPIURL = "https://api.github.com"

// Meta is the package descriptor persisted as meta.json.
type Meta struct {
	Name           string          `json:"name"`
	APIURL         string          `json:"api_url"`
	RepoInfoURL    string          `json:"repo_info_url"`
	ReleasesURL    string          `json:"releases_url"`
	Description    string          `json:"description,omitempty"`
	Homepage       string          `json:"homepage,omitempty"`
	License        string          `json:"license,omitempty"`
	UpdatedAt      string          `json:"updated_at"`
	CurrentVersion string          `json:"current_version"`
	Releases       []Release       `json:"releases"`
	Links          []LinkRule      `json:"links,omitempty"`
	VersionedLinks []VersionedLink `json:"versioned_links,omitempty"`
	Filters        []string        `json:"filters,omitempty"`
}

// Release is one published, tagged set of downloadable assets.
type Release struct {
	Version     string  `json:"version"`
	Title       string  `json:"title,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Prerelease  bool    `json:"is_prerelease"`
	TarballURL  string  `json:"tarball_url"`
	Assets      []Asset `json:"assets"`
}

// Asset is one downloadable archive belonging to a release.
type Asset struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// LinkRule describes an external symlink that follows the current version.
// Dest is stored relative to the package directory so the whole install
// root stays relocatable.
type LinkRule struct {
	Dest string `json:"dest"`
	Path string `json:"path,omitempty"`
}

// VersionedLink is a link rule pinned to one specific version. It is never
// touched when the current version changes.
type VersionedLink struct {
	Dest    string `json:"dest"`
	Version string `json:"version"`
	Path    string `json:"path,omitempty"`
}

// RepoInfo is the subset of repository metadata the descriptor records.
type RepoInfo struct {
	Description string
	Homepage    string
	License     string
	UpdatedAt   string
}

// New builds a descriptor for a freshly installed package.
func New(owner, repo string, info RepoInfo, releases []Release, current, apiURL string) *Meta {
	m := &Meta{
		Name:           owner + "/" + repo,
		APIURL:         apiURL,
		RepoInfoURL:    apiURL + "/repos/" + owner + "/" + repo,
		ReleasesURL:    apiURL + "/repos/" + owner + "/" + repo + "/releases",
		Description:    info.Description,
		Homepage:       info.Homepage,
		License:        info.License,
		UpdatedAt:      info.UpdatedAt,
		CurrentVersion: current,
		Releases:       releases,
	}
	m.SortReleases()
	return m
}

// OwnerRepo splits the descriptor's name into owner and repo. Both are
// empty if the name is malformed.
func (m *Meta) OwnerRepo() (string, string) {
	owner, repo, ok := strings.Cut(m.Name, "/")
	if !ok {
		return "", ""
	}
	return owner, repo
}

// SortReleases orders releases newest first: descending publish timestamp,
// releases without one after all published ones, version-string descending
// among themselves. Timestamps are RFC 3339 so string comparison orders
// them chronologically.
func (m *Meta) SortReleases() {
	sort.SliceStable(m.Releases, func(i, j int) bool {
		a, b := m.Releases[i], m.Releases[j]
		switch {
		case a.PublishedAt != "" && b.PublishedAt != "":
			return a.PublishedAt > b.PublishedAt
		case a.PublishedAt != "":
			return true
		case b.PublishedAt != "":
			return false
		default:
			return a.Version > b.Version
		}
	})
}

// FindRelease returns the release whose tag matches version, tolerating a
// leading "v" on either side.
func (m *Meta) FindRelease(version string) *Release {
	for i := range m.Releases {
		if VersionsMatch(m.Releases[i].Version, version) {
			return &m.Releases[i]
		}
	}
	return nil
}

// VersionsMatch reports whether two version strings name the same release,
// ignoring a leading "v" on either.
func VersionsMatch(a, b string) bool {
	return strings.TrimPrefix(a, "v") == strings.TrimPrefix(b, "v")
}

// applyDefaults fills semantically derivable fields that are blank after
// deserialization, so descriptors written by older versions keep working.
func (m *Meta) applyDefaults(currentFromLink string) {
	owner, repo := m.OwnerRepo()

	if strings.TrimSpace(m.APIURL) == "" {
		m.APIURL = DefaultAPIURL
	}
	if strings.TrimSpace(m.RepoInfoURL) == "" && owner != "" {
		m.RepoInfoURL = m.APIURL + "/repos/" + owner + "/" + repo
	}
	if strings.TrimSpace(m.ReleasesURL) == "" && owner != "" {
		m.ReleasesURL = m.APIURL + "/repos/" + owner + "/" + repo + "/releases"
	}
	if strings.TrimSpace(m.Homepage) == "" && owner != "" {
		m.Homepage = webURL(m.APIURL) + "/" + owner + "/" + repo
	}
	if strings.TrimSpace(m.CurrentVersion) == "" && currentFromLink != "" {
		m.CurrentVersion = currentFromLink
	}
}

// webURL derives the browsable host from an API URL. GitHub Enterprise
// serves the API under /api/v3 or an api. subdomain.
func webURL(apiURL string) string {
	if strings.Contains(apiURL, "api.github.com") {
		return "https://github.com"
	}
	s := strings.ReplaceAll(apiURL, "/api/v3", "")
	return strings.Replace(s, "api.", "", 1)
}
