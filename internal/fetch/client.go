// Package fetch talks to the GitHub API and downloads release assets.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chaifeng/ghri/internal/meta"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Minute
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "ghri/1.0"
	// releasesPerPage is the page size used when listing releases
	releasesPerPage = 100
	// maxReleasePages caps pagination so a huge repo cannot stall an update
	maxReleasePages = 5
)

// Client queries the GitHub REST API for repository and release metadata.
type Client struct {
	http      *http.Client
	apiURL    string
	token     string
	userAgent string
	log       *zap.Logger
}

// NewClient creates an API client. An empty token sends unauthenticated
// requests; apiURL defaults to the public endpoint.
func NewClient(apiURL, token string) *Client {
	if apiURL == "" {
		apiURL = meta.DefaultAPIURL
	}
	return &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		apiURL:    apiURL,
		token:     token,
		userAgent: DefaultUserAgent,
		log:       zap.NewNop(),
	}
}

// WithLogger replaces the client's logger and returns the client.
func (c *Client) WithLogger(log *zap.Logger) *Client {
	if log != nil {
		c.log = log
	}
	return c
}

func (c *Client) APIURL() string { return c.apiURL }

// apiRepo is the subset of the repository endpoint ghri reads.
type apiRepo struct {
	Description string `json:"description"`
	Homepage    string `json:"homepage"`
	UpdatedAt   string `json:"updated_at"`
	License     *struct {
		SPDXID string `json:"spdx_id"`
		Name   string `json:"name"`
	} `json:"license"`
}

// apiRelease is the subset of the releases endpoint ghri reads.
type apiRelease struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	PublishedAt string `json:"published_at"`
	Prerelease  bool   `json:"prerelease"`
	Draft       bool   `json:"draft"`
	TarballURL  string `json:"tarball_url"`
	Assets      []struct {
		Name               string `json:"name"`
		Size               int64  `json:"size"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// RepoInfo fetches repository metadata.
func (c *Client) RepoInfo(ctx context.Context, owner, repo string) (meta.RepoInfo, error) {
	var raw apiRepo
	url := fmt.Sprintf("%s/repos/%s/%s", c.apiURL, owner, repo)
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return meta.RepoInfo{}, fmt.Errorf("fetch repo info for %s/%s: %w", owner, repo, err)
	}
	info := meta.RepoInfo{
		Description: raw.Description,
		Homepage:    raw.Homepage,
		UpdatedAt:   raw.UpdatedAt,
	}
	if raw.License != nil {
		info.License = raw.License.SPDXID
		if info.License == "" || info.License == "NOASSERTION" {
			info.License = raw.License.Name
		}
	}
	return info, nil
}

// Releases fetches the release list, newest pages first, skipping drafts.
// Pagination stops after maxReleasePages; a repo with more releases gets a
// warning, and its oldest tags are not resolvable.
func (c *Client) Releases(ctx context.Context, owner, repo string) ([]meta.Release, error) {
	var releases []meta.Release
	truncated := true
	for page := 1; page <= maxReleasePages; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d&page=%d",
			c.apiURL, owner, repo, releasesPerPage, page)
		var raw []apiRelease
		if err := c.getJSON(ctx, url, &raw); err != nil {
			return nil, fmt.Errorf("fetch releases for %s/%s: %w", owner, repo, err)
		}
		for _, rel := range raw {
			if rel.Draft {
				continue
			}
			out := meta.Release{
				Version:     rel.TagName,
				Title:       rel.Name,
				PublishedAt: rel.PublishedAt,
				Prerelease:  rel.Prerelease,
				TarballURL:  rel.TarballURL,
			}
			for _, a := range rel.Assets {
				out.Assets = append(out.Assets, meta.Asset{
					Name:        a.Name,
					Size:        a.Size,
					DownloadURL: a.BrowserDownloadURL,
				})
			}
			releases = append(releases, out)
		}
		if len(raw) < releasesPerPage {
			truncated = false
			break
		}
	}
	if truncated {
		c.log.Warn("release list truncated at the pagination cap, older tags are not visible",
			zap.String("repo", owner+"/"+repo),
			zap.Int("pages", maxReleasePages),
			zap.Int("releases", len(releases)))
	}
	return releases, nil
}

// StatusError is a non-2xx API response.
type StatusError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// IsNotFound reports whether err is a 404 API response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		json.Unmarshal(body, &apiErr)
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
