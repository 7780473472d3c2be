package release

import (
	"fmt"
	"strings"
)

// VersionNotFoundError reports that a requested version tag matched no
// release, with a short list of the newest available tags.
type VersionNotFoundError struct {
	Package   string
	Version   string
	Available []string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("version %q not found for %s (available: %s)",
		e.Version, e.Package, strings.Join(e.Available, ", "))
}

// NoReleaseAvailableError reports an empty candidate set for "latest".
type NoReleaseAvailableError struct {
	Package    string
	Prerelease bool
}

func (e *NoReleaseAvailableError) Error() string {
	if e.Prerelease {
		return fmt.Sprintf("no release found for %s", e.Package)
	}
	return fmt.Sprintf("no stable release found for %s (use --pre for pre-releases)", e.Package)
}

// NoMatchingAssetError reports that no asset qualified. Assets holds every
// asset name of the release, sorted, for diagnostic display.
type NoMatchingAssetError struct {
	Filters []string
	Assets  []string
}

func (e *NoMatchingAssetError) Error() string {
	var b strings.Builder
	if len(e.Filters) > 0 {
		fmt.Fprintf(&b, "no asset matched filters %v", e.Filters)
	} else {
		b.WriteString("no asset matched the current platform")
	}
	b.WriteString("\navailable assets:")
	for _, name := range e.Assets {
		b.WriteString("\n  " + name)
	}
	return b.String()
}

// AmbiguousAssetError reports several equally qualified assets. Candidates
// holds the qualifying names, sorted.
type AmbiguousAssetError struct {
	Filters    []string
	Candidates []string
}

func (e *AmbiguousAssetError) Error() string {
	var b strings.Builder
	if len(e.Filters) > 0 {
		fmt.Fprintf(&b, "filters %v match more than one asset", e.Filters)
	} else {
		b.WriteString("more than one asset matches the current platform")
	}
	b.WriteString("; add --filter to choose one of:")
	for _, name := range e.Candidates {
		b.WriteString("\n  " + name)
	}
	return b.String()
}
