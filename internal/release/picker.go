package release

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/chaifeng/ghri/internal/meta"
	"github.com/chaifeng/ghri/internal/platform"
)

// SelectAsset picks exactly one asset from rel. When filters are given they
// are ANDed: an asset qualifies only if every glob matches its name. With no
// filters the current platform's OS and architecture aliases decide, with
// archive-looking names preferred over loose files when several match.
//
// Zero qualifying assets yields NoMatchingAssetError, more than one yields
// AmbiguousAssetError. A failed filter set never falls back to the platform
// heuristic.
func SelectAsset(rel *meta.Release, filters []string, info *platform.Info) (*meta.Asset, error) {
	if len(filters) > 0 {
		return selectByFilters(rel, filters)
	}
	return selectByPlatform(rel, info)
}

func selectByFilters(rel *meta.Release, filters []string) (*meta.Asset, error) {
	globs := make([]glob.Glob, len(filters))
	for i, f := range filters {
		g, err := glob.Compile(strings.ToLower(f))
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", f, err)
		}
		globs[i] = g
	}

	var candidates []*meta.Asset
	for i := range rel.Assets {
		asset := &rel.Assets[i]
		name := strings.ToLower(asset.Name)
		ok := true
		for _, g := range globs {
			if !g.Match(name) {
				ok = false
				break
			}
		}
		if ok {
			candidates = append(candidates, asset)
		}
	}

	switch len(candidates) {
	case 0:
		return nil, &NoMatchingAssetError{Filters: filters, Assets: assetNames(rel)}
	case 1:
		return candidates[0], nil
	default:
		return nil, &AmbiguousAssetError{Filters: filters, Candidates: names(candidates)}
	}
}

func selectByPlatform(rel *meta.Release, info *platform.Info) (*meta.Asset, error) {
	var best []*meta.Asset
	bestScore := -1
	for i := range rel.Assets {
		asset := &rel.Assets[i]
		if !info.MatchesAsset(asset.Name) {
			continue
		}
		s := score(asset.Name)
		if s > bestScore {
			bestScore = s
			best = best[:0]
		}
		if s == bestScore {
			best = append(best, asset)
		}
	}

	switch len(best) {
	case 0:
		return nil, &NoMatchingAssetError{Assets: assetNames(rel)}
	case 1:
		return best[0], nil
	default:
		return nil, &AmbiguousAssetError{Candidates: names(best)}
	}
}

// score ranks platform-matched assets so that archives win over checksums,
// signatures and other companion files sharing the platform labels.
func score(name string) int {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".sha256", ".sha256sum", ".sha512", ".asc", ".sig", ".pem", ".sbom", ".txt", ".json"} {
		if strings.HasSuffix(lower, suffix) {
			return 0
		}
	}
	for _, suffix := range []string{".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar.zst", ".tar.bz2", ".zip"} {
		if strings.HasSuffix(lower, suffix) {
			return 2
		}
	}
	return 1
}

func assetNames(rel *meta.Release) []string {
	out := make([]string, len(rel.Assets))
	for i := range rel.Assets {
		out[i] = rel.Assets[i].Name
	}
	sort.Strings(out)
	return out
}

func names(assets []*meta.Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Name
	}
	sort.Strings(out)
	return out
}
