package release

import (
	"errors"
	"testing"

	"github.com/chaifeng/ghri/internal/meta"
	"github.com/chaifeng/ghri/internal/platform"
)

func releaseWithAssets(names ...string) *meta.Release {
	rel := &meta.Release{Version: "v1.0.0"}
	for _, name := range names {
		rel.Assets = append(rel.Assets, meta.Asset{Name: name})
	}
	return rel
}

func linuxAmd64() *platform.Info {
	return &platform.Info{OS: "linux", Arch: "amd64", ArchRaw: "x86_64"}
}

func TestSelectAssetFilters(t *testing.T) {
	rel := releaseWithAssets(
		"fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz",
		"fd-v1.0.0-x86_64-unknown-linux-musl.tar.gz",
		"fd-v1.0.0-aarch64-apple-darwin.tar.gz",
	)

	tests := []struct {
		name    string
		filters []string
		want    string
	}{
		{"single filter", []string{"*musl*"}, "fd-v1.0.0-x86_64-unknown-linux-musl.tar.gz"},
		{"filters are ANDed", []string{"*linux*", "*gnu*"}, "fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz"},
		{"case insensitive", []string{"*DARWIN*"}, "fd-v1.0.0-aarch64-apple-darwin.tar.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := SelectAsset(rel, tt.filters, linuxAmd64())
			if err != nil {
				t.Fatalf("SelectAsset() error = %v", err)
			}
			if asset.Name != tt.want {
				t.Errorf("SelectAsset() = %s, want %s", asset.Name, tt.want)
			}
		})
	}
}

func TestSelectAssetNoMatch(t *testing.T) {
	rel := releaseWithAssets(
		"fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz",
		"fd-v1.0.0-aarch64-apple-darwin.tar.gz",
	)

	_, err := SelectAsset(rel, []string{"*windows*"}, linuxAmd64())
	var noMatch *NoMatchingAssetError
	if !errors.As(err, &noMatch) {
		t.Fatalf("SelectAsset() error = %v, want NoMatchingAssetError", err)
	}
	if len(noMatch.Assets) != 2 {
		t.Errorf("Assets = %v, want both release assets", noMatch.Assets)
	}
	if noMatch.Assets[0] > noMatch.Assets[1] {
		t.Errorf("Assets not sorted: %v", noMatch.Assets)
	}
}

func TestSelectAssetAmbiguousFilters(t *testing.T) {
	rel := releaseWithAssets(
		"fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz",
		"fd-v1.0.0-x86_64-unknown-linux-musl.tar.gz",
	)

	_, err := SelectAsset(rel, []string{"*linux*"}, linuxAmd64())
	var ambiguous *AmbiguousAssetError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("SelectAsset() error = %v, want AmbiguousAssetError", err)
	}
	if len(ambiguous.Candidates) != 2 {
		t.Errorf("Candidates = %v, want 2 entries", ambiguous.Candidates)
	}
}

func TestSelectAssetFailedFiltersDoNotFallBack(t *testing.T) {
	// Platform detection would match the linux asset, but an explicit
	// filter set that matches nothing must fail outright.
	rel := releaseWithAssets("fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz")

	_, err := SelectAsset(rel, []string{"*freebsd*"}, linuxAmd64())
	var noMatch *NoMatchingAssetError
	if !errors.As(err, &noMatch) {
		t.Fatalf("SelectAsset() error = %v, want NoMatchingAssetError", err)
	}
}

func TestSelectAssetPlatformHeuristic(t *testing.T) {
	rel := releaseWithAssets(
		"fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz",
		"fd-v1.0.0-aarch64-apple-darwin.tar.gz",
		"fd-v1.0.0-x86_64-pc-windows-msvc.zip",
	)

	asset, err := SelectAsset(rel, nil, linuxAmd64())
	if err != nil {
		t.Fatalf("SelectAsset() error = %v", err)
	}
	if asset.Name != "fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz" {
		t.Errorf("SelectAsset() = %s, want the linux asset", asset.Name)
	}
}

func TestSelectAssetPlatformPrefersArchives(t *testing.T) {
	rel := releaseWithAssets(
		"fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz",
		"fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz.sha256",
	)

	asset, err := SelectAsset(rel, nil, linuxAmd64())
	if err != nil {
		t.Fatalf("SelectAsset() error = %v", err)
	}
	if asset.Name != "fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz" {
		t.Errorf("SelectAsset() = %s, want the archive", asset.Name)
	}
}

func TestSelectAssetPlatformAmbiguous(t *testing.T) {
	rel := releaseWithAssets(
		"fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz",
		"fd-v1.0.0-x86_64-unknown-linux-musl.tar.gz",
	)

	_, err := SelectAsset(rel, nil, linuxAmd64())
	var ambiguous *AmbiguousAssetError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("SelectAsset() error = %v, want AmbiguousAssetError", err)
	}
}

func TestSelectAssetInvalidFilter(t *testing.T) {
	rel := releaseWithAssets("fd-v1.0.0-x86_64-unknown-linux-gnu.tar.gz")
	if _, err := SelectAsset(rel, []string{"[bad"}, linuxAmd64()); err == nil {
		t.Fatal("SelectAsset() with invalid glob, want error")
	}
}
