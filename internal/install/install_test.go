package install

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/chaifeng/ghri/internal/config"
	"github.com/chaifeng/ghri/internal/links"
	"github.com/chaifeng/ghri/internal/meta"
	"github.com/chaifeng/ghri/internal/pkgdir"
	"github.com/chaifeng/ghri/internal/platform"
	"github.com/chaifeng/ghri/internal/release"
	"github.com/chaifeng/ghri/internal/verify"
)

// fakeForge serves a minimal GitHub API plus asset downloads for one
// repository with one release per registered version.
type fakeForge struct {
	t             *testing.T
	srv           *httptest.Server
	archive       []byte
	tarball       []byte
	checksums     string
	versions      []string
	noAssets      bool
	assetRequests atomic.Int32
}

func newFakeForge(t *testing.T, versions ...string) *fakeForge {
	t.Helper()
	f := &fakeForge{t: t, versions: versions}
	f.archive = makeTarGz(t, map[string]string{"fd": "#!/bin/sh\necho fd\n"})
	// Source tarballs wrap everything in one top-level directory.
	f.tarball = makeTarGz(t, map[string]string{"sharkdp-fd-abc123/fd": "#!/bin/sh\necho fd\n"})
	sum := sha256.Sum256(f.archive)
	f.checksums = hex.EncodeToString(sum[:]) + "  fd-x86_64-unknown-linux-gnu.tar.gz\n"

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/sharkdp/fd", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"description": "find alternative", "homepage": "", "license": {"spdx_id": "MIT"}}`)
	})
	mux.HandleFunc("/repos/sharkdp/fd/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.releasesJSON())
	})
	mux.HandleFunc("/assets/", func(w http.ResponseWriter, r *http.Request) {
		f.assetRequests.Add(1)
		switch filepath.Base(r.URL.Path) {
		case "fd-x86_64-unknown-linux-gnu.tar.gz":
			w.Write(f.archive)
		case "checksums.txt":
			fmt.Fprint(w, f.checksums)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/tarball/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(f.tarball)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeForge) releasesJSON() string {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, v := range f.versions {
		if i > 0 {
			buf.WriteString(",")
		}
		assets := fmt.Sprintf(`[
			{"name": "fd-x86_64-unknown-linux-gnu.tar.gz", "size": %d,
			 "browser_download_url": "%s/assets/fd-x86_64-unknown-linux-gnu.tar.gz"},
			{"name": "checksums.txt", "size": %d,
			 "browser_download_url": "%s/assets/checksums.txt"}
		]`, len(f.archive), f.srv.URL, len(f.checksums), f.srv.URL)
		if f.noAssets {
			assets = "[]"
		}
		fmt.Fprintf(&buf, `{
			"tag_name": %q, "published_at": "2026-0%d-01T00:00:00Z", "prerelease": false,
			"tarball_url": "%s/tarball/%s",
			"assets": %s
		}`, v, len(f.versions)-i, f.srv.URL, v, assets)
	}
	buf.WriteString("]")
	return buf.String()
}

func makeTarGz(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o755, Size: int64(len(content))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func newTestInstaller(t *testing.T, forge *fakeForge, confirm Confirmer) *Installer {
	t.Helper()
	settings := config.Settings{
		Root:   filepath.Join(t.TempDir(), "ghri"),
		APIURL: forge.srv.URL,
	}
	info := &platform.Info{OS: "linux", Arch: "amd64", ArchRaw: "x86_64"}
	return New(settings, info, confirm, false, nil)
}

var fd = pkgdir.Package{Owner: "sharkdp", Repo: "fd"}

func TestInstallLatest(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0", "v10.1.0")
	ins := newTestInstaller(t, forge, nil)

	res, err := ins.Install(context.Background(), fd, InstallOptions{})
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if res.Version != "v10.2.0" {
		t.Errorf("Version = %s, want v10.2.0", res.Version)
	}
	if res.Verified != verify.MethodSHA256 {
		t.Errorf("Verified = %s, want sha256", res.Verified)
	}

	bin := filepath.Join(ins.Layout().VersionDir("sharkdp", "fd", "v10.2.0"), "fd")
	if _, err := os.Stat(bin); err != nil {
		t.Errorf("extracted binary missing: %v", err)
	}
	current, _ := ins.Layout().CurrentVersion("sharkdp", "fd")
	if current != "v10.2.0" {
		t.Errorf("current = %s", current)
	}

	m, err := meta.NewStore().Load(ins.Layout().PackageDir("sharkdp", "fd"))
	if err != nil {
		t.Fatal(err)
	}
	if m.CurrentVersion != "v10.2.0" || len(m.Releases) != 2 {
		t.Errorf("descriptor = current %s, %d releases", m.CurrentVersion, len(m.Releases))
	}
	if m.License != "MIT" {
		t.Errorf("License = %q", m.License)
	}
}

func TestInstallIdempotent(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0")
	ins := newTestInstaller(t, forge, nil)

	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err != nil {
		t.Fatal(err)
	}
	downloads := forge.assetRequests.Load()

	res, err := ins.Install(context.Background(), fd, InstallOptions{})
	if err != nil {
		t.Fatalf("second Install() error = %v", err)
	}
	if !res.Reused {
		t.Error("second install did not reuse the version dir")
	}
	if forge.assetRequests.Load() != downloads {
		t.Errorf("second install re-downloaded assets (%d -> %d)", downloads, forge.assetRequests.Load())
	}
}

func TestInstallSpecificVersionThenBack(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0", "v10.1.0")
	ins := newTestInstaller(t, forge, nil)

	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err != nil {
		t.Fatal(err)
	}
	res, err := ins.Install(context.Background(), fd, InstallOptions{Version: "10.1.0"})
	if err != nil {
		t.Fatalf("Install(v10.1.0) error = %v", err)
	}
	if res.Version != "v10.1.0" {
		t.Errorf("Version = %s, want tag-exact v10.1.0", res.Version)
	}
	current, _ := ins.Layout().CurrentVersion("sharkdp", "fd")
	if current != "v10.1.0" {
		t.Errorf("current = %s, want v10.1.0", current)
	}
	versions, _ := ins.Layout().InstalledVersions("sharkdp", "fd")
	if len(versions) != 2 {
		t.Errorf("InstalledVersions = %v, want both kept", versions)
	}
}

func TestInstallChecksumMismatchFails(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0")
	forge.checksums = "0000000000000000000000000000000000000000000000000000000000000000  fd-x86_64-unknown-linux-gnu.tar.gz\n"
	ins := newTestInstaller(t, forge, nil)

	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err == nil {
		t.Fatal("Install() with bad checksum, want error")
	}
	if _, err := os.Stat(ins.Layout().VersionDir("sharkdp", "fd", "v10.2.0")); !os.IsNotExist(err) {
		t.Error("version dir created despite failed verification")
	}
}

func TestInstallFiltersWithNoAssetsFails(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0")
	forge.noAssets = true
	ins := newTestInstaller(t, forge, nil)

	_, err := ins.Install(context.Background(), fd, InstallOptions{Filters: []string{"*musl*"}})
	var noMatch *release.NoMatchingAssetError
	if !errors.As(err, &noMatch) {
		t.Fatalf("Install() error = %v, want NoMatchingAssetError", err)
	}
	if len(noMatch.Assets) != 0 {
		t.Errorf("reported assets = %v, want none", noMatch.Assets)
	}
	// Explicit filters must never be satisfied from the source fallback.
	if _, err := os.Stat(ins.Layout().VersionDir("sharkdp", "fd", "v10.2.0")); !os.IsNotExist(err) {
		t.Error("version dir created despite unmatched filters")
	}
}

func TestInstallFromSourceTarball(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0")
	forge.noAssets = true
	ins := newTestInstaller(t, forge, nil)

	res, err := ins.Install(context.Background(), fd, InstallOptions{})
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if res.Asset != "" {
		t.Errorf("Asset = %q, want empty for a source install", res.Asset)
	}
	// The tarball's single top-level directory is unwrapped.
	bin := filepath.Join(ins.Layout().VersionDir("sharkdp", "fd", "v10.2.0"), "fd")
	if _, err := os.Stat(bin); err != nil {
		t.Errorf("source-installed file missing: %v", err)
	}
}

func TestInstallKeepsPinnedLinks(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0", "v10.1.0")
	ins := newTestInstaller(t, forge, nil)

	if _, err := ins.Install(context.Background(), fd, InstallOptions{Version: "v10.1.0"}); err != nil {
		t.Fatal(err)
	}

	bin := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	reg := ins.Registry()
	if _, err := reg.Create(links.Source{Owner: "sharkdp", Repo: "fd"}, filepath.Join(bin, "fd")); err != nil {
		t.Fatalf("create default link: %v", err)
	}
	if _, err := reg.Create(links.Source{Owner: "sharkdp", Repo: "fd", Version: "v10.1.0"}, filepath.Join(bin, "fd-10.1")); err != nil {
		t.Fatalf("create pinned link: %v", err)
	}
	pinnedBefore, err := os.Readlink(filepath.Join(bin, "fd-10.1"))
	if err != nil {
		t.Fatal(err)
	}

	// Upgrading to the latest repoints the default link only.
	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err != nil {
		t.Fatal(err)
	}
	pinnedAfter, err := os.Readlink(filepath.Join(bin, "fd-10.1"))
	if err != nil {
		t.Fatal(err)
	}
	if pinnedAfter != pinnedBefore {
		t.Errorf("pinned link target changed: %q -> %q", pinnedBefore, pinnedAfter)
	}
	if _, err := os.Stat(filepath.Join(bin, "fd")); err != nil {
		t.Errorf("default link broken after upgrade: %v", err)
	}

	// Going back to the older version leaves the pinned link alone too.
	if _, err := ins.Install(context.Background(), fd, InstallOptions{Version: "v10.1.0"}); err != nil {
		t.Fatal(err)
	}
	pinnedFinal, err := os.Readlink(filepath.Join(bin, "fd-10.1"))
	if err != nil {
		t.Fatal(err)
	}
	if pinnedFinal != pinnedBefore {
		t.Errorf("pinned link target changed on downgrade: %q -> %q", pinnedBefore, pinnedFinal)
	}
	if _, err := os.Stat(filepath.Join(bin, "fd")); err != nil {
		t.Errorf("default link broken after downgrade: %v", err)
	}
}

type decline struct{}

func (decline) Confirm(*Plan) (bool, error) { return false, nil }

func TestInstallDeclined(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0")
	ins := newTestInstaller(t, forge, decline{})

	_, err := ins.Install(context.Background(), fd, InstallOptions{})
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("Install() error = %v, want ErrAborted", err)
	}
	if _, err := os.Stat(ins.Layout().VersionDir("sharkdp", "fd", "v10.2.0")); !os.IsNotExist(err) {
		t.Error("version dir created despite declined plan")
	}
}

func TestUpdateRefreshesWithoutInstalling(t *testing.T) {
	forge := newFakeForge(t, "v10.1.0")
	ins := newTestInstaller(t, forge, nil)
	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err != nil {
		t.Fatal(err)
	}

	// A newer release appears upstream.
	forge.versions = []string{"v10.2.0", "v10.1.0"}

	results, err := ins.Update(context.Background(), nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	if !results[0].Outdated || results[0].Latest != "v10.2.0" {
		t.Errorf("result = %+v, want outdated with latest v10.2.0", results[0])
	}

	// Update never installs.
	if _, err := os.Stat(ins.Layout().VersionDir("sharkdp", "fd", "v10.2.0")); !os.IsNotExist(err) {
		t.Error("update installed a version dir")
	}
	current, _ := ins.Layout().CurrentVersion("sharkdp", "fd")
	if current != "v10.1.0" {
		t.Errorf("current moved to %s", current)
	}
}

func TestUpgradeInstallsLatest(t *testing.T) {
	forge := newFakeForge(t, "v10.1.0")
	ins := newTestInstaller(t, forge, nil)
	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err != nil {
		t.Fatal(err)
	}

	forge.versions = []string{"v10.2.0", "v10.1.0"}

	results, errs := ins.Upgrade(context.Background(), nil, false)
	if len(errs) != 0 {
		t.Fatalf("Upgrade() errors = %v", errs)
	}
	if len(results) != 1 || results[0].Version != "v10.2.0" {
		t.Fatalf("Upgrade() results = %+v", results)
	}
	current, _ := ins.Layout().CurrentVersion("sharkdp", "fd")
	if current != "v10.2.0" {
		t.Errorf("current = %s", current)
	}
}

func TestRemoveCurrentVersionProtected(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0")
	ins := newTestInstaller(t, forge, nil)
	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err != nil {
		t.Fatal(err)
	}

	_, err := ins.Remove(fd, RemoveOptions{Version: "v10.2.0"})
	var protected *pkgdir.CurrentVersionProtectedError
	if !errors.As(err, &protected) {
		t.Fatalf("Remove() error = %v, want CurrentVersionProtectedError", err)
	}

	res, err := ins.Remove(fd, RemoveOptions{Version: "v10.2.0", Force: true})
	if err != nil {
		t.Fatalf("Remove(force) error = %v", err)
	}
	if res.Version != "v10.2.0" {
		t.Errorf("result = %+v", res)
	}
	// current_version stays, now dangling.
	m, err := meta.NewStore().Load(ins.Layout().PackageDir("sharkdp", "fd"))
	if err != nil {
		t.Fatal(err)
	}
	if m.CurrentVersion != "v10.2.0" {
		t.Errorf("CurrentVersion = %s, want the dangling v10.2.0", m.CurrentVersion)
	}
}

type countingConfirmer struct{ asked int }

func (c *countingConfirmer) Confirm(*Plan) (bool, error) {
	c.asked++
	return true, nil
}

func TestRemoveValidatesBeforePrompt(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0")
	confirm := &countingConfirmer{}
	ins := newTestInstaller(t, forge, confirm)
	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err != nil {
		t.Fatal(err)
	}
	installAsks := confirm.asked

	if _, err := ins.Remove(fd, RemoveOptions{Version: "v10.2.0"}); err == nil {
		t.Fatal("Remove() of current version without force, want error")
	}
	if confirm.asked != installAsks {
		t.Error("prompted for a removal that was going to refuse")
	}

	if _, err := ins.Remove(fd, RemoveOptions{Version: "v9.9.9"}); err == nil {
		t.Fatal("Remove() of uninstalled version, want error")
	}
	if confirm.asked != installAsks {
		t.Error("prompted for a removal of a version that is not installed")
	}
}

func TestRemovePackage(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0")
	ins := newTestInstaller(t, forge, nil)
	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err != nil {
		t.Fatal(err)
	}

	if _, err := ins.Remove(fd, RemoveOptions{}); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(ins.Layout().PackageDir("sharkdp", "fd")); !os.IsNotExist(err) {
		t.Error("package dir still present")
	}
	if _, err := os.Stat(filepath.Join(ins.Layout().Root(), "sharkdp")); !os.IsNotExist(err) {
		t.Error("empty owner dir still present")
	}
}

func TestPruneKeepsCurrent(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0", "v10.1.0")
	ins := newTestInstaller(t, forge, nil)
	if _, err := ins.Install(context.Background(), fd, InstallOptions{Version: "v10.1.0"}); err != nil {
		t.Fatal(err)
	}
	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err != nil {
		t.Fatal(err)
	}

	results, err := ins.Prune(nil)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	if len(results[0].Removed) != 1 || results[0].Removed[0] != "v10.1.0" {
		t.Errorf("Removed = %v, want only v10.1.0", results[0].Removed)
	}
	versions, _ := ins.Layout().InstalledVersions("sharkdp", "fd")
	if len(versions) != 1 || versions[0] != "v10.2.0" {
		t.Errorf("remaining versions = %v", versions)
	}
}

func TestListAndShow(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0")
	ins := newTestInstaller(t, forge, nil)
	if _, err := ins.Install(context.Background(), fd, InstallOptions{}); err != nil {
		t.Fatal(err)
	}

	entries, err := ins.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Package != "sharkdp/fd" || entries[0].Current != "v10.2.0" {
		t.Errorf("List() = %+v", entries)
	}

	detail, err := ins.Show(fd)
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if detail.Meta.Name != "sharkdp/fd" || len(detail.Installed) != 1 {
		t.Errorf("Show() = meta %s, installed %v", detail.Meta.Name, detail.Installed)
	}
}

func TestShowNotInstalled(t *testing.T) {
	forge := newFakeForge(t, "v10.2.0")
	ins := newTestInstaller(t, forge, nil)

	_, err := ins.Show(fd)
	if !errors.Is(err, meta.ErrNotInstalled) {
		t.Fatalf("Show() error = %v, want ErrNotInstalled", err)
	}
}
