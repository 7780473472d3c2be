package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/chaifeng/ghri/internal/archive"
	"github.com/chaifeng/ghri/internal/fetch"
	"github.com/chaifeng/ghri/internal/meta"
	"github.com/chaifeng/ghri/internal/pkgdir"
	"github.com/chaifeng/ghri/internal/release"
	"github.com/chaifeng/ghri/internal/verify"
)

// InstallOptions parameterize one install.
type InstallOptions struct {
	// Version pins a release tag; empty means latest.
	Version string
	// Filters override the descriptor's stored asset filters.
	Filters []string
	// Prerelease allows "latest" to resolve to a pre-release.
	Prerelease bool
}

// InstallResult reports what an install did.
type InstallResult struct {
	Package       string
	Version       string
	Asset         string // empty when installed from source
	Reused        bool   // version directory already populated, no download
	Verified      verify.Method
	RepointErrors []error // default links that could not be repointed
}

// Install fetches release metadata, resolves a release and asset, and
// populates the version directory. Re-installing an already populated
// version skips the download but still repoints current and the default
// links.
func (ins *Installer) Install(ctx context.Context, pkg pkgdir.Package, opts InstallOptions) (*InstallResult, error) {
	lock, err := ins.lock(pkg)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	client := ins.clientFor("")
	m, err := ins.store.Load(ins.layout.PackageDir(pkg.Owner, pkg.Repo))
	switch {
	case errors.Is(err, meta.ErrNotInstalled):
		info, err := client.RepoInfo(ctx, pkg.Owner, pkg.Repo)
		if err != nil {
			return nil, err
		}
		releases, err := client.Releases(ctx, pkg.Owner, pkg.Repo)
		if err != nil {
			return nil, err
		}
		m = meta.New(pkg.Owner, pkg.Repo, info, releases, "", client.APIURL())
	case err != nil:
		return nil, err
	default:
		client = ins.clientFor(m.APIURL)
		info, err := client.RepoInfo(ctx, pkg.Owner, pkg.Repo)
		if err != nil {
			return nil, err
		}
		releases, err := client.Releases(ctx, pkg.Owner, pkg.Repo)
		if err != nil {
			return nil, err
		}
		ins.store.RefreshReleases(m, info, releases)
	}

	rel, err := release.Resolve(m, opts.Version, opts.Prerelease)
	if err != nil {
		return nil, err
	}

	filters := opts.Filters
	if len(filters) == 0 {
		filters = m.Filters
	}
	if len(filters) == 0 {
		filters = ins.settings.Filters
	}

	// Explicit filters must match a published asset. The source fallback
	// only applies to releases with no assets and no filters in play.
	var asset *meta.Asset
	if len(rel.Assets) > 0 || len(filters) > 0 {
		asset, err = release.SelectAsset(rel, filters, ins.platform)
		if err != nil {
			return nil, err
		}
	}

	versionDir := ins.layout.VersionDir(pkg.Owner, pkg.Repo, rel.Version)
	reuse := dirPopulated(versionDir)

	plan := ins.installPlan(pkg, rel, asset, reuse)
	ok, err := ins.confirm.Confirm(plan)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAborted
	}

	result := &InstallResult{
		Package:  pkg.String(),
		Version:  rel.Version,
		Reused:   reuse,
		Verified: verify.MethodNone,
	}
	if asset != nil {
		result.Asset = asset.Name
	}

	if !reuse {
		if err := ins.populate(ctx, pkg, m, rel, asset, versionDir, result); err != nil {
			return nil, err
		}
	}

	if err := ins.layout.SetCurrent(pkg.Owner, pkg.Repo, rel.Version); err != nil {
		return nil, err
	}
	m.CurrentVersion = rel.Version
	m.Filters = filters

	result.RepointErrors = ins.registry.RepointDefaults(pkg, m)

	if err := ins.store.Save(ins.layout.PackageDir(pkg.Owner, pkg.Repo), m); err != nil {
		return nil, err
	}

	ins.log.Info("installed",
		zap.String("package", pkg.String()),
		zap.String("version", rel.Version),
		zap.Bool("reused", reuse),
		zap.String("verified", string(result.Verified)))
	return result, nil
}

// populate downloads and extracts the release into the version directory.
// Everything happens in a staging directory first; the version directory
// appears with a single rename.
func (ins *Installer) populate(ctx context.Context, pkg pkgdir.Package, m *meta.Meta, rel *meta.Release, asset *meta.Asset, versionDir string, result *InstallResult) error {
	staging := ins.layout.StagingDir(pkg.Owner, pkg.Repo)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	contentDir := filepath.Join(staging, "content")

	switch {
	case asset != nil:
		downloader := fetch.NewDownloader(ins.settings.Token, ins.progress)
		archivePath := filepath.Join(staging, asset.Name)
		if err := downloader.DownloadToFile(ctx, asset.DownloadURL, archivePath); err != nil {
			return err
		}
		method, err := ins.verifyAsset(ctx, downloader, rel, asset, staging, archivePath)
		if err != nil {
			return err
		}
		result.Verified = method

		if archive.Supported(asset.Name) {
			if err := archive.Extract(archivePath, contentDir); err != nil {
				return err
			}
		} else {
			// A bare binary asset becomes the version dir's single entry.
			if err := os.MkdirAll(contentDir, 0o755); err != nil {
				return err
			}
			if err := os.Rename(archivePath, filepath.Join(contentDir, asset.Name)); err != nil {
				return fmt.Errorf("move asset: %w", err)
			}
			if err := os.Chmod(filepath.Join(contentDir, asset.Name), 0o755); err != nil {
				return fmt.Errorf("mark executable: %w", err)
			}
		}

	case rel.TarballURL != "":
		downloader := fetch.NewDownloader(ins.settings.Token, ins.progress)
		tarball := filepath.Join(staging, pkg.Repo+"-"+rel.Version+".tar.gz")
		if err := downloader.DownloadToFile(ctx, rel.TarballURL, tarball); err != nil {
			return err
		}
		if err := archive.Extract(tarball, contentDir); err != nil {
			return err
		}
		// GitHub tarballs wrap everything in a single top-level dir.
		contentDir = unwrapSingleDir(contentDir)

	default:
		// No assets and no tarball: clone the repository at the tag.
		repoURL := strings.TrimSuffix(m.Homepage, "/")
		if repoURL == "" {
			return fmt.Errorf("release %s of %s has no assets, no tarball and no repository URL", rel.Version, pkg)
		}
		if err := fetch.CloneSource(ctx, repoURL, rel.Version, contentDir, ins.settings.Token); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(versionDir), 0o755); err != nil {
		return err
	}
	os.RemoveAll(versionDir)
	if err := os.Rename(contentDir, versionDir); err != nil {
		return fmt.Errorf("finalize version dir: %w", err)
	}
	return nil
}

// verifyAsset downloads checksum and signature companions when the
// release has them and checks the archive. Missing companions are not an
// error; a failing check is.
func (ins *Installer) verifyAsset(ctx context.Context, downloader *fetch.Downloader, rel *meta.Release, asset *meta.Asset, staging, archivePath string) (verify.Method, error) {
	names := make([]string, len(rel.Assets))
	byName := make(map[string]*meta.Asset, len(rel.Assets))
	for i := range rel.Assets {
		names[i] = rel.Assets[i].Name
		byName[rel.Assets[i].Name] = &rel.Assets[i]
	}

	method := verify.MethodNone

	if name := verify.ChecksumFor(asset.Name, names); name != "" {
		companion := byName[name]
		path := filepath.Join(staging, name)
		if err := downloader.DownloadToFile(ctx, companion.DownloadURL, path); err != nil {
			return method, fmt.Errorf("download checksum file: %w", err)
		}
		if err := verify.SHA256(archivePath, path); err != nil {
			return method, err
		}
		method = verify.MethodSHA256
	}

	if ins.settings.Keyring != "" {
		if name := verify.SignatureFor(asset.Name, names); name != "" {
			companion := byName[name]
			path := filepath.Join(staging, name)
			if err := downloader.DownloadToFile(ctx, companion.DownloadURL, path); err != nil {
				return method, fmt.Errorf("download signature: %w", err)
			}
			if err := verify.PGP(archivePath, path, ins.settings.Keyring); err != nil {
				return method, err
			}
			method = verify.MethodPGP
		}
	}

	return method, nil
}

func (ins *Installer) installPlan(pkg pkgdir.Package, rel *meta.Release, asset *meta.Asset, reuse bool) *Plan {
	plan := &Plan{
		Operation: "install",
		Package:   pkg.String(),
		Version:   rel.Version,
	}
	if reuse {
		plan.Actions = append(plan.Actions,
			fmt.Sprintf("reuse existing %s (already populated)", rel.Version))
	} else {
		switch {
		case asset != nil:
			plan.Asset = asset.Name
			plan.Actions = append(plan.Actions,
				fmt.Sprintf("download %s (%s)", asset.Name, formatSize(asset.Size)),
				fmt.Sprintf("extract into %s", rel.Version))
		case rel.TarballURL != "":
			plan.Actions = append(plan.Actions,
				"download source tarball",
				fmt.Sprintf("extract into %s", rel.Version))
		default:
			plan.Actions = append(plan.Actions,
				fmt.Sprintf("clone repository at tag %s", rel.Version))
		}
	}
	plan.Actions = append(plan.Actions,
		fmt.Sprintf("point current at %s", rel.Version),
		"repoint default links")
	return plan
}

// dirPopulated reports whether dir exists and has at least one entry.
func dirPopulated(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// unwrapSingleDir descends into dir when it contains exactly one
// subdirectory, returning that subdirectory.
func unwrapSingleDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
