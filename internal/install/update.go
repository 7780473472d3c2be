package install

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chaifeng/ghri/internal/meta"
	"github.com/chaifeng/ghri/internal/pkgdir"
	"github.com/chaifeng/ghri/internal/release"
)

// versionsEqual treats an empty current version as never equal, so a
// package with a dangling current is considered outdated.
func versionsEqual(current, latest string) bool {
	return current != "" && meta.VersionsMatch(current, latest)
}

// UpdateResult reports the refreshed state of one package.
type UpdateResult struct {
	Package  string
	Current  string
	Latest   string // newest release after refresh, "" when none qualify
	Outdated bool
	Err      error // per-package failure, the batch keeps going
}

// Update refreshes the release metadata of the given packages, or of every
// installed package when pkgs is empty. It never installs anything.
func (ins *Installer) Update(ctx context.Context, pkgs []pkgdir.Package) ([]UpdateResult, error) {
	if len(pkgs) == 0 {
		var err error
		pkgs, err = ins.layout.FindAll()
		if err != nil {
			return nil, err
		}
	}

	results := make([]UpdateResult, 0, len(pkgs))
	for _, pkg := range pkgs {
		results = append(results, ins.updateOne(ctx, pkg))
	}
	return results, nil
}

func (ins *Installer) updateOne(ctx context.Context, pkg pkgdir.Package) UpdateResult {
	result := UpdateResult{Package: pkg.String()}

	lock, err := ins.lock(pkg)
	if err != nil {
		result.Err = err
		return result
	}
	defer lock.Release()

	pkgDir := ins.layout.PackageDir(pkg.Owner, pkg.Repo)
	m, err := ins.store.Load(pkgDir)
	if err != nil {
		result.Err = err
		return result
	}

	client := ins.clientFor(m.APIURL)
	info, err := client.RepoInfo(ctx, pkg.Owner, pkg.Repo)
	if err != nil {
		result.Err = err
		return result
	}
	releases, err := client.Releases(ctx, pkg.Owner, pkg.Repo)
	if err != nil {
		result.Err = err
		return result
	}

	ins.store.RefreshReleases(m, info, releases)
	if err := ins.store.Save(pkgDir, m); err != nil {
		result.Err = err
		return result
	}

	result.Current = m.CurrentVersion
	if rel, err := release.Resolve(m, "", false); err == nil {
		result.Latest = rel.Version
		result.Outdated = !versionsEqual(m.CurrentVersion, rel.Version)
	}

	ins.log.Info("updated metadata",
		zap.String("package", pkg.String()),
		zap.String("latest", result.Latest))
	return result
}

// Upgrade refreshes metadata and installs the latest stable release for
// every outdated package. Packages already current are reported, not
// reinstalled.
func (ins *Installer) Upgrade(ctx context.Context, pkgs []pkgdir.Package, prerelease bool) ([]*InstallResult, []error) {
	updates, err := ins.Update(ctx, pkgs)
	if err != nil {
		return nil, []error{err}
	}

	var results []*InstallResult
	var errs []error
	for _, u := range updates {
		if u.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.Package, u.Err))
			continue
		}
		if !u.Outdated {
			continue
		}
		pkg, err := pkgdir.ParsePackage(u.Package)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res, err := ins.Install(ctx, pkg, InstallOptions{Prerelease: prerelease})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.Package, err))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}
