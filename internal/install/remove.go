package install

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chaifeng/ghri/internal/links"
	"github.com/chaifeng/ghri/internal/meta"
	"github.com/chaifeng/ghri/internal/pkgdir"
)

// RemoveOptions parameterize removal.
type RemoveOptions struct {
	// Version limits removal to one version; empty removes the package.
	Version string
	// Force allows removing the current version, leaving current dangling.
	Force bool
}

// RemoveResult reports what a removal did.
type RemoveResult struct {
	Package      string
	Version      string   // empty when the whole package was removed
	LinksRemoved []links.Removed
	LinksSkipped []string // drifted destinations left untouched
}

// Remove deletes a version directory or the whole package. Versioned link
// rules bound to a removed version are purged with their symlinks; default
// rules survive version removal but go away with the package.
func (ins *Installer) Remove(pkg pkgdir.Package, opts RemoveOptions) (*RemoveResult, error) {
	lock, err := ins.lock(pkg)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	pkgDir := ins.layout.PackageDir(pkg.Owner, pkg.Repo)
	m, err := ins.store.Load(pkgDir)
	if err != nil {
		return nil, err
	}

	if opts.Version != "" {
		return ins.removeVersion(pkg, m, opts)
	}
	return ins.removePackage(pkg, m)
}

func (ins *Installer) removeVersion(pkg pkgdir.Package, m *meta.Meta, opts RemoveOptions) (*RemoveResult, error) {
	// Validate before prompting so the user never confirms an operation
	// that is going to refuse.
	if err := ins.layout.CheckVersionRemovable(pkg.Owner, pkg.Repo, opts.Version, opts.Force); err != nil {
		return nil, err
	}

	plan := &Plan{
		Operation: "remove",
		Package:   pkg.String(),
		Version:   opts.Version,
		Actions: []string{
			fmt.Sprintf("delete version directory %s", opts.Version),
			"purge versioned links bound to it",
		},
	}
	ok, err := ins.confirm.Confirm(plan)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAborted
	}

	if err := ins.layout.RemoveVersionDir(pkg.Owner, pkg.Repo, opts.Version, opts.Force); err != nil {
		return nil, err
	}

	result := &RemoveResult{Package: pkg.String(), Version: opts.Version}
	result.LinksRemoved = ins.registry.PurgeVersion(pkg, m, opts.Version)

	// A forced removal of the current version deliberately leaves
	// current_version and the current symlink dangling.
	if err := ins.store.Save(ins.layout.PackageDir(pkg.Owner, pkg.Repo), m); err != nil {
		return nil, err
	}

	ins.log.Info("removed version",
		zap.String("package", pkg.String()),
		zap.String("version", opts.Version),
		zap.Int("links_purged", len(result.LinksRemoved)))
	return result, nil
}

func (ins *Installer) removePackage(pkg pkgdir.Package, m *meta.Meta) (*RemoveResult, error) {
	plan := &Plan{
		Operation: "remove",
		Package:   pkg.String(),
		Actions: []string{
			fmt.Sprintf("remove %d link rule(s)", len(m.Links)+len(m.VersionedLinks)),
			"delete the whole package directory",
		},
	}
	ok, err := ins.confirm.Confirm(plan)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAborted
	}

	result := &RemoveResult{Package: pkg.String()}
	result.LinksRemoved, result.LinksSkipped = ins.registry.RemoveAll(pkg, m)

	if err := ins.layout.RemovePackageDir(pkg.Owner, pkg.Repo); err != nil {
		return nil, err
	}

	ins.log.Info("removed package",
		zap.String("package", pkg.String()),
		zap.Int("links_removed", len(result.LinksRemoved)),
		zap.Int("links_skipped", len(result.LinksSkipped)))
	return result, nil
}

// PruneResult reports the versions deleted for one package.
type PruneResult struct {
	Package string
	Removed []string
	Err     error
}

// Prune deletes every installed version except the current one, for the
// given packages or all of them. Versioned links bound to pruned versions
// are purged like in Remove.
func (ins *Installer) Prune(pkgs []pkgdir.Package) ([]PruneResult, error) {
	if len(pkgs) == 0 {
		var err error
		pkgs, err = ins.layout.FindAll()
		if err != nil {
			return nil, err
		}
	}

	var results []PruneResult
	for _, pkg := range pkgs {
		results = append(results, ins.pruneOne(pkg))
	}
	return results, nil
}

func (ins *Installer) pruneOne(pkg pkgdir.Package) PruneResult {
	result := PruneResult{Package: pkg.String()}

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

	versions, err := ins.layout.InstalledVersions(pkg.Owner, pkg.Repo)
	if err != nil {
		result.Err = err
		return result
	}

	var victims []string
	for _, v := range versions {
		if m.CurrentVersion != "" && meta.VersionsMatch(v, m.CurrentVersion) {
			continue
		}
		victims = append(victims, v)
	}
	if len(victims) == 0 {
		return result
	}

	plan := &Plan{
		Operation: "prune",
		Package:   pkg.String(),
		Actions:   []string{fmt.Sprintf("delete versions %v, keep %s", victims, m.CurrentVersion)},
	}
	ok, err := ins.confirm.Confirm(plan)
	if err != nil {
		result.Err = err
		return result
	}
	if !ok {
		result.Err = ErrAborted
		return result
	}

	for _, v := range victims {
		if err := ins.layout.RemoveVersionDir(pkg.Owner, pkg.Repo, v, false); err != nil {
			var protected *pkgdir.CurrentVersionProtectedError
			if errors.As(err, &protected) {
				continue
			}
			result.Err = err
			return result
		}
		ins.registry.PurgeVersion(pkg, m, v)
		result.Removed = append(result.Removed, v)
	}

	if err := ins.store.Save(pkgDir, m); err != nil {
		result.Err = err
		return result
	}

	ins.log.Info("pruned",
		zap.String("package", pkg.String()),
		zap.Strings("removed", result.Removed))
	return result
}
