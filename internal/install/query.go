package install

import (
	"github.com/chaifeng/ghri/internal/links"
	"github.com/chaifeng/ghri/internal/meta"
	"github.com/chaifeng/ghri/internal/pkgdir"
)

// ListEntry is one row of the installed-package listing.
type ListEntry struct {
	Package  string
	Current  string
	Versions []string
}

// List enumerates installed packages with their versions. Read-only.
func (ins *Installer) List() ([]ListEntry, error) {
	pkgs, err := ins.layout.FindAll()
	if err != nil {
		return nil, err
	}

	entries := make([]ListEntry, 0, len(pkgs))
	for _, pkg := range pkgs {
		versions, err := ins.layout.InstalledVersions(pkg.Owner, pkg.Repo)
		if err != nil {
			return nil, err
		}
		current, err := ins.layout.CurrentVersion(pkg.Owner, pkg.Repo)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ListEntry{
			Package:  pkg.String(),
			Current:  current,
			Versions: versions,
		})
	}
	return entries, nil
}

// PackageDetail is everything show reports about one package.
type PackageDetail struct {
	Meta      *meta.Meta
	Installed []string
	Links     []links.Status
}

// Show loads the descriptor, the installed versions and the live state of
// every link rule. Read-only.
func (ins *Installer) Show(pkg pkgdir.Package) (*PackageDetail, error) {
	m, err := ins.store.Load(ins.layout.PackageDir(pkg.Owner, pkg.Repo))
	if err != nil {
		return nil, err
	}
	installed, err := ins.layout.InstalledVersions(pkg.Owner, pkg.Repo)
	if err != nil {
		return nil, err
	}
	statuses, err := ins.registry.Check(pkg)
	if err != nil {
		return nil, err
	}
	return &PackageDetail{Meta: m, Installed: installed, Links: statuses}, nil
}
