// Package pkgdir owns the on-disk layout of the installation root:
// <root>/<owner>/<repo>/ holds meta.json, one directory per installed
// version, and a "current" symlink pointing at one of them.
package pkgdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/chaifeng/ghri/internal/meta"
)

// CurrentLinkName is the symlink selecting the active version.
const CurrentLinkName = "current"

// LockFileName guards concurrent mutation of a single package directory.
const LockFileName = ".ghri.lock"

// CurrentVersionProtectedError reports an attempt to remove the version
// the "current" symlink points at without forcing.
type CurrentVersionProtectedError struct {
	Package string
	Version string
}

func (e *CurrentVersionProtectedError) Error() string {
	return fmt.Sprintf("%s is the current version of %s (use --force to remove it anyway)",
		e.Version, e.Package)
}

// Layout resolves paths under a single installation root.
type Layout struct {
	root string
}

func NewLayout(root string) *Layout {
	return &Layout{root: root}
}

func (l *Layout) Root() string { return l.root }

func (l *Layout) PackageDir(owner, repo string) string {
	return filepath.Join(l.root, owner, repo)
}

func (l *Layout) VersionDir(owner, repo, version string) string {
	return filepath.Join(l.PackageDir(owner, repo), version)
}

func (l *Layout) MetaPath(owner, repo string) string {
	return filepath.Join(l.PackageDir(owner, repo), meta.FileName)
}

func (l *Layout) CurrentLink(owner, repo string) string {
	return filepath.Join(l.PackageDir(owner, repo), CurrentLinkName)
}

func (l *Layout) LockPath(owner, repo string) string {
	return filepath.Join(l.PackageDir(owner, repo), LockFileName)
}

// StagingDir returns a fresh, unique path for in-progress extraction.
// Staging lives inside the package dir so the final rename stays on one
// filesystem.
func (l *Layout) StagingDir(owner, repo string) string {
	return filepath.Join(l.PackageDir(owner, repo), ".staging-"+uuid.NewString())
}

// CurrentVersion reads the "current" symlink. It returns "" without error
// when the link does not exist.
func (l *Layout) CurrentVersion(owner, repo string) (string, error) {
	target, err := os.Readlink(l.CurrentLink(owner, repo))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading current link for %s/%s: %w", owner, repo, err)
	}
	return filepath.Base(target), nil
}

// SetCurrent atomically repoints the "current" symlink at version. The link
// target is the bare version directory name, so a package directory stays
// valid when the whole root is moved.
func (l *Layout) SetCurrent(owner, repo, version string) error {
	link := l.CurrentLink(owner, repo)
	tmp := link + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(version, tmp); err != nil {
		return fmt.Errorf("creating current link for %s/%s: %w", owner, repo, err)
	}
	if err := os.Rename(tmp, link); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("updating current link for %s/%s: %w", owner, repo, err)
	}
	return nil
}

// InstalledVersions lists the version directories of a package, sorted.
// Bookkeeping entries (meta.json, current, the lock file, staging dirs)
// are skipped.
func (l *Layout) InstalledVersions(owner, repo string) ([]string, error) {
	entries, err := os.ReadDir(l.PackageDir(owner, repo))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing versions of %s/%s: %w", owner, repo, err)
	}
	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		versions = append(versions, name)
	}
	sort.Strings(versions)
	return versions, nil
}

// CheckVersionRemovable validates the preconditions of RemoveVersionDir
// without deleting anything: the version directory must exist, and the
// version "current" points at is protected unless force is set.
func (l *Layout) CheckVersionRemovable(owner, repo, version string, force bool) error {
	current, err := l.CurrentVersion(owner, repo)
	if err != nil {
		return err
	}
	if current != "" && meta.VersionsMatch(current, version) && !force {
		return &CurrentVersionProtectedError{Package: owner + "/" + repo, Version: version}
	}
	if _, err := os.Lstat(l.VersionDir(owner, repo, version)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("version %s of %s/%s is not installed", version, owner, repo)
		}
		return err
	}
	return nil
}

// RemoveVersionDir deletes one version directory. Removing the version the
// "current" link points at requires force, and forcing deliberately leaves
// the link dangling so the hole stays visible.
func (l *Layout) RemoveVersionDir(owner, repo, version string, force bool) error {
	if err := l.CheckVersionRemovable(owner, repo, version, force); err != nil {
		return err
	}
	dir := l.VersionDir(owner, repo, version)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	return nil
}

// RemovePackageDir deletes the whole package directory and prunes the
// owner directory if that leaves it empty.
func (l *Layout) RemovePackageDir(owner, repo string) error {
	if err := os.RemoveAll(l.PackageDir(owner, repo)); err != nil {
		return fmt.Errorf("removing %s/%s: %w", owner, repo, err)
	}
	// Best effort, the owner dir may hold other packages.
	os.Remove(filepath.Join(l.root, owner))
	return nil
}

// Package identifies one installed package found under the root.
type Package struct {
	Owner string
	Repo  string
}

func (p Package) String() string { return p.Owner + "/" + p.Repo }

// FindAll discovers installed packages by scanning two levels deep for
// directories containing a descriptor file.
func (l *Layout) FindAll() ([]Package, error) {
	owners, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning %s: %w", l.root, err)
	}
	var pkgs []Package
	for _, owner := range owners {
		if !owner.IsDir() || strings.HasPrefix(owner.Name(), ".") {
			continue
		}
		repos, err := os.ReadDir(filepath.Join(l.root, owner.Name()))
		if err != nil {
			continue
		}
		for _, repo := range repos {
			if !repo.IsDir() {
				continue
			}
			metaPath := l.MetaPath(owner.Name(), repo.Name())
			if _, err := os.Stat(metaPath); err == nil {
				pkgs = append(pkgs, Package{Owner: owner.Name(), Repo: repo.Name()})
			}
		}
	}
	sort.Slice(pkgs, func(i, j int) bool {
		if pkgs[i].Owner != pkgs[j].Owner {
			return pkgs[i].Owner < pkgs[j].Owner
		}
		return pkgs[i].Repo < pkgs[j].Repo
	})
	return pkgs, nil
}

// ParsePackage splits an "owner/repo" argument.
func ParsePackage(arg string) (Package, error) {
	parts := strings.Split(arg, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Package{}, fmt.Errorf("invalid package %q, expected owner/repo", arg)
	}
	return Package{Owner: parts[0], Repo: parts[1]}, nil
}
