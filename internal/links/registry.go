package links

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chaifeng/ghri/internal/meta"
	"github.com/chaifeng/ghri/internal/pkgdir"
)

// Kind distinguishes the two rule shapes.
type Kind string

const (
	KindDefault   Kind = "default"
	KindVersioned Kind = "versioned"
)

// State is the live filesystem condition of one rule's destination.
type State string

const (
	StateValid   State = "valid"
	StateMissing State = "missing"
	StateDrifted State = "drifted"
)

// Registry creates, removes and inspects link rules. Every operation loads
// the descriptor, mutates it, and saves it back; nothing is cached between
// calls.
type Registry struct {
	layout *pkgdir.Layout
	store  *meta.Store
	log    *zap.Logger
}

func NewRegistry(layout *pkgdir.Layout, store *meta.Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{layout: layout, store: store, log: log}
}

// Created describes the symlink a successful Create wrote.
type Created struct {
	Kind    Kind
	Dest    string // absolute symlink path
	Target  string // relative target written into the symlink
	Version string // resolved version dir, informational for default rules
}

// Create resolves src and destArg, writes the symlink, and records the
// rule. An @version selector yields a versioned rule pinned to that
// installed version; otherwise a default rule following current is made.
// Any rule of the other kind at the same destination is deleted first.
func (r *Registry) Create(src Source, destArg string) (*Created, error) {
	pkg := src.Package()
	pkgDir := r.layout.PackageDir(pkg.Owner, pkg.Repo)
	m, err := r.store.Load(pkgDir)
	if err != nil {
		return nil, err
	}

	kind := KindDefault
	if src.Version != "" {
		kind = KindVersioned
	}

	base, version, err := r.resolveBase(src)
	if err != nil {
		return nil, err
	}
	source, err := resolveWithin(base, src.Path, src.String(), version)
	if err != nil {
		return nil, err
	}

	dest, err := resolveDest(destArg, source)
	if err != nil {
		return nil, err
	}
	if err := r.checkOwnership(dest, pkgDir); err != nil {
		return nil, err
	}

	target, err := filepath.Rel(filepath.Dir(dest), source)
	if err != nil {
		return nil, fmt.Errorf("computing link target: %w", err)
	}
	storedDest, err := filepath.Rel(pkgDir, dest)
	if err != nil {
		return nil, fmt.Errorf("computing stored destination: %w", err)
	}

	// A rule of the other kind at this destination gives way, a rule of
	// the same kind is replaced in place.
	r.dropRule(m, storedDest, otherKind(kind))
	r.dropRule(m, storedDest, kind)
	if kind == KindDefault {
		m.Links = append(m.Links, meta.LinkRule{Dest: storedDest, Path: src.Path})
	} else {
		m.VersionedLinks = append(m.VersionedLinks, meta.VersionedLink{
			Dest: storedDest, Version: version, Path: src.Path,
		})
	}

	if err := writeSymlink(dest, target); err != nil {
		return nil, err
	}
	if err := r.store.Save(pkgDir, m); err != nil {
		return nil, err
	}

	r.log.Debug("link created",
		zap.String("package", m.Name),
		zap.String("kind", string(kind)),
		zap.String("dest", dest),
		zap.String("target", target))
	return &Created{Kind: kind, Dest: dest, Target: target, Version: version}, nil
}

// Removed describes one rule dropped by Unlink.
type Removed struct {
	Kind Kind
	Dest string // absolute symlink path
}

// Unlink drops rules of a package. Exactly one of destArg or all must be
// supplied. The stored rule is removed unconditionally; the on-disk
// symlink is removed only if one is still present at the destination.
func (r *Registry) Unlink(src Source, destArg string, all bool) ([]Removed, error) {
	if (destArg == "") == !all {
		return nil, ErrUnlinkTarget
	}

	pkg := src.Package()
	pkgDir := r.layout.PackageDir(pkg.Owner, pkg.Repo)
	m, err := r.store.Load(pkgDir)
	if err != nil {
		return nil, err
	}

	match := func(storedDest, path string) bool {
		if src.Path != "" && path != src.Path {
			return false
		}
		if all {
			return true
		}
		abs := absDest(pkgDir, storedDest)
		wanted, err := filepath.Abs(destArg)
		if err != nil {
			return false
		}
		return abs == wanted || filepath.Base(abs) == destArg
	}

	var removed []Removed
	keepDefault := m.Links[:0]
	for _, rule := range m.Links {
		if match(rule.Dest, rule.Path) {
			removed = append(removed, Removed{Kind: KindDefault, Dest: absDest(pkgDir, rule.Dest)})
			continue
		}
		keepDefault = append(keepDefault, rule)
	}
	m.Links = keepDefault

	keepVersioned := m.VersionedLinks[:0]
	for _, rule := range m.VersionedLinks {
		if match(rule.Dest, rule.Path) {
			removed = append(removed, Removed{Kind: KindVersioned, Dest: absDest(pkgDir, rule.Dest)})
			continue
		}
		keepVersioned = append(keepVersioned, rule)
	}
	m.VersionedLinks = keepVersioned

	if len(removed) == 0 {
		return nil, &RuleNotFoundError{Package: m.Name, Dest: destArg}
	}

	for _, rm := range removed {
		removeIfSymlink(rm.Dest)
	}
	if err := r.store.Save(pkgDir, m); err != nil {
		return nil, err
	}
	return removed, nil
}

// Status is the report row for one rule.
type Status struct {
	Kind    Kind
	Dest    string // absolute symlink path
	Version string // empty for default rules
	Path    string
	State   State
}

// Check reports the live state of every rule of a package without touching
// the filesystem or the descriptor.
func (r *Registry) Check(pkg pkgdir.Package) ([]Status, error) {
	pkgDir := r.layout.PackageDir(pkg.Owner, pkg.Repo)
	m, err := r.store.Load(pkgDir)
	if err != nil {
		return nil, err
	}

	var out []Status
	for _, rule := range m.Links {
		dest := absDest(pkgDir, rule.Dest)
		expected, err := r.expectedTarget(Source{Owner: pkg.Owner, Repo: pkg.Repo, Path: rule.Path}, dest)
		out = append(out, Status{
			Kind:  KindDefault,
			Dest:  dest,
			Path:  rule.Path,
			State: linkState(dest, expected, err),
		})
	}
	for _, rule := range m.VersionedLinks {
		dest := absDest(pkgDir, rule.Dest)
		expected, err := r.expectedTarget(Source{
			Owner: pkg.Owner, Repo: pkg.Repo, Version: rule.Version, Path: rule.Path,
		}, dest)
		out = append(out, Status{
			Kind:    KindVersioned,
			Dest:    dest,
			Version: rule.Version,
			Path:    rule.Path,
			State:   linkState(dest, expected, err),
		})
	}
	return out, nil
}

// RepointDefaults recreates the symlink of every default rule so it tracks
// the package's current version. Destinations occupied by foreign objects
// are reported and skipped, never overwritten. Versioned rules are never
// touched.
func (r *Registry) RepointDefaults(pkg pkgdir.Package, m *meta.Meta) []error {
	pkgDir := r.layout.PackageDir(pkg.Owner, pkg.Repo)
	var errs []error
	for _, rule := range m.Links {
		dest := absDest(pkgDir, rule.Dest)
		src := Source{Owner: pkg.Owner, Repo: pkg.Repo, Path: rule.Path}

		base, _, err := r.resolveBase(src)
		if err != nil {
			errs = append(errs, fmt.Errorf("link %s: %w", dest, err))
			continue
		}
		source, err := resolveWithin(base, rule.Path, src.String(), "current")
		if err != nil {
			errs = append(errs, fmt.Errorf("link %s: %w", dest, err))
			continue
		}
		if err := r.checkOwnership(dest, pkgDir); err != nil {
			errs = append(errs, err)
			continue
		}
		target, err := filepath.Rel(filepath.Dir(dest), source)
		if err != nil {
			errs = append(errs, fmt.Errorf("link %s: %w", dest, err))
			continue
		}
		if err := writeSymlink(dest, target); err != nil {
			errs = append(errs, err)
			continue
		}
		r.log.Debug("default link repointed", zap.String("dest", dest), zap.String("target", target))
	}
	return errs
}

// PurgeVersion drops every versioned rule bound to version and removes its
// symlink. Called when a version directory is removed.
func (r *Registry) PurgeVersion(pkg pkgdir.Package, m *meta.Meta, version string) []Removed {
	pkgDir := r.layout.PackageDir(pkg.Owner, pkg.Repo)
	var removed []Removed
	keep := m.VersionedLinks[:0]
	for _, rule := range m.VersionedLinks {
		if meta.VersionsMatch(rule.Version, version) {
			dest := absDest(pkgDir, rule.Dest)
			removeIfSymlink(dest)
			removed = append(removed, Removed{Kind: KindVersioned, Dest: dest})
			continue
		}
		keep = append(keep, rule)
	}
	m.VersionedLinks = keep
	return removed
}

// RemoveAll removes the symlink of every rule of the package, skipping
// drifted destinations. Used before deleting a whole package. The
// descriptor is not saved since it is about to be deleted with the
// package directory.
func (r *Registry) RemoveAll(pkg pkgdir.Package, m *meta.Meta) (removed []Removed, skipped []string) {
	pkgDir := r.layout.PackageDir(pkg.Owner, pkg.Repo)
	drop := func(kind Kind, storedDest string) {
		dest := absDest(pkgDir, storedDest)
		fi, err := os.Lstat(dest)
		if err != nil {
			return // already gone
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			skipped = append(skipped, dest)
			return
		}
		os.Remove(dest)
		removed = append(removed, Removed{Kind: kind, Dest: dest})
	}
	for _, rule := range m.Links {
		drop(KindDefault, rule.Dest)
	}
	for _, rule := range m.VersionedLinks {
		drop(KindVersioned, rule.Dest)
	}
	return removed, skipped
}

// resolveBase finds the absolute directory a source resolves inside. For a
// default source this is the path through the current symlink; for a
// versioned source it is the named installed version directory.
func (r *Registry) resolveBase(src Source) (base, version string, err error) {
	pkg := src.Package()
	if src.Version == "" {
		current, err := r.layout.CurrentVersion(pkg.Owner, pkg.Repo)
		if err != nil {
			return "", "", err
		}
		if current == "" {
			return "", "", fmt.Errorf("%s has no current version", pkg)
		}
		// Go through the symlink path itself so default links follow it.
		return r.layout.CurrentLink(pkg.Owner, pkg.Repo), current, nil
	}

	installed, err := r.layout.InstalledVersions(pkg.Owner, pkg.Repo)
	if err != nil {
		return "", "", err
	}
	for _, v := range installed {
		if meta.VersionsMatch(v, src.Version) {
			return r.layout.VersionDir(pkg.Owner, pkg.Repo, v), v, nil
		}
	}
	return "", "", &VersionNotInstalledError{
		Package: pkg.String(), Version: src.Version, Installed: installed,
	}
}

// resolveWithin applies the :path selector inside base, or picks the
// single entry of base when no selector is given. A base with several
// entries links as a whole directory.
func resolveWithin(base, path, sourceLabel, version string) (string, error) {
	if path != "" {
		p := filepath.Join(base, path)
		if _, err := os.Lstat(p); err != nil {
			if os.IsNotExist(err) {
				return "", &PathNotFoundError{Package: sourceLabel, Version: version, Path: path}
			}
			return "", err
		}
		return p, nil
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", base, err)
	}
	if len(entries) == 1 {
		return filepath.Join(base, entries[0].Name()), nil
	}
	return base, nil
}

// resolveDest turns the destination argument into the exact absolute
// symlink path. An existing directory receives the source's basename.
func resolveDest(destArg, source string) (string, error) {
	dest, err := filepath.Abs(destArg)
	if err != nil {
		return "", err
	}
	if fi, err := os.Lstat(dest); err == nil && fi.IsDir() {
		dest = filepath.Join(dest, filepath.Base(source))
	}
	if _, err := os.Stat(filepath.Dir(dest)); err != nil {
		return "", fmt.Errorf("link destination parent: %w", err)
	}
	return dest, nil
}

// checkOwnership allows replacing only symlinks that already point into
// this package's directory. Anything else at the destination is a
// conflict.
func (r *Registry) checkOwnership(dest, pkgDir string) error {
	fi, err := os.Lstat(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return &DestinationConflictError{Dest: dest}
	}
	target, err := os.Readlink(dest)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(dest), target)
	}
	target = filepath.Clean(target)
	absPkg, err := filepath.Abs(pkgDir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absPkg, target)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == "../" {
		return &DestinationConflictError{Dest: dest}
	}
	return nil
}

// expectedTarget recomputes the symlink target a rule should have now.
func (r *Registry) expectedTarget(src Source, dest string) (string, error) {
	base, version, err := r.resolveBase(src)
	if err != nil {
		return "", err
	}
	source, err := resolveWithin(base, src.Path, src.String(), version)
	if err != nil {
		return "", err
	}
	return filepath.Rel(filepath.Dir(dest), source)
}

func linkState(dest, expected string, expectErr error) State {
	fi, err := os.Lstat(dest)
	if err != nil {
		return StateMissing
	}
	if fi.Mode()&os.ModeSymlink == 0 || expectErr != nil {
		return StateDrifted
	}
	target, err := os.Readlink(dest)
	if err != nil || target != expected {
		return StateDrifted
	}
	if _, err := os.Stat(dest); err != nil {
		return StateDrifted // dangling
	}
	return StateValid
}

// writeSymlink replaces dest with a symlink to target. Remove-then-create
// leaves a narrow window where dest is absent; acceptable for a
// single-user tool.
func writeSymlink(dest, target string) error {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replacing %s: %w", dest, err)
	}
	if err := os.Symlink(target, dest); err != nil {
		return fmt.Errorf("creating symlink %s: %w", dest, err)
	}
	return nil
}

func removeIfSymlink(dest string) {
	fi, err := os.Lstat(dest)
	if err != nil || fi.Mode()&os.ModeSymlink == 0 {
		return
	}
	os.Remove(dest)
}

func absDest(pkgDir, storedDest string) string {
	return filepath.Clean(filepath.Join(pkgDir, storedDest))
}

func (r *Registry) dropRule(m *meta.Meta, storedDest string, kind Kind) {
	if kind == KindDefault {
		keep := m.Links[:0]
		for _, rule := range m.Links {
			if rule.Dest != storedDest {
				keep = append(keep, rule)
			}
		}
		m.Links = keep
		return
	}
	keep := m.VersionedLinks[:0]
	for _, rule := range m.VersionedLinks {
		if rule.Dest != storedDest {
			keep = append(keep, rule)
		}
	}
	m.VersionedLinks = keep
}

func otherKind(k Kind) Kind {
	if k == KindDefault {
		return KindVersioned
	}
	return KindDefault
}
