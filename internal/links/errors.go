package links

import (
	"errors"
	"fmt"
)

// ErrUnlinkTarget reports an unlink call that supplied neither a
// destination nor the all flag, or both at once.
var ErrUnlinkTarget = errors.New("unlink needs exactly one of a destination or --all")

// PathNotFoundError reports a :path component that does not exist inside
// the resolved version directory.
type PathNotFoundError struct {
	Package string
	Version string
	Path    string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("path %q not found in %s@%s", e.Path, e.Package, e.Version)
}

// DestinationConflictError reports an existing filesystem object at the
// link destination that no rule of this package owns.
type DestinationConflictError struct {
	Dest string
}

func (e *DestinationConflictError) Error() string {
	return fmt.Sprintf("%s already exists and is not managed by ghri", e.Dest)
}

// RuleNotFoundError reports an unlink that matched no stored rule.
type RuleNotFoundError struct {
	Package string
	Dest    string
}

func (e *RuleNotFoundError) Error() string {
	if e.Dest == "" {
		return fmt.Sprintf("no link rules recorded for %s", e.Package)
	}
	return fmt.Sprintf("no link rule of %s matches %s", e.Package, e.Dest)
}

// VersionNotInstalledError reports an @version selector naming a version
// with no directory on disk.
type VersionNotInstalledError struct {
	Package   string
	Version   string
	Installed []string
}

func (e *VersionNotInstalledError) Error() string {
	return fmt.Sprintf("version %s of %s is not installed (installed: %v)",
		e.Version, e.Package, e.Installed)
}
