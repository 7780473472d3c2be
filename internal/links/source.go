// Package links maintains the symlink rules of installed packages: default
// rules that follow the current version and versioned rules pinned to one
// version directory.
package links

import (
	"fmt"
	"strings"

	"github.com/chaifeng/ghri/internal/pkgdir"
)

// Source is a parsed "owner/repo[@version][:path]" argument. Version and
// Path are empty when their selector is absent.
type Source struct {
	Owner   string
	Repo    string
	Version string
	Path    string
}

func (s Source) Package() pkgdir.Package {
	return pkgdir.Package{Owner: s.Owner, Repo: s.Repo}
}

func (s Source) String() string {
	out := s.Owner + "/" + s.Repo
	if s.Version != "" {
		out += "@" + s.Version
	}
	if s.Path != "" {
		out += ":" + s.Path
	}
	return out
}

// ParseSource splits an "owner/repo[@version][:path]" argument. The path
// selector starts at the first colon, so versions containing colons are not
// representable, matching release tag conventions.
func ParseSource(arg string) (Source, error) {
	rest := arg
	var src Source
	if idx := strings.Index(rest, ":"); idx >= 0 {
		src.Path = rest[idx+1:]
		rest = rest[:idx]
		if src.Path == "" {
			return Source{}, fmt.Errorf("invalid source %q: empty path after ':'", arg)
		}
	}
	if idx := strings.Index(rest, "@"); idx >= 0 {
		src.Version = rest[idx+1:]
		rest = rest[:idx]
		if src.Version == "" {
			return Source{}, fmt.Errorf("invalid source %q: empty version after '@'", arg)
		}
	}
	pkg, err := pkgdir.ParsePackage(rest)
	if err != nil {
		return Source{}, fmt.Errorf("invalid source %q: %w", arg, err)
	}
	src.Owner, src.Repo = pkg.Owner, pkg.Repo
	return src, nil
}
