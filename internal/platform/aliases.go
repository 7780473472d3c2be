package platform

import "strings"

// osAliases maps a normalized OS name to the substrings release archives
// conventionally use for it in asset file names.
var osAliases = map[string][]string{
	"linux":   {"linux"},
	"darwin":  {"darwin", "macos", "apple", "osx"},
	"windows": {"windows", "win64", "win32", "win"},
}

// archAliases maps a normalized architecture to its asset-name spellings.
// "x86" is deliberately absent from the 386 list: it would also match
// "x86_64", which is handled below.
var archAliases = map[string][]string{
	"amd64": {"x86_64", "amd64", "x64"},
	"arm64": {"aarch64", "arm64"},
	"386":   {"i686", "i386", "386"},
}

// archLabels maps a normalized architecture to its canonical display name.
var archLabels = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
	"386":   "i686",
}

// MatchesAsset reports whether an asset file name looks like it was built
// for this platform. Both the OS and the architecture must appear in the
// name under one of their conventional spellings. An architecture with no
// alias table matches anything so unusual platforms still get a candidate.
func (i *Info) MatchesAsset(name string) bool {
	lower := strings.ToLower(name)

	osNames, ok := osAliases[i.OS]
	if !ok {
		return false
	}
	osMatch := false
	for _, alias := range osNames {
		if strings.Contains(lower, alias) {
			osMatch = true
			break
		}
	}
	if !osMatch {
		return false
	}

	archNames, ok := archAliases[i.Arch]
	if !ok {
		return true
	}
	for _, alias := range archNames {
		if !strings.Contains(lower, alias) {
			continue
		}
		// "x86" spellings of 386 must not swallow x86_64 names.
		if i.Arch == "386" && strings.Contains(lower, "x86_64") {
			continue
		}
		return true
	}
	return false
}
