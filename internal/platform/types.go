// Package platform detects the host OS and architecture and knows the
// naming conventions release archives use for them. Asset auto-detection
// matches asset file names against the alias tables here when the user
// gives no filter patterns.
package platform

import "context"

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // "amd64", "arm64", "386" (normalized GOARCH)
	ArchRaw  string // original GOARCH value
	Platform string // distro ID (Linux only, e.g. "ubuntu")
	Family   string // distro family (Linux only, e.g. "debian")
	Version  string // distro version (Linux only, e.g. "22.04")
}

// Signature returns the conventional "<arch>-<os>" label used in
// diagnostics, e.g. "x86_64-linux".
func (i *Info) Signature() string {
	return archLabels[i.Arch] + "-" + i.OS
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
