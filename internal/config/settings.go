// Package config resolves ghri's settings from command-line flags,
// environment variables, and an optional Lua config file, in that order of
// precedence.
package config

import (
	"os"
	"path/filepath"
)

// Environment variables consumed by ghri.
const (
	EnvRoot   = "GHRI_ROOT"
	EnvAPIURL = "GHRI_API_URL"
	EnvToken  = "GITHUB_TOKEN"
)

// Settings is the fully resolved configuration handed to commands.
type Settings struct {
	// Root is the installation root directory.
	Root string
	// APIURL is the GitHub API base URL, for GitHub Enterprise setups.
	APIURL string
	// Token authenticates API requests and asset downloads.
	Token string
	// Filters are default asset filters applied when a package has none.
	Filters []string
	// LogFile receives structured logs; empty disables file logging.
	LogFile string
	// LogLevel is the minimum level written to LogFile.
	LogLevel string
	// Keyring is the PGP keyring used to check release signatures.
	Keyring string
}

// DefaultRoot is the installation root used when nothing else is
// configured.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ghri"
	}
	return filepath.Join(home, ".ghri")
}

// DefaultConfigPath locates config.lua under the user config directory.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ghri", "config.lua")
}

// Resolve layers the configuration sources. flags holds values given on
// the command line and wins over everything; the environment wins over the
// file; the file wins over built-in defaults.
func Resolve(flags Settings, file *Settings) Settings {
	out := flags

	if out.Root == "" {
		out.Root = os.Getenv(EnvRoot)
	}
	if out.APIURL == "" {
		out.APIURL = os.Getenv(EnvAPIURL)
	}
	if out.Token == "" {
		out.Token = os.Getenv(EnvToken)
	}

	if file != nil {
		if out.Root == "" {
			out.Root = file.Root
		}
		if out.APIURL == "" {
			out.APIURL = file.APIURL
		}
		if out.Token == "" {
			out.Token = file.Token
		}
		if len(out.Filters) == 0 {
			out.Filters = file.Filters
		}
		if out.LogFile == "" {
			out.LogFile = file.LogFile
		}
		if out.LogLevel == "" {
			out.LogLevel = file.LogLevel
		}
		if out.Keyring == "" {
			out.Keyring = file.Keyring
		}
	}

	if out.Root == "" {
		out.Root = DefaultRoot()
	}
	if out.LogLevel == "" {
		out.LogLevel = "info"
	}
	return out
}
