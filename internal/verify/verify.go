// Package verify checks downloaded assets against sibling checksum and
// PGP signature files when a release publishes them. Verification is
// opportunistic: a release without companion files installs unverified.
package verify

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// Method identifies how an asset was verified.
type Method string

const (
	MethodNone   Method = "none"
	MethodSHA256 Method = "sha256"
	MethodPGP    Method = "pgp"
)

// ChecksumFor scans a release's asset names for a checksum companion of
// assetName. Returns "" when none exists.
func ChecksumFor(assetName string, assetNames []string) string {
	candidates := []string{
		assetName + ".sha256",
		assetName + ".sha256sum",
		"checksums.txt",
		"SHA256SUMS",
		"sha256sums.txt",
	}
	for _, want := range candidates {
		for _, name := range assetNames {
			if strings.EqualFold(name, want) {
				return name
			}
		}
	}
	return ""
}

// SignatureFor scans a release's asset names for a detached signature of
// assetName. Returns "" when none exists.
func SignatureFor(assetName string, assetNames []string) string {
	for _, suffix := range []string{".asc", ".sig"} {
		for _, name := range assetNames {
			if name == assetName+suffix {
				return name
			}
		}
	}
	return ""
}

// SHA256 compares the checksum of assetPath against the entry for its
// basename in checksumPath.
func SHA256(assetPath, checksumPath string) error {
	actual, err := fileSHA256(assetPath)
	if err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}
	expected, err := findChecksum(checksumPath, filepath.Base(assetPath))
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch for %s:\nactual:   %s\nexpected: %s",
			filepath.Base(assetPath), actual, expected)
	}
	return nil
}

// PGP checks a detached signature against a keyring file. Both armored and
// binary forms are accepted for keyring and signature.
func PGP(assetPath, signaturePath, keyringPath string) error {
	keyring, err := loadKeyring(keyringPath)
	if err != nil {
		return err
	}

	assetFile, err := os.Open(assetPath)
	if err != nil {
		return fmt.Errorf("open asset: %w", err)
	}
	defer assetFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, assetFile, sigFile, nil)
	if err != nil {
		// Try non-armored signature
		assetFile.Seek(0, io.SeekStart)
		sigFile.Seek(0, io.SeekStart)
		_, err = openpgp.CheckDetachedSignature(keyring, assetFile, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

func loadKeyring(path string) (openpgp.EntityList, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer file.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(file)
	if err != nil {
		// Try reading as non-armored keyring
		file.Seek(0, io.SeekStart)
		keyring, err = openpgp.ReadKeyRing(file)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return keyring, nil
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// findChecksum finds the checksum for a specific filename in a checksum
// file. Format: "abc123def456  filename.tar.gz". A single-field file
// containing just a digest also matches.
func findChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		switch {
		case len(parts) == 1 && len(parts[0]) == sha256.Size*2:
			// Bare digest file, e.g. asset.tar.gz.sha256 with one line.
			return parts[0], nil
		case len(parts) >= 2:
			name := strings.TrimPrefix(parts[1], "*")
			if name == filename || filepath.Base(name) == filename {
				return parts[0], nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}
	return "", fmt.Errorf("checksum not found for %s", filename)
}
