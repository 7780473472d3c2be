package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func digest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func TestSHA256MultiEntryFile(t *testing.T) {
	dir := t.TempDir()
	asset := writeFile(t, dir, "fd.tar.gz", "archive")
	checksums := writeFile(t, dir, "checksums.txt", fmt.Sprintf(
		"%s  other.tar.gz\n%s  fd.tar.gz\n", digest("x"), digest("archive")))

	if err := SHA256(asset, checksums); err != nil {
		t.Fatalf("SHA256() error = %v", err)
	}
}

func TestSHA256BareDigestFile(t *testing.T) {
	dir := t.TempDir()
	asset := writeFile(t, dir, "fd.tar.gz", "archive")
	checksum := writeFile(t, dir, "fd.tar.gz.sha256", digest("archive")+"\n")

	if err := SHA256(asset, checksum); err != nil {
		t.Fatalf("SHA256() error = %v", err)
	}
}

func TestSHA256BinaryModeMarker(t *testing.T) {
	dir := t.TempDir()
	asset := writeFile(t, dir, "fd.tar.gz", "archive")
	checksums := writeFile(t, dir, "SHA256SUMS", digest("archive")+" *fd.tar.gz\n")

	if err := SHA256(asset, checksums); err != nil {
		t.Fatalf("SHA256() error = %v", err)
	}
}

func TestSHA256Mismatch(t *testing.T) {
	dir := t.TempDir()
	asset := writeFile(t, dir, "fd.tar.gz", "tampered")
	checksums := writeFile(t, dir, "checksums.txt", digest("archive")+"  fd.tar.gz\n")

	err := SHA256(asset, checksums)
	if err == nil {
		t.Fatal("SHA256() on tampered asset, want error")
	}
	if !strings.Contains(err.Error(), "mismatch") {
		t.Errorf("error = %v, want checksum mismatch", err)
	}
}

func TestSHA256EntryMissing(t *testing.T) {
	dir := t.TempDir()
	asset := writeFile(t, dir, "fd.tar.gz", "archive")
	checksums := writeFile(t, dir, "checksums.txt", digest("x")+"  other.tar.gz\n")

	if err := SHA256(asset, checksums); err == nil {
		t.Fatal("SHA256() with no entry, want error")
	}
}

func TestChecksumFor(t *testing.T) {
	tests := []struct {
		name   string
		assets []string
		want   string
	}{
		{"per-asset file wins", []string{"fd.tar.gz", "fd.tar.gz.sha256", "checksums.txt"}, "fd.tar.gz.sha256"},
		{"release-wide file", []string{"fd.tar.gz", "checksums.txt"}, "checksums.txt"},
		{"SHA256SUMS", []string{"fd.tar.gz", "SHA256SUMS"}, "SHA256SUMS"},
		{"nothing", []string{"fd.tar.gz"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChecksumFor("fd.tar.gz", tt.assets); got != tt.want {
				t.Errorf("ChecksumFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSignatureFor(t *testing.T) {
	assets := []string{"fd.tar.gz", "fd.tar.gz.asc", "other.sig"}
	if got := SignatureFor("fd.tar.gz", assets); got != "fd.tar.gz.asc" {
		t.Errorf("SignatureFor() = %q, want fd.tar.gz.asc", got)
	}
	if got := SignatureFor("fd.tar.gz", []string{"fd.tar.gz"}); got != "" {
		t.Errorf("SignatureFor() = %q, want empty", got)
	}
}

func TestPGPMissingKeyring(t *testing.T) {
	dir := t.TempDir()
	asset := writeFile(t, dir, "fd.tar.gz", "archive")
	sig := writeFile(t, dir, "fd.tar.gz.asc", "not a real signature")

	if err := PGP(asset, sig, filepath.Join(dir, "missing-keyring.gpg")); err == nil {
		t.Fatal("PGP() without keyring, want error")
	}
}

func TestPGPGarbageKeyring(t *testing.T) {
	dir := t.TempDir()
	asset := writeFile(t, dir, "fd.tar.gz", "archive")
	sig := writeFile(t, dir, "fd.tar.gz.asc", "junk")
	keyring := writeFile(t, dir, "keyring.gpg", "also junk")

	if err := PGP(asset, sig, keyring); err == nil {
		t.Fatal("PGP() with garbage keyring, want error")
	}
}
