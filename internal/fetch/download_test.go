package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("archive bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "asset.tar.gz")
	d := NewDownloader("", false)
	if err := d.DownloadToFile(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("DownloadToFile() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "archive bytes" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestDownloadRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "asset")
	d := NewDownloader("", false)
	if err := d.DownloadToFile(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("DownloadToFile() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", calls.Load())
	}
}

func TestDownloadGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "asset")
	d := NewDownloader("", false)
	if err := d.DownloadToFile(context.Background(), srv.URL, dest); err == nil {
		t.Fatal("DownloadToFile() on persistent 500, want error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("partial file left at destination")
	}
}

func TestDownloadHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDownloader("", false)
	err := d.DownloadToFile(ctx, srv.URL, filepath.Join(t.TempDir(), "asset"))
	if err != context.Canceled {
		t.Fatalf("DownloadToFile() error = %v, want context.Canceled", err)
	}
}

func TestDownloadSendsToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := NewDownloader("secret", false)
	if err := d.DownloadToFile(context.Background(), srv.URL, filepath.Join(t.TempDir(), "a")); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}
