package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFetchFile(t *testing.T) {
	ctx := context.Background()
	f := NewFetcher()

	path := filepath.Join(t.TempDir(), "note.md")
	os.WriteFile(path, []byte("# hello"), 0o644)

	got, err := f.Fetch(ctx, path)
	if err != nil {
		t.Fatalf("fetch bare path: %v", err)
	}
	if string(got.Content) != "# hello" {
		t.Errorf("unexpected content %q", got.Content)
	}
	if !strings.Contains(got.ContentType, "markdown") && !strings.Contains(got.ContentType, "text") {
		t.Errorf("unexpected content type %q", got.ContentType)
	}

	got, err = f.Fetch(ctx, "file://"+path)
	if err != nil || string(got.Content) != "# hello" {
		t.Errorf("file:// fetch failed: %v", err)
	}

	if _, err := f.Fetch(ctx, filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFetchHTTP(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<p>hi</p>"))
	}))
	defer srv.Close()

	f := NewFetcher()
	got, err := f.Fetch(ctx, srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(got.Content) != "<p>hi</p>" {
		t.Errorf("unexpected content %q", got.Content)
	}
	if got.ContentType != "text/html" {
		t.Errorf("charset should be stripped, got %q", got.ContentType)
	}
}

func TestFetchHTTPError(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := NewFetcher().Fetch(ctx, srv.URL); err == nil {
		t.Error("expected error on 404")
	}
}

func TestFetchUnsupportedScheme(t *testing.T) {
	if _, err := NewFetcher().Fetch(context.Background(), "ftp://example.com/x"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
