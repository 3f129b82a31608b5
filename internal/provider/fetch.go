package provider

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fetched is the raw result of resolving a URI.
type Fetched struct {
	Content     []byte
	ContentType string
}

// Fetcher resolves document URIs to their content.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (*Fetched, error)
}

// URIFetcher resolves file://, http:// and https:// URIs plus bare
// filesystem paths.
type URIFetcher struct {
	client  *http.Client
	maxSize int64
}

// NewFetcher creates a fetcher with a bounded response size.
func NewFetcher() *URIFetcher {
	return &URIFetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		maxSize: 10 << 20,
	}
}

func (f *URIFetcher) Fetch(ctx context.Context, uri string) (*Fetched, error) {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return f.fetchHTTP(ctx, uri)
	case strings.HasPrefix(uri, "file://"):
		return f.fetchFile(strings.TrimPrefix(uri, "file://"))
	case strings.Contains(uri, "://"):
		return nil, fmt.Errorf("unsupported uri scheme in %q", uri)
	default:
		return f.fetchFile(uri)
	}
}

func (f *URIFetcher) fetchFile(path string) (*Fetched, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	if info.Size() > f.maxSize {
		return nil, fmt.Errorf("fetch %s: file exceeds %d bytes", path, f.maxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "text/plain"
	}
	return &Fetched{Content: data, ContentType: ct}, nil
}

func (f *URIFetcher) fetchHTTP(ctx context.Context, uri string) (*Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", uri, err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("fetch %s: response exceeds %d bytes", uri, f.maxSize)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/plain"
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return &Fetched{Content: data, ContentType: ct}, nil
}
