package assetcache

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"time"
)

var (
	// ErrAssetFetch is returned by Install when any manifest asset cannot be
	// fetched. The generation is abandoned.
	ErrAssetFetch = errors.New("asset fetch failed")

	// ErrOriginUnreachable is returned when the origin cannot be contacted.
	ErrOriginUnreachable = errors.New("origin unreachable")

	// ErrNotInstalled is returned by Activate when the manifest's bucket does
	// not exist yet.
	ErrNotInstalled = errors.New("cache generation not installed")
)

// Response is what an origin returns for one path.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Origin fetches assets from their source. It plays the part of the network.
type Origin interface {
	Fetch(ctx context.Context, path string) (*Response, error)
}

// DirOrigin serves assets from a local directory. "/" and directory paths
// resolve to index.html.
type DirOrigin struct {
	Root string
}

// Fetch reads the file for path. A missing file is a 404 response, not an
// error.
func (o DirOrigin) Fetch(ctx context.Context, p string) (*Response, error) {
	return FSOrigin{FS: os.DirFS(o.Root)}.Fetch(ctx, p)
}

//go:embed shell
var shellFiles embed.FS

// ShellOrigin serves the application shell built into the binary. It holds
// every asset DefaultManifest lists.
func ShellOrigin() Origin {
	sub, err := fs.Sub(shellFiles, "shell")
	if err != nil {
		panic(err)
	}
	return FSOrigin{FS: sub}
}

// FSOrigin serves assets from a file system, resolving paths like DirOrigin.
type FSOrigin struct {
	FS fs.FS
}

// Fetch reads the file for path. A missing file is a 404 response.
func (o FSOrigin) Fetch(_ context.Context, p string) (*Response, error) {
	clean := path.Clean("/" + NormalizePath(p))
	if strings.HasSuffix(NormalizePath(p), "/") {
		clean = path.Join(clean, "index.html")
	}

	data, err := fs.ReadFile(o.FS, strings.TrimPrefix(clean, "/"))
	if errors.Is(err, fs.ErrNotExist) {
		return &Response{Status: http.StatusNotFound, ContentType: "text/plain; charset=utf-8", Body: []byte("not found\n")}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOriginUnreachable, err)
	}
	return &Response{Status: http.StatusOK, ContentType: contentType(clean, data), Body: data}, nil
}

func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	if strings.HasSuffix(name, ".webmanifest") {
		return "application/manifest+json"
	}
	return http.DetectContentType(data)
}

// HTTPOrigin fetches assets from an upstream server. Requests are not retried.
type HTTPOrigin struct {
	base   string
	client *http.Client
}

// NewHTTPOrigin returns an origin rooted at base (e.g. "https://example.com/app").
func NewHTTPOrigin(base string, timeout time.Duration) *HTTPOrigin {
	return &HTTPOrigin{
		base:   strings.TrimSuffix(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch issues a GET for path.
func (o *HTTPOrigin) Fetch(ctx context.Context, p string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.base+NormalizePath(p), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOriginUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrOriginUnreachable, p, err)
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
