// Package fetcher downloads one image per call into an episode directory.
//
// A fetch is exactly one HTTP GET. The body streams into a hidden temp file in
// the target directory and is renamed to NNN<ext>, so the final name depends
// only on the image's 1-based position and a partially written image is never
// visible. Images whose URL carries a cpx parameter are buffered and decrypted
// before they are written. Retrying is the caller's decision; errors carry a
// services marker telling it whether another attempt may succeed.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"comicdl/internal/fileutil"
	"comicdl/internal/services"
)

// DefaultExt is used when the image URL carries no recognizable extension.
const DefaultExt = ".jpg"

// imageExts are the page formats saved under their own extension. Every stage
// that reads an episode directory recognises pages through IsImageExt.
var imageExts = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif"}

// IsImageExt reports whether ext, dot included and in any case, names a page
// format.
func IsImageExt(ext string) bool {
	return slices.Contains(imageExts, strings.ToLower(ext))
}

// ByteCounter receives the size of every chunk read from a response body.
type ByteCounter func(n int64)

// Request describes one image fetch.
type Request struct {
	URL     string
	Dir     string
	Current int
	Ext     string
}

// Result reports where the image landed and how large it is.
type Result struct {
	Path  string
	Bytes int64
}

// Fetcher performs single-attempt image downloads.
type Fetcher struct {
	client    *http.Client
	userAgent string
	counter   ByteCounter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(f *Fetcher) {
		if agent = strings.TrimSpace(agent); agent != "" {
			f.userAgent = agent
		}
	}
}

// WithByteCounter reports streamed bytes to counter.
func WithByteCounter(counter ByteCounter) Option {
	return func(f *Fetcher) {
		f.counter = counter
	}
}

// WithTimeout sets the per-image request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client = &http.Client{Timeout: timeout, Transport: f.client.Transport}
		}
	}
}

// New constructs a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: 60 * time.Second},
		userAgent: "comicdl",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FileName returns the on-disk name of image current.
func FileName(current int, ext string) string {
	if ext == "" {
		ext = DefaultExt
	}
	return fmt.Sprintf("%03d%s", current, ext)
}

// ExtFromURL returns the lowercase image extension of rawURL, or DefaultExt.
func ExtFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return DefaultExt
	}
	if ext := strings.ToLower(path.Ext(parsed.Path)); IsImageExt(ext) {
		return ext
	}
	return DefaultExt
}

// Fetch downloads req.URL into req.Dir.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	if req.Current < 1 {
		return Result{}, services.Wrap(services.ErrValidation, "fetcher", "fetch", fmt.Sprintf("invalid image position %d", req.Current), nil)
	}
	ext := req.Ext
	if ext == "" {
		ext = ExtFromURL(req.URL)
	}
	target := filepath.Join(req.Dir, FileName(req.Current, ext))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "fetcher", "fetch", "build request", err)
	}
	httpReq.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, services.Wrap(services.ErrCancelled, "fetcher", "fetch", "request cancelled", ctx.Err())
		}
		return Result{}, services.Wrap(services.ErrTransient, "fetcher", "fetch", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.ErrExternal
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			marker = services.ErrTransient
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, services.Wrap(marker, "fetcher", "fetch", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var body io.Reader = &countingReader{r: resp.Body, counter: f.counter}
	if cpx, ok := protectedKey(req.URL); ok {
		data, err := io.ReadAll(body)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, services.Wrap(services.ErrCancelled, "fetcher", "fetch", "download cancelled", ctx.Err())
			}
			return Result{}, services.Wrap(services.ErrTransient, "fetcher", "fetch", "read image", err)
		}
		decoded, err := DecodeProtected(data, cpx)
		if err != nil {
			return Result{}, services.Wrap(services.ErrExternal, "fetcher", "decode", "decrypt protected image", err)
		}
		body = bytes.NewReader(decoded)
	}

	written, err := fileutil.WriteAtomic(target, body, 0o644)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, services.Wrap(services.ErrCancelled, "fetcher", "fetch", "download cancelled", ctx.Err())
		}
		return Result{}, services.Wrap(services.ErrTransient, "fetcher", "fetch", "write image", err)
	}
	return Result{Path: target, Bytes: written}, nil
}

type countingReader struct {
	r       io.Reader
	counter ByteCounter
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.counter != nil {
		c.counter(int64(n))
	}
	return n, err
}
