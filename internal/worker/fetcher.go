package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/metrics"
	"github.com/veranemoloko/clip-downloader/internal/transport"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var referers = map[domain.Platform]string{
	domain.PlatformDouyin: "https://www.douyin.com/",
	domain.PlatformTikTok: "https://www.tiktok.com/",
}

// Sink is a partially written temp file.
type Sink interface {
	io.Writer
	Truncate(size int64) error
	Seek(offset int64, whence int) (int64, error)
}

// Fetcher downloads one asset into dst, continuing after offset bytes when the
// server supports ranges. It returns the total number of bytes now in dst.
type Fetcher interface {
	Fetch(ctx context.Context, asset domain.Asset, dst Sink, offset int64, opts RunOptions) (int64, error)
}

// HTTPFetcher fetches media over HTTP through a proxy-aware client pool.
type HTTPFetcher struct {
	pool    *transport.Pool
	maxSize int64
}

func NewHTTPFetcher(pool *transport.Pool, maxSize int64) *HTTPFetcher {
	return &HTTPFetcher{pool: pool, maxSize: maxSize}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, asset domain.Asset, dst Sink, offset int64, opts RunOptions) (int64, error) {
	client, err := f.pool.Client(opts.Proxy)
	if err != nil {
		return offset, &errpkg.FetchError{URL: asset.URL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return offset, &errpkg.FetchError{URL: asset.URL, Err: err}
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if ref, ok := referers[opts.Platform]; ok {
		req.Header.Set("Referer", ref)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := client.Do(req)
	if err != nil {
		return offset, &errpkg.FetchError{URL: asset.URL, Err: err, Transient: errpkg.IsTransient(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return offset, &errpkg.FetchError{
			URL:       asset.URL,
			Status:    resp.StatusCode,
			Transient: errpkg.HTTPStatusTransient(resp.StatusCode),
		}
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/json") {
		return offset, &errpkg.FetchError{URL: asset.URL, Err: fmt.Errorf("%w: content type %s", errpkg.ErrMalformedContent, ct)}
	}

	// the server ignored the range, start over
	if offset > 0 && resp.StatusCode != http.StatusPartialContent {
		if err := dst.Truncate(0); err != nil {
			return offset, &errpkg.FetchError{URL: asset.URL, Err: err}
		}
		if _, err := dst.Seek(0, io.SeekStart); err != nil {
			return offset, &errpkg.FetchError{URL: asset.URL, Err: err}
		}
		offset = 0
	}

	n, err := copyWithContext(ctx, dst, resp.Body, f.limit(offset))
	total := offset + n
	metrics.FetchBytes.Add(float64(n))
	if err != nil {
		return total, &errpkg.FetchError{URL: asset.URL, Err: err, Transient: errpkg.IsTransient(err)}
	}
	if total == 0 {
		return 0, &errpkg.FetchError{URL: asset.URL, Err: fmt.Errorf("%w: empty body", errpkg.ErrMalformedContent)}
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return total, &errpkg.FetchError{URL: asset.URL, Err: errpkg.ErrIncompleteAsset, Transient: true}
	}
	return total, nil
}

func (f *HTTPFetcher) limit(offset int64) int64 {
	if f.maxSize <= 0 {
		return -1
	}
	return f.maxSize - offset
}

var errTooLarge = fmt.Errorf("%w: exceeds maximum size", errpkg.ErrMalformedContent)

// copyWithContext copies src to dst until EOF, ctx cancellation, or more than limit
// bytes (limit < 0 disables the check).
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, limit int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			if limit >= 0 && total+int64(nr) > limit {
				return total, errTooLarge
			}
			nw, werr := dst.Write(buf[:nr])
			if nw > 0 {
				total += int64(nw)
			}
			if werr != nil {
				return total, werr
			}
			if nr != nw {
				return total, io.ErrShortWrite
			}
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
}
