// Package platform talks to the upstream short-video web APIs and resolves share links.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/transport"
)

// Client returns raw upstream JSON. Failures are *errors.TransportError or *errors.UpstreamError.
type Client interface {
	FetchDetail(ctx context.Context, p domain.Platform, id string, conn domain.Connection) ([]byte, error)
	FetchAccountPage(ctx context.Context, p domain.Platform, secUserID string, tab domain.Tab, cursor int64, count int, conn domain.Connection) ([]byte, error)
	FetchMixPage(ctx context.Context, p domain.Platform, mixID string, cursor int64, count int, conn domain.Connection) ([]byte, error)
	FetchSearch(ctx context.Context, p domain.Platform, keyword string, channel domain.SearchChannel, cursor int64, count int, conn domain.Connection) ([]byte, error)
	FetchLive(ctx context.Context, p domain.Platform, webRID string, conn domain.Connection) ([]byte, error)
	FetchUserProfile(ctx context.Context, p domain.Platform, secUserID string, conn domain.Connection) ([]byte, error)
	ResolveShareLink(ctx context.Context, link, proxy string) (string, error)
}

// Signer decorates query parameters before a request is sent.
type Signer interface {
	Sign(p domain.Platform, path string, q url.Values) (url.Values, error)
}

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	maxBodyBytes = 32 << 20
	maxRedirects = 10
)

// DefaultShortLinkHosts are followed by ResolveShareLink; other links are returned as-is.
var DefaultShortLinkHosts = []string{"v.douyin.com", "vm.tiktok.com", "vt.tiktok.com"}

type Options struct {
	DouyinBase     string
	TikTokBase     string
	DouyinLiveBase string
	Timeout        time.Duration
	Retry          transport.RetryPolicy
	Signer         Signer
	ShortLinkHosts []string
}

// APIClient is the HTTP implementation of Client.
type APIClient struct {
	pool   *transport.Pool
	opts   Options
	short  map[string]bool
	logger *slog.Logger
}

func NewAPIClient(pool *transport.Pool, opts Options, logger *slog.Logger) *APIClient {
	if opts.DouyinBase == "" {
		opts.DouyinBase = "https://www.douyin.com"
	}
	if opts.TikTokBase == "" {
		opts.TikTokBase = "https://www.tiktok.com"
	}
	if opts.DouyinLiveBase == "" {
		opts.DouyinLiveBase = "https://live.douyin.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = transport.DefaultRetryPolicy()
	}
	if opts.ShortLinkHosts == nil {
		opts.ShortLinkHosts = DefaultShortLinkHosts
	}
	short := make(map[string]bool, len(opts.ShortLinkHosts))
	for _, h := range opts.ShortLinkHosts {
		short[strings.ToLower(h)] = true
	}
	return &APIClient{
		pool:   pool,
		opts:   opts,
		short:  short,
		logger: logger.With("component", "platform"),
	}
}

func douyinQuery() url.Values {
	return url.Values{
		"device_platform": {"webapp"},
		"aid":             {"6383"},
		"channel":         {"channel_pc_web"},
		"pc_client_type":  {"1"},
	}
}

func tiktokQuery() url.Values {
	return url.Values{
		"aid":             {"1988"},
		"app_name":        {"tiktok_web"},
		"device_platform": {"web_pc"},
	}
}

func (c *APIClient) FetchDetail(ctx context.Context, p domain.Platform, id string, conn domain.Connection) ([]byte, error) {
	if p == domain.PlatformTikTok {
		q := tiktokQuery()
		q.Set("itemId", id)
		return c.get(ctx, p, "detail", c.opts.TikTokBase, "/api/item/detail/", q, conn)
	}
	q := douyinQuery()
	q.Set("aweme_id", id)
	return c.get(ctx, p, "detail", c.opts.DouyinBase, "/aweme/v1/web/aweme/detail/", q, conn)
}

func (c *APIClient) FetchAccountPage(ctx context.Context, p domain.Platform, secUserID string, tab domain.Tab, cursor int64, count int, conn domain.Connection) ([]byte, error) {
	if p == domain.PlatformTikTok {
		path := "/api/post/item_list/"
		if tab == domain.TabFavorite {
			path = "/api/favorite/item_list/"
		}
		q := tiktokQuery()
		q.Set("secUid", secUserID)
		q.Set("cursor", strconv.FormatInt(cursor, 10))
		q.Set("count", strconv.Itoa(count))
		return c.get(ctx, p, "account "+string(tab), c.opts.TikTokBase, path, q, conn)
	}
	path := "/aweme/v1/web/aweme/post/"
	if tab == domain.TabFavorite {
		path = "/aweme/v1/web/aweme/favorite/"
	}
	q := douyinQuery()
	q.Set("sec_user_id", secUserID)
	q.Set("max_cursor", strconv.FormatInt(cursor, 10))
	q.Set("count", strconv.Itoa(count))
	return c.get(ctx, p, "account "+string(tab), c.opts.DouyinBase, path, q, conn)
}

func (c *APIClient) FetchMixPage(ctx context.Context, p domain.Platform, mixID string, cursor int64, count int, conn domain.Connection) ([]byte, error) {
	if p == domain.PlatformTikTok {
		q := tiktokQuery()
		q.Set("mixId", mixID)
		q.Set("cursor", strconv.FormatInt(cursor, 10))
		q.Set("count", strconv.Itoa(count))
		return c.get(ctx, p, "mix", c.opts.TikTokBase, "/api/mix/item_list/", q, conn)
	}
	q := douyinQuery()
	q.Set("mix_id", mixID)
	q.Set("cursor", strconv.FormatInt(cursor, 10))
	q.Set("count", strconv.Itoa(count))
	return c.get(ctx, p, "mix", c.opts.DouyinBase, "/aweme/v1/web/mix/aweme/", q, conn)
}

func (c *APIClient) FetchSearch(ctx context.Context, p domain.Platform, keyword string, channel domain.SearchChannel, cursor int64, count int, conn domain.Connection) ([]byte, error) {
	if p == domain.PlatformTikTok {
		path := "/api/search/general/full/"
		if channel == domain.SearchVideo {
			path = "/api/search/item/full/"
		}
		q := tiktokQuery()
		q.Set("keyword", keyword)
		q.Set("offset", strconv.FormatInt(cursor, 10))
		q.Set("count", strconv.Itoa(count))
		return c.get(ctx, p, "search", c.opts.TikTokBase, path, q, conn)
	}
	path := "/aweme/v1/web/general/search/single/"
	if channel == domain.SearchVideo {
		path = "/aweme/v1/web/search/item/"
	}
	q := douyinQuery()
	q.Set("keyword", keyword)
	q.Set("offset", strconv.FormatInt(cursor, 10))
	q.Set("count", strconv.Itoa(count))
	return c.get(ctx, p, "search", c.opts.DouyinBase, path, q, conn)
}

func (c *APIClient) FetchLive(ctx context.Context, p domain.Platform, webRID string, conn domain.Connection) ([]byte, error) {
	if p == domain.PlatformTikTok {
		q := tiktokQuery()
		q.Set("uniqueId", webRID)
		q.Set("sourceType", "54")
		return c.get(ctx, p, "live", c.opts.TikTokBase, "/api-live/user/room/", q, conn)
	}
	q := douyinQuery()
	q.Set("web_rid", webRID)
	q.Set("enter_from", "web_live")
	return c.get(ctx, p, "live", c.opts.DouyinLiveBase, "/webcast/room/web/enter/", q, conn)
}

func (c *APIClient) FetchUserProfile(ctx context.Context, p domain.Platform, secUserID string, conn domain.Connection) ([]byte, error) {
	if p == domain.PlatformTikTok {
		q := tiktokQuery()
		q.Set("secUid", secUserID)
		return c.get(ctx, p, "profile", c.opts.TikTokBase, "/api/user/detail/", q, conn)
	}
	q := douyinQuery()
	q.Set("sec_user_id", secUserID)
	return c.get(ctx, p, "profile", c.opts.DouyinBase, "/aweme/v1/web/user/profile/other/", q, conn)
}

// ResolveShareLink follows the redirects of a short link and returns the final URL.
// Links on other hosts are returned unchanged without a network call.
func (c *APIClient) ResolveShareLink(ctx context.Context, link, proxy string) (string, error) {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %q", errpkg.ErrUnsupportedLink, link)
	}
	if !c.short[strings.ToLower(u.Host)] {
		return link, nil
	}

	base, err := c.pool.Client(proxy)
	if err != nil {
		return "", &errpkg.TransportError{Op: "resolve share link", Err: err}
	}
	client := *base
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	current := u
	for hop := 0; hop < maxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.String(), nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := client.Do(req)
		if err != nil {
			return "", &errpkg.TransportError{Op: "resolve share link", Err: err}
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			if resp.StatusCode >= 400 {
				return "", &errpkg.UpstreamError{Op: "resolve share link", Status: resp.StatusCode}
			}
			return current.String(), nil
		}

		loc, err := resp.Location()
		if err != nil {
			return "", &errpkg.UpstreamError{Op: "resolve share link", Status: resp.StatusCode, Message: "redirect without location"}
		}
		if loc.Scheme != "http" && loc.Scheme != "https" {
			return "", fmt.Errorf("%w: redirect to %q", errpkg.ErrUnsupportedLink, loc.String())
		}
		current = loc
		if !c.short[strings.ToLower(current.Host)] {
			return current.String(), nil
		}
	}
	return "", &errpkg.UpstreamError{Op: "resolve share link", Message: "too many redirects"}
}

func (c *APIClient) get(ctx context.Context, p domain.Platform, op, base, path string, q url.Values, conn domain.Connection) ([]byte, error) {
	if c.opts.Signer != nil {
		signed, err := c.opts.Signer.Sign(p, path, q)
		if err != nil {
			return nil, fmt.Errorf("sign %s request: %w", op, err)
		}
		q = signed
	}
	target := strings.TrimRight(base, "/") + path + "?" + q.Encode()

	client, err := c.pool.Client(conn.Proxy)
	if err != nil {
		return nil, &errpkg.TransportError{Op: op, Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= c.opts.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Warn("retrying upstream request",
				"platform", p,
				"op", op,
				"attempt", attempt,
				"error", lastErr,
			)
			if err := transport.Sleep(ctx, c.opts.Retry.Delay(attempt-1)); err != nil {
				return nil, &errpkg.TransportError{Op: op, Err: err}
			}
		}

		body, err := c.do(ctx, client, p, op, target, conn.Cookie)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !errpkg.IsTransient(err) || errors.Is(ctx.Err(), context.Canceled) {
			break
		}
	}
	return nil, lastErr
}

func (c *APIClient) do(ctx context.Context, client *http.Client, p domain.Platform, op, target, cookie string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &errpkg.TransportError{Op: op, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if p == domain.PlatformTikTok {
		req.Header.Set("Referer", "https://www.tiktok.com/")
	} else {
		req.Header.Set("Referer", "https://www.douyin.com/")
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &errpkg.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &errpkg.TransportError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &errpkg.UpstreamError{Op: op, Status: resp.StatusCode, Message: snippet(body)}
	}
	// an empty 200 is how both platforms reject unsigned or cookieless calls
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, &errpkg.UpstreamError{Op: op, Status: resp.StatusCode, Message: "empty response"}
	}
	return body, nil
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
