package platform

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/validation"
)

type LinkKind string

const (
	LinkDetail LinkKind = "detail"
	LinkMix    LinkKind = "mix"
	LinkUser   LinkKind = "user"
	LinkLive   LinkKind = "live"
)

// Link is an identifier recognized in a canonical URL.
type Link struct {
	Kind  LinkKind
	ID    string
	Title string
	URL   string
}

var (
	tiktokPlaylist = regexp.MustCompile(`/@[^/]+/(?:playlist|collection)/([^/?#]+)-(\d+)`)
	mixPath        = regexp.MustCompile(`/(?:collection|mix/detail)/(\d+)`)
	detailPath     = regexp.MustCompile(`/(?:video|note|photo|slides)/(\d+)`)
	tiktokLive     = regexp.MustCompile(`/@([^/?#]+)/live`)
	livePath       = regexp.MustCompile(`^/(\d+)`)
	userPath       = regexp.MustCompile(`/user/([A-Za-z0-9_.\-]+)`)
)

// ParseLink classifies a canonical platform URL.
func ParseLink(raw string) (Link, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, false
	}
	q := u.Query()

	if m := tiktokPlaylist.FindStringSubmatch(u.Path); m != nil {
		title, err := url.PathUnescape(m[1])
		if err != nil {
			title = m[1]
		}
		return Link{Kind: LinkMix, ID: m[2], Title: strings.ReplaceAll(title, "-", " "), URL: raw}, true
	}
	if m := mixPath.FindStringSubmatch(u.Path); m != nil {
		return Link{Kind: LinkMix, ID: m[1], URL: raw}, true
	}
	for _, key := range []string{"modal_id", "aweme_id", "vid"} {
		if id := q.Get(key); isDigits(id) {
			return Link{Kind: LinkDetail, ID: id, URL: raw}, true
		}
	}
	if m := detailPath.FindStringSubmatch(u.Path); m != nil {
		return Link{Kind: LinkDetail, ID: m[1], URL: raw}, true
	}
	if strings.EqualFold(u.Hostname(), "live.douyin.com") {
		if m := livePath.FindStringSubmatch(u.Path); m != nil {
			return Link{Kind: LinkLive, ID: m[1], URL: raw}, true
		}
	}
	if m := tiktokLive.FindStringSubmatch(u.Path); m != nil {
		return Link{Kind: LinkLive, ID: m[1], URL: raw}, true
	}
	for _, key := range []string{"sec_uid", "secUid", "sec_user_id"} {
		if id := q.Get(key); id != "" {
			return Link{Kind: LinkUser, ID: id, URL: raw}, true
		}
	}
	if m := userPath.FindStringSubmatch(u.Path); m != nil && m[1] != "self" {
		return Link{Kind: LinkUser, ID: m[1], URL: raw}, true
	}
	return Link{}, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Resolution is the outcome of resolving a share text.
type Resolution struct {
	// ResolvedURL lists the canonical URLs, space separated.
	ResolvedURL string
	Links       []Link
}

// IDs returns the distinct ids of one kind, in order of appearance.
func (r Resolution) IDs(kind LinkKind) []string {
	var out []string
	for _, l := range r.Links {
		if l.Kind == kind {
			out = append(out, l.ID)
		}
	}
	return out
}

// Of returns the links of one kind.
func (r Resolution) Of(kind LinkKind) []Link {
	var out []Link
	for _, l := range r.Links {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// ResolveText extracts every link from text, expands short links, and classifies the
// results. Links that fail to expand are skipped; an error is returned only when
// nothing could be recognized.
func ResolveText(ctx context.Context, c Client, text, proxy string) (Resolution, error) {
	raws := validation.ExtractURLs(text)
	if len(raws) == 0 {
		return Resolution{}, fmt.Errorf("%w: no link in text", errpkg.ErrUnsupportedLink)
	}

	var (
		res      Resolution
		resolved []string
		seen     = map[string]bool{}
		lastErr  error
	)
	for _, raw := range raws {
		canonical, err := c.ResolveShareLink(ctx, raw, proxy)
		if err != nil {
			lastErr = err
			continue
		}
		resolved = append(resolved, canonical)

		link, ok := ParseLink(canonical)
		if !ok {
			continue
		}
		key := string(link.Kind) + ":" + link.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		res.Links = append(res.Links, link)
	}
	res.ResolvedURL = strings.Join(resolved, " ")

	if len(res.Links) == 0 {
		if lastErr != nil {
			return res, lastErr
		}
		return res, fmt.Errorf("%w: %s", errpkg.ErrUnsupportedLink, res.ResolvedURL)
	}
	return res, nil
}
