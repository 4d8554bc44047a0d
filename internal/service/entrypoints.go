package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/extract"
	"github.com/veranemoloko/clip-downloader/internal/platform"
	"github.com/veranemoloko/clip-downloader/internal/validation"
)

// DownloadShare downloads whatever the share text points at. Work links land in the
// detail folder, every collection and account link is its own scope.
func (o *Orchestrator) DownloadShare(ctx context.Context, t Target, req domain.ShareRequest) domain.Outcome {
	req.ApplyDefaults(t.Platform)
	r := o.begin(t, "share", req, req.Connection)

	res, err := platform.ResolveText(ctx, o.client, req.Text, r.conn.Proxy)
	if err != nil {
		return r.fail(domain.ReasonResolution, msgResolveFailed, nil, err)
	}

	var scopes []scope
	if ids := res.IDs(platform.LinkDetail); len(ids) > 0 {
		scopes = append(scopes, o.detailScope(r, ids))
	}
	for _, l := range res.Of(platform.LinkMix) {
		scopes = append(scopes, o.mixScope(r, l.ID, firstNonEmpty(req.Mark, l.Title), req.Paging))
	}
	for _, id := range res.IDs(platform.LinkUser) {
		scopes = append(scopes, o.accountScope(r, id, domain.TabPost, o.label(ctx, r, req.Mark, id), req.Paging))
	}
	if len(scopes) == 0 {
		return r.fail(domain.ReasonResolution, msgResolveFailed, nil,
			fmt.Errorf("%w: no downloadable link in %q", errpkg.ErrUnsupportedLink, res.ResolvedURL))
	}
	return o.execute(ctx, r, res.ResolvedURL, scopes, noData{empty: msgExtractFailed})
}

// DownloadFavorite downloads the works an account has liked.
func (o *Orchestrator) DownloadFavorite(ctx context.Context, t Target, req domain.AccountRequest) domain.Outcome {
	req.Tab = domain.TabFavorite
	return o.account(ctx, t, "favorite", req)
}

// DownloadAccount downloads an account's posts, or its favorites when the tab says so.
func (o *Orchestrator) DownloadAccount(ctx context.Context, t Target, req domain.AccountRequest) domain.Outcome {
	return o.account(ctx, t, "account", req)
}

func (o *Orchestrator) account(ctx context.Context, t Target, source string, req domain.AccountRequest) domain.Outcome {
	req.ApplyDefaults(t.Platform)
	r := o.begin(t, source, req, req.Connection)
	r.rng = req.Range()

	if !r.rng.Valid() {
		return r.fail(domain.ReasonParameter, msgInvalidRange, domain.EmptyPayload(), nil)
	}

	secUID, resolved, err := o.accountID(ctx, r, req)
	if err != nil {
		var ce *errpkg.ConfigError
		if errors.As(err, &ce) {
			data := domain.EmptyPayload()
			data.ResolvedURL = resolved
			return r.fail(domain.ReasonParameter, msgMissingSecUID, data, err)
		}
		return r.fail(domain.ReasonResolution, msgResolveFailed, nil, err)
	}

	sc := o.accountScope(r, secUID, req.Tab, o.label(ctx, r, req.Mark, secUID), req.Paging)
	sc.rng = r.rng

	nd := noData{empty: msgExtractFailed, unreachable: msgAccountFailed}
	if req.Tab == domain.TabFavorite {
		nd.empty = msgFavoriteEmpty
	}
	return o.execute(ctx, r, resolved, []scope{sc}, nd)
}

// accountID picks the account to list: the explicit id, a user link in the text,
// then the owner configured in the settings. It also returns the URL the text
// resolved to, kept even when the text named no account.
func (o *Orchestrator) accountID(ctx context.Context, r *run, req domain.AccountRequest) (string, string, error) {
	if id := strings.TrimSpace(req.SecUserID); id != "" {
		return id, "", nil
	}

	var resolved string
	if strings.TrimSpace(req.Text) != "" {
		id, res, err := o.userFromText(ctx, r, req.Text)
		if err == nil {
			return id, res, nil
		}
		resolved = res
		r.logger.Info("no account in text, trying configured owner", "error", err)
	}

	owner := r.snap.Settings.For(r.target.Platform).Owner
	switch {
	case owner.SecUID != "":
		return owner.SecUID, resolved, nil
	case owner.URL != "":
		id, res, err := o.userFromText(ctx, r, owner.URL)
		return id, firstNonEmpty(resolved, res), err
	}
	return "", resolved, &errpkg.ConfigError{Field: "sec_user_id", Fallback: "owner_url.url / owner_url.sec_uid"}
}

func (o *Orchestrator) userFromText(ctx context.Context, r *run, text string) (string, string, error) {
	res, err := platform.ResolveText(ctx, o.client, text, r.conn.Proxy)
	if err != nil {
		return "", res.ResolvedURL, err
	}
	ids := res.IDs(platform.LinkUser)
	if len(ids) == 0 {
		return "", res.ResolvedURL, fmt.Errorf("%w: no account link", errpkg.ErrNoIdentifier)
	}
	return ids[0], res.ResolvedURL, nil
}

// label is the folder label of an account scope: the caller's mark or the account nickname.
func (o *Orchestrator) label(ctx context.Context, r *run, mark, secUID string) string {
	if mark = strings.TrimSpace(mark); mark != "" {
		return mark
	}
	return o.nickname(ctx, r, secUID)
}

// nickname looks up the display name of an account; failures only cost the folder label.
func (o *Orchestrator) nickname(ctx context.Context, r *run, secUID string) string {
	raw, err := o.client.FetchUserProfile(ctx, r.target.Platform, secUID, r.conn)
	var name string
	if err == nil {
		name, err = extract.Nickname(raw)
	}
	if err != nil {
		r.logger.Warn("account nickname unavailable", "sec_user_id", secUID, "error", err)
		return ""
	}
	return name
}

// DownloadMix downloads one or more collections, named by id, by one of their
// works, or by links in a share text.
func (o *Orchestrator) DownloadMix(ctx context.Context, t Target, req domain.MixRequest) domain.Outcome {
	req.ApplyDefaults(t.Platform)
	r := o.begin(t, "mix", req, req.Connection)

	var (
		resolved string
		links    []platform.Link
	)
	switch {
	case req.MixID != "":
		links = []platform.Link{{Kind: platform.LinkMix, ID: req.MixID}}
	case req.DetailID != "":
		l, err := o.mixOf(ctx, r, req.DetailID)
		if err != nil {
			return r.fail(domain.ReasonResolution, msgNoMix, nil, err)
		}
		links = []platform.Link{l}
	default:
		res, err := platform.ResolveText(ctx, o.client, req.Text, r.conn.Proxy)
		if err != nil {
			return r.fail(domain.ReasonResolution, msgResolveFailed, nil, err)
		}
		resolved = res.ResolvedURL
		links = res.Of(platform.LinkMix)
		seen := map[string]bool{}
		for _, l := range links {
			seen[l.ID] = true
		}
		for _, id := range res.IDs(platform.LinkDetail) {
			l, err := o.mixOf(ctx, r, id)
			if err != nil {
				r.logger.Warn("work has no collection", "item_id", id, "error", err)
				continue
			}
			if !seen[l.ID] {
				seen[l.ID] = true
				links = append(links, l)
			}
		}
		if len(links) == 0 {
			return r.fail(domain.ReasonResolution, msgNoMix, nil, errpkg.ErrNoIdentifier)
		}
	}

	scopes := make([]scope, 0, len(links))
	for _, l := range links {
		scopes = append(scopes, o.mixScope(r, l.ID, firstNonEmpty(req.Mark, l.Title), req.Paging))
	}
	return o.execute(ctx, r, resolved, scopes, noData{empty: msgExtractFailed})
}

// mixOf finds the collection a work belongs to.
func (o *Orchestrator) mixOf(ctx context.Context, r *run, detailID string) (platform.Link, error) {
	raw, err := o.client.FetchDetail(ctx, r.target.Platform, detailID, r.conn)
	if err != nil {
		return platform.Link{}, err
	}
	items, _ := o.pipeline.Extract([][]byte{raw}, extract.Options{
		Platform: r.target.Platform,
		Mode:     domain.ModeMix,
	}).Collect()
	if len(items) == 0 || items[0].MixID == "" {
		return platform.Link{}, fmt.Errorf("item %s: %w", detailID, errpkg.ErrNoIdentifier)
	}
	return platform.Link{Kind: platform.LinkMix, ID: items[0].MixID, Title: items[0].MixTitle}, nil
}

// DownloadDetail downloads individual works by id or from links in a share text.
func (o *Orchestrator) DownloadDetail(ctx context.Context, t Target, req domain.DetailRequest) domain.Outcome {
	r := o.begin(t, "detail", req, req.Connection)

	ids := append([]string(nil), req.DetailIDs...)
	var resolved string
	if strings.TrimSpace(req.Text) != "" {
		res, err := platform.ResolveText(ctx, o.client, req.Text, r.conn.Proxy)
		switch {
		case err != nil && len(ids) == 0:
			return r.fail(domain.ReasonResolution, msgResolveFailed, nil, err)
		case err != nil:
			r.logger.Warn("share text not resolved, using explicit ids", "error", err)
		default:
			resolved = res.ResolvedURL
			ids = append(ids, res.IDs(platform.LinkDetail)...)
		}
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return r.fail(domain.ReasonResolution, msgResolveFailed, nil, errpkg.ErrNoIdentifier)
	}
	return o.execute(ctx, r, resolved, []scope{o.detailScope(r, ids)}, noData{empty: msgExtractFailed})
}

// DownloadSearch downloads the works returned by a keyword search.
func (o *Orchestrator) DownloadSearch(ctx context.Context, t Target, req domain.SearchRequest) domain.Outcome {
	req.ApplyDefaults(t.Platform)
	r := o.begin(t, "search", req, req.Connection)

	p, keyword, channel := t.Platform, req.Keyword, req.Channel
	fetch := func(ctx context.Context, cursor int64, count int) ([]byte, error) {
		return o.client.FetchSearch(ctx, p, keyword, channel, cursor, count, r.conn)
	}
	sc := scope{
		mode:  domain.ModeSearch,
		label: keyword,
		pages: o.paginate(r, fetch, req.Paging, time.Time{}),
	}
	return o.execute(ctx, r, "", []scope{sc}, noData{empty: msgExtractFailed})
}

// FetchLive looks up a live room and returns its stream addresses.
func (o *Orchestrator) FetchLive(ctx context.Context, t Target, req domain.LiveRequest) domain.Outcome {
	r := o.begin(t, "live", req, req.Connection)

	rid := strings.TrimSpace(req.WebRID)
	if rid == "" {
		res, err := platform.ResolveText(ctx, o.client, req.Text, r.conn.Proxy)
		if err != nil {
			return r.fail(domain.ReasonResolution, msgResolveFailed, nil, err)
		}
		ids := res.IDs(platform.LinkLive)
		if len(ids) == 0 {
			return r.fail(domain.ReasonResolution, msgResolveFailed, nil, errpkg.ErrNoIdentifier)
		}
		rid = ids[0]
	}

	r.enter(StateExtracting)
	raw, err := o.client.FetchLive(ctx, t.Platform, rid, r.conn)
	if err != nil {
		return r.fail(domain.ReasonUpstream, msgLiveFailed, nil, err)
	}
	room, err := extract.LiveRoom(raw)
	if errors.Is(err, errpkg.ErrNotFound) {
		return r.fail(domain.ReasonNoData, msgLiveFailed, nil, err)
	}
	if err != nil {
		return r.fail(domain.ReasonUpstream, msgLiveFailed, nil, err)
	}
	return r.succeed(msgLiveOK, room)
}

// ResolveShare expands the links of a share text without downloading anything.
func (o *Orchestrator) ResolveShare(ctx context.Context, t Target, req domain.ResolveRequest) domain.Outcome {
	r := o.begin(t, "resolve", req, domain.Connection{Proxy: req.Proxy})

	links := validation.ExtractURLs(req.Text)
	if len(links) == 0 {
		return r.fail(domain.ReasonResolution, msgLinkFailed, nil, errpkg.ErrUnsupportedLink)
	}

	var (
		resolved []string
		lastErr  error
	)
	for _, link := range links {
		canonical, err := o.client.ResolveShareLink(ctx, link, r.conn.Proxy)
		if err != nil {
			lastErr = err
			continue
		}
		resolved = append(resolved, canonical)
	}
	if len(resolved) == 0 {
		return r.fail(domain.ReasonResolution, msgLinkFailed, nil, lastErr)
	}
	return r.succeed(msgLinkOK, strings.Join(resolved, " "))
}

func (o *Orchestrator) detailScope(r *run, ids []string) scope {
	p, conn := r.target.Platform, r.conn
	return scope{
		mode: domain.ModeDetail,
		pages: func(ctx context.Context) extract.Pages {
			var out extract.Pages
			for _, id := range ids {
				if err := ctx.Err(); err != nil {
					out.Stop, out.Err = extract.StopCancelled, err
					return out
				}
				raw, err := o.client.FetchDetail(ctx, p, id, conn)
				if err != nil {
					r.logger.Warn("work lookup failed", "item_id", id, "error", err)
					out.Err = err
					continue
				}
				out.Raw = append(out.Raw, raw)
			}
			out.Stop = extract.StopExhausted
			return out
		},
	}
}

func (o *Orchestrator) mixScope(r *run, mixID, label string, paging domain.Paging) scope {
	p, conn := r.target.Platform, r.conn
	fetch := func(ctx context.Context, cursor int64, count int) ([]byte, error) {
		return o.client.FetchMixPage(ctx, p, mixID, cursor, count, conn)
	}
	return scope{
		mode:  domain.ModeMix,
		id:    mixID,
		label: label,
		pages: o.paginate(r, fetch, paging, time.Time{}),
	}
}

func (o *Orchestrator) accountScope(r *run, secUID string, tab domain.Tab, label string, paging domain.Paging) scope {
	p, conn := r.target.Platform, r.conn
	fetch := func(ctx context.Context, cursor int64, count int) ([]byte, error) {
		return o.client.FetchAccountPage(ctx, p, secUID, tab, cursor, count, conn)
	}

	mode := domain.ModeAccount
	if tab == domain.TabFavorite {
		mode = domain.ModeFavorite
	}
	var stopBefore time.Time
	if r.rng.Earliest.IsSet() && r.snap.Config != nil && r.snap.Config.EarlyStop {
		stopBefore = r.rng.Earliest.Start()
	}
	return scope{
		mode:  mode,
		id:    secUID,
		label: label,
		pages: o.paginate(r, fetch, paging, stopBefore),
	}
}

func (o *Orchestrator) paginate(r *run, fetch extract.PageFunc, paging domain.Paging, stopBefore time.Time) func(context.Context) extract.Pages {
	opts := extract.PageOptions{
		Cursor:     paging.Cursor,
		Count:      paging.Count,
		Pages:      paging.Pages,
		StopBefore: stopBefore,
	}
	if r.snap.Config != nil {
		opts.MaxPages = r.snap.Config.MaxPages
	}
	return func(ctx context.Context) extract.Pages {
		return o.pipeline.Paginate(ctx, fetch, opts)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
