// Package service drives download requests from share text to files on disk.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/clip-downloader/internal/config"
	"github.com/veranemoloko/clip-downloader/internal/domain"
	"github.com/veranemoloko/clip-downloader/internal/extract"
	"github.com/veranemoloko/clip-downloader/internal/metrics"
	"github.com/veranemoloko/clip-downloader/internal/platform"
	"github.com/veranemoloko/clip-downloader/internal/repository"
	"github.com/veranemoloko/clip-downloader/internal/storage"
	"github.com/veranemoloko/clip-downloader/internal/worker"
)

// State is a step of one download request.
type State string

const (
	StateResolving  State = "resolving"
	StateExtracting State = "extracting"
	StateFetching   State = "fetching"
	StateAssembling State = "assembling"
	StateNotifying  State = "notifying"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

const (
	msgDone          = "下载任务已完成！"
	msgResolveFailed = "解析分享链接失败！"
	msgAccountFailed = "获取账号信息失败，请检查 Cookie 登录状态！"
	msgFavoriteEmpty = "获取喜欢作品数据失败！"
	msgExtractFailed = "提取作品数据失败！"
	msgFetchFailed   = "下载作品文件失败！"
	msgMissingSecUID = "参数错误：缺少 sec_user_id！请传 sec_user_id 或 text；或在 settings.yaml 设置 owner_url.url / owner_url.sec_uid 作为默认账号。"
	msgInvalidRange  = "参数错误：earliest 不能晚于 latest！"
	msgNoMix         = "作品不属于任何合集！"
	msgLinkOK        = "请求链接成功！"
	msgLinkFailed    = "请求链接失败！"
	msgLiveOK        = "获取直播数据成功！"
	msgLiveFailed    = "获取直播数据失败！"
)

// Notifier accepts completion events without blocking.
type Notifier interface {
	Dispatch(ev domain.NotificationEvent)
}

// Deps are the collaborators of an Orchestrator. History and Notifier may be nil.
type Deps struct {
	Store     *config.Store
	Client    platform.Client
	Pipeline  *extract.Pipeline
	Planner   *storage.FolderPlanner
	Scheduler *worker.FetchScheduler
	Notifier  Notifier
	History   repository.HistoryRepo
}

type Orchestrator struct {
	store     *config.Store
	client    platform.Client
	pipeline  *extract.Pipeline
	planner   *storage.FolderPlanner
	scheduler *worker.FetchScheduler
	notifier  Notifier
	history   repository.HistoryRepo
	logger    *slog.Logger
}

func NewOrchestrator(d Deps, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     d.Store,
		client:    d.Client,
		pipeline:  d.Pipeline,
		planner:   d.Planner,
		scheduler: d.Scheduler,
		notifier:  d.Notifier,
		history:   d.History,
		logger:    logger.With("component", "orchestrator"),
	}
}

// Target says which platform a request is for and where its files are served from.
type Target struct {
	Platform domain.Platform
	// BaseURL is the origin of file URLs when the configuration sets none.
	BaseURL   string
	RequestID string
}

// run carries the per-request state through the state machine.
type run struct {
	target  Target
	source  string
	snap    *config.Snapshot
	conn    domain.Connection
	rng     domain.TimeRange
	params  map[string]any
	state   State
	started time.Time
	logger  *slog.Logger
}

// begin snapshots the configuration and fills connection defaults from the settings.
func (o *Orchestrator) begin(t Target, source string, req any, conn domain.Connection) *run {
	id := t.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	snap := o.store.Snapshot()

	ps := snap.Settings.For(t.Platform)
	if conn.Cookie == "" {
		conn.Cookie = ps.Cookie
	}
	if conn.Proxy == "" {
		conn.Proxy = ps.Proxy
	}

	r := &run{
		target:  t,
		source:  source,
		snap:    snap,
		conn:    conn,
		params:  domain.SanitizeParams(req),
		state:   StateResolving,
		started: time.Now(),
		logger:  o.logger.With("request_id", id, "platform", t.Platform, "source", source),
	}
	r.logger.Info("request started", "settings_version", snap.Version)
	return r
}

func (r *run) enter(s State) {
	if r.state == s {
		return
	}
	r.logger.Debug("state transition", "from", r.state, "to", s)
	r.state = s
}

func (r *run) baseURL() string {
	if r.snap.Config != nil && r.snap.Config.BaseURL != "" {
		return r.snap.Config.BaseURL
	}
	return r.target.BaseURL
}

func (r *run) fail(reason domain.Reason, msg string, data any, err error) domain.Outcome {
	r.enter(StateFailed)
	if err != nil {
		r.logger.Warn("request failed", "reason", reason, "error", err)
	} else {
		r.logger.Warn("request failed", "reason", reason)
	}
	r.observe(string(reason))
	return domain.Failure(reason, msg, data, r.params)
}

func (r *run) succeed(msg string, data any) domain.Outcome {
	r.enter(StateDone)
	r.logger.Info("request finished", "duration", time.Since(r.started))
	r.observe("success")
	return domain.Success(msg, data, r.params)
}

func (r *run) observe(outcome string) {
	p := string(r.target.Platform)
	metrics.Requests.WithLabelValues(p, r.source, outcome).Inc()
	metrics.RequestDuration.WithLabelValues(p, r.source).Observe(time.Since(r.started).Seconds())
}

// scope is one independent Extracting and Fetching cycle: a set of works, a
// collection, an account listing or a search.
type scope struct {
	mode  domain.Mode
	id    string
	label string
	rng   domain.TimeRange
	pages func(ctx context.Context) extract.Pages
}

// noData holds the messages used when nothing could be extracted. unreachable is
// preferred when every scope failed before returning a single page.
type noData struct {
	empty       string
	unreachable string
}

type scopeResult struct {
	mode  domain.Mode
	batch worker.BatchResult
}

// execute runs every scope, then assembles, records and announces the result.
func (o *Orchestrator) execute(ctx context.Context, r *run, resolvedURL string, scopes []scope, nd noData) domain.Outcome {
	var (
		results     []scopeResult
		extracted   int
		unreachable = len(scopes) > 0
		resolver    = r.snap.Settings.Resolver()
		folderMode  = r.snap.Settings.Folder()
		base        = r.baseURL()
	)

	for _, sc := range scopes {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("request cancelled, remaining scopes skipped", "error", err)
			break
		}

		r.enter(StateExtracting)
		pages := sc.pages(ctx)
		if pages.Err == nil || len(pages.Raw) > 0 {
			unreachable = false
		}
		if pages.Err != nil {
			r.logger.Warn("scope returned no further pages",
				"mode", sc.mode, "scope_id", sc.id, "pages", len(pages.Raw), "stop", pages.Stop, "error", pages.Err)
		}

		items, stats := o.pipeline.Extract(pages.Raw, extract.Options{
			Platform: r.target.Platform,
			Mode:     sc.mode,
			Range:    sc.rng,
		}).Collect()
		partial := pages.Partial() || stats.Partial()
		if len(items) == 0 {
			r.logger.Info("scope yielded no items",
				"mode", sc.mode, "scope_id", sc.id, "filtered", stats.Filtered, "partial", partial)
			continue
		}
		extracted += len(items)

		label := sc.label
		if label == "" && sc.mode == domain.ModeMix {
			label = items[0].MixTitle
		}
		folder, err := o.planner.StorageFolder(sc.mode, sc.id, label)
		if err != nil {
			r.logger.Error("cannot prepare storage folder", "mode", sc.mode, "scope_id", sc.id, "error", err)
			continue
		}

		r.enter(StateFetching)
		units := make([]worker.Unit, 0, len(items))
		for _, item := range items {
			plan := o.planner.PlanItem(folder, item, resolver.NameFor(item), folderMode, base)
			units = append(units, worker.Unit{Item: item, Plan: plan})
		}
		batch := o.scheduler.Run(ctx, units, worker.RunOptions{
			Platform: r.target.Platform,
			Mode:     sc.mode,
			Proxy:    r.conn.Proxy,
		})
		r.logger.Info("scope fetched",
			"mode", sc.mode, "scope_id", sc.id, "items", len(units), "complete", batch.CompleteCount(),
			"fetched", batch.Fetched, "skipped", batch.Skipped, "failed", batch.Failed, "cancelled", batch.Cancelled,
			"partial", partial, "malformed_pages", stats.MalformedPages)
		results = append(results, scopeResult{mode: sc.mode, batch: batch})
	}

	if extracted == 0 {
		msg := nd.empty
		if unreachable && nd.unreachable != "" {
			msg = nd.unreachable
		}
		return r.fail(domain.ReasonNoData, msg, nil, nil)
	}

	r.enter(StateAssembling)
	payload, entries, complete := o.assemble(r, resolvedURL, base, results)
	o.record(ctx, r, entries)
	if complete == 0 {
		return r.fail(domain.ReasonFetch, msgFetchFailed, payload, nil)
	}

	r.enter(StateNotifying)
	o.notify(r, payload)
	return r.succeed(msgDone, payload)
}

func (o *Orchestrator) assemble(r *run, resolvedURL, base string, results []scopeResult) (*domain.Payload, []repository.Entry, int) {
	payload := &domain.Payload{
		ResolvedURL: resolvedURL,
		Mount:       o.planner.Mount(),
		Root:        o.planner.Root(),
		Items:       []domain.ItemFiles{},
	}
	payload.Earliest, payload.Latest = r.rng.Applied()
	var (
		entries  []repository.Entry
		complete int
		now      = time.Now()
	)
	for _, res := range results {
		for _, it := range res.batch.Items {
			files := make([]domain.FileRef, 0, len(it.Files))
			for _, path := range it.Files {
				files = append(files, domain.FileRef{Path: path, URL: o.planner.URLFor(base, path)})
			}
			payload.Items = append(payload.Items, domain.ItemFiles{
				ID:       it.ItemID,
				Type:     it.Type,
				Complete: it.Complete,
				Files:    files,
			})
			if it.Complete {
				complete++
			}
			if len(it.Files) > 0 {
				entries = append(entries, repository.Entry{
					Platform:     r.target.Platform,
					ItemID:       it.ItemID,
					Type:         it.Type,
					Mode:         res.mode,
					Files:        it.Files,
					Complete:     it.Complete,
					DownloadedAt: now,
				})
			}
		}
	}
	return payload, entries, complete
}

// record stores history entries. Failures are logged only.
func (o *Orchestrator) record(ctx context.Context, r *run, entries []repository.Entry) {
	if o.history == nil || len(entries) == 0 {
		return
	}
	if err := o.history.Record(context.WithoutCancel(ctx), entries...); err != nil {
		r.logger.Error("failed to record download history", "entries", len(entries), "error", err)
	}
}

func (o *Orchestrator) notify(r *run, payload *domain.Payload) {
	if o.notifier == nil {
		return
	}
	o.notifier.Dispatch(domain.NotificationEvent{
		Event:       domain.EventDownloadCompleted,
		Platform:    r.target.Platform,
		Source:      r.source,
		ResolvedURL: payload.ResolvedURL,
		Mount:       payload.Mount,
		Root:        payload.Root,
		Items:       payload.Items,
		Params:      r.params,
		Earliest:    payload.Earliest,
		Latest:      payload.Latest,
		CreatedAt:   time.Now(),
	})
}
