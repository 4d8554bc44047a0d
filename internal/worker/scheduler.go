package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/metrics"
	"github.com/veranemoloko/clip-downloader/internal/storage"
	"github.com/veranemoloko/clip-downloader/internal/transport"
)

// AssetStatus is the per-file outcome of a batch.
type AssetStatus string

const (
	AssetFetched   AssetStatus = "fetched"
	AssetSkipped   AssetStatus = "skipped"
	AssetFailed    AssetStatus = "failed"
	AssetCancelled AssetStatus = "cancelled"
)

// Unit is an item together with its planned files.
type Unit struct {
	Item domain.Item
	Plan domain.FilePlan
}

type RunOptions struct {
	Platform domain.Platform
	Mode     domain.Mode
	Proxy    string
}

type AssetResult struct {
	Path   string
	Status AssetStatus
	Err    error
}

func (r AssetResult) ok() bool { return r.Status == AssetFetched || r.Status == AssetSkipped }

// ItemResult reports one item. Complete holds only when every asset is on disk.
type ItemResult struct {
	ItemID   string
	Type     domain.ItemType
	Complete bool
	Files    []string
	Assets   []AssetResult
}

type BatchResult struct {
	Items     []ItemResult
	Fetched   int
	Skipped   int
	Failed    int
	Cancelled int
}

func (b BatchResult) CompleteCount() int {
	n := 0
	for _, it := range b.Items {
		if it.Complete {
			n++
		}
	}
	return n
}

// ProgressFunc is called after each asset settles.
type ProgressFunc func(done, total int)

type Config struct {
	Workers int
	Retries int
	Retry   transport.RetryPolicy
	// Timeout bounds a single fetch attempt.
	Timeout time.Duration
}

// FetchScheduler materializes assets on disk with bounded concurrency.
type FetchScheduler struct {
	storage  *storage.FileStorage
	fetcher  Fetcher
	cfg      Config
	inflight singleflight.Group
	progress ProgressFunc
	logger   *slog.Logger
}

func NewFetchScheduler(st *storage.FileStorage, fetcher Fetcher, cfg Config, logger *slog.Logger) *FetchScheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &FetchScheduler{
		storage: st,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
	}
}

// SetProgress installs a progress callback. It must be called before Run.
func (s *FetchScheduler) SetProgress(fn ProgressFunc) { s.progress = fn }

type job struct {
	unit, file int
	f          domain.PlannedFile
}

// Run fetches every planned file of units. Cancelling ctx stops scheduling new
// assets; assets already being fetched run to completion.
func (s *FetchScheduler) Run(ctx context.Context, units []Unit, opts RunOptions) BatchResult {
	results := make([][]AssetResult, len(units))
	var jobs []job
	for i, u := range units {
		results[i] = make([]AssetResult, len(u.Plan.Files))
		for j, f := range u.Plan.Files {
			results[i][j] = AssetResult{Path: f.FinalPath, Status: AssetCancelled}
			jobs = append(jobs, job{unit: i, file: j, f: f})
		}
	}

	drain := context.WithoutCancel(ctx)
	total := len(jobs)
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)

	for _, jb := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[jb.unit][jb.file] = s.fetchAsset(drain, jb.f, opts)
			if s.progress != nil {
				s.progress(int(done.Add(1)), total)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.removeTempDirs(units)

	var batch BatchResult
	for i, u := range units {
		item := ItemResult{
			ItemID:   u.Item.ID,
			Type:     u.Item.Type,
			Assets:   results[i],
			Complete: len(results[i]) > 0,
		}
		for _, r := range results[i] {
			switch r.Status {
			case AssetFetched:
				batch.Fetched++
			case AssetSkipped:
				batch.Skipped++
			case AssetFailed:
				batch.Failed++
			case AssetCancelled:
				batch.Cancelled++
			}
			if r.ok() {
				item.Files = append(item.Files, r.Path)
			} else {
				item.Complete = false
			}
		}
		batch.Items = append(batch.Items, item)
	}

	if ctx.Err() != nil {
		s.logger.Info("batch interrupted",
			"platform", opts.Platform,
			"mode", opts.Mode,
			"cancelled", batch.Cancelled,
		)
	}
	return batch
}

// removeTempDirs drops the per-item temp directories left empty by committed assets.
func (s *FetchScheduler) removeTempDirs(units []Unit) {
	for _, u := range units {
		if len(u.Plan.Files) == 0 || u.Plan.Files[0].TempPath == "" {
			continue
		}
		dir := filepath.Dir(u.Plan.Files[0].TempPath)
		if err := s.storage.RemoveEmptyDir(dir); err != nil {
			s.logger.Debug("temp dir kept", "dir", dir, "error", err)
		}
	}
}

func (s *FetchScheduler) fetchAsset(ctx context.Context, f domain.PlannedFile, opts RunOptions) AssetResult {
	res := AssetResult{Path: f.FinalPath}
	log := s.logger.With(slog.String("path", f.FinalPath))

	if !f.Inside() {
		log.Warn("refusing to write outside storage root")
		metrics.AssetsFailed.WithLabelValues("outside_root").Inc()
		res.Status, res.Err = AssetFailed, errpkg.ErrPathOutsideRoot
		return res
	}
	if s.storage.IsComplete(f.FinalPath, f.Asset.Size) {
		metrics.AssetsSkipped.Inc()
		res.Status = AssetSkipped
		return res
	}

	v, err, _ := s.inflight.Do(f.FinalPath, func() (any, error) {
		if s.storage.IsComplete(f.FinalPath, f.Asset.Size) {
			return AssetSkipped, nil
		}
		return AssetFetched, s.download(ctx, f, opts, log)
	})
	if err != nil {
		kind := "permanent"
		if errpkg.IsTransient(err) {
			kind = "transient"
		}
		metrics.AssetsFailed.WithLabelValues(kind).Inc()
		log.Error("asset failed", "url", f.Asset.URL, "error", err)
		res.Status, res.Err = AssetFailed, err
		return res
	}

	res.Status = v.(AssetStatus)
	if res.Status == AssetSkipped {
		metrics.AssetsSkipped.Inc()
	} else {
		metrics.AssetsFetched.Inc()
	}
	return res
}

func (s *FetchScheduler) download(ctx context.Context, f domain.PlannedFile, opts RunOptions, log *slog.Logger) error {
	start := time.Now()
	tmp := fmt.Sprintf("%s.%s.part", f.TempPath, uuid.NewString())
	defer func() { _ = s.storage.Remove(tmp) }()

	file, err := s.storage.CreateTemp(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	var written int64
	var lastErr error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 0 {
			metrics.FetchRetries.Inc()
			delay := s.cfg.Retry.Delay(attempt)
			log.Warn("retrying asset",
				"attempt", attempt,
				"delay", delay,
				"bytes", written,
				"error", lastErr,
			)
			if err := transport.Sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		written, lastErr = s.fetcher.Fetch(callCtx, f.Asset, file, written, opts)
		cancel()
		if lastErr == nil || !errpkg.IsTransient(lastErr) {
			break
		}
	}

	closeErr := file.Close()
	if lastErr != nil {
		return lastErr
	}
	if closeErr != nil {
		return fmt.Errorf("close temp file: %w", closeErr)
	}
	if !s.storage.IsComplete(tmp, f.Asset.Size) {
		return &errpkg.FetchError{URL: f.Asset.URL, Err: errpkg.ErrIncompleteAsset}
	}
	if err := s.storage.Commit(tmp, f.FinalPath); err != nil {
		return err
	}

	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	log.Debug("asset committed", "bytes", written, "duration", time.Since(start))
	return nil
}

// Failures returns the errors of failed assets in the batch.
func (b BatchResult) Failures() []error {
	var errs []error
	for _, it := range b.Items {
		for _, a := range it.Assets {
			if a.Status == AssetFailed && a.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", it.ItemID, a.Err))
			}
		}
	}
	return errs
}

// Err joins all asset failures, or returns nil.
func (b BatchResult) Err() error { return errors.Join(b.Failures()...) }
