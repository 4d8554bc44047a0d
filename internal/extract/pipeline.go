// Package extract turns raw platform responses into normalized items.
package extract

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/metrics"
)

// Options scope one extraction.
type Options struct {
	Platform domain.Platform
	Mode     domain.Mode
	Range    domain.TimeRange
}

// Stats counts what happened to the raw input during one pass.
type Stats struct {
	Pages          int
	MalformedPages int
	Rejected       int
	Filtered       int
	Duplicates     int
	Retained       int
}

// Partial reports whether some raw pages contributed nothing because they were unusable.
func (s Stats) Partial() bool { return s.MalformedPages > 0 }

type Pipeline struct {
	logger *slog.Logger
}

func NewPipeline(logger *slog.Logger) *Pipeline {
	return &Pipeline{logger: logger.With("component", "extract")}
}

// Result is a lazy, restartable view over a set of raw responses.
type Result struct {
	p    *Pipeline
	raw  [][]byte
	opts Options
}

// Extract prepares an item sequence over raw; nothing is parsed until iteration.
func (p *Pipeline) Extract(raw [][]byte, opts Options) *Result {
	return &Result{p: p, raw: raw, opts: opts}
}

// Items yields retained items in upstream order. Each call re-parses the same raw input.
func (r *Result) Items() iter.Seq[domain.Item] {
	return r.walk(nil)
}

// Collect runs one pass and returns the retained items with statistics.
func (r *Result) Collect() ([]domain.Item, Stats) {
	var stats Stats
	items := []domain.Item{}
	for item := range r.walk(&stats) {
		items = append(items, item)
	}

	if stats.Rejected > 0 {
		metrics.ItemsRejected.Add(float64(stats.Rejected))
	}
	r.p.logger.Debug("extraction finished",
		"platform", r.opts.Platform,
		"mode", r.opts.Mode,
		"pages", stats.Pages,
		"malformed_pages", stats.MalformedPages,
		"retained", stats.Retained,
		"filtered", stats.Filtered,
		"rejected", stats.Rejected,
	)
	return items, stats
}

func (r *Result) walk(stats *Stats) iter.Seq[domain.Item] {
	if stats == nil {
		stats = &Stats{}
	}
	return func(yield func(domain.Item) bool) {
		*stats = Stats{}
		seen := make(map[string]struct{})

		for n, page := range r.raw {
			stats.Pages++
			raws, err := decodePage(page)
			if err != nil {
				stats.MalformedPages++
				r.p.logger.Warn("skipping unusable page", "page", n, "mode", r.opts.Mode, "error", err)
				continue
			}

			for _, raw := range raws {
				c := Classify(raw)
				if c.Kind == KindUnrecognized {
					stats.Rejected++
					r.p.logger.Warn("dropping unrecognized item", "item_id", c.Item.ID, "reason", c.Reason)
					continue
				}
				if !r.opts.Range.Contains(c.Item.PublishTime) {
					stats.Filtered++
					continue
				}
				if _, dup := seen[c.Item.ID]; dup {
					stats.Duplicates++
					continue
				}
				seen[c.Item.ID] = struct{}{}
				stats.Retained++

				if !yield(c.Item) {
					return
				}
			}
		}
	}
}

func decodePage(raw []byte) ([]json.RawMessage, error) {
	var page rawPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", errpkg.ErrMalformedPayload, err)
	}
	if code, msg := page.status(); code != 0 {
		return nil, &errpkg.UpstreamError{Op: "decode page", Code: code, Message: msg}
	}
	return page.items(), nil
}
