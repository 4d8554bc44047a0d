package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
)

// PageFunc fetches one listing page starting at cursor.
type PageFunc func(ctx context.Context, cursor int64, count int) ([]byte, error)

// StopReason records why pagination ended.
type StopReason string

const (
	StopExhausted   StopReason = "exhausted"
	StopPageCap     StopReason = "page_cap"
	StopEarliest    StopReason = "earliest"
	StopCursorStall StopReason = "cursor_stall"
	StopError       StopReason = "error"
	StopCancelled   StopReason = "cancelled"
)

type PageOptions struct {
	Cursor int64
	Count  int
	// Pages caps the number of pages requested; 0 means until exhausted.
	Pages int
	// MaxPages is a hard ceiling applied regardless of Pages.
	MaxPages int
	// StopBefore ends the scan after a page whose items are all older than it.
	// It relies on the listing being newest first. Zero disables it.
	StopBefore time.Time
}

// Pages is the raw outcome of a paginated scan. Err is set when a page could not
// be fetched or decoded; pages collected before it are kept.
type Pages struct {
	Raw  [][]byte
	Stop StopReason
	Err  error
}

func (p Pages) Partial() bool { return p.Err != nil && len(p.Raw) > 0 }

// Paginate walks a listing until a stop condition is met.
func (p *Pipeline) Paginate(ctx context.Context, fetch PageFunc, opts PageOptions) Pages {
	limit := opts.Pages
	if opts.MaxPages > 0 && (limit <= 0 || limit > opts.MaxPages) {
		limit = opts.MaxPages
	}

	var out Pages
	cursor := opts.Cursor
	for n := 0; limit <= 0 || n < limit; n++ {
		if err := ctx.Err(); err != nil {
			out.Stop, out.Err = StopCancelled, err
			return out
		}

		raw, err := fetch(ctx, cursor, opts.Count)
		if err != nil {
			p.logger.Warn("page fetch failed", "page", n, "cursor", cursor, "error", err)
			out.Stop, out.Err = StopError, err
			return out
		}

		var page rawPage
		if err := json.Unmarshal(raw, &page); err != nil {
			p.logger.Warn("malformed page", "page", n, "cursor", cursor, "error", err)
			out.Stop, out.Err = StopError, fmt.Errorf("page %d: %w", n, errpkg.ErrMalformedPayload)
			return out
		}
		if code, msg := page.status(); code != 0 {
			out.Stop, out.Err = StopError, &errpkg.UpstreamError{Op: "listing page", Code: code, Message: msg}
			return out
		}
		out.Raw = append(out.Raw, raw)

		if !page.hasMore() {
			out.Stop = StopExhausted
			return out
		}
		if !opts.StopBefore.IsZero() && allOlder(page.items(), opts.StopBefore) {
			p.logger.Info("stopping scan at items older than range", "page", n, "before", opts.StopBefore)
			out.Stop = StopEarliest
			return out
		}

		next := page.nextCursor()
		if next == cursor {
			out.Stop = StopCursorStall
			return out
		}
		cursor = next
	}

	out.Stop = StopPageCap
	return out
}

func allOlder(raws []json.RawMessage, before time.Time) bool {
	dated := 0
	for _, raw := range raws {
		c := Classify(raw)
		if c.Kind == KindUnrecognized || c.Item.PublishTime.IsZero() {
			continue
		}
		dated++
		if !c.Item.PublishTime.Before(before) {
			return false
		}
	}
	return dated > 0
}
