package repository

import (
	"context"
	"time"

	"github.com/veranemoloko/clip-downloader/internal/domain"
)

// Entry records the files materialized for one item.
type Entry struct {
	Platform     domain.Platform `json:"platform"`
	ItemID       string          `json:"item_id"`
	Type         domain.ItemType `json:"type"`
	Mode         domain.Mode     `json:"mode"`
	Files        []string        `json:"files"`
	Complete     bool            `json:"complete"`
	DownloadedAt time.Time       `json:"downloaded_at"`
}

// HistoryRepo defines the interface for download history storage.
type HistoryRepo interface {
	Record(ctx context.Context, entries ...Entry) error
	Get(ctx context.Context, platform domain.Platform, itemID string) (*Entry, error)
}

func key(p domain.Platform, itemID string) string { return string(p) + ":" + itemID }
