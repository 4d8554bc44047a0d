package domain

import (
	"fmt"
	"time"
)

// Platform identifies the upstream short-video service.
type Platform string

const (
	PlatformDouyin Platform = "douyin"
	PlatformTikTok Platform = "tiktok"
)

// ParsePlatform maps a route segment to a Platform.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(s) {
	case PlatformDouyin, PlatformTikTok:
		return Platform(s), true
	}
	return "", false
}

// ItemType determines the local file-name pattern and count of an item.
type ItemType string

const (
	ItemVideo     ItemType = "video"
	ItemImageSet  ItemType = "image_set"
	ItemLivePhoto ItemType = "live_photo"
)

// Mode is the top-level storage folder a download lands in.
type Mode string

const (
	ModeDetail   Mode = "detail"
	ModeMix      Mode = "mix"
	ModeFavorite Mode = "favorite"
	ModeAccount  Mode = "account"
	ModeSearch   Mode = "search"
	ModeLive     Mode = "live"
)

// Asset is one remote media file belonging to an item.
type Asset struct {
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
}

// Item is a single downloadable work.
type Item struct {
	ID          string    `json:"id"`
	Type        ItemType  `json:"type"`
	Downloads   []Asset   `json:"downloads"`
	PublishTime time.Time `json:"publish_time"`
	Title       string    `json:"title,omitempty"`
	Nickname    string    `json:"nickname,omitempty"`
	MixID       string    `json:"mix_id,omitempty"`
	MixTitle    string    `json:"mix_title,omitempty"`
}

// FileNames returns the expected local file names for the item, in download order.
func (i Item) FileNames(name string) []string {
	switch i.Type {
	case ItemVideo:
		return []string{name + ".mp4"}
	case ItemImageSet:
		names := make([]string, len(i.Downloads))
		for n := range i.Downloads {
			names[n] = fmt.Sprintf("%s_%d.jpeg", name, n+1)
		}
		return names
	case ItemLivePhoto:
		names := make([]string, len(i.Downloads))
		for n := range i.Downloads {
			names[n] = fmt.Sprintf("%s_%d.mp4", name, n+1)
		}
		return names
	}
	return nil
}

// PlannedFile is one predicted asset location.
type PlannedFile struct {
	Asset     Asset
	TempPath  string
	FinalPath string
	// URL is nil when FinalPath is not under the storage root.
	URL *string
}

// Inside reports whether the file may be written.
func (f PlannedFile) Inside() bool { return f.URL != nil }

// FilePlan is the predicted layout of one item.
type FilePlan struct {
	ItemID string
	Name   string
	Files  []PlannedFile
}
