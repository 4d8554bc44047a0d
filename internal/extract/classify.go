package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/veranemoloko/clip-downloader/internal/domain"
)

// Kind tags a classified payload.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindVideo
	KindImageSet
	KindLivePhoto
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindImageSet:
		return "image_set"
	case KindLivePhoto:
		return "live_photo"
	}
	return "unrecognized"
}

// Classified is one item payload after classification. Item is only
// meaningful when Kind is not KindUnrecognized; Reason explains rejections.
type Classified struct {
	Kind   Kind
	Item   domain.Item
	Reason string
}

func unrecognized(id, reason string) Classified {
	return Classified{Kind: KindUnrecognized, Item: domain.Item{ID: id}, Reason: reason}
}

// Classify decodes one raw item and assigns it a media type from its structural markers.
func Classify(raw json.RawMessage) Classified {
	var r rawItem
	if err := json.Unmarshal(raw, &r); err != nil {
		return unrecognized("", "decode: "+err.Error())
	}

	id := r.AwemeID
	if id == "" {
		id = r.ID
	}
	if id == "" {
		return unrecognized("", "missing id")
	}

	item := domain.Item{
		ID:          id,
		Title:       strings.TrimSpace(r.Desc),
		Nickname:    r.Author.Nickname,
		PublishTime: publishTime(r),
	}
	if r.MixInfo != nil {
		item.MixID, item.MixTitle = r.MixInfo.MixID, r.MixInfo.MixName
	} else if r.PlaylistID != "" {
		item.MixID = r.PlaylistID
	}

	images := r.Images
	if len(images) == 0 && r.ImagePost != nil {
		images = r.ImagePost.Images
	}

	// image posts may also carry a background-music video, so images win
	if len(images) > 0 {
		kind := KindImageSet
		item.Type = domain.ItemImageSet
		if hasClip(images) {
			kind = KindLivePhoto
			item.Type = domain.ItemLivePhoto
		}
		for _, img := range images {
			var u string
			var size int64
			if kind == KindLivePhoto {
				u, size = img.Video.asset()
			} else {
				u = img.url()
			}
			if u != "" {
				item.Downloads = append(item.Downloads, domain.Asset{URL: u, Size: size})
			}
		}
		if len(item.Downloads) == 0 {
			return unrecognized(id, "image post without urls")
		}
		return Classified{Kind: kind, Item: item}
	}

	if u, size := r.Video.asset(); u != "" {
		item.Type = domain.ItemVideo
		item.Downloads = []domain.Asset{{URL: u, Size: size}}
		return Classified{Kind: KindVideo, Item: item}
	}

	return unrecognized(id, "no media markers")
}

func hasClip(images []rawImage) bool {
	for _, img := range images {
		if u, _ := img.Video.asset(); u != "" {
			return true
		}
	}
	return false
}

func publishTime(r rawItem) time.Time {
	sec := int64(r.CreateTime)
	if sec == 0 {
		sec = int64(r.CreateTimeWeb)
	}
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
