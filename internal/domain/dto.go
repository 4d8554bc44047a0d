package domain

// Tab selects the account listing to page through.
type Tab string

const (
	TabPost     Tab = "post"
	TabFavorite Tab = "favorite"
)

// SearchChannel selects the search result type.
type SearchChannel string

const (
	SearchGeneral SearchChannel = "general"
	SearchVideo   SearchChannel = "video"
)

// Connection carries per-request session and network overrides.
type Connection struct {
	Cookie string `json:"cookie,omitempty"`
	Proxy  string `json:"proxy,omitempty" validate:"omitempty,proxy_url"`
}

// Paging holds pagination controls shared by listing requests.
type Paging struct {
	Cursor int64 `json:"cursor" validate:"gte=0"`
	Count  int   `json:"count" validate:"gte=0,lte=100"`
	Pages  int   `json:"pages" validate:"gte=0"`
}

// ShareRequest downloads whatever a share text points at: one or more works, or collections.
type ShareRequest struct {
	Text string `json:"text" validate:"required,share_text"`
	Mark string `json:"mark" validate:"max=128"`
	Paging
	Connection
}

// AccountRequest downloads an account's posts or favorites.
type AccountRequest struct {
	Text      string    `json:"text"`
	SecUserID string    `json:"sec_user_id" validate:"max=256"`
	Tab       Tab       `json:"tab" validate:"omitempty,oneof=post favorite"`
	Mark      string    `json:"mark" validate:"max=128"`
	Earliest  DateBound `json:"earliest"`
	Latest    DateBound `json:"latest"`
	Paging
	Connection
}

// MixRequest downloads a collection by its id, by the id of one of its works, or from a share text.
type MixRequest struct {
	MixID    string `json:"mix_id" validate:"required_without_all=DetailID Text"`
	DetailID string `json:"detail_id"`
	Text     string `json:"text"`
	Mark     string `json:"mark" validate:"max=128"`
	Paging
	Connection
}

// DetailRequest downloads individual works.
type DetailRequest struct {
	DetailIDs []string `json:"detail_ids" validate:"required_without=Text,max=50,dive,required,max=64"`
	Text      string   `json:"text"`
	Connection
}

// SearchRequest downloads works returned by a keyword search.
type SearchRequest struct {
	Keyword string        `json:"keyword" validate:"required,max=100"`
	Channel SearchChannel `json:"channel" validate:"omitempty,oneof=general video"`
	Paging
	Connection
}

// LiveRequest looks up a live room.
type LiveRequest struct {
	WebRID string `json:"web_rid" validate:"required_without=Text"`
	Text   string `json:"text"`
	Connection
}

// ResolveRequest expands a share text to its canonical URL.
type ResolveRequest struct {
	Text  string `json:"text" validate:"required,share_text"`
	Proxy string `json:"proxy" validate:"omitempty,proxy_url"`
}

type pageDefaults struct{ douyin, tiktok int }

func (d pageDefaults) For(p Platform) int {
	if p == PlatformTikTok {
		return d.tiktok
	}
	return d.douyin
}

var (
	shareCount    = pageDefaults{douyin: 12, tiktok: 30}
	favoriteCount = pageDefaults{douyin: 18, tiktok: 16}
	postCount     = pageDefaults{douyin: 18, tiktok: 16}
	mixCount      = pageDefaults{douyin: 12, tiktok: 30}
	searchCount   = pageDefaults{douyin: 10, tiktok: 12}
)

func (r *ShareRequest) ApplyDefaults(p Platform) {
	if r.Count <= 0 {
		r.Count = shareCount.For(p)
	}
}

func (r *AccountRequest) ApplyDefaults(p Platform) {
	if r.Tab == "" {
		r.Tab = TabPost
	}
	if r.Count <= 0 {
		if r.Tab == TabFavorite {
			r.Count = favoriteCount.For(p)
		} else {
			r.Count = postCount.For(p)
		}
	}
}

func (r *MixRequest) ApplyDefaults(p Platform) {
	if r.Count <= 0 {
		r.Count = mixCount.For(p)
	}
}

func (r *SearchRequest) ApplyDefaults(p Platform) {
	if r.Channel == "" {
		r.Channel = SearchGeneral
	}
	if r.Count <= 0 {
		r.Count = searchCount.For(p)
	}
}

// Range returns the publish-time filter of the request.
func (r *AccountRequest) Range() TimeRange {
	return TimeRange{Earliest: r.Earliest, Latest: r.Latest}
}
