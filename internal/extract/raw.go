package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexInt decodes numbers that upstream sometimes sends as strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexBool decodes true/false, 0/1 and their string forms.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.Trim(bytes.TrimSpace(data), `"`)) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

type rawAddr struct {
	URLList  []string `json:"url_list"`
	DataSize int64    `json:"data_size"`
}

func (a *rawAddr) first() string {
	if a == nil {
		return ""
	}
	for _, u := range a.URLList {
		if u != "" {
			return u
		}
	}
	return ""
}

type rawVideo struct {
	PlayAddr *rawAddr `json:"play_addr"`
	// web API fields
	PlayAddrWeb     string  `json:"playAddr"`
	DownloadAddrWeb string  `json:"downloadAddr"`
	Size            flexInt `json:"size"`
}

func (v *rawVideo) asset() (string, int64) {
	if v == nil {
		return "", 0
	}
	if u := v.PlayAddr.first(); u != "" {
		return u, v.PlayAddr.DataSize
	}
	if v.DownloadAddrWeb != "" {
		return v.DownloadAddrWeb, int64(v.Size)
	}
	return v.PlayAddrWeb, int64(v.Size)
}

type rawImage struct {
	URLList []string  `json:"url_list"`
	Video   *rawVideo `json:"video"`
	// web API image post
	ImageURL *struct {
		URLList []string `json:"urlList"`
	} `json:"imageURL"`
}

func (i rawImage) url() string {
	for _, u := range i.URLList {
		if u != "" {
			return u
		}
	}
	if i.ImageURL != nil {
		for _, u := range i.ImageURL.URLList {
			if u != "" {
				return u
			}
		}
	}
	return ""
}

type rawAuthor struct {
	Nickname  string `json:"nickname"`
	SecUID    string `json:"sec_uid"`
	SecUIDWeb string `json:"secUid"`
}

type rawMixInfo struct {
	MixID   string `json:"mix_id"`
	MixName string `json:"mix_name"`
}

// rawItem is the union of the app-style and web-style item payloads.
type rawItem struct {
	AwemeID       string     `json:"aweme_id"`
	ID            string     `json:"id"`
	Desc          string     `json:"desc"`
	CreateTime    flexInt    `json:"create_time"`
	CreateTimeWeb flexInt    `json:"createTime"`
	Author        rawAuthor  `json:"author"`
	Video         *rawVideo  `json:"video"`
	Images        []rawImage `json:"images"`
	ImagePost     *struct {
		Images []rawImage `json:"images"`
	} `json:"imagePost"`
	MixInfo    *rawMixInfo `json:"mix_info"`
	PlaylistID string      `json:"playlistId"`
}

// rawPage is the envelope of a detail, listing or search response.
type rawPage struct {
	StatusCode    *int   `json:"status_code"`
	StatusCodeWeb *int   `json:"statusCode"`
	StatusMsg     string `json:"status_msg"`
	StatusMsgWeb  string `json:"statusMsg"`

	AwemeDetail json.RawMessage `json:"aweme_detail"`
	ItemInfo    *struct {
		ItemStruct json.RawMessage `json:"itemStruct"`
	} `json:"itemInfo"`
	AwemeList []json.RawMessage `json:"aweme_list"`
	ItemList  []json.RawMessage `json:"itemList"`
	Data      json.RawMessage   `json:"data"`

	HasMore    flexBool `json:"has_more"`
	HasMoreWeb flexBool `json:"hasMore"`
	MaxCursor  flexInt  `json:"max_cursor"`
	Cursor     flexInt  `json:"cursor"`
}

type rawSearchEntry struct {
	AwemeInfo json.RawMessage `json:"aweme_info"`
	Item      json.RawMessage `json:"item"`
}

func (p *rawPage) status() (int, string) {
	switch {
	case p.StatusCode != nil && *p.StatusCode != 0:
		return *p.StatusCode, p.StatusMsg
	case p.StatusCodeWeb != nil && *p.StatusCodeWeb != 0:
		return *p.StatusCodeWeb, p.StatusMsgWeb
	}
	return 0, ""
}

func (p *rawPage) hasMore() bool { return bool(p.HasMore) || bool(p.HasMoreWeb) }

func (p *rawPage) nextCursor() int64 {
	if p.MaxCursor != 0 {
		return int64(p.MaxCursor)
	}
	return int64(p.Cursor)
}

// items returns the raw item payloads of the page in upstream order.
func (p *rawPage) items() []json.RawMessage {
	var out []json.RawMessage
	if len(p.AwemeDetail) > 0 && string(p.AwemeDetail) != "null" {
		out = append(out, p.AwemeDetail)
	}
	if p.ItemInfo != nil && len(p.ItemInfo.ItemStruct) > 0 {
		out = append(out, p.ItemInfo.ItemStruct)
	}
	out = append(out, p.AwemeList...)
	out = append(out, p.ItemList...)

	if d := bytes.TrimSpace(p.Data); len(d) > 0 && d[0] == '[' {
		var entries []rawSearchEntry
		if err := json.Unmarshal(d, &entries); err == nil {
			for _, e := range entries {
				switch {
				case len(e.AwemeInfo) > 0:
					out = append(out, e.AwemeInfo)
				case len(e.Item) > 0:
					out = append(out, e.Item)
				}
			}
		}
	}
	return out
}
