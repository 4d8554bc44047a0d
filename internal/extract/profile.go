package extract

import (
	"encoding/json"
	"fmt"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
)

type rawProfile struct {
	User *struct {
		Nickname string `json:"nickname"`
	} `json:"user"`
	UserInfo *struct {
		User struct {
			Nickname string `json:"nickname"`
		} `json:"user"`
	} `json:"userInfo"`
}

// Nickname reads the display name from a user profile response.
func Nickname(raw []byte) (string, error) {
	var p rawProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("%w: %v", errpkg.ErrMalformedPayload, err)
	}
	switch {
	case p.User != nil && p.User.Nickname != "":
		return p.User.Nickname, nil
	case p.UserInfo != nil && p.UserInfo.User.Nickname != "":
		return p.UserInfo.User.Nickname, nil
	}
	return "", errpkg.ErrNotFound
}

type rawStreamURL struct {
	FlvPullURL    map[string]string `json:"flv_pull_url"`
	HlsPullURLMap map[string]string `json:"hls_pull_url_map"`
}

type rawRoom struct {
	IDStr     string        `json:"id_str"`
	Title     string        `json:"title"`
	Status    int           `json:"status"`
	StreamURL *rawStreamURL `json:"stream_url"`
}

type rawLive struct {
	Data struct {
		Data     []rawRoom `json:"data"`
		LiveRoom *struct {
			Title     string        `json:"title"`
			Status    int           `json:"status"`
			StreamURL *rawStreamURL `json:"stream_url"`
		} `json:"liveRoom"`
		User struct {
			Nickname string `json:"nickname"`
			RoomID   string `json:"roomId"`
		} `json:"user"`
	} `json:"data"`
}

// LiveRoom reads room metadata and pull stream URLs from a live lookup response.
func LiveRoom(raw []byte) (domain.LiveRoom, error) {
	var l rawLive
	if err := json.Unmarshal(raw, &l); err != nil {
		return domain.LiveRoom{}, fmt.Errorf("%w: %v", errpkg.ErrMalformedPayload, err)
	}

	room := domain.LiveRoom{Nickname: l.Data.User.Nickname}
	var streams *rawStreamURL
	switch {
	case len(l.Data.Data) > 0:
		r := l.Data.Data[0]
		room.RoomID, room.Title, room.Status, streams = r.IDStr, r.Title, r.Status, r.StreamURL
	case l.Data.LiveRoom != nil:
		r := l.Data.LiveRoom
		room.RoomID, room.Title, room.Status, streams = l.Data.User.RoomID, r.Title, r.Status, r.StreamURL
	default:
		return domain.LiveRoom{}, errpkg.ErrNotFound
	}
	if streams != nil {
		room.FlvURLs, room.HlsURLs = streams.FlvPullURL, streams.HlsPullURLMap
	}
	return room, nil
}
