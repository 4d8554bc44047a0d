package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func videoJSON(id string, created int64) string {
	return fmt.Sprintf(`{"aweme_id":%q,"desc":"clip %s","create_time":%d,"author":{"nickname":"bob"},
		"video":{"play_addr":{"url_list":["https://cdn.example/%s.mp4"],"data_size":2048}}}`, id, id, created, id)
}

func page(hasMore int, cursor int64, items ...string) []byte {
	list := "["
	for i, it := range items {
		if i > 0 {
			list += ","
		}
		list += it
	}
	list += "]"
	return []byte(fmt.Sprintf(`{"status_code":0,"aweme_list":%s,"has_more":%d,"max_cursor":%d}`, list, hasMore, cursor))
}

func TestClassify_Variants(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantKind   Kind
		wantAssets int
	}{
		{
			name:       "douyin video",
			raw:        videoJSON("1", 1700000000),
			wantKind:   KindVideo,
			wantAssets: 1,
		},
		{
			name: "douyin image set with music video",
			raw: `{"aweme_id":"2","images":[{"url_list":["https://i/1.jpeg"]},{"url_list":["","https://i/2.jpeg"]}],
				"video":{"play_addr":{"url_list":["https://music.mp4"]}}}`,
			wantKind:   KindImageSet,
			wantAssets: 2,
		},
		{
			name: "douyin live photo",
			raw: `{"aweme_id":"3","images":[
				{"url_list":["https://i/1.jpeg"],"video":{"play_addr":{"url_list":["https://v/1.mp4"]}}},
				{"url_list":["https://i/2.jpeg"],"video":{"play_addr":{"url_list":["https://v/2.mp4"]}}}]}`,
			wantKind:   KindLivePhoto,
			wantAssets: 2,
		},
		{
			name:       "web video",
			raw:        `{"id":"4","createTime":"1700000000","video":{"playAddr":"https://v/4","downloadAddr":"https://d/4","size":"99"}}`,
			wantKind:   KindVideo,
			wantAssets: 1,
		},
		{
			name:       "web image post",
			raw:        `{"id":"5","imagePost":{"images":[{"imageURL":{"urlList":["https://i/5"]}}]}}`,
			wantKind:   KindImageSet,
			wantAssets: 1,
		},
		{name: "no media", raw: `{"aweme_id":"6","desc":"text only"}`, wantKind: KindUnrecognized},
		{name: "no id", raw: `{"video":{"play_addr":{"url_list":["https://v"]}}}`, wantKind: KindUnrecognized},
		{name: "not json object", raw: `[1,2]`, wantKind: KindUnrecognized},
		{name: "images without urls", raw: `{"aweme_id":"7","images":[{"url_list":[]}]}`, wantKind: KindUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(json.RawMessage(tt.raw))
			assert.Equal(t, tt.wantKind, c.Kind, c.Reason)
			if tt.wantKind == KindUnrecognized {
				assert.NotEmpty(t, c.Reason)
				return
			}
			assert.Len(t, c.Item.Downloads, tt.wantAssets)
			assert.Equal(t, tt.wantKind.String(), string(c.Item.Type))
		})
	}
}

func TestClassify_Fields(t *testing.T) {
	c := Classify(json.RawMessage(`{"aweme_id":"1","desc":" hi ","create_time":1700000000,"author":{"nickname":"bob"},
		"mix_info":{"mix_id":"m1","mix_name":"Trip"},"video":{"play_addr":{"url_list":["https://v"],"data_size":10}}}`))

	require.Equal(t, KindVideo, c.Kind)
	assert.Equal(t, "hi", c.Item.Title)
	assert.Equal(t, "bob", c.Item.Nickname)
	assert.Equal(t, time.Unix(1700000000, 0), c.Item.PublishTime)
	assert.Equal(t, "m1", c.Item.MixID)
	assert.Equal(t, "Trip", c.Item.MixTitle)
	assert.Equal(t, int64(10), c.Item.Downloads[0].Size)

	web := Classify(json.RawMessage(`{"id":"4","video":{"downloadAddr":"https://d/4","size":99}}`))
	assert.Equal(t, domain.Asset{URL: "https://d/4", Size: 99}, web.Item.Downloads[0])
}

func TestExtract_DateFilterBoundaries(t *testing.T) {
	p := NewPipeline(newTestLogger())
	const earliest, latest = 1_700_000_000, 1_700_086_400

	raw := [][]byte{page(0, 0,
		videoJSON("at-earliest", earliest),
		videoJSON("before", earliest-1),
		videoJSON("at-latest", latest),
		videoJSON("after", latest+1),
		videoJSON("middle", earliest+100),
	)}
	rng := domain.TimeRange{Earliest: domain.EpochBound(earliest), Latest: domain.EpochBound(latest)}

	items, stats := p.Extract(raw, Options{Range: rng}).Collect()

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"at-earliest", "at-latest", "middle"}, ids)
	assert.Equal(t, 2, stats.Filtered)
	assert.Equal(t, 3, stats.Retained)
}

func TestExtract_MalformedPageIsPartial(t *testing.T) {
	p := NewPipeline(newTestLogger())
	raw := [][]byte{
		page(1, 10, videoJSON("1", 1)),
		[]byte(`{"aweme_list": [`),
		[]byte(`{"status_code": 8, "status_msg": "login required"}`),
		page(0, 0, videoJSON("2", 2), `{"aweme_id":"x"}`),
	}

	items, stats := p.Extract(raw, Options{}).Collect()

	assert.Len(t, items, 2)
	assert.Equal(t, 2, stats.MalformedPages)
	assert.Equal(t, 1, stats.Rejected)
	assert.True(t, stats.Partial())
}

func TestExtract_DeduplicatesAndRestarts(t *testing.T) {
	p := NewPipeline(newTestLogger())
	res := p.Extract([][]byte{page(1, 1, videoJSON("1", 1)), page(0, 0, videoJSON("1", 1), videoJSON("2", 2))}, Options{})

	count := func() int {
		n := 0
		for range res.Items() {
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count(), "sequence can be iterated again")

	_, stats := res.Collect()
	assert.Equal(t, 1, stats.Duplicates)
}

func TestExtract_DetailAndSearchShapes(t *testing.T) {
	p := NewPipeline(newTestLogger())
	detail := []byte(`{"status_code":0,"aweme_detail":` + videoJSON("d1", 5) + `}`)
	webDetail := []byte(`{"statusCode":0,"itemInfo":{"itemStruct":{"id":"w1","video":{"playAddr":"https://v"}}}}`)
	search := []byte(`{"status_code":0,"data":[{"aweme_info":` + videoJSON("s1", 5) + `},{"type":99}],"has_more":0}`)

	items, _ := p.Extract([][]byte{detail, webDetail, search}, Options{}).Collect()
	require.Len(t, items, 3)
	assert.Equal(t, "d1", items[0].ID)
	assert.Equal(t, "w1", items[1].ID)
	assert.Equal(t, "s1", items[2].ID)
}

type fakePages struct {
	pages   map[int64][]byte
	calls   []int64
	failAt  int64
	failErr error
}

func (f *fakePages) fetch(_ context.Context, cursor int64, _ int) ([]byte, error) {
	f.calls = append(f.calls, cursor)
	if f.failErr != nil && cursor == f.failAt {
		return nil, f.failErr
	}
	raw, ok := f.pages[cursor]
	if !ok {
		return nil, errors.New("unexpected cursor")
	}
	return raw, nil
}

func TestPaginate_StopsWhenExhausted(t *testing.T) {
	p := NewPipeline(newTestLogger())
	f := &fakePages{pages: map[int64][]byte{
		0:  page(1, 10, videoJSON("1", 1)),
		10: page(1, 20, videoJSON("2", 2)),
		20: page(0, 0, videoJSON("3", 3)),
	}}

	out := p.Paginate(context.Background(), f.fetch, PageOptions{Count: 1})

	assert.Equal(t, StopExhausted, out.Stop)
	assert.NoError(t, out.Err)
	assert.Len(t, out.Raw, 3)
	assert.Equal(t, []int64{0, 10, 20}, f.calls)
}

func TestPaginate_PageCap(t *testing.T) {
	p := NewPipeline(newTestLogger())
	f := &fakePages{pages: map[int64][]byte{
		0:  page(1, 10, videoJSON("1", 1)),
		10: page(1, 20, videoJSON("2", 2)),
	}}

	out := p.Paginate(context.Background(), f.fetch, PageOptions{Pages: 2})
	assert.Equal(t, StopPageCap, out.Stop)
	assert.Len(t, out.Raw, 2)

	f.calls = nil
	out = p.Paginate(context.Background(), f.fetch, PageOptions{Pages: 5, MaxPages: 1})
	assert.Len(t, out.Raw, 1, "hard ceiling wins")
}

func TestPaginate_EarlyStopBeforeEarliest(t *testing.T) {
	p := NewPipeline(newTestLogger())
	f := &fakePages{pages: map[int64][]byte{
		0:  page(1, 10, videoJSON("new", 2000), videoJSON("old", 500)),
		10: page(1, 20, videoJSON("older", 400), videoJSON("oldest", 300)),
		20: page(0, 0, videoJSON("never", 100)),
	}}

	out := p.Paginate(context.Background(), f.fetch, PageOptions{StopBefore: time.Unix(1000, 0)})

	assert.Equal(t, StopEarliest, out.Stop)
	assert.Equal(t, []int64{0, 10}, f.calls)
}

func TestPaginate_FailureKeepsEarlierPages(t *testing.T) {
	p := NewPipeline(newTestLogger())
	f := &fakePages{
		pages:   map[int64][]byte{0: page(1, 10, videoJSON("1", 1))},
		failAt:  10,
		failErr: &errpkg.TransportError{Op: "account page", Err: io.ErrUnexpectedEOF},
	}

	out := p.Paginate(context.Background(), f.fetch, PageOptions{})

	assert.Equal(t, StopError, out.Stop)
	assert.True(t, out.Partial())
	assert.Len(t, out.Raw, 1)
}

func TestPaginate_MalformedAndSentinel(t *testing.T) {
	p := NewPipeline(newTestLogger())

	bad := &fakePages{pages: map[int64][]byte{0: []byte(`<html>`)}}
	out := p.Paginate(context.Background(), bad.fetch, PageOptions{})
	assert.ErrorIs(t, out.Err, errpkg.ErrMalformedPayload)
	assert.False(t, out.Partial())

	sentinel := &fakePages{pages: map[int64][]byte{0: []byte(`{"status_code":2053,"status_msg":"private"}`)}}
	out = p.Paginate(context.Background(), sentinel.fetch, PageOptions{})
	var ue *errpkg.UpstreamError
	assert.ErrorAs(t, out.Err, &ue)
	assert.Equal(t, 2053, ue.Code)
}

func TestPaginate_CursorStallAndCancel(t *testing.T) {
	p := NewPipeline(newTestLogger())
	f := &fakePages{pages: map[int64][]byte{5: page(1, 5, videoJSON("1", 1))}}

	out := p.Paginate(context.Background(), f.fetch, PageOptions{Cursor: 5})
	assert.Equal(t, StopCursorStall, out.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out = p.Paginate(ctx, f.fetch, PageOptions{Cursor: 5})
	assert.Equal(t, StopCancelled, out.Stop)
}

func TestNicknameAndLiveRoom(t *testing.T) {
	name, err := Nickname([]byte(`{"user":{"nickname":"alice"}}`))
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	name, err = Nickname([]byte(`{"userInfo":{"user":{"nickname":"bob"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	_, err = Nickname([]byte(`{}`))
	assert.ErrorIs(t, err, errpkg.ErrNotFound)

	room, err := LiveRoom([]byte(`{"data":{"data":[{"id_str":"77","title":"live!","status":2,
		"stream_url":{"flv_pull_url":{"FULL_HD1":"https://flv"},"hls_pull_url_map":{"FULL_HD1":"https://m3u8"}}}],
		"user":{"nickname":"carol"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "77", room.RoomID)
	assert.Equal(t, "carol", room.Nickname)
	assert.Equal(t, "https://flv", room.FlvURLs["FULL_HD1"])

	_, err = LiveRoom([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, errpkg.ErrNotFound)
}
