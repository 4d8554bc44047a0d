package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/clip-downloader/internal/config"
	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/extract"
	"github.com/veranemoloko/clip-downloader/internal/repository"
	"github.com/veranemoloko/clip-downloader/internal/storage"
	"github.com/veranemoloko/clip-downloader/internal/transport"
	"github.com/veranemoloko/clip-downloader/internal/worker"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// fakeClient serves canned platform responses.
type fakeClient struct {
	mu       sync.Mutex
	resolve  map[string]string
	details  map[string]string
	listings map[string][]string // key: kind/id, one entry per page
	profiles map[string]string
	live     map[string]string
	fail     map[string]error
	calls    []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		resolve:  map[string]string{},
		details:  map[string]string{},
		listings: map[string][]string{},
		profiles: map[string]string{},
		live:     map[string]string{},
		fail:     map[string]error{},
	}
}

func (c *fakeClient) record(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.fail[call]
}

func (c *fakeClient) callCount(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}

func (c *fakeClient) page(key string, cursor int64) ([]byte, error) {
	if err := c.record(key); err != nil {
		return nil, err
	}
	pages := c.listings[key]
	if int(cursor) >= len(pages) {
		return []byte(`{"status_code":0,"aweme_list":[],"has_more":0}`), nil
	}
	return []byte(pages[cursor]), nil
}

func (c *fakeClient) FetchDetail(_ context.Context, _ domain.Platform, id string, _ domain.Connection) ([]byte, error) {
	if err := c.record("detail/" + id); err != nil {
		return nil, err
	}
	raw, ok := c.details[id]
	if !ok {
		return nil, &errpkg.UpstreamError{Op: "detail", Message: "empty response"}
	}
	return []byte(raw), nil
}

func (c *fakeClient) FetchAccountPage(_ context.Context, _ domain.Platform, secUserID string, tab domain.Tab, cursor int64, _ int, _ domain.Connection) ([]byte, error) {
	return c.page(string(tab)+"/"+secUserID, cursor)
}

func (c *fakeClient) FetchMixPage(_ context.Context, _ domain.Platform, mixID string, cursor int64, _ int, _ domain.Connection) ([]byte, error) {
	return c.page("mix/"+mixID, cursor)
}

func (c *fakeClient) FetchSearch(_ context.Context, _ domain.Platform, keyword string, _ domain.SearchChannel, cursor int64, _ int, _ domain.Connection) ([]byte, error) {
	return c.page("search/"+keyword, cursor)
}

func (c *fakeClient) FetchLive(_ context.Context, _ domain.Platform, webRID string, _ domain.Connection) ([]byte, error) {
	if err := c.record("live/" + webRID); err != nil {
		return nil, err
	}
	return []byte(c.live[webRID]), nil
}

func (c *fakeClient) FetchUserProfile(_ context.Context, _ domain.Platform, secUserID string, _ domain.Connection) ([]byte, error) {
	if err := c.record("profile/" + secUserID); err != nil {
		return nil, err
	}
	raw, ok := c.profiles[secUserID]
	if !ok {
		return nil, &errpkg.UpstreamError{Op: "profile", Status: http.StatusForbidden}
	}
	return []byte(raw), nil
}

func (c *fakeClient) ResolveShareLink(_ context.Context, link, _ string) (string, error) {
	if err := c.record("resolve/" + link); err != nil {
		return "", err
	}
	if canonical, ok := c.resolve[link]; ok {
		return canonical, nil
	}
	return link, nil
}

type eventSink struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (s *eventSink) Dispatch(ev domain.NotificationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) all() []domain.NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.NotificationEvent(nil), s.events...)
}

// logBuffer collects JSON log lines written by the orchestrator.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	logs    *logBuffer
	fs      afero.Fs
	client  *fakeClient
	store   *config.Store
	events  *eventSink
	history *repository.FileHistory
	orch    *Orchestrator
	cdn     *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/missing/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = io.WriteString(w, "media"+r.URL.Path)
	}))
	t.Cleanup(cdn.Close)

	cfg := &config.Config{MaxPages: 10, EarlyStop: true, SettingsFile: "/settings.yaml"}
	store, err := config.NewStore(cfg, fs)
	require.NoError(t, err)

	planner, err := storage.NewFolderPlanner(fs, "/data", "", "/files")
	require.NoError(t, err)

	scheduler := worker.NewFetchScheduler(
		storage.NewFileStorage(fs, storage.PolicySize),
		worker.NewHTTPFetcher(transport.NewPool(5*time.Second), 0),
		worker.Config{Workers: 3, Timeout: 5 * time.Second},
		newTestLogger(),
	)

	history, err := repository.NewFileHistory(fs, "/state/history.json", newTestLogger())
	require.NoError(t, err)

	h := &harness{
		logs:    &logBuffer{},
		fs:      fs,
		client:  newFakeClient(),
		store:   store,
		events:  &eventSink{},
		history: history,
		cdn:     cdn,
	}
	h.orch = NewOrchestrator(Deps{
		Store:     store,
		Client:    h.client,
		Pipeline:  extract.NewPipeline(newTestLogger()),
		Planner:   planner,
		Scheduler: scheduler,
		Notifier:  h.events,
		History:   history,
	}, slog.New(slog.NewJSONHandler(h.logs, nil)))
	return h
}

var douyin = Target{Platform: domain.PlatformDouyin, BaseURL: "http://svc"}

func (h *harness) video(id string, created int64, extra string) string {
	return fmt.Sprintf(`{"aweme_id":%q,"desc":"clip","create_time":%d,"author":{"nickname":"bob"},%s
		"video":{"play_addr":{"url_list":["%s/v/%s.mp4"]}}}`, id, created, extra, h.cdn.URL, id)
}

func (h *harness) brokenVideo(id string) string {
	return fmt.Sprintf(`{"aweme_id":%q,"create_time":1700000000,"video":{"play_addr":{"url_list":["%s/missing/%s.mp4"]}}}`,
		id, h.cdn.URL, id)
}

func detail(item string) string {
	return `{"status_code":0,"aweme_detail":` + item + `}`
}

func listing(hasMore int, cursor int64, items ...string) string {
	return fmt.Sprintf(`{"status_code":0,"aweme_list":[%s],"has_more":%d,"max_cursor":%d}`,
		strings.Join(items, ","), hasMore, cursor)
}

func payloadOf(t *testing.T, out domain.Outcome) *domain.Payload {
	t.Helper()
	p, ok := out.Data.(*domain.Payload)
	require.True(t, ok, "data is %T", out.Data)
	return p
}

func TestOrchestrator_SingleVideoShare(t *testing.T) {
	h := newHarness(t)
	h.client.resolve["https://v.douyin.com/abc/"] = "https://www.douyin.com/video/7300000000000000001"
	h.client.details["7300000000000000001"] = detail(h.video("7300000000000000001", 1700000000, ""))

	out := h.orch.DownloadShare(context.Background(), douyin, domain.ShareRequest{
		Text:       "看看这个 https://v.douyin.com/abc/ 复制此链接",
		Connection: domain.Connection{Cookie: "sessionid=secret"},
	})

	require.True(t, out.OK, out.Message)
	assert.Equal(t, msgDone, out.Message)
	assert.NotContains(t, out.Params, "cookie")

	p := payloadOf(t, out)
	assert.Equal(t, "https://www.douyin.com/video/7300000000000000001", p.ResolvedURL)
	assert.Equal(t, "/data", p.Root)
	require.Len(t, p.Items, 1)
	require.Len(t, p.Items[0].Files, 1)

	file := p.Items[0].Files[0]
	assert.Equal(t, "/data/detail", filepath.Dir(file.Path))
	assert.True(t, strings.HasSuffix(file.Path, ".mp4"))
	require.NotNil(t, file.URL)
	assert.Equal(t, "http://svc/files/detail/"+filepath.Base(file.Path), *file.URL)

	data, err := afero.ReadFile(h.fs, file.Path)
	require.NoError(t, err)
	assert.Equal(t, "media/v/7300000000000000001.mp4", string(data))

	events := h.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, "share", events[0].Source)
	assert.Equal(t, domain.EventDownloadCompleted, events[0].Event)

	entry, err := h.history.Get(context.Background(), domain.PlatformDouyin, "7300000000000000001")
	require.NoError(t, err)
	assert.True(t, entry.Complete)
	assert.Equal(t, domain.ModeDetail, entry.Mode)
}

func TestOrchestrator_ShareResolutionFailure(t *testing.T) {
	h := newHarness(t)

	out := h.orch.DownloadShare(context.Background(), douyin, domain.ShareRequest{Text: "no links here"})

	assert.False(t, out.OK)
	assert.Equal(t, domain.ReasonResolution, out.Reason)
	assert.Equal(t, msgResolveFailed, out.Message)
	assert.Nil(t, out.Data)
	assert.Empty(t, h.events.all())
}

func TestOrchestrator_FavoriteMissingIdentifier(t *testing.T) {
	h := newHarness(t)

	out := h.orch.DownloadFavorite(context.Background(), douyin, domain.AccountRequest{})

	assert.False(t, out.OK)
	assert.Equal(t, domain.ReasonParameter, out.Reason)
	assert.True(t, strings.HasPrefix(out.Message, "参数错误：缺少 sec_user_id"))
	assert.Equal(t, domain.EmptyPayload(), out.Data)
	assert.Empty(t, h.client.calls)
}

func TestOrchestrator_FavoriteUsesConfiguredOwner(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.UpdateSettings(func(s *config.Settings) { s.Douyin.Owner.SecUID = "MS4owner" })
	require.NoError(t, err)

	h.client.profiles["MS4owner"] = `{"user":{"nickname":"alice"}}`
	h.client.listings["favorite/MS4owner"] = []string{
		listing(1, 1, h.video("11", 1700000300, "")),
		listing(0, 2, h.video("12", 1700000200, "")),
	}

	out := h.orch.DownloadFavorite(context.Background(), douyin, domain.AccountRequest{
		Earliest: domain.MustDateBound("2023-11-01"),
		Latest:   domain.MustDateBound("2023-12-31"),
	})

	require.True(t, out.OK, out.Message)
	p := payloadOf(t, out)
	assert.Equal(t, "2023-11-01 00:00:00", p.Earliest)
	assert.Equal(t, "2023-12-31 23:59:59", p.Latest)
	require.Len(t, p.Items, 2)
	for _, it := range p.Items {
		require.Len(t, it.Files, 1)
		assert.Equal(t, "/data/favorite/MS4owner_alice", filepath.Dir(it.Files[0].Path))
	}
	assert.Equal(t, 2, h.client.callCount("favorite/MS4owner"))
	assert.Equal(t, "favorite", h.events.all()[0].Source)
	assert.Equal(t, p.Earliest, h.events.all()[0].Earliest)
}

func TestOrchestrator_FavoriteTextWithoutAccountFallsBackToOwner(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.UpdateSettings(func(s *config.Settings) { s.Douyin.Owner.SecUID = "MS4owner" })
	require.NoError(t, err)
	h.client.listings["favorite/MS4owner"] = []string{listing(0, 0, h.video("41", 1700000000, ""))}

	out := h.orch.DownloadFavorite(context.Background(), douyin, domain.AccountRequest{
		Text: "https://www.douyin.com/video/123",
		Mark: "mine",
	})

	require.True(t, out.OK, out.Message)
	p := payloadOf(t, out)
	assert.Equal(t, "https://www.douyin.com/video/123", p.ResolvedURL)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "/data/favorite/MS4owner_mine", filepath.Dir(p.Items[0].Files[0].Path))
	assert.Empty(t, p.Earliest)
}

func TestOrchestrator_FavoriteTextWithoutAccountNoOwner(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		resolved string
	}{
		{"no link", "hello", ""},
		{"work link", "https://www.douyin.com/video/123", "https://www.douyin.com/video/123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			out := h.orch.DownloadFavorite(context.Background(), douyin, domain.AccountRequest{Text: tt.text})

			assert.False(t, out.OK)
			assert.Equal(t, domain.ReasonParameter, out.Reason)
			assert.Equal(t, msgMissingSecUID, out.Message)
			p := payloadOf(t, out)
			assert.Equal(t, tt.resolved, p.ResolvedURL)
			assert.Empty(t, p.Items)
			assert.NotNil(t, p.Items)
			assert.Zero(t, h.client.callCount("favorite/"))
		})
	}
}

func TestOrchestrator_FavoriteResolvesUserLink(t *testing.T) {
	h := newHarness(t)
	h.client.resolve["https://v.douyin.com/usr/"] = "https://www.douyin.com/user/MS4linked?from=share"
	h.client.listings["favorite/MS4linked"] = []string{listing(0, 0, h.video("21", 1700000000, ""))}

	out := h.orch.DownloadFavorite(context.Background(), douyin, domain.AccountRequest{
		Text: "https://v.douyin.com/usr/",
		Mark: "mine",
	})

	require.True(t, out.OK, out.Message)
	p := payloadOf(t, out)
	assert.Equal(t, "https://www.douyin.com/user/MS4linked?from=share", p.ResolvedURL)
	assert.Equal(t, "/data/favorite/MS4linked_mine", filepath.Dir(p.Items[0].Files[0].Path))
	assert.Zero(t, h.client.callCount("profile/"))
}

func TestOrchestrator_FavoriteNothingInRange(t *testing.T) {
	h := newHarness(t)
	h.client.listings["favorite/MS4x"] = []string{
		listing(1, 1, h.video("31", 1700000000, "")),
		listing(0, 2, h.video("32", 1600000000, "")),
	}

	out := h.orch.DownloadFavorite(context.Background(), douyin, domain.AccountRequest{
		SecUserID: "MS4x",
		Earliest:  domain.MustDateBound("2030-01-01"),
	})

	assert.False(t, out.OK)
	assert.Equal(t, domain.ReasonNoData, out.Reason)
	assert.Equal(t, msgFavoriteEmpty, out.Message)
	assert.Nil(t, out.Data)
	assert.Equal(t, 1, h.client.callCount("favorite/MS4x"), "scan stops at the first page older than earliest")
}

func TestOrchestrator_MalformedPageKeepsEarlierItems(t *testing.T) {
	h := newHarness(t)
	h.client.listings["post/MS4half"] = []string{
		listing(1, 1, h.video("51", 1700000000, "")),
		"<html>rate limited</html>",
	}

	out := h.orch.DownloadAccount(context.Background(), douyin, domain.AccountRequest{SecUserID: "MS4half", Mark: "half"})

	require.True(t, out.OK, out.Message)
	require.Len(t, payloadOf(t, out).Items, 1)
	assert.Contains(t, h.logs.String(), `"msg":"scope fetched"`)
	assert.Contains(t, h.logs.String(), `"partial":true`)
}

func TestOrchestrator_AccountUnreachable(t *testing.T) {
	h := newHarness(t)
	h.client.fail["post/MS4gone"] = &errpkg.UpstreamError{Op: "account page", Status: http.StatusForbidden}

	out := h.orch.DownloadAccount(context.Background(), douyin, domain.AccountRequest{SecUserID: "MS4gone"})

	assert.Equal(t, domain.ReasonNoData, out.Reason)
	assert.Equal(t, msgAccountFailed, out.Message)
}

func TestOrchestrator_InvalidRange(t *testing.T) {
	h := newHarness(t)

	out := h.orch.DownloadAccount(context.Background(), douyin, domain.AccountRequest{
		SecUserID: "MS4x",
		Earliest:  domain.MustDateBound("2024-02-01"),
		Latest:    domain.MustDateBound("2024-01-01"),
	})

	assert.Equal(t, domain.ReasonParameter, out.Reason)
	assert.Equal(t, domain.EmptyPayload(), out.Data)
}

func TestOrchestrator_PartialBatchStillSucceeds(t *testing.T) {
	h := newHarness(t)
	h.client.details["1"] = detail(h.video("1", 1700000000, ""))
	h.client.details["2"] = detail(h.brokenVideo("2"))

	out := h.orch.DownloadDetail(context.Background(), douyin, domain.DetailRequest{DetailIDs: []string{"1", "2", "1"}})

	require.True(t, out.OK, out.Message)
	p := payloadOf(t, out)
	require.Len(t, p.Items, 2)

	byID := map[string]domain.ItemFiles{}
	for _, it := range p.Items {
		byID[it.ID] = it
	}
	assert.True(t, byID["1"].Complete)
	assert.False(t, byID["2"].Complete)
	assert.Empty(t, byID["2"].Files)
	assert.Equal(t, 2, h.client.callCount("detail/"))

	_, err := h.history.Get(context.Background(), domain.PlatformDouyin, "2")
	assert.ErrorIs(t, err, errpkg.ErrNotFound)
	assert.Len(t, h.events.all(), 1)
}

func TestOrchestrator_NothingCompletedIsFetchError(t *testing.T) {
	h := newHarness(t)
	h.client.details["2"] = detail(h.brokenVideo("2"))

	out := h.orch.DownloadDetail(context.Background(), douyin, domain.DetailRequest{DetailIDs: []string{"2"}})

	assert.Equal(t, domain.ReasonFetch, out.Reason)
	p := payloadOf(t, out)
	require.Len(t, p.Items, 1)
	assert.False(t, p.Items[0].Complete)
	assert.Empty(t, h.events.all())
}

func TestOrchestrator_MultipleCollectionsAreIndependent(t *testing.T) {
	h := newHarness(t)
	h.client.resolve["https://v.douyin.com/m1/"] = "https://www.douyin.com/collection/111"
	h.client.resolve["https://v.douyin.com/m2/"] = "https://www.douyin.com/collection/222"
	h.client.listings["mix/111"] = []string{
		listing(0, 0, h.video("41", 1700000000, `"mix_info":{"mix_id":"111","mix_name":"alpha"},`)),
	}
	h.client.fail["mix/222"] = &errpkg.TransportError{Op: "mix page", Err: io.ErrUnexpectedEOF}

	out := h.orch.DownloadShare(context.Background(), douyin, domain.ShareRequest{
		Text: "https://v.douyin.com/m1/ https://v.douyin.com/m2/",
	})

	require.True(t, out.OK, out.Message)
	p := payloadOf(t, out)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "/data/mix/111_alpha", filepath.Dir(p.Items[0].Files[0].Path))
	assert.Equal(t, 1, h.client.callCount("mix/222"))
}

func TestOrchestrator_MixFromDetailID(t *testing.T) {
	h := newHarness(t)
	mixInfo := `"mix_info":{"mix_id":"333","mix_name":"series"},`
	h.client.details["51"] = detail(h.video("51", 1700000000, mixInfo))
	h.client.listings["mix/333"] = []string{
		listing(1, 1, h.video("51", 1700000000, mixInfo)),
		listing(0, 2, h.video("52", 1700000100, mixInfo)),
	}

	out := h.orch.DownloadMix(context.Background(), douyin, domain.MixRequest{DetailID: "51", Mark: "saved"})

	require.True(t, out.OK, out.Message)
	p := payloadOf(t, out)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "/data/mix/333_saved", filepath.Dir(p.Items[1].Files[0].Path))
}

func TestOrchestrator_MixDetailWithoutCollection(t *testing.T) {
	h := newHarness(t)
	h.client.details["61"] = detail(h.video("61", 1700000000, ""))

	out := h.orch.DownloadMix(context.Background(), douyin, domain.MixRequest{DetailID: "61"})

	assert.Equal(t, domain.ReasonResolution, out.Reason)
	assert.Equal(t, msgNoMix, out.Message)
}

func TestOrchestrator_Search(t *testing.T) {
	h := newHarness(t)
	h.client.listings["search/cats"] = []string{
		`{"status_code":0,"data":[{"aweme_info":` + h.video("71", 1700000000, "") + `}],"has_more":0}`,
	}

	out := h.orch.DownloadSearch(context.Background(), douyin, domain.SearchRequest{Keyword: "cats"})

	require.True(t, out.OK, out.Message)
	p := payloadOf(t, out)
	assert.Equal(t, "/data/search/cats", filepath.Dir(p.Items[0].Files[0].Path))
}

func TestOrchestrator_FetchLive(t *testing.T) {
	h := newHarness(t)
	h.client.live["8001"] = `{"data":{"data":[{"id_str":"r1","title":"evening","status":2,
		"stream_url":{"flv_pull_url":{"FULL_HD1":"https://pull/r1.flv"}}}],"user":{"nickname":"host"}}}`

	out := h.orch.FetchLive(context.Background(), douyin, domain.LiveRequest{WebRID: "8001"})

	require.True(t, out.OK, out.Message)
	room, ok := out.Data.(domain.LiveRoom)
	require.True(t, ok)
	assert.Equal(t, "evening", room.Title)
	assert.Equal(t, "host", room.Nickname)
	assert.Equal(t, "https://pull/r1.flv", room.FlvURLs["FULL_HD1"])

	h.client.fail["live/8002"] = &errpkg.UpstreamError{Op: "live", Status: http.StatusBadGateway}
	out = h.orch.FetchLive(context.Background(), douyin, domain.LiveRequest{WebRID: "8002"})
	assert.Equal(t, domain.ReasonUpstream, out.Reason)
}

func TestOrchestrator_ResolveShare(t *testing.T) {
	h := newHarness(t)
	h.client.resolve["https://v.douyin.com/r/"] = "https://www.douyin.com/video/9"

	out := h.orch.ResolveShare(context.Background(), douyin, domain.ResolveRequest{Text: "go https://v.douyin.com/r/"})
	require.True(t, out.OK)
	assert.Equal(t, "https://www.douyin.com/video/9", out.Data)
	assert.Equal(t, msgLinkOK, out.Message)

	h.client.fail["resolve/https://v.douyin.com/bad/"] = &errpkg.TransportError{Op: "resolve", Err: io.EOF}
	out = h.orch.ResolveShare(context.Background(), douyin, domain.ResolveRequest{Text: "https://v.douyin.com/bad/"})
	assert.Equal(t, domain.ReasonResolution, out.Reason)
	assert.Equal(t, msgLinkFailed, out.Message)
}

func TestOrchestrator_SnapshotPerRequest(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.UpdateSettings(func(s *config.Settings) { s.FolderMode = string(storage.FolderPerItem) })
	require.NoError(t, err)
	h.client.details["81"] = detail(h.video("81", 1700000000, ""))

	out := h.orch.DownloadDetail(context.Background(), douyin, domain.DetailRequest{DetailIDs: []string{"81"}})

	require.True(t, out.OK, out.Message)
	path := payloadOf(t, out).Items[0].Files[0].Path
	assert.Equal(t, "/data/detail", filepath.Dir(filepath.Dir(path)))
}
