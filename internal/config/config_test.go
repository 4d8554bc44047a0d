package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	"github.com/veranemoloko/clip-downloader/internal/storage"
)

func TestProcess_Defaults(t *testing.T) {
	var cfg Config
	require.NoError(t, envconfig.Process(Prefix, &cfg))

	assert.Equal(t, 5555, cfg.HTTPPort)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, 3, cfg.FetchRetries)
	assert.Equal(t, "/files", cfg.Mount)
	assert.Equal(t, 2*time.Second, cfg.WebhookTimeout.Duration())
	assert.Empty(t, cfg.WebhookURLs)
	assert.NoError(t, cfg.Validate())
}

func TestProcess_WebhookVariablesWithoutPrefix(t *testing.T) {
	t.Setenv("POST_DOWNLOAD_WEBHOOK_URL", " http://a.example/hook ; ;https://b.example/x ")
	t.Setenv("POST_DOWNLOAD_WEBHOOK_TOKEN", "secret")
	t.Setenv("POST_DOWNLOAD_WEBHOOK_TIMEOUT", "0.5")

	var cfg Config
	require.NoError(t, envconfig.Process(Prefix, &cfg))

	assert.Equal(t, EndpointList{"http://a.example/hook", "https://b.example/x"}, cfg.WebhookURLs)
	assert.Equal(t, "secret", cfg.WebhookToken)
	assert.Equal(t, 500*time.Millisecond, cfg.WebhookTimeout.Duration())
}

func TestProcess_PrefixedNameWins(t *testing.T) {
	t.Setenv("WORKERS", "2")
	t.Setenv("CD_WORKERS", "9")

	var cfg Config
	require.NoError(t, envconfig.Process(Prefix, &cfg))
	assert.Equal(t, 9, cfg.Workers)
}

func TestEndpointList_RejectsBadScheme(t *testing.T) {
	var l EndpointList
	assert.Error(t, l.Decode("ftp://example.com"))
	assert.Error(t, l.Decode("not a url"))
}

func TestSeconds_Decode(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"2", 2 * time.Second, false},
		{"1.5", 1500 * time.Millisecond, false},
		{"750ms", 750 * time.Millisecond, false},
		{"", 2 * time.Second, false},
		{"-1", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var s Seconds
			err := s.Decode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Duration())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		require.NoError(t, envconfig.Process(Prefix, &cfg))
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.HTTPPort = 0 }},
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"retries", func(c *Config) { c.FetchRetries = -1 }},
		{"root", func(c *Config) { c.RootDir = "" }},
		{"completeness", func(c *Config) { c.Completeness = "hash" }},
		{"api base", func(c *Config) { c.DouyinAPIBase = "::" }},
		{"queue", func(c *Config) { c.NotifyQueue = 0 }},
		{"temp outside root", func(c *Config) { c.RootDir, c.TempDir = "/srv/media", "/tmp/clips" }},
		{"temp is root", func(c *Config) { c.RootDir, c.TempDir = "/srv/media", "/srv/media" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_ValidateTempInsideRoot(t *testing.T) {
	var cfg Config
	require.NoError(t, envconfig.Process(Prefix, &cfg))
	cfg.RootDir, cfg.TempDir = "/srv/media", "/srv/media/.partial"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_CreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CD_ROOT_DIR", filepath.Join(dir, "media"))
	t.Setenv("CD_SETTINGS_FILE", filepath.Join(dir, "conf", "settings.yaml"))
	t.Setenv("CD_HISTORY_FILE", filepath.Join(dir, "state", "history.json"))

	cfg, err := Load()
	require.NoError(t, err)

	for _, d := range []string{cfg.RootDir, filepath.Join(dir, "conf"), filepath.Join(dir, "state")} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestLoadSettings_MissingFileGivesDefaults(t *testing.T) {
	s, err := LoadSettings(afero.NewMemMapFs(), "/nope.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
	assert.Equal(t, storage.FolderShared, s.Folder())
}

func TestLoadSettings_ParsesYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/s.yaml", []byte(`
douyin:
  cookie: "sid=1"
  owner_url:
    sec_uid: MS4wOwner
tiktok:
  proxy: socks5://127.0.0.1:1080
folder_mode: per_item
name_length: 40
`), 0o644))

	s, err := LoadSettings(fs, "/s.yaml")
	require.NoError(t, err)
	assert.Equal(t, "sid=1", s.For(domain.PlatformDouyin).Cookie)
	assert.Equal(t, "MS4wOwner", s.For(domain.PlatformDouyin).Owner.SecUID)
	assert.Equal(t, "socks5://127.0.0.1:1080", s.For(domain.PlatformTikTok).Proxy)
	assert.Equal(t, storage.FolderPerItem, s.Folder())
	assert.Equal(t, 40, s.NameLength)
	assert.Equal(t, DefaultSettings().NameFormat, s.NameFormat)
}

func TestLoadSettings_InvalidFolderMode(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/s.yaml", []byte("folder_mode: nested\n"), 0o644))
	_, err := LoadSettings(fs, "/s.yaml")
	assert.Error(t, err)
}

func TestStore_UpdatePublishesNewSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := &Config{SettingsFile: "/conf/settings.yaml"}
	store, err := NewStore(cfg, fs)
	require.NoError(t, err)

	before := store.Snapshot()
	next, err := store.UpdateSettings(func(s *Settings) { s.Douyin.Cookie = "sid=2" })
	require.NoError(t, err)

	assert.Empty(t, before.Settings.Douyin.Cookie, "published snapshots are immutable")
	assert.Equal(t, "sid=2", next.Settings.Douyin.Cookie)
	assert.Equal(t, before.Version+1, next.Version)
	assert.Same(t, next, store.Snapshot())

	reloaded, err := LoadSettings(fs, "/conf/settings.yaml")
	require.NoError(t, err)
	assert.Equal(t, "sid=2", reloaded.Douyin.Cookie)
}

func TestStore_RejectedUpdateKeepsSnapshot(t *testing.T) {
	store, err := NewStore(&Config{SettingsFile: "/s.yaml"}, afero.NewMemMapFs())
	require.NoError(t, err)
	before := store.Snapshot()

	_, err = store.UpdateSettings(func(s *Settings) { s.FolderMode = "nested" })
	assert.Error(t, err)
	assert.Same(t, before, store.Snapshot())
}

func TestStore_ConcurrentReadersDuringUpdates(t *testing.T) {
	store, err := NewStore(&Config{SettingsFile: "/s.yaml"}, afero.NewMemMapFs())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := store.UpdateSettings(func(s *Settings) { s.NameLength = 10 + i })
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, store.Snapshot())
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(9), store.Snapshot().Version)
}
