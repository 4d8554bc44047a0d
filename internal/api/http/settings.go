package http

import (
	"log/slog"
	"net/http"

	"github.com/veranemoloko/clip-downloader/internal/config"
	"github.com/veranemoloko/clip-downloader/internal/validation"
)

// masked replaces secrets in settings responses. Sending it back leaves the secret unchanged.
const masked = "******"

// SettingsStore reads and replaces the settings snapshot.
type SettingsStore interface {
	Snapshot() *config.Snapshot
	UpdateSettings(fn func(*config.Settings)) (*config.Snapshot, error)
}

type SettingsHandler struct {
	store  SettingsStore
	logger *slog.Logger
}

func NewSettingsHandler(store SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, logger: logger}
}

type platformPatch struct {
	Cookie *string       `json:"cookie"`
	Proxy  *string       `json:"proxy" validate:"omitempty,proxy_url"`
	Owner  *config.Owner `json:"owner_url"`
}

// settingsPatch is a partial update; absent fields keep their current value.
type settingsPatch struct {
	Douyin     *platformPatch `json:"douyin"`
	TikTok     *platformPatch `json:"tiktok"`
	NameFormat *string        `json:"name_format" validate:"omitempty,max=128"`
	Split      *string        `json:"split" validate:"omitempty,max=8"`
	NameLength *int           `json:"name_length" validate:"omitempty,gte=1,lte=255"`
	DateFormat *string        `json:"date_format" validate:"omitempty,max=64"`
	FolderMode *string        `json:"folder_mode" validate:"omitempty,oneof=shared per_item"`
}

func (p *platformPatch) apply(s *config.PlatformSettings) {
	if p == nil {
		return
	}
	if p.Cookie != nil && *p.Cookie != masked {
		s.Cookie = *p.Cookie
	}
	if p.Proxy != nil {
		s.Proxy = *p.Proxy
	}
	if p.Owner != nil {
		s.Owner = *p.Owner
	}
}

func (p settingsPatch) apply(s *config.Settings) {
	p.Douyin.apply(&s.Douyin)
	p.TikTok.apply(&s.TikTok)
	set(&s.NameFormat, p.NameFormat)
	set(&s.Split, p.Split)
	set(&s.NameLength, p.NameLength)
	set(&s.DateFormat, p.DateFormat)
	set(&s.FolderMode, p.FolderMode)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func mask(s config.Settings) config.Settings {
	for _, ps := range []*config.PlatformSettings{&s.Douyin, &s.TikTok} {
		if ps.Cookie != "" {
			ps.Cookie = masked
		}
	}
	return s
}

// GetSettings handles GET /settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mask(h.store.Snapshot().Settings))
}

// UpdateSettings handles POST /settings and returns the settings now in effect.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.logger.Warn("failed to decode settings", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.Struct(patch); err != nil {
		h.logger.Warn("settings validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.store.UpdateSettings(patch.apply)
	if err != nil {
		h.logger.Error("failed to update settings", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("settings updated", "version", snap.Version)
	writeJSON(w, http.StatusOK, mask(snap.Settings))
}
