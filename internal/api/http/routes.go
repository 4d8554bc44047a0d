package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	"github.com/veranemoloko/clip-downloader/internal/repository"
)

// RouterDeps are the collaborators behind the HTTP surface.
type RouterDeps struct {
	Downloader Downloader
	Settings   SettingsStore
	History    repository.HistoryRepo
	// Files is the filesystem holding Root; Root empty disables the file mount.
	Files afero.Fs
	Root  string
	Mount string
	// Token, when set, must be sent in the token header of API requests.
	Token string
}

// NewRouter creates the HTTP router with middleware, API routes, the file mount,
// health check and Prometheus metrics endpoint.
func NewRouter(deps RouterDeps, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	dh := NewDownloadHandler(deps.Downloader, deps.History, logger)
	sh := NewSettingsHandler(deps.Settings, logger)

	r.Group(func(r chi.Router) {
		r.Use(requireToken(deps.Token))

		r.Route("/{platform}", func(r chi.Router) {
			r.Route("/download", func(r chi.Router) {
				r.Post("/share", endpoint(dh, dh.downloader.DownloadShare))
				r.Post("/favorite", endpoint(dh, dh.downloader.DownloadFavorite))
				r.Post("/account", endpoint(dh, dh.downloader.DownloadAccount))
				r.Post("/mix", endpoint(dh, dh.downloader.DownloadMix))
				r.Post("/detail", endpoint(dh, dh.downloader.DownloadDetail))
				r.Post("/search", endpoint(dh, dh.downloader.DownloadSearch))
			})
			r.Post("/share", endpoint(dh, dh.downloader.ResolveShare))
			r.Post("/live", endpoint(dh, dh.downloader.FetchLive))
		})

		r.Get("/settings", sh.GetSettings)
		r.Post("/settings", sh.UpdateSettings)
		r.Get("/history/{platform}/{itemID}", dh.GetHistory)
	})

	if deps.Files != nil && deps.Root != "" {
		mount := deps.Mount
		if mount == "" {
			mount = "/files"
		}
		r.Handle(mount+"/*", FileServer(deps.Files, deps.Root, mount))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, domain.Envelope{Message: msgUnauthorized, Params: map[string]any{}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
