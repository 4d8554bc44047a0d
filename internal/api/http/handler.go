package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/repository"
	"github.com/veranemoloko/clip-downloader/internal/service"
	"github.com/veranemoloko/clip-downloader/internal/validation"
)

const (
	msgBadRequest   = "参数错误！"
	msgUnauthorized = "验证失败！"
)

// Downloader defines the orchestration entry points driven by the handlers.
type Downloader interface {
	DownloadShare(ctx context.Context, t service.Target, req domain.ShareRequest) domain.Outcome
	DownloadFavorite(ctx context.Context, t service.Target, req domain.AccountRequest) domain.Outcome
	DownloadAccount(ctx context.Context, t service.Target, req domain.AccountRequest) domain.Outcome
	DownloadMix(ctx context.Context, t service.Target, req domain.MixRequest) domain.Outcome
	DownloadDetail(ctx context.Context, t service.Target, req domain.DetailRequest) domain.Outcome
	DownloadSearch(ctx context.Context, t service.Target, req domain.SearchRequest) domain.Outcome
	FetchLive(ctx context.Context, t service.Target, req domain.LiveRequest) domain.Outcome
	ResolveShare(ctx context.Context, t service.Target, req domain.ResolveRequest) domain.Outcome
}

// DownloadHandler handles HTTP requests for downloads and history.
type DownloadHandler struct {
	downloader Downloader
	history    repository.HistoryRepo
	logger     *slog.Logger
}

// NewDownloadHandler creates a DownloadHandler. history may be nil.
func NewDownloadHandler(d Downloader, history repository.HistoryRepo, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloader: d,
		history:    history,
		logger:     logger,
	}
}

// endpoint adapts one orchestrator entry point to an HTTP handler: it decodes and
// validates the body, runs the request, and maps the outcome to a status.
func endpoint[T any](h *DownloadHandler, call func(context.Context, service.Target, T) domain.Outcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := domain.ParsePlatform(chi.URLParam(r, "platform"))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown platform")
			return
		}

		var req T
		if err := decodeJSON(r, &req); err != nil {
			h.logger.Warn("failed to decode request", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusBadRequest, domain.Envelope{Message: msgBadRequest, Params: map[string]any{}})
			return
		}
		if err := validation.Struct(req); err != nil {
			h.logger.Warn("validation failed", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusBadRequest, domain.Envelope{
				Message: msgBadRequest + err.Error(),
				Params:  domain.SanitizeParams(req),
			})
			return
		}

		out := call(r.Context(), target(r, p), req)
		writeJSON(w, statusFor(out), out.Envelope())
	}
}

// decodeJSON reads an optional JSON body; an empty body leaves v at its zero value.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func target(r *http.Request, p domain.Platform) service.Target {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd == "http" || fwd == "https" {
		scheme = fwd
	}
	return service.Target{
		Platform:  p,
		BaseURL:   scheme + "://" + r.Host,
		RequestID: middleware.GetReqID(r.Context()),
	}
}

// statusFor maps an outcome to the HTTP status of its response.
func statusFor(out domain.Outcome) int {
	if out.OK {
		return http.StatusOK
	}
	switch out.Reason {
	case domain.ReasonParameter:
		return http.StatusBadRequest
	case domain.ReasonResolution:
		return http.StatusUnprocessableEntity
	case domain.ReasonNoData:
		return http.StatusNotFound
	case domain.ReasonFetch, domain.ReasonUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// GetHistory handles GET /history/{platform}/{itemID}.
func (h *DownloadHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown platform")
		return
	}
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	itemID := chi.URLParam(r, "itemID")
	entry, err := h.history.Get(r.Context(), p, itemID)
	if errors.Is(err, errpkg.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get history entry", "item_id", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
