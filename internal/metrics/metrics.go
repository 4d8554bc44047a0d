package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clip_downloader_requests_total",
		Help: "Download requests by source and outcome",
	}, []string{"platform", "source", "outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clip_downloader_request_duration_seconds",
		Help:    "Time from resolution to response assembly",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"platform", "source"})

	ItemsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clip_downloader_items_rejected_total",
		Help: "Upstream items dropped because their media type was not recognized",
	})

	AssetsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clip_downloader_assets_fetched_total",
		Help: "Assets downloaded and committed",
	})

	AssetsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clip_downloader_assets_skipped_total",
		Help: "Assets already complete on disk",
	})

	AssetsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clip_downloader_assets_failed_total",
		Help: "Assets that could not be materialized",
	}, []string{"kind"})

	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clip_downloader_fetch_retries_total",
		Help: "Asset fetch retries after transient failures",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clip_downloader_fetch_duration_seconds",
		Help:    "Asset download duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	FetchBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clip_downloader_fetch_bytes_total",
		Help: "Total bytes downloaded",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clip_downloader_notifications_total",
		Help: "Webhook deliveries by result",
	}, []string{"result"})
)
