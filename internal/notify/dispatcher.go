// Package notify delivers completion events to webhook endpoints.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/metrics"
)

type Options struct {
	Endpoints []string
	Token     string
	Timeout   time.Duration
	QueueSize int
}

// Dispatcher hands events to a single background worker through a bounded queue.
// Delivery is best effort: one attempt per endpoint, failures are only logged.
type Dispatcher struct {
	endpoints []string
	token     string
	timeout   time.Duration
	client    *http.Client

	eventChan chan domain.NotificationEvent
	mu        sync.RWMutex
	closed    bool

	ctx    context.Context
	abort  context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	dropped atomic.Int64
}

func NewDispatcher(opts Options, logger *slog.Logger) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		endpoints: opts.Endpoints,
		token:     opts.Token,
		timeout:   opts.Timeout,
		client:    &http.Client{},
		ctx:       ctx,
		abort:     cancel,
		logger:    logger.With("component", "notify"),
	}
	if len(d.endpoints) == 0 {
		return d
	}

	d.eventChan = make(chan domain.NotificationEvent, opts.QueueSize)
	d.wg.Add(1)
	go d.eventProcessor()
	return d
}

// Enabled reports whether any endpoint is configured.
func (d *Dispatcher) Enabled() bool { return len(d.endpoints) > 0 }

// Dropped returns the number of events discarded because the queue was full or closed.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Dispatch enqueues ev and returns immediately.
func (d *Dispatcher) Dispatch(ev domain.NotificationEvent) {
	if !d.Enabled() {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ev, "shutting down")
		return
	}
	select {
	case d.eventChan <- ev:
	default:
		d.drop(ev, "queue full")
	}
}

func (d *Dispatcher) drop(ev domain.NotificationEvent, why string) {
	d.dropped.Add(1)
	metrics.Notifications.WithLabelValues("dropped").Inc()
	d.logger.Warn("notification dropped",
		"event", ev.Event,
		"source", ev.Source,
		"reason", why,
		"error", errpkg.ErrNotificationQueue,
	)
}

func (d *Dispatcher) eventProcessor() {
	defer d.wg.Done()

	for ev := range d.eventChan {
		if d.ctx.Err() != nil {
			d.dropped.Add(1)
			metrics.Notifications.WithLabelValues("dropped").Inc()
			continue
		}
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev domain.NotificationEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		d.logger.Error("failed to encode notification", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, endpoint := range d.endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.post(endpoint, body); err != nil {
				metrics.Notifications.WithLabelValues("failed").Inc()
				d.logger.Error("post-download hook failed",
					"endpoint", endpoint,
					"error", err,
				)
				return
			}
			metrics.Notifications.WithLabelValues("delivered").Inc()
			d.logger.Info("post-download hook notified", "endpoint", endpoint)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) post(endpoint string, body []byte) error {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	return nil
}

// Shutdown stops accepting events and delivers what is queued until ctx is done.
// Whatever is still queued then is discarded and ctx's error is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.eventChan != nil {
		close(d.eventChan)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.abort()
		d.logger.Info("notification queue drained")
		return nil
	case <-ctx.Done():
		d.abort()
		<-done
		d.logger.Warn("notification drain timed out", "dropped", d.Dropped())
		return ctx.Err()
	}
}
