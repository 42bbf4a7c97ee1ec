package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/JerryGgzm/SEO-TOOL/internal/analytics"
	"github.com/JerryGgzm/SEO-TOOL/internal/publisher"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
	"github.com/JerryGgzm/SEO-TOOL/pkg/monitoring"
)

// Error codes the dispatcher writes to items it gives up on.
const (
	ErrorCodePublishRejected  = "PUBLISH_REJECTED"
	ErrorCodeRetriesExhausted = "RETRIES_EXHAUSTED"
)

// Store is the persistence surface the dispatcher drives.
type Store interface {
	SelectDue(ctx context.Context, now time.Time, limit int) ([]*models.ContentItem, error)
	Claim(ctx context.Context, contentID, workerID string, now time.Time) (bool, error)
	GetForDispatch(ctx context.Context, contentID string) (*models.ContentItem, error)
	MarkPosted(ctx context.Context, contentID, workerID, platformID string, postedAt time.Time) error
	MarkRetry(ctx context.Context, contentID, workerID, errorCode, errorMessage string, nextAttempt time.Time) error
	MarkError(ctx context.Context, contentID, workerID, errorCode, errorMessage string) error
	ReapStaleClaims(ctx context.Context, now time.Time, lease time.Duration) (int64, error)
	QueueDepth(ctx context.Context, now time.Time) (int, error)
}

// Config tunes the dispatch loop. Zero values get defaults.
type Config struct {
	PollInterval    time.Duration
	BatchSize       int
	WorkerCount     int
	BaseRetryDelay  time.Duration
	MaxRetryDelay   time.Duration
	DispatchTimeout time.Duration
	ClaimLease      time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    5 * time.Second,
		BatchSize:       50,
		WorkerCount:     4,
		BaseRetryDelay:  time.Minute,
		MaxRetryDelay:   24 * time.Hour,
		DispatchTimeout: 30 * time.Second,
		ClaimLease:      5 * time.Minute,
	}
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = def.BaseRetryDelay
	}
	if cfg.MaxRetryDelay < cfg.BaseRetryDelay {
		cfg.MaxRetryDelay = def.MaxRetryDelay
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = def.DispatchTimeout
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = def.ClaimLease
	}
	return cfg
}

// idempotencyNamespace keys publish attempts: the same content item always
// yields the same key, across retries and process restarts.
var idempotencyNamespace = uuid.MustParse("f3b1f6a8-1f2d-4f6e-9c0a-7d8e5b4a3c21")

// Dispatcher drains due content items and pushes them through the publish
// adapter with a bounded worker pool. Items are claimed before dispatch so
// concurrent dispatchers never double-post.
type Dispatcher struct {
	store    Store
	adapter  publisher.Adapter
	recorder analytics.Recorder
	metrics  *monitoring.PublishingMetrics
	logger   *logrus.Logger
	cfg      Config
	workerID string

	kick chan struct{}
	now  func() time.Time

	wg   sync.WaitGroup
	slot chan struct{}
}

func NewDispatcher(s Store, adapter publisher.Adapter, recorder analytics.Recorder, metrics *monitoring.PublishingMetrics, cfg Config, logger *logrus.Logger) *Dispatcher {
	cfg = normalizeConfig(cfg)
	hostname, _ := os.Hostname()
	return &Dispatcher{
		store:    s,
		adapter:  adapter,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		workerID: fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8]),
		kick:     make(chan struct{}, 1),
		now:      time.Now,
		slot:     make(chan struct{}, cfg.WorkerCount),
	}
}

// WorkerID identifies this dispatcher instance in claim rows.
func (d *Dispatcher) WorkerID() string {
	return d.workerID
}

// Kick asks the dispatcher to poll now instead of waiting out the interval.
// Used after publish-now requests. Never blocks.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run polls until the context is cancelled, then waits for in-flight
// dispatches to finish.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.WithFields(logrus.Fields{
		"worker_id":     d.workerID,
		"poll_interval": d.cfg.PollInterval.String(),
		"worker_count":  d.cfg.WorkerCount,
	}).Info("Dispatcher started")

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			d.logger.Info("Dispatcher stopped")
			return
		case <-ticker.C:
		case <-d.kick:
		}
		d.Poll(ctx)
	}
}

// Poll runs one dispatch cycle: reap stale claims, report queue depth, then
// claim and dispatch due items through the worker pool.
func (d *Dispatcher) Poll(ctx context.Context) {
	now := d.now()

	if reaped, err := d.store.ReapStaleClaims(ctx, now, d.cfg.ClaimLease); err != nil {
		d.logger.WithError(err).Warn("Failed to reap stale claims")
	} else if reaped > 0 {
		d.logger.WithField("count", reaped).Warn("Released stale dispatch claims")
	}

	if d.metrics != nil {
		if depth, err := d.store.QueueDepth(ctx, now); err == nil {
			d.metrics.QueueDepth.Set(float64(depth))
		}
	}

	items, err := d.store.SelectDue(ctx, now, d.cfg.BatchSize)
	if err != nil {
		d.logger.WithError(err).Error("Failed to select due content items")
		return
	}

	for _, item := range items {
		select {
		case d.slot <- struct{}{}:
		case <-ctx.Done():
			return
		}

		claimed, err := d.store.Claim(ctx, item.ID, d.workerID, d.now())
		if err != nil || !claimed {
			<-d.slot
			if err != nil {
				d.logger.WithError(err).WithField("content_id", item.ID).Error("Failed to claim content item")
			}
			continue
		}

		d.wg.Add(1)
		go func(contentID string) {
			defer d.wg.Done()
			defer func() { <-d.slot }()
			d.dispatch(ctx, contentID)
		}(item.ID)
	}
}

// Wait blocks until in-flight dispatches complete. Test helper.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// dispatch publishes one claimed item and records the outcome. Every failure
// is isolated to its item; the pool keeps draining the rest of the batch.
func (d *Dispatcher) dispatch(ctx context.Context, contentID string) {
	item, err := d.store.GetForDispatch(ctx, contentID)
	if err != nil {
		d.logger.WithError(err).WithField("content_id", contentID).Error("Failed to load claimed content item")
		return
	}

	log := d.logger.WithFields(logrus.Fields{
		"content_id":  item.ID,
		"founder_id":  item.FounderID,
		"retry_count": item.RetryCount,
	})

	req := publisher.Request{
		FounderID:      item.FounderID,
		ContentID:      item.ID,
		Text:           item.PublishText(),
		IdempotencyKey: uuid.NewSHA1(idempotencyNamespace, []byte(item.ID)).String(),
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.DispatchTimeout)
	start := d.now()
	result, err := d.adapter.Publish(attemptCtx, req)
	cancel()

	if d.metrics != nil {
		d.metrics.DispatchDuration.WithLabelValues(d.adapter.Platform()).Observe(time.Since(start).Seconds())
	}

	if err == nil {
		d.finishPosted(ctx, item, result, log)
		return
	}

	var pubErr *publisher.Error
	if !errors.As(err, &pubErr) {
		pubErr = &publisher.Error{Code: publisher.CodeNetworkError, Message: err.Error(), Retryable: true}
	}

	if !pubErr.Retryable {
		d.finishRejected(ctx, item, pubErr, log)
		return
	}
	if item.RetryCount+1 > item.MaxRetries {
		d.finishExhausted(ctx, item, pubErr, log)
		return
	}
	d.scheduleRetry(ctx, item, pubErr, log)
}

func (d *Dispatcher) finishPosted(ctx context.Context, item *models.ContentItem, result *publisher.Result, log *logrus.Entry) {
	postedAt := d.now()
	if err := d.store.MarkPosted(ctx, item.ID, d.workerID, result.PlatformID, postedAt); err != nil {
		log.WithError(err).Error("Failed to mark content item posted")
		return
	}
	d.countDispatch("posted")

	item.Status = models.StatusPosted
	item.PostedPlatformID = &result.PlatformID
	item.PostedAt = &postedAt
	d.recorder.ContentPosted(item)
	log.WithField("platform_id", result.PlatformID).Info("Content item posted")
}

func (d *Dispatcher) finishRejected(ctx context.Context, item *models.ContentItem, pubErr *publisher.Error, log *logrus.Entry) {
	message := fmt.Sprintf("%s: %s", pubErr.Code, pubErr.Message)
	if err := d.store.MarkError(ctx, item.ID, d.workerID, ErrorCodePublishRejected, message); err != nil {
		log.WithError(err).Error("Failed to mark content item errored")
		return
	}
	d.countDispatch("rejected")

	item.Status = models.StatusError
	code := ErrorCodePublishRejected
	item.ErrorCode = &code
	item.ErrorMessage = &message
	d.recorder.ContentFailed(item)
	log.WithField("error_code", pubErr.Code).Warn("Platform rejected content item")
}

func (d *Dispatcher) finishExhausted(ctx context.Context, item *models.ContentItem, pubErr *publisher.Error, log *logrus.Entry) {
	message := fmt.Sprintf("gave up after %d attempts, last error %s: %s",
		item.RetryCount+1, pubErr.Code, pubErr.Message)
	if err := d.store.MarkError(ctx, item.ID, d.workerID, ErrorCodeRetriesExhausted, message); err != nil {
		log.WithError(err).Error("Failed to mark content item errored")
		return
	}
	d.countDispatch("exhausted")

	item.Status = models.StatusError
	item.RetryCount++
	code := ErrorCodeRetriesExhausted
	item.ErrorCode = &code
	item.ErrorMessage = &message
	d.recorder.ContentFailed(item)
	log.WithField("error_code", pubErr.Code).Warn("Content item retries exhausted")
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, item *models.ContentItem, pubErr *publisher.Error, log *logrus.Entry) {
	next := d.now().Add(d.retryDelay(item.RetryCount))
	if err := d.store.MarkRetry(ctx, item.ID, d.workerID, pubErr.Code, pubErr.Message, next); err != nil {
		log.WithError(err).Error("Failed to mark content item for retry")
		return
	}
	d.countDispatch("retried")
	if d.metrics != nil {
		d.metrics.RetryCount.WithLabelValues(pubErr.Code).Inc()
	}
	log.WithFields(logrus.Fields{
		"error_code":   pubErr.Code,
		"next_attempt": next.Format(time.RFC3339),
	}).Info("Content item scheduled for retry")
}

// retryDelay doubles per attempt from the base, capped at the max.
func (d *Dispatcher) retryDelay(retryCount int) time.Duration {
	delay := d.cfg.BaseRetryDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= d.cfg.MaxRetryDelay {
			return d.cfg.MaxRetryDelay
		}
	}
	if delay > d.cfg.MaxRetryDelay {
		return d.cfg.MaxRetryDelay
	}
	return delay
}

func (d *Dispatcher) countDispatch(outcome string) {
	if d.metrics != nil {
		d.metrics.DispatchesTotal.WithLabelValues(outcome).Inc()
	}
}
