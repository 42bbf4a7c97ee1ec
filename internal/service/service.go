package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/JerryGgzm/SEO-TOOL/internal/analytics"
	"github.com/JerryGgzm/SEO-TOOL/internal/rules"
	"github.com/JerryGgzm/SEO-TOOL/internal/store"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

// batchConcurrency bounds how many items a batch call works in parallel.
const batchConcurrency = 4

const defaultPriority = 5

// Store is the persistence surface the service drives.
type Store interface {
	GetByID(ctx context.Context, founderID, contentID string) (*models.ContentItem, error)
	MarkScheduled(ctx context.Context, founderID, contentID string, postTime *time.Time, nextAttempt time.Time, priority int, editedText *string) (*models.ContentItem, error)
	Cancel(ctx context.Context, founderID, contentID string) (*models.ContentItem, error)
	Reschedule(ctx context.Context, founderID, contentID string, postTime time.Time) (*models.ContentItem, error)
	UpdateEditedText(ctx context.Context, founderID, contentID, text string) (*models.ContentItem, error)
	ListScheduled(ctx context.Context, founderID string, limit, offset int) ([]*models.ContentItem, error)
	ListHistory(ctx context.Context, founderID string, filters models.HistoryFilters) ([]*models.ContentItem, error)
	UpsertPolicy(ctx context.Context, founderID string, policy models.TenantPolicy) error
}

// RuleChecker validates candidates before they enter the queue.
type RuleChecker interface {
	Check(ctx context.Context, founderID string, candidate rules.Candidate, now time.Time) (*models.RuleViolation, error)
	CheckTiming(ctx context.Context, founderID string, postTime time.Time, now time.Time) (*models.RuleViolation, error)
	CheckText(ctx context.Context, founderID, text string) (*models.RuleViolation, error)
	Policy(ctx context.Context, founderID string) (models.TenantPolicy, error)
	InvalidatePolicy(founderID string)
}

// Kicker wakes the dispatcher after publish-now style operations.
type Kicker interface {
	Kick()
}

// Scheduler is the scheduling and posting facade the HTTP layer talks to.
// It owns the status transitions of the content lifecycle; carrying them out
// is split between the store (persistence) and the dispatcher (delivery).
type Scheduler struct {
	store    Store
	checker  RuleChecker
	recorder analytics.Recorder
	kicker   Kicker
	logger   *logrus.Logger
	now      func() time.Time
}

func NewScheduler(s Store, checker RuleChecker, recorder analytics.Recorder, kicker Kicker, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		store:    s,
		checker:  checker,
		recorder: recorder,
		kicker:   kicker,
		logger:   logger,
		now:      time.Now,
	}
}

// Schedule validates one content item against the founder's rules and moves
// it into the scheduled queue. A nil ScheduledPostTime means "as soon as
// possible". Returns the rule violation as the error when a rule rejects the
// item.
func (s *Scheduler) Schedule(ctx context.Context, founderID string, req models.ScheduleRequest) (*models.ContentItem, error) {
	item, err := s.store.GetByID(ctx, founderID, req.ContentID)
	if err != nil {
		return nil, err
	}
	if !item.Status.Schedulable() {
		return nil, fmt.Errorf("%w: status is %s", store.ErrInvalidState, item.Status)
	}

	// Validate with the text that would actually go out, but persist
	// nothing until the rules pass: a rejected schedule leaves the item
	// exactly as it was.
	text := item.PublishText()
	if req.EditedText != nil {
		text = *req.EditedText
	}

	now := s.now()
	violation, err := s.checker.Check(ctx, founderID, rules.Candidate{
		Text:     text,
		PostTime: req.ScheduledPostTime,
	}, now)
	if err != nil {
		return nil, err
	}
	if violation != nil {
		return nil, violation
	}

	nextAttempt := now
	if req.ScheduledPostTime != nil && req.ScheduledPostTime.After(now) {
		nextAttempt = *req.ScheduledPostTime
	}
	priority := defaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}

	// The edited text goes out on the same compare-and-set as the status
	// change: a schedule that loses a concurrent transition writes nothing.
	scheduled, err := s.store.MarkScheduled(ctx, founderID, req.ContentID, req.ScheduledPostTime, nextAttempt, priority, req.EditedText)
	if err != nil {
		return nil, err
	}

	s.recorder.ContentScheduled(scheduled)
	s.logger.WithFields(logrus.Fields{
		"content_id": scheduled.ID,
		"founder_id": founderID,
		"post_time":  nextAttempt.Format(time.RFC3339),
	}).Info("Content item scheduled")
	return scheduled, nil
}

// PublishNow schedules the item for immediate dispatch and wakes the
// dispatcher. The publish itself still runs through the queue, so the caller
// gets queue semantics (claims, retries, idempotency) for free.
func (s *Scheduler) PublishNow(ctx context.Context, founderID string, req models.PublishRequest) (*models.ContentItem, error) {
	item, err := s.Schedule(ctx, founderID, models.ScheduleRequest{
		ContentID:  req.ContentID,
		EditedText: req.EditedText,
	})
	if err != nil {
		return nil, err
	}
	s.kicker.Kick()
	return item, nil
}

// Cancel stops a scheduled item before dispatch. Items already claimed by a
// worker or in a terminal status report an invalid state.
func (s *Scheduler) Cancel(ctx context.Context, founderID, contentID string) (*models.ContentItem, error) {
	item, err := s.store.Cancel(ctx, founderID, contentID)
	if err != nil {
		return nil, err
	}
	s.recorder.ContentCancelled(item)
	s.logger.WithFields(logrus.Fields{
		"content_id": contentID,
		"founder_id": founderID,
	}).Info("Content item cancelled")
	return item, nil
}

// Reschedule moves a scheduled item to a new post time and resets its retry
// state. Only the timing rules are re-checked: the content itself was
// already validated when it entered the queue.
func (s *Scheduler) Reschedule(ctx context.Context, founderID, contentID string, postTime time.Time) (*models.ContentItem, error) {
	violation, err := s.checker.CheckTiming(ctx, founderID, postTime, s.now())
	if err != nil {
		return nil, err
	}
	if violation != nil {
		return nil, violation
	}
	item, err := s.store.Reschedule(ctx, founderID, contentID, postTime)
	if err != nil {
		return nil, err
	}
	s.recorder.ContentScheduled(item)
	return item, nil
}

// Retry puts an errored item back in the queue with a fresh retry budget.
// The rules are not re-run: the item never posted, so it cannot collide with
// itself, and the operator asking for a retry has seen the error.
func (s *Scheduler) Retry(ctx context.Context, founderID, contentID string) (*models.ContentItem, error) {
	item, err := s.store.GetByID(ctx, founderID, contentID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.StatusError {
		return nil, fmt.Errorf("%w: status is %s", store.ErrInvalidState, item.Status)
	}

	now := s.now()
	scheduled, err := s.store.MarkScheduled(ctx, founderID, contentID, item.ScheduledPostTime, now, item.Priority, nil)
	if err != nil {
		return nil, err
	}
	s.kicker.Kick()
	s.recorder.ContentScheduled(scheduled)
	s.logger.WithFields(logrus.Fields{
		"content_id": contentID,
		"founder_id": founderID,
	}).Info("Errored content item requeued")
	return scheduled, nil
}

// UpdateText sets the edited-text override on an item that has not been
// dispatched yet. The new text must still pass the content-policy rules.
func (s *Scheduler) UpdateText(ctx context.Context, founderID, contentID, text string) (*models.ContentItem, error) {
	violation, err := s.checker.CheckText(ctx, founderID, text)
	if err != nil {
		return nil, err
	}
	if violation != nil {
		return nil, violation
	}
	return s.store.UpdateEditedText(ctx, founderID, contentID, text)
}

// GetStatus returns the current state of one item.
func (s *Scheduler) GetStatus(ctx context.Context, founderID, contentID string) (*models.ContentItem, error) {
	return s.store.GetByID(ctx, founderID, contentID)
}

// ListScheduled returns the founder's pending queue.
func (s *Scheduler) ListScheduled(ctx context.Context, founderID string, limit, offset int) ([]*models.ContentItem, error) {
	return s.store.ListScheduled(ctx, founderID, limit, offset)
}

// ListHistory returns the founder's finished items.
func (s *Scheduler) ListHistory(ctx context.Context, founderID string, filters models.HistoryFilters) ([]*models.ContentItem, error) {
	return s.store.ListHistory(ctx, founderID, filters)
}

// GetPolicy returns the founder's effective publishing policy, which is the
// service defaults until the founder stores overrides.
func (s *Scheduler) GetPolicy(ctx context.Context, founderID string) (models.TenantPolicy, error) {
	return s.checker.Policy(ctx, founderID)
}

// SetPolicy stores the founder's policy overrides and drops the cached copy
// so the next rule check evaluates against the new values.
func (s *Scheduler) SetPolicy(ctx context.Context, founderID string, policy models.TenantPolicy) (models.TenantPolicy, error) {
	policy.FounderID = founderID
	if err := s.store.UpsertPolicy(ctx, founderID, policy); err != nil {
		return models.TenantPolicy{}, err
	}
	s.checker.InvalidatePolicy(founderID)
	s.logger.WithField("founder_id", founderID).Info("Tenant policy updated")
	return s.checker.Policy(ctx, founderID)
}

// ScheduleBatch schedules every item in the request. Items fail
// independently: one rejection never rolls back its neighbours. Results come
// back in request order.
func (s *Scheduler) ScheduleBatch(ctx context.Context, founderID string, req models.BatchScheduleRequest) []models.ScheduleResult {
	results := make([]models.ScheduleResult, len(req.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, itemReq := range req.Items {
		i, itemReq := i, itemReq
		g.Go(func() error {
			item, err := s.Schedule(gctx, founderID, itemReq)
			results[i] = s.toResult(itemReq.ContentID, item, err)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// PublishBatch publishes every item in the request immediately, with the
// same per-item independence as ScheduleBatch. The dispatcher is woken once
// at the end rather than per item.
func (s *Scheduler) PublishBatch(ctx context.Context, founderID string, req models.BatchPublishRequest) []models.ScheduleResult {
	results := make([]models.ScheduleResult, len(req.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, itemReq := range req.Items {
		i, itemReq := i, itemReq
		g.Go(func() error {
			item, err := s.Schedule(gctx, founderID, models.ScheduleRequest{
				ContentID:  itemReq.ContentID,
				EditedText: itemReq.EditedText,
			})
			results[i] = s.toResult(itemReq.ContentID, item, err)
			return nil
		})
	}
	_ = g.Wait()
	s.kicker.Kick()
	return results
}

func (s *Scheduler) toResult(contentID string, item *models.ContentItem, err error) models.ScheduleResult {
	result := models.ScheduleResult{ContentID: contentID, Item: item}
	if err == nil {
		return result
	}
	var violation *models.RuleViolation
	if errors.As(err, &violation) {
		result.Violation = violation
	} else {
		result.Error = err.Error()
	}
	result.Item = nil
	return result
}
