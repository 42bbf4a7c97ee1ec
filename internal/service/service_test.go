package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JerryGgzm/SEO-TOOL/internal/analytics"
	"github.com/JerryGgzm/SEO-TOOL/internal/rules"
	"github.com/JerryGgzm/SEO-TOOL/internal/store"
	"github.com/JerryGgzm/SEO-TOOL/pkg/logging"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

type fakeStore struct {
	mu       sync.Mutex
	items    map[string]*models.ContentItem
	policies map[string]models.TenantPolicy
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:    make(map[string]*models.ContentItem),
		policies: make(map[string]models.TenantPolicy),
	}
}

func (f *fakeStore) add(item *models.ContentItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *item
	f.items[item.ID] = &copied
}

func (f *fakeStore) get(founderID, id string) (*models.ContentItem, error) {
	item, ok := f.items[id]
	if !ok || item.FounderID != founderID {
		return nil, store.ErrNotFound
	}
	return item, nil
}

func (f *fakeStore) GetByID(ctx context.Context, founderID, contentID string) (*models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, err := f.get(founderID, contentID)
	if err != nil {
		return nil, err
	}
	copied := *item
	return &copied, nil
}

func (f *fakeStore) MarkScheduled(ctx context.Context, founderID, contentID string, postTime *time.Time, nextAttempt time.Time, priority int, editedText *string) (*models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, err := f.get(founderID, contentID)
	if err != nil {
		return nil, err
	}
	if !item.Status.Schedulable() && item.Status != models.StatusError {
		return nil, store.ErrInvalidState
	}
	item.Status = models.StatusScheduled
	item.ScheduledPostTime = postTime
	next := nextAttempt
	item.NextAttemptAt = &next
	item.Priority = priority
	if editedText != nil {
		text := *editedText
		item.EditedText = &text
	}
	item.RetryCount = 0
	item.ErrorCode = nil
	item.ErrorMessage = nil
	copied := *item
	return &copied, nil
}

func (f *fakeStore) Cancel(ctx context.Context, founderID, contentID string) (*models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, err := f.get(founderID, contentID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.StatusScheduled || item.ClaimedAt != nil {
		return nil, store.ErrInvalidState
	}
	item.Status = models.StatusCancelled
	item.NextAttemptAt = nil
	copied := *item
	return &copied, nil
}

func (f *fakeStore) Reschedule(ctx context.Context, founderID, contentID string, postTime time.Time) (*models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, err := f.get(founderID, contentID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.StatusScheduled || item.ClaimedAt != nil {
		return nil, store.ErrInvalidState
	}
	when := postTime
	item.ScheduledPostTime = &when
	item.NextAttemptAt = &when
	item.RetryCount = 0
	copied := *item
	return &copied, nil
}

func (f *fakeStore) UpdateEditedText(ctx context.Context, founderID, contentID, text string) (*models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, err := f.get(founderID, contentID)
	if err != nil {
		return nil, err
	}
	if item.Status.Terminal() || item.ClaimedAt != nil {
		return nil, store.ErrInvalidState
	}
	item.EditedText = &text
	copied := *item
	return &copied, nil
}

func (f *fakeStore) ListScheduled(ctx context.Context, founderID string, limit, offset int) ([]*models.ContentItem, error) {
	return nil, nil
}

func (f *fakeStore) ListHistory(ctx context.Context, founderID string, filters models.HistoryFilters) ([]*models.ContentItem, error) {
	return nil, nil
}

func (f *fakeStore) UpsertPolicy(ctx context.Context, founderID string, policy models.TenantPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[founderID] = policy
	return nil
}

// fakeChecker rejects content ids present in the reject map.
type fakeChecker struct {
	reject        map[string]*models.RuleViolation
	invalidations int
}

func (f *fakeChecker) Check(ctx context.Context, founderID string, candidate rules.Candidate, now time.Time) (*models.RuleViolation, error) {
	return f.reject[candidate.Text], nil
}

func (f *fakeChecker) CheckTiming(ctx context.Context, founderID string, postTime, now time.Time) (*models.RuleViolation, error) {
	return nil, nil
}

func (f *fakeChecker) CheckText(ctx context.Context, founderID, text string) (*models.RuleViolation, error) {
	return f.reject[text], nil
}

func (f *fakeChecker) Policy(ctx context.Context, founderID string) (models.TenantPolicy, error) {
	return models.DefaultTenantPolicy(), nil
}

func (f *fakeChecker) InvalidatePolicy(founderID string) {
	f.invalidations++
}

type countingKicker struct {
	mu    sync.Mutex
	kicks int
}

func (c *countingKicker) Kick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kicks++
}

func (c *countingKicker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kicks
}

func newTestScheduler(fs Store, checker RuleChecker) (*Scheduler, *analytics.CaptureRecorder, *countingKicker) {
	if checker == nil {
		checker = &fakeChecker{reject: map[string]*models.RuleViolation{}}
	}
	recorder := &analytics.CaptureRecorder{}
	kicker := &countingKicker{}
	return NewScheduler(fs, checker, recorder, kicker, logging.NewLogger()), recorder, kicker
}

func approvedItem(founderID string) *models.ContentItem {
	return &models.ContentItem{
		ID:         uuid.New().String(),
		FounderID:  founderID,
		Text:       "an approved announcement",
		Status:     models.StatusApproved,
		MaxRetries: models.DefaultMaxRetries,
	}
}

func TestSchedule_MovesApprovedItemIntoQueue(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()
	item := approvedItem(founderID)
	fs.add(item)

	sched, recorder, _ := newTestScheduler(fs, nil)
	postTime := time.Now().Add(2 * time.Hour)

	got, err := sched.Schedule(context.Background(), founderID, models.ScheduleRequest{
		ContentID:         item.ID,
		ScheduledPostTime: &postTime,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", got.Status)
	}
	if got.NextAttemptAt == nil || !got.NextAttemptAt.Equal(postTime) {
		t.Fatalf("expected next attempt at %s, got %v", postTime, got.NextAttemptAt)
	}

	events := recorder.Events()
	if len(events) != 1 || events[0].ContentID != item.ID {
		t.Fatalf("expected one scheduled event for %s, got %+v", item.ID, events)
	}
}

func TestSchedule_RuleViolationLeavesItemUntouched(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()
	item := approvedItem(founderID)
	fs.add(item)

	checker := &fakeChecker{reject: map[string]*models.RuleViolation{
		item.Text: {Code: models.ViolationRateLimited, Message: "limit reached"},
	}}
	sched, recorder, _ := newTestScheduler(fs, checker)

	_, err := sched.Schedule(context.Background(), founderID, models.ScheduleRequest{ContentID: item.ID})
	var violation *models.RuleViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if violation.Code != models.ViolationRateLimited {
		t.Fatalf("unexpected violation code %s", violation.Code)
	}

	after, _ := fs.GetByID(context.Background(), founderID, item.ID)
	if after.Status != models.StatusApproved {
		t.Fatalf("expected item left approved, got %s", after.Status)
	}
	if len(recorder.Events()) != 0 {
		t.Fatal("expected no analytics events for rejected schedule")
	}
}

func TestSchedule_TerminalItemIsInvalidState(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()
	item := approvedItem(founderID)
	item.Status = models.StatusPosted
	fs.add(item)

	sched, _, _ := newTestScheduler(fs, nil)
	_, err := sched.Schedule(context.Background(), founderID, models.ScheduleRequest{ContentID: item.ID})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestSchedule_CrossTenantIsNotFound(t *testing.T) {
	fs := newFakeStore()
	item := approvedItem(uuid.New().String())
	fs.add(item)

	sched, _, _ := newTestScheduler(fs, nil)
	_, err := sched.Schedule(context.Background(), uuid.New().String(), models.ScheduleRequest{ContentID: item.ID})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPublishNow_WakesDispatcher(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()
	item := approvedItem(founderID)
	fs.add(item)

	sched, _, kicker := newTestScheduler(fs, nil)
	got, err := sched.PublishNow(context.Background(), founderID, models.PublishRequest{ContentID: item.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", got.Status)
	}
	if kicker.count() != 1 {
		t.Fatalf("expected one dispatcher kick, got %d", kicker.count())
	}
}

func TestRetry_RequeuesErroredItem(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()
	item := approvedItem(founderID)
	item.Status = models.StatusError
	item.RetryCount = 3
	code := "RETRIES_EXHAUSTED"
	item.ErrorCode = &code
	fs.add(item)

	sched, _, kicker := newTestScheduler(fs, nil)
	got, err := sched.Retry(context.Background(), founderID, item.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", got.Status)
	}
	if got.RetryCount != 0 {
		t.Fatalf("expected retry count reset, got %d", got.RetryCount)
	}
	if got.ErrorCode != nil {
		t.Fatal("expected error code cleared")
	}
	if kicker.count() != 1 {
		t.Fatalf("expected one dispatcher kick, got %d", kicker.count())
	}
}

func TestRetry_RejectsNonErroredItem(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()
	item := approvedItem(founderID)
	fs.add(item)

	sched, _, _ := newTestScheduler(fs, nil)
	_, err := sched.Retry(context.Background(), founderID, item.ID)
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCancel_RecordsEvent(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()
	item := approvedItem(founderID)
	item.Status = models.StatusScheduled
	fs.add(item)

	sched, recorder, _ := newTestScheduler(fs, nil)
	got, err := sched.Cancel(context.Background(), founderID, item.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if len(recorder.Events()) != 1 {
		t.Fatalf("expected one cancelled event, got %d", len(recorder.Events()))
	}
}

func TestScheduleBatch_ItemsFailIndependently(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()

	good := approvedItem(founderID)
	banned := approvedItem(founderID)
	banned.Text = "a forbidden announcement"
	posted := approvedItem(founderID)
	posted.Status = models.StatusPosted
	fs.add(good)
	fs.add(banned)
	fs.add(posted)

	checker := &fakeChecker{reject: map[string]*models.RuleViolation{
		banned.Text: {Code: models.ViolationContentPolicy, Message: "banned term"},
	}}
	sched, _, _ := newTestScheduler(fs, checker)

	results := sched.ScheduleBatch(context.Background(), founderID, models.BatchScheduleRequest{
		Items: []models.ScheduleRequest{
			{ContentID: good.ID},
			{ContentID: banned.ID},
			{ContentID: posted.ID},
			{ContentID: uuid.New().String()},
		},
	})

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].Item == nil || results[0].Item.Status != models.StatusScheduled {
		t.Fatalf("expected first item scheduled, got %+v", results[0])
	}
	if results[1].Violation == nil || results[1].Violation.Code != models.ViolationContentPolicy {
		t.Fatalf("expected content policy violation, got %+v", results[1])
	}
	if results[2].Error == "" {
		t.Fatalf("expected invalid-state error, got %+v", results[2])
	}
	if results[3].Error == "" {
		t.Fatalf("expected not-found error, got %+v", results[3])
	}

	after, _ := fs.GetByID(context.Background(), founderID, good.ID)
	if after.Status != models.StatusScheduled {
		t.Fatalf("expected good item scheduled despite batch failures, got %s", after.Status)
	}
}

// racingStore simulates an item whose status changes between the initial
// read and the scheduling compare-and-set.
type racingStore struct {
	*fakeStore
}

func (r *racingStore) MarkScheduled(ctx context.Context, founderID, contentID string, postTime *time.Time, nextAttempt time.Time, priority int, editedText *string) (*models.ContentItem, error) {
	return nil, store.ErrInvalidState
}

func TestSchedule_EditedTextRidesOnTransition(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()
	item := approvedItem(founderID)
	fs.add(item)

	sched, _, _ := newTestScheduler(fs, nil)
	edited := "a sharper announcement"

	got, err := sched.Schedule(context.Background(), founderID, models.ScheduleRequest{
		ContentID:  item.ID,
		EditedText: &edited,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EditedText == nil || *got.EditedText != edited {
		t.Fatalf("expected edited text persisted, got %v", got.EditedText)
	}
	if got.Status != models.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", got.Status)
	}
}

func TestSchedule_LostTransitionRaceWritesNothing(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()
	item := approvedItem(founderID)
	fs.add(item)

	sched, recorder, _ := newTestScheduler(&racingStore{fs}, nil)
	edited := "text that must not stick"

	_, err := sched.Schedule(context.Background(), founderID, models.ScheduleRequest{
		ContentID:  item.ID,
		EditedText: &edited,
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	after, _ := fs.GetByID(context.Background(), founderID, item.ID)
	if after.EditedText != nil {
		t.Fatalf("expected no edited text after lost race, got %q", *after.EditedText)
	}
	if after.Status != models.StatusApproved {
		t.Fatalf("expected item left approved, got %s", after.Status)
	}
	if len(recorder.Events()) != 0 {
		t.Fatal("expected no analytics events for failed schedule")
	}
}

func TestSetPolicy_PersistsAndInvalidatesCache(t *testing.T) {
	fs := newFakeStore()
	founderID := uuid.New().String()
	checker := &fakeChecker{reject: map[string]*models.RuleViolation{}}
	sched, _, _ := newTestScheduler(fs, checker)

	policy := models.DefaultTenantPolicy()
	policy.MaxPostsPerWindow = 9
	policy.BannedTerms = []string{"giveaway"}

	if _, err := sched.SetPolicy(context.Background(), founderID, policy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, ok := fs.policies[founderID]
	if !ok {
		t.Fatal("expected policy upserted")
	}
	if stored.FounderID != founderID || stored.MaxPostsPerWindow != 9 {
		t.Fatalf("unexpected stored policy %+v", stored)
	}
	if checker.invalidations != 1 {
		t.Fatalf("expected one cache invalidation, got %d", checker.invalidations)
	}
}
