package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JerryGgzm/SEO-TOOL/internal/store"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

// memStore is an in-memory Store with the same claim and transition
// semantics as the Postgres implementation.
type memStore struct {
	mu    sync.Mutex
	items map[string]*models.ContentItem
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]*models.ContentItem)}
}

func (m *memStore) add(item *models.ContentItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *item
	m.items[item.ID] = &copied
}

func (m *memStore) get(id string) models.ContentItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.items[id]
}

func (m *memStore) SelectDue(ctx context.Context, now time.Time, limit int) ([]*models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*models.ContentItem
	for _, item := range m.items {
		if item.Status == models.StatusScheduled && item.ClaimedAt == nil &&
			item.NextAttemptAt != nil && !item.NextAttemptAt.After(now) {
			copied := *item
			due = append(due, &copied)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority < due[j].Priority
		}
		if !due[i].NextAttemptAt.Equal(*due[j].NextAttemptAt) {
			return due[i].NextAttemptAt.Before(*due[j].NextAttemptAt)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *memStore) Claim(ctx context.Context, contentID, workerID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[contentID]
	if !ok || item.Status != models.StatusScheduled || item.ClaimedAt != nil {
		return false, nil
	}
	claimedAt := now
	item.ClaimedAt = &claimedAt
	item.ClaimedBy = &workerID
	return true, nil
}

func (m *memStore) GetForDispatch(ctx context.Context, contentID string) (*models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[contentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *memStore) MarkPosted(ctx context.Context, contentID, workerID, platformID string, postedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[contentID]
	if !ok || item.Status != models.StatusScheduled || item.ClaimedBy == nil || *item.ClaimedBy != workerID {
		return store.ErrInvalidState
	}
	item.Status = models.StatusPosted
	item.PostedPlatformID = &platformID
	item.PostedAt = &postedAt
	item.NextAttemptAt = nil
	item.ClaimedAt = nil
	item.ClaimedBy = nil
	return nil
}

func (m *memStore) MarkRetry(ctx context.Context, contentID, workerID, errorCode, errorMessage string, nextAttempt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[contentID]
	if !ok || item.Status != models.StatusScheduled || item.ClaimedBy == nil || *item.ClaimedBy != workerID {
		return store.ErrInvalidState
	}
	item.RetryCount++
	item.ErrorCode = &errorCode
	item.ErrorMessage = &errorMessage
	next := nextAttempt
	item.NextAttemptAt = &next
	item.ClaimedAt = nil
	item.ClaimedBy = nil
	return nil
}

func (m *memStore) MarkError(ctx context.Context, contentID, workerID, errorCode, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[contentID]
	if !ok || item.Status != models.StatusScheduled || item.ClaimedBy == nil || *item.ClaimedBy != workerID {
		return store.ErrInvalidState
	}
	item.Status = models.StatusError
	item.ErrorCode = &errorCode
	item.ErrorMessage = &errorMessage
	item.NextAttemptAt = nil
	item.ClaimedAt = nil
	item.ClaimedBy = nil
	return nil
}

func (m *memStore) ReapStaleClaims(ctx context.Context, now time.Time, lease time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var reaped int64
	cutoff := now.Add(-lease)
	for _, item := range m.items {
		if item.Status == models.StatusScheduled && item.ClaimedAt != nil && item.ClaimedAt.Before(cutoff) {
			item.ClaimedAt = nil
			item.ClaimedBy = nil
			reaped++
		}
	}
	return reaped, nil
}

func (m *memStore) QueueDepth(ctx context.Context, now time.Time) (int, error) {
	due, err := m.SelectDue(ctx, now, 1<<30)
	return len(due), err
}
