package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

const contentColumns = `id, founder_id, text, edited_text, status, scheduled_post_time,
	next_attempt_at, priority, retry_count, max_retries, posted_platform_id,
	error_code, error_message, claimed_at, claimed_by, created_at, updated_at, posted_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContentItem(row rowScanner) (*models.ContentItem, error) {
	var item models.ContentItem
	var editedText, postedPlatformID, errorCode, errorMessage, claimedBy sql.NullString
	var scheduledPostTime, nextAttemptAt, claimedAt, postedAt sql.NullTime

	err := row.Scan(&item.ID, &item.FounderID, &item.Text, &editedText, &item.Status,
		&scheduledPostTime, &nextAttemptAt, &item.Priority, &item.RetryCount,
		&item.MaxRetries, &postedPlatformID, &errorCode, &errorMessage,
		&claimedAt, &claimedBy, &item.CreatedAt, &item.UpdatedAt, &postedAt)
	if err != nil {
		return nil, err
	}

	item.EditedText = stringPtr(editedText)
	item.ScheduledPostTime = timePtr(scheduledPostTime)
	item.NextAttemptAt = timePtr(nextAttemptAt)
	item.PostedPlatformID = stringPtr(postedPlatformID)
	item.ErrorCode = stringPtr(errorCode)
	item.ErrorMessage = stringPtr(errorMessage)
	item.ClaimedAt = timePtr(claimedAt)
	item.ClaimedBy = stringPtr(claimedBy)
	item.PostedAt = timePtr(postedAt)
	return &item, nil
}

// Insert persists a new content item. Items normally arrive in
// pending_review after drafting; the review pipeline moves them to approved
// before they become schedulable.
func (s *ContentStore) Insert(ctx context.Context, item *models.ContentItem) error {
	query := `
		INSERT INTO content_items (id, founder_id, text, edited_text, status,
			scheduled_post_time, next_attempt_at, priority, retry_count, max_retries,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`

	_, err := s.db.ExecContext(ctx, query, item.ID, item.FounderID, item.Text,
		nullString(item.EditedText), item.Status, nullTime(item.ScheduledPostTime),
		nullTime(item.NextAttemptAt), item.Priority, item.RetryCount, item.MaxRetries)
	if err != nil {
		return fmt.Errorf("failed to insert content item: %w", err)
	}
	return nil
}

// GetByID loads a single item scoped to its founder. A founder querying
// another founder's item gets ErrNotFound, not a permission error.
func (s *ContentStore) GetByID(ctx context.Context, founderID, contentID string) (*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id = $1 AND founder_id = $2`

	item, err := scanContentItem(s.db.QueryRowContext(ctx, query, contentID, founderID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}

// getForDispatch loads an item without tenant scoping for queue workers.
func (s *ContentStore) getForDispatch(ctx context.Context, contentID string) (*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id = $1`

	item, err := scanContentItem(s.db.QueryRowContext(ctx, query, contentID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}

// GetForDispatch is the unscoped read used by the dispatcher after claiming.
func (s *ContentStore) GetForDispatch(ctx context.Context, contentID string) (*models.ContentItem, error) {
	return s.getForDispatch(ctx, contentID)
}

// MarkScheduled transitions an approved (or errored, for manual retries)
// item into scheduled. The status list in the WHERE clause is the compare
// half of a compare-and-set: a concurrent transition loses and surfaces as
// ErrInvalidState. An edited-text override rides on the same UPDATE, so a
// lost race writes nothing at all. A nil editedText keeps the stored text.
func (s *ContentStore) MarkScheduled(ctx context.Context, founderID, contentID string, postTime *time.Time, nextAttempt time.Time, priority int, editedText *string) (*models.ContentItem, error) {
	query := `
		UPDATE content_items
		SET status = 'scheduled', scheduled_post_time = $3, next_attempt_at = $4,
			priority = $5, edited_text = COALESCE($6, edited_text), retry_count = 0,
			error_code = NULL, error_message = NULL,
			claimed_at = NULL, claimed_by = NULL, updated_at = now()
		WHERE id = $1 AND founder_id = $2 AND status IN ('pending_review', 'approved', 'error')
		RETURNING ` + contentColumns

	item, err := scanContentItem(s.db.QueryRowContext(ctx, query,
		contentID, founderID, nullTime(postTime), nextAttempt, priority, nullString(editedText)))
	if err == sql.ErrNoRows {
		return nil, s.classifyMiss(ctx, founderID, contentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to schedule content item: %w", err)
	}
	return item, nil
}

// Cancel moves a scheduled, unclaimed item to cancelled. An item already
// claimed by a worker is mid-flight and can no longer be cancelled.
func (s *ContentStore) Cancel(ctx context.Context, founderID, contentID string) (*models.ContentItem, error) {
	query := `
		UPDATE content_items
		SET status = 'cancelled', next_attempt_at = NULL, updated_at = now()
		WHERE id = $1 AND founder_id = $2 AND status = 'scheduled' AND claimed_at IS NULL
		RETURNING ` + contentColumns

	item, err := scanContentItem(s.db.QueryRowContext(ctx, query, contentID, founderID))
	if err == sql.ErrNoRows {
		return nil, s.classifyMiss(ctx, founderID, contentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel content item: %w", err)
	}
	return item, nil
}

// Reschedule moves the post time of a scheduled, unclaimed item and resets
// its retry state so the new schedule starts clean.
func (s *ContentStore) Reschedule(ctx context.Context, founderID, contentID string, postTime time.Time) (*models.ContentItem, error) {
	query := `
		UPDATE content_items
		SET scheduled_post_time = $3, next_attempt_at = $3, retry_count = 0,
			updated_at = now()
		WHERE id = $1 AND founder_id = $2 AND status = 'scheduled' AND claimed_at IS NULL
		RETURNING ` + contentColumns

	item, err := scanContentItem(s.db.QueryRowContext(ctx, query, contentID, founderID, postTime))
	if err == sql.ErrNoRows {
		return nil, s.classifyMiss(ctx, founderID, contentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule content item: %w", err)
	}
	return item, nil
}

// UpdateEditedText replaces the outgoing text of an item that has not been
// dispatched yet. Once a worker claims the item, the text is frozen.
func (s *ContentStore) UpdateEditedText(ctx context.Context, founderID, contentID, text string) (*models.ContentItem, error) {
	query := `
		UPDATE content_items
		SET edited_text = $3, updated_at = now()
		WHERE id = $1 AND founder_id = $2
			AND status IN ('pending_review', 'approved', 'scheduled')
			AND claimed_at IS NULL
		RETURNING ` + contentColumns

	item, err := scanContentItem(s.db.QueryRowContext(ctx, query, contentID, founderID, text))
	if err == sql.ErrNoRows {
		return nil, s.classifyMiss(ctx, founderID, contentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update content item text: %w", err)
	}
	return item, nil
}

// classifyMiss turns a zero-row CAS update into the right sentinel: the item
// either does not exist for this founder (ErrNotFound) or exists in a status
// that rejects the transition (ErrInvalidState).
func (s *ContentStore) classifyMiss(ctx context.Context, founderID, contentID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM content_items WHERE id = $1 AND founder_id = $2)`,
		contentID, founderID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check content item existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidState
}
