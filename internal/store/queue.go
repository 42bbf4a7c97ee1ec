package store

import (
	"context"
	"fmt"
	"time"

	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

// SelectDue returns scheduled, unclaimed items whose next attempt time has
// arrived, ordered by priority (lower first), then due time, then id. The id
// tiebreak keeps the order deterministic under equal priority and time.
func (s *ContentStore) SelectDue(ctx context.Context, now time.Time, limit int) ([]*models.ContentItem, error) {
	query := `
		SELECT ` + contentColumns + `
		FROM content_items
		WHERE status = 'scheduled' AND claimed_at IS NULL AND next_attempt_at <= $1
		ORDER BY priority ASC, next_attempt_at ASC, id ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select due content items: %w", err)
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due content item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Claim atomically marks an item as owned by a worker. Exactly one of any
// number of concurrent callers wins; the rest see zero rows and back off.
func (s *ContentStore) Claim(ctx context.Context, contentID, workerID string, now time.Time) (bool, error) {
	query := `
		UPDATE content_items
		SET claimed_at = $3, claimed_by = $2, updated_at = now()
		WHERE id = $1 AND status = 'scheduled' AND claimed_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, contentID, workerID, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim content item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return affected == 1, nil
}

// MarkPosted records a successful publish and releases the claim. Scoped to
// the claiming worker so a reaped-and-reclaimed item cannot be finished twice.
func (s *ContentStore) MarkPosted(ctx context.Context, contentID, workerID, platformID string, postedAt time.Time) error {
	query := `
		UPDATE content_items
		SET status = 'posted', posted_platform_id = $3, posted_at = $4,
			next_attempt_at = NULL, error_code = NULL, error_message = NULL,
			claimed_at = NULL, claimed_by = NULL, updated_at = now()
		WHERE id = $1 AND claimed_by = $2 AND status = 'scheduled'`

	result, err := s.db.ExecContext(ctx, query, contentID, workerID, platformID, postedAt)
	if err != nil {
		return fmt.Errorf("failed to mark content item posted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read posted result: %w", err)
	}
	if affected != 1 {
		return ErrInvalidState
	}
	return nil
}

// MarkRetry records a failed attempt that will be retried: the retry counter
// advances, the failure is noted, the claim is released, and the item goes
// back to waiting for its next attempt time.
func (s *ContentStore) MarkRetry(ctx context.Context, contentID, workerID, errorCode, errorMessage string, nextAttempt time.Time) error {
	query := `
		UPDATE content_items
		SET retry_count = retry_count + 1, error_code = $3, error_message = $4,
			next_attempt_at = $5, claimed_at = NULL, claimed_by = NULL, updated_at = now()
		WHERE id = $1 AND claimed_by = $2 AND status = 'scheduled'`

	result, err := s.db.ExecContext(ctx, query, contentID, workerID, errorCode, errorMessage, nextAttempt)
	if err != nil {
		return fmt.Errorf("failed to mark content item for retry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read retry result: %w", err)
	}
	if affected != 1 {
		return ErrInvalidState
	}
	return nil
}

// MarkError moves an item to the terminal error status, either because the
// platform rejected it permanently or because retries ran out.
func (s *ContentStore) MarkError(ctx context.Context, contentID, workerID, errorCode, errorMessage string) error {
	query := `
		UPDATE content_items
		SET status = 'error', error_code = $3, error_message = $4,
			next_attempt_at = NULL, claimed_at = NULL, claimed_by = NULL, updated_at = now()
		WHERE id = $1 AND claimed_by = $2 AND status = 'scheduled'`

	result, err := s.db.ExecContext(ctx, query, contentID, workerID, errorCode, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark content item errored: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read error result: %w", err)
	}
	if affected != 1 {
		return ErrInvalidState
	}
	return nil
}

// ReapStaleClaims releases claims held longer than the lease. Covers workers
// that crashed mid-dispatch; the item becomes eligible for selection again.
func (s *ContentStore) ReapStaleClaims(ctx context.Context, now time.Time, lease time.Duration) (int64, error) {
	query := `
		UPDATE content_items
		SET claimed_at = NULL, claimed_by = NULL, updated_at = now()
		WHERE status = 'scheduled' AND claimed_at IS NOT NULL AND claimed_at < $1`

	result, err := s.db.ExecContext(ctx, query, now.Add(-lease))
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale claims: %w", err)
	}
	return result.RowsAffected()
}

// QueueDepth counts items currently eligible for dispatch.
func (s *ContentStore) QueueDepth(ctx context.Context, now time.Time) (int, error) {
	var depth int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM content_items
		WHERE status = 'scheduled' AND claimed_at IS NULL AND next_attempt_at <= $1`,
		now).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("failed to count due content items: %w", err)
	}
	return depth, nil
}
