package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

const defaultListLimit = 50

// ListScheduled returns a founder's items that are waiting to go out,
// soonest first.
func (s *ContentStore) ListScheduled(ctx context.Context, founderID string, limit, offset int) ([]*models.ContentItem, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `
		SELECT ` + contentColumns + `
		FROM content_items
		WHERE founder_id = $1 AND status = 'scheduled'
		ORDER BY next_attempt_at ASC, id ASC
		LIMIT $2 OFFSET $3`

	return s.queryItems(ctx, query, founderID, limit, offset)
}

// ListHistory returns a founder's items that have reached a terminal status,
// newest first, optionally filtered by status and time range.
func (s *ContentStore) ListHistory(ctx context.Context, founderID string, filters models.HistoryFilters) ([]*models.ContentItem, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT ` + contentColumns + `
		FROM content_items
		WHERE founder_id = $1 AND status IN ('posted', 'error', 'cancelled')`
	args := []interface{}{founderID}

	if filters.Status != "" {
		args = append(args, filters.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if !filters.Since.IsZero() {
		args = append(args, filters.Since)
		query += ` AND updated_at >= $` + strconv.Itoa(len(args))
	}
	if !filters.Until.IsZero() {
		args = append(args, filters.Until)
		query += ` AND updated_at < $` + strconv.Itoa(len(args))
	}

	args = append(args, limit)
	query += ` ORDER BY updated_at DESC, id ASC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, filters.Offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	return s.queryItems(ctx, query, args...)
}

// RecentPosts returns the texts a founder has published since the cutoff,
// for duplicate detection against new candidates.
func (s *ContentStore) RecentPosts(ctx context.Context, founderID string, since time.Time) ([]models.RecentPost, error) {
	query := `
		SELECT id, COALESCE(edited_text, text), posted_at
		FROM content_items
		WHERE founder_id = $1 AND status = 'posted' AND posted_at >= $2
		ORDER BY posted_at DESC`

	rows, err := s.db.QueryContext(ctx, query, founderID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent posts: %w", err)
	}
	defer rows.Close()

	var posts []models.RecentPost
	for rows.Next() {
		var post models.RecentPost
		if err := rows.Scan(&post.ContentID, &post.Text, &post.PostedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// CountInRateWindow counts a founder's posts inside the rate window. Items
// already posted count by their posted time; items still scheduled count by
// their planned time, so a burst of scheduling cannot sidestep the limit.
func (s *ContentStore) CountInRateWindow(ctx context.Context, founderID string, windowStart, windowEnd time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM content_items
		WHERE founder_id = $1
			AND ((status = 'posted' AND posted_at >= $2 AND posted_at < $3)
				OR (status = 'scheduled' AND COALESCE(scheduled_post_time, next_attempt_at) >= $2
					AND COALESCE(scheduled_post_time, next_attempt_at) < $3))`,
		founderID, windowStart, windowEnd).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts in rate window: %w", err)
	}
	return count, nil
}

func (s *ContentStore) queryItems(ctx context.Context, query string, args ...interface{}) ([]*models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content items: %w", err)
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
