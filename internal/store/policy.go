package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

// GetPolicy returns the founder's policy row, or fallback when none exists.
// Durations are stored as whole seconds.
func (s *ContentStore) GetPolicy(ctx context.Context, founderID string, fallback models.TenantPolicy) (models.TenantPolicy, error) {
	query := `
		SELECT similarity_threshold, duplicate_lookback, max_posts_per_window,
			rate_window, banned_terms, clock_skew_tolerance, max_lookahead
		FROM tenant_policies WHERE founder_id = $1`

	var policy models.TenantPolicy
	var lookbackSec, rateWindowSec, skewSec, lookaheadSec int64
	err := s.db.QueryRowContext(ctx, query, founderID).Scan(
		&policy.SimilarityThreshold, &lookbackSec, &policy.MaxPostsPerWindow,
		&rateWindowSec, pq.Array(&policy.BannedTerms), &skewSec, &lookaheadSec)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("failed to get tenant policy: %w", err)
	}

	policy.DuplicateLookback = time.Duration(lookbackSec) * time.Second
	policy.RateWindow = time.Duration(rateWindowSec) * time.Second
	policy.ClockSkewTolerance = time.Duration(skewSec) * time.Second
	policy.MaxLookahead = time.Duration(lookaheadSec) * time.Second
	return policy, nil
}

// UpsertPolicy writes a founder's policy overrides.
func (s *ContentStore) UpsertPolicy(ctx context.Context, founderID string, policy models.TenantPolicy) error {
	query := `
		INSERT INTO tenant_policies (founder_id, similarity_threshold, duplicate_lookback,
			max_posts_per_window, rate_window, banned_terms, clock_skew_tolerance,
			max_lookahead, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (founder_id) DO UPDATE SET
			similarity_threshold = EXCLUDED.similarity_threshold,
			duplicate_lookback = EXCLUDED.duplicate_lookback,
			max_posts_per_window = EXCLUDED.max_posts_per_window,
			rate_window = EXCLUDED.rate_window,
			banned_terms = EXCLUDED.banned_terms,
			clock_skew_tolerance = EXCLUDED.clock_skew_tolerance,
			max_lookahead = EXCLUDED.max_lookahead,
			updated_at = now()`

	_, err := s.db.ExecContext(ctx, query, founderID, policy.SimilarityThreshold,
		int64(policy.DuplicateLookback/time.Second), policy.MaxPostsPerWindow,
		int64(policy.RateWindow/time.Second), pq.Array(policy.BannedTerms),
		int64(policy.ClockSkewTolerance/time.Second), int64(policy.MaxLookahead/time.Second))
	if err != nil {
		return fmt.Errorf("failed to upsert tenant policy: %w", err)
	}
	return nil
}
