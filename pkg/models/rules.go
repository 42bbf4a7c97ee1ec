package models

import "time"

// Rule violation reason codes, in check order
const (
	ViolationDuplicateContent = "DUPLICATE_CONTENT"
	ViolationRateLimited      = "RATE_LIMIT_EXCEEDED"
	ViolationContentPolicy    = "CONTENT_POLICY"
	ViolationScheduleInPast   = "SCHEDULE_IN_PAST"
	ViolationScheduleTooFar   = "SCHEDULE_TOO_FAR"
)

// RuleViolation is the structured rejection produced by the rules engine.
// It is attached to the rejected request's response and never persisted.
type RuleViolation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v *RuleViolation) Error() string {
	return v.Code + ": " + v.Message
}

// TenantPolicy holds the per-founder publishing policy the rules engine
// evaluates against. Threshold and window values are required configuration,
// loaded from the policy store with file-level defaults.
type TenantPolicy struct {
	FounderID string `json:"founder_id"`

	// Duplicate suppression
	SimilarityThreshold float64       `json:"similarity_threshold"`
	DuplicateLookback   time.Duration `json:"duplicate_lookback"`

	// Rate limiting
	MaxPostsPerWindow int           `json:"max_posts_per_window"`
	RateWindow        time.Duration `json:"rate_window"`

	// Content policy
	BannedTerms []string `json:"banned_terms"`

	// Scheduling sanity
	ClockSkewTolerance time.Duration `json:"clock_skew_tolerance"`
	MaxLookahead       time.Duration `json:"max_lookahead"`
}

// DefaultTenantPolicy returns the policy applied to founders without an
// explicit policy row. Values mirror the product defaults: five posts per
// day, 0.8 similarity over a week of history.
func DefaultTenantPolicy() TenantPolicy {
	return TenantPolicy{
		SimilarityThreshold: 0.8,
		DuplicateLookback:   7 * 24 * time.Hour,
		MaxPostsPerWindow:   5,
		RateWindow:          24 * time.Hour,
		ClockSkewTolerance:  2 * time.Minute,
		MaxLookahead:        90 * 24 * time.Hour,
	}
}
