package models

import (
	"fmt"
	"time"
)

// ScheduleRequest asks the service to schedule one content item
type ScheduleRequest struct {
	ContentID         string     `json:"content_id" binding:"required"`
	ScheduledPostTime *time.Time `json:"scheduled_post_time,omitempty"`
	Priority          *int       `json:"priority,omitempty"`
	EditedText        *string    `json:"edited_text,omitempty"`
}

// BatchScheduleRequest schedules multiple items; items fail independently
type BatchScheduleRequest struct {
	Items []ScheduleRequest `json:"items" binding:"required"`
}

// PublishRequest asks for immediate publication of one content item
type PublishRequest struct {
	ContentID  string  `json:"content_id" binding:"required"`
	EditedText *string `json:"edited_text,omitempty"`
}

// BatchPublishRequest publishes multiple items with the same independence
// guarantee as batch scheduling
type BatchPublishRequest struct {
	Items []PublishRequest `json:"items" binding:"required"`
}

// RescheduleRequest moves the user-visible scheduled time of an item
type RescheduleRequest struct {
	ScheduledPostTime time.Time `json:"scheduled_post_time" binding:"required"`
}

// UpdateTextRequest sets the edited-text override before first dispatch
type UpdateTextRequest struct {
	EditedText string `json:"edited_text" binding:"required"`
}

// ScheduleResult is the per-item outcome of a schedule or publish call
type ScheduleResult struct {
	ContentID string         `json:"content_id"`
	Item      *ContentItem   `json:"item,omitempty"`
	Violation *RuleViolation `json:"violation,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// PolicyRequest sets a founder's publishing policy overrides. Durations are
// strings in time.ParseDuration format ("24h", "90m"), matching the policy
// defaults file.
type PolicyRequest struct {
	SimilarityThreshold float64  `json:"similarity_threshold" binding:"required"`
	DuplicateLookback   string   `json:"duplicate_lookback" binding:"required"`
	MaxPostsPerWindow   int      `json:"max_posts_per_window" binding:"required"`
	RateWindow          string   `json:"rate_window" binding:"required"`
	BannedTerms         []string `json:"banned_terms"`
	ClockSkewTolerance  string   `json:"clock_skew_tolerance" binding:"required"`
	MaxLookahead        string   `json:"max_lookahead" binding:"required"`
}

// Policy converts the request into a TenantPolicy, rejecting values the
// rules engine cannot evaluate against.
func (r PolicyRequest) Policy() (TenantPolicy, error) {
	if r.SimilarityThreshold <= 0 || r.SimilarityThreshold > 1 {
		return TenantPolicy{}, fmt.Errorf("similarity_threshold must be in (0,1], got %v", r.SimilarityThreshold)
	}
	if r.MaxPostsPerWindow <= 0 {
		return TenantPolicy{}, fmt.Errorf("max_posts_per_window must be positive, got %d", r.MaxPostsPerWindow)
	}

	policy := TenantPolicy{
		SimilarityThreshold: r.SimilarityThreshold,
		MaxPostsPerWindow:   r.MaxPostsPerWindow,
		BannedTerms:         r.BannedTerms,
	}
	for _, d := range []struct {
		dst   *time.Duration
		raw   string
		field string
	}{
		{&policy.DuplicateLookback, r.DuplicateLookback, "duplicate_lookback"},
		{&policy.RateWindow, r.RateWindow, "rate_window"},
		{&policy.ClockSkewTolerance, r.ClockSkewTolerance, "clock_skew_tolerance"},
		{&policy.MaxLookahead, r.MaxLookahead, "max_lookahead"},
	} {
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return TenantPolicy{}, fmt.Errorf("invalid %s %q: %w", d.field, d.raw, err)
		}
		if parsed < 0 {
			return TenantPolicy{}, fmt.Errorf("%s cannot be negative, got %s", d.field, d.raw)
		}
		*d.dst = parsed
	}
	if policy.RateWindow == 0 {
		return TenantPolicy{}, fmt.Errorf("rate_window must be positive")
	}
	return policy, nil
}

// PolicyResponse is the wire form of an effective policy, with durations
// rendered back as strings.
type PolicyResponse struct {
	FounderID           string   `json:"founder_id"`
	SimilarityThreshold float64  `json:"similarity_threshold"`
	DuplicateLookback   string   `json:"duplicate_lookback"`
	MaxPostsPerWindow   int      `json:"max_posts_per_window"`
	RateWindow          string   `json:"rate_window"`
	BannedTerms         []string `json:"banned_terms"`
	ClockSkewTolerance  string   `json:"clock_skew_tolerance"`
	MaxLookahead        string   `json:"max_lookahead"`
}

func NewPolicyResponse(founderID string, p TenantPolicy) PolicyResponse {
	return PolicyResponse{
		FounderID:           founderID,
		SimilarityThreshold: p.SimilarityThreshold,
		DuplicateLookback:   p.DuplicateLookback.String(),
		MaxPostsPerWindow:   p.MaxPostsPerWindow,
		RateWindow:          p.RateWindow.String(),
		BannedTerms:         p.BannedTerms,
		ClockSkewTolerance:  p.ClockSkewTolerance.String(),
		MaxLookahead:        p.MaxLookahead.String(),
	}
}

// HistoryFilters narrows listing queries. Zero values mean "no filter".
type HistoryFilters struct {
	Status ContentStatus
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}
