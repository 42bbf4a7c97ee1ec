package models

import (
	"time"
)

// ContentStatus tracks a content item through the publishing lifecycle
type ContentStatus string

const (
	StatusPendingReview ContentStatus = "pending_review"
	StatusApproved      ContentStatus = "approved"
	StatusRejected      ContentStatus = "rejected"
	StatusScheduled     ContentStatus = "scheduled"
	StatusPosted        ContentStatus = "posted"
	StatusError         ContentStatus = "error"
	StatusCancelled     ContentStatus = "cancelled"
)

// Terminal reports whether no further automatic transition is possible
func (s ContentStatus) Terminal() bool {
	return s == StatusPosted || s == StatusError || s == StatusCancelled || s == StatusRejected
}

// Schedulable reports whether the item may enter the scheduling pipeline
func (s ContentStatus) Schedulable() bool {
	return s == StatusPendingReview || s == StatusApproved
}

// DefaultMaxRetries is the retry budget applied when none is configured
const DefaultMaxRetries = 3

// ContentItem is the unit of content scheduled and posted on behalf of a founder.
// Text is immutable after creation; EditedText may override it until the first
// dispatch attempt. ScheduledPostTime is the user-visible schedule and is only
// changed by an explicit reschedule; the retry path moves NextAttemptAt instead.
type ContentItem struct {
	ID         string        `json:"id" db:"id"`
	FounderID  string        `json:"founder_id" db:"founder_id"`
	Text       string        `json:"text" db:"text"`
	EditedText *string       `json:"edited_text,omitempty" db:"edited_text"`
	Status     ContentStatus `json:"status" db:"status"`

	ScheduledPostTime *time.Time `json:"scheduled_post_time,omitempty" db:"scheduled_post_time"`
	NextAttemptAt     *time.Time `json:"-" db:"next_attempt_at"`
	Priority          int        `json:"priority" db:"priority"`

	RetryCount int `json:"retry_count" db:"retry_count"`
	MaxRetries int `json:"max_retries" db:"max_retries"`

	PostedPlatformID *string `json:"posted_platform_id,omitempty" db:"posted_platform_id"`
	ErrorCode        *string `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage     *string `json:"error_message,omitempty" db:"error_message"`

	// Claim record for dispatch exclusivity. Set atomically when a worker
	// takes the item, cleared when the outcome is persisted.
	ClaimedAt *time.Time `json:"-" db:"claimed_at"`
	ClaimedBy *string    `json:"-" db:"claimed_by"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	PostedAt  *time.Time `json:"posted_at,omitempty" db:"posted_at"`
}

// PublishText returns the text that will actually be posted
func (c *ContentItem) PublishText() string {
	if c.EditedText != nil && *c.EditedText != "" {
		return *c.EditedText
	}
	return c.Text
}

// RecentPost is the slice of posting history the rules engine evaluates against
type RecentPost struct {
	ContentID string    `json:"content_id"`
	Text      string    `json:"text"`
	PostedAt  time.Time `json:"posted_at"`
}
