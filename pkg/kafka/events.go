package kafka

import (
	"time"
)

// PostingEventsTopic is the topic raw publish outcomes are appended to.
// Downstream analytics owns aggregation; this service only records.
const PostingEventsTopic = "posting_events"

// Posting event types
const (
	EventContentScheduled = "content_scheduled"
	EventContentPosted    = "content_posted"
	EventContentFailed    = "content_failed"
	EventContentCancelled = "content_cancelled"
)

// PostingEvent is a single publish outcome appended to the analytics stream
type PostingEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
	FounderID     string    `json:"founder_id"`
	ContentID     string    `json:"content_id"`
	PlatformID    *string   `json:"platform_id,omitempty"`
	ErrorCode     *string   `json:"error_code,omitempty"`
	RetryCount    int       `json:"retry_count"`
	SchemaVersion string    `json:"schema_version"`
}
