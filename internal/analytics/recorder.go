package analytics

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/JerryGgzm/SEO-TOOL/pkg/kafka"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

// Recorder appends publish lifecycle events to the analytics stream.
// Recording is best-effort: a failure to record never changes the outcome of
// the content item it describes.
type Recorder interface {
	ContentScheduled(item *models.ContentItem)
	ContentPosted(item *models.ContentItem)
	ContentFailed(item *models.ContentItem)
	ContentCancelled(item *models.ContentItem)
}

// KafkaRecorder writes posting events through the shared producer.
type KafkaRecorder struct {
	producer *kafka.Producer
	source   string
	logger   *logrus.Logger
}

func NewKafkaRecorder(producer *kafka.Producer, source string, logger *logrus.Logger) *KafkaRecorder {
	return &KafkaRecorder{producer: producer, source: source, logger: logger}
}

func (r *KafkaRecorder) ContentScheduled(item *models.ContentItem) {
	r.record(kafka.EventContentScheduled, item)
}

func (r *KafkaRecorder) ContentPosted(item *models.ContentItem) {
	r.record(kafka.EventContentPosted, item)
}

func (r *KafkaRecorder) ContentFailed(item *models.ContentItem) {
	r.record(kafka.EventContentFailed, item)
}

func (r *KafkaRecorder) ContentCancelled(item *models.ContentItem) {
	r.record(kafka.EventContentCancelled, item)
}

func (r *KafkaRecorder) record(eventType string, item *models.ContentItem) {
	event := &kafka.PostingEvent{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		Source:        r.source,
		FounderID:     item.FounderID,
		ContentID:     item.ID,
		PlatformID:    item.PostedPlatformID,
		ErrorCode:     item.ErrorCode,
		RetryCount:    item.RetryCount,
		SchemaVersion: "1.0",
	}

	if err := r.producer.PublishPostingEvent(event); err != nil {
		r.logger.WithFields(logrus.Fields{
			"event_type": eventType,
			"content_id": item.ID,
			"error":      err.Error(),
		}).Warn("Failed to record posting event")
	}
}

// NopRecorder drops every event. Used when Kafka is not configured.
type NopRecorder struct{}

func (NopRecorder) ContentScheduled(*models.ContentItem) {}
func (NopRecorder) ContentPosted(*models.ContentItem)    {}
func (NopRecorder) ContentFailed(*models.ContentItem)    {}
func (NopRecorder) ContentCancelled(*models.ContentItem) {}

// CaptureRecorder collects events in memory for tests.
type CaptureRecorder struct {
	mu     sync.Mutex
	events []CapturedEvent
}

type CapturedEvent struct {
	Type      string
	ContentID string
}

func (c *CaptureRecorder) append(eventType string, item *models.ContentItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, CapturedEvent{Type: eventType, ContentID: item.ID})
}

func (c *CaptureRecorder) Events() []CapturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CapturedEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *CaptureRecorder) ContentScheduled(item *models.ContentItem) {
	c.append(kafka.EventContentScheduled, item)
}

func (c *CaptureRecorder) ContentPosted(item *models.ContentItem) {
	c.append(kafka.EventContentPosted, item)
}

func (c *CaptureRecorder) ContentFailed(item *models.ContentItem) {
	c.append(kafka.EventContentFailed, item)
}

func (c *CaptureRecorder) ContentCancelled(item *models.ContentItem) {
	c.append(kafka.EventContentCancelled, item)
}
