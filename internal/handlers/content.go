package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JerryGgzm/SEO-TOOL/pkg/middleware"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

// ScheduleContent validates and schedules one content item
func ScheduleContent(c middleware.Context) {
	var req models.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	item, err := scheduler.Schedule(c.Request.Context(), middleware.GetFounderID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ScheduleContentBatch schedules several items; per-item outcomes come back
// in request order
func ScheduleContentBatch(c middleware.Context) {
	var req models.BatchScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "items cannot be empty"})
		return
	}

	results := scheduler.ScheduleBatch(c.Request.Context(), middleware.GetFounderID(c), req)
	c.JSON(http.StatusOK, middleware.H{"results": results})
}

// PublishContent queues one item for immediate dispatch
func PublishContent(c middleware.Context) {
	var req models.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	item, err := scheduler.PublishNow(c.Request.Context(), middleware.GetFounderID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, item)
}

// PublishContentBatch queues several items for immediate dispatch
func PublishContentBatch(c middleware.Context) {
	var req models.BatchPublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "items cannot be empty"})
		return
	}

	results := scheduler.PublishBatch(c.Request.Context(), middleware.GetFounderID(c), req)
	c.JSON(http.StatusAccepted, middleware.H{"results": results})
}

// GetContentStatus returns the current state of one item
func GetContentStatus(c middleware.Context) {
	item, err := scheduler.GetStatus(c.Request.Context(), middleware.GetFounderID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// CancelContent withdraws a scheduled item before dispatch
func CancelContent(c middleware.Context) {
	item, err := scheduler.Cancel(c.Request.Context(), middleware.GetFounderID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// RescheduleContent moves a scheduled item to a new post time
func RescheduleContent(c middleware.Context) {
	var req models.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	item, err := scheduler.Reschedule(c.Request.Context(), middleware.GetFounderID(c), c.Param("id"), req.ScheduledPostTime)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// RetryContent requeues an errored item with a fresh retry budget
func RetryContent(c middleware.Context) {
	item, err := scheduler.Retry(c.Request.Context(), middleware.GetFounderID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, item)
}

// UpdateContentText sets the edited-text override before first dispatch
func UpdateContentText(c middleware.Context) {
	var req models.UpdateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	item, err := scheduler.UpdateText(c.Request.Context(), middleware.GetFounderID(c), c.Param("id"), req.EditedText)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ListScheduledContent returns the founder's pending queue
func ListScheduledContent(c middleware.Context) {
	limit, offset := pagination(c)
	items, err := scheduler.ListScheduled(c.Request.Context(), middleware.GetFounderID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []*models.ContentItem{}
	}
	c.JSON(http.StatusOK, middleware.H{"items": items})
}

// ListContentHistory returns the founder's finished items
func ListContentHistory(c middleware.Context) {
	limit, offset := pagination(c)
	filters := models.HistoryFilters{
		Status: models.ContentStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}

	switch filters.Status {
	case "", models.StatusPosted, models.StatusError, models.StatusCancelled:
	default:
		c.JSON(http.StatusBadRequest, middleware.H{"error": "status must be posted, error or cancelled"})
		return
	}

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, middleware.H{"error": "since must be RFC3339"})
			return
		}
		filters.Since = since
	}
	if raw := c.Query("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, middleware.H{"error": "until must be RFC3339"})
			return
		}
		filters.Until = until
	}

	items, err := scheduler.ListHistory(c.Request.Context(), middleware.GetFounderID(c), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []*models.ContentItem{}
	}
	c.JSON(http.StatusOK, middleware.H{"items": items})
}

func pagination(c middleware.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
