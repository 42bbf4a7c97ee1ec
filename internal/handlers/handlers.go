package handlers

import (
	"errors"
	"net/http"

	"github.com/JerryGgzm/SEO-TOOL/internal/service"
	"github.com/JerryGgzm/SEO-TOOL/internal/store"
	"github.com/JerryGgzm/SEO-TOOL/pkg/logging"
	"github.com/JerryGgzm/SEO-TOOL/pkg/middleware"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

var (
	scheduler *service.Scheduler
	logger    logging.Logger
)

// Init initializes the handlers with the scheduler facade and logger
func Init(s *service.Scheduler, log logging.Logger) {
	scheduler = s
	logger = log
}

// respondError maps service errors onto HTTP statuses: unknown ids are 404,
// transition conflicts 409, rule rejections 422.
func respondError(c middleware.Context, err error) {
	var violation *models.RuleViolation
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, middleware.H{"error": "content item not found"})
	case errors.Is(err, store.ErrInvalidState):
		c.JSON(http.StatusConflict, middleware.H{"error": err.Error()})
	case errors.As(err, &violation):
		c.JSON(http.StatusUnprocessableEntity, middleware.H{"violation": violation})
	default:
		logger.WithError(err).WithField("request_id", middleware.GetRequestID(c)).Error("Request failed")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "internal server error"})
	}
}
