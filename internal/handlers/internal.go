package handlers

import (
	"net/http"

	"github.com/JerryGgzm/SEO-TOOL/internal/service"
	"github.com/JerryGgzm/SEO-TOOL/pkg/middleware"
)

var dispatchKicker service.Kicker

// InitOps wires the dispatcher hooks exposed on the internal routes
func InitOps(kicker service.Kicker) {
	dispatchKicker = kicker
}

// KickDispatcher wakes the dispatch loop ahead of its next poll. Upstream
// services call this after approving content in bulk so due items go out
// without waiting for the poll interval.
func KickDispatcher(c middleware.Context) {
	dispatchKicker.Kick()
	c.Status(http.StatusNoContent)
}
