package handlers

import (
	"net/http"

	"github.com/JerryGgzm/SEO-TOOL/pkg/middleware"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

// GetTenantPolicy returns the founder's effective publishing policy
func GetTenantPolicy(c middleware.Context) {
	founderID := middleware.GetFounderID(c)
	policy, err := scheduler.GetPolicy(c.Request.Context(), founderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewPolicyResponse(founderID, policy))
}

// UpdateTenantPolicy stores the founder's policy overrides. The new policy
// applies to the next rule check; items already in the queue are not
// re-validated.
func UpdateTenantPolicy(c middleware.Context) {
	var req models.PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}
	policy, err := req.Policy()
	if err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	founderID := middleware.GetFounderID(c)
	stored, err := scheduler.SetPolicy(c.Request.Context(), founderID, policy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewPolicyResponse(founderID, stored))
}
