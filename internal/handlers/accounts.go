package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/JerryGgzm/SEO-TOOL/pkg/middleware"
	"github.com/JerryGgzm/SEO-TOOL/pkg/secrets"
)

var tokenStore secrets.Store

// InitTokens wires the secrets store used for platform credentials
func InitTokens(store secrets.Store) {
	tokenStore = store
}

type connectAccountRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
	// ExpiresIn is the token lifetime in seconds, from the OAuth exchange
	ExpiresIn int `json:"expires_in" binding:"required"`
}

// ConnectTwitterAccount stores the founder's Twitter access token. The token
// expires out of the store on its own; publishing a token-less founder's
// content fails with AUTH_FAILED rather than silently using a stale one.
func ConnectTwitterAccount(c middleware.Context) {
	var req connectAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}
	if req.ExpiresIn <= 0 {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "expires_in must be positive"})
		return
	}

	founderID := middleware.GetFounderID(c)
	key := "token:twitter:" + founderID
	if err := tokenStore.Put(c.Request.Context(), key, req.AccessToken, time.Duration(req.ExpiresIn)*time.Second); err != nil {
		logger.WithError(err).WithField("founder_id", founderID).Error("Failed to store access token")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "failed to store access token"})
		return
	}
	c.Status(http.StatusNoContent)
}

// DisconnectTwitterAccount removes the founder's stored token
func DisconnectTwitterAccount(c middleware.Context) {
	founderID := middleware.GetFounderID(c)
	if err := tokenStore.Delete(c.Request.Context(), "token:twitter:"+founderID); err != nil && !errors.Is(err, secrets.ErrNotFound) {
		logger.WithError(err).WithField("founder_id", founderID).Error("Failed to delete access token")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "failed to delete access token"})
		return
	}
	c.Status(http.StatusNoContent)
}
