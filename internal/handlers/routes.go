package handlers

import (
	"github.com/JerryGgzm/SEO-TOOL/pkg/auth"
	"github.com/JerryGgzm/SEO-TOOL/pkg/middleware"
)

// SetupRoutes registers the scheduling API. Founder-facing routes require a
// valid JWT; the internal routes take the shared service token and reject
// everything when no token is configured.
func SetupRoutes(router middleware.Engine, jwtSecret []byte, serviceToken string) {
	api := router.Group("/api/v1/scheduling")
	api.Use(auth.JWTAuthMiddleware(jwtSecret))
	{
		api.POST("/schedule", ScheduleContent)
		api.POST("/schedule/batch", ScheduleContentBatch)
		api.POST("/publish", PublishContent)
		api.POST("/publish/batch", PublishContentBatch)

		api.GET("/scheduled", ListScheduledContent)
		api.GET("/history", ListContentHistory)

		api.GET("/policy", GetTenantPolicy)
		api.PUT("/policy", UpdateTenantPolicy)

		api.POST("/accounts/twitter", ConnectTwitterAccount)
		api.DELETE("/accounts/twitter", DisconnectTwitterAccount)

		content := api.Group("/content/:id")
		{
			content.GET("", GetContentStatus)
			content.POST("/cancel", CancelContent)
			content.POST("/reschedule", RescheduleContent)
			content.POST("/retry", RetryContent)
			content.PUT("/text", UpdateContentText)
		}
	}

	internal := router.Group("/internal")
	internal.Use(auth.ServiceAuthMiddleware(serviceToken))
	{
		internal.POST("/dispatch/kick", KickDispatcher)
	}
}
