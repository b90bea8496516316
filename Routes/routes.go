package Routes

import (
	"github.com/mertgercek/AffiliateSystemForClinichub/Controllers"
	"github.com/mertgercek/AffiliateSystemForClinichub/Middleware"
	"github.com/mertgercek/AffiliateSystemForClinichub/Monitoring"
	"github.com/mertgercek/AffiliateSystemForClinichub/SSE"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

func ConfigRoutes(router *gin.Engine, limiter *Middleware.RateLimiter) {
	// Gzip Compression
	router.Use(gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedPaths([]string{"/api/protected/RequestSSE"})))

	router.GET("/metrics", Monitoring.Handler())

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/register", Controllers.Register)
		auth.POST("/login", Controllers.Login)
		auth.GET("/verify/:token", Controllers.VerifyEmail)
		auth.POST("/resend-verification", Middleware.JwtAuthMiddleware(), Middleware.SetCurrentUser(), Controllers.ResendVerification)
	}

	// Public landing pages
	router.GET("/a/:slug", Controllers.Landing)
	router.POST("/a/:slug/referral", Controllers.CreatePublicReferral)

	// Affiliate routes
	affiliate := router.Group("/affiliate")
	affiliate.Use(Middleware.JwtAuthMiddleware())
	affiliate.Use(Middleware.SetCurrentUser())
	{
		affiliate.GET("/dashboard", Controllers.AffiliateDashboard)
		affiliate.GET("/export", Controllers.ExportAffiliateReferrals)
	}

	// Authorized routes
	authorized := router.Group("/api/protected")
	authorized.Use(Middleware.JwtAuthMiddleware())
	authorized.Use(Middleware.SetCurrentUser())
	{
		// User-related routes
		authorized.GET("/user", Controllers.CurrentUser)
		authorized.PUT("/user/email-subscription", Controllers.UpdateEmailSubscription)
		authorized.POST("/SaveFcmToken", Controllers.SaveFcmToken)

		// Webhook-related routes
		authorized.GET("/webhooks", Controllers.FetchWebhooks)
		authorized.POST("/webhooks", Controllers.CreateWebhook)
		authorized.PUT("/webhooks/:id", Controllers.UpdateWebhook)
		authorized.DELETE("/webhooks/:id", Controllers.DeleteWebhook)
		authorized.POST("/webhooks/:id/enable", Controllers.EnableWebhook)
		authorized.POST("/webhooks/:id/test", Controllers.TestWebhook)

		// Ticket-related routes
		authorized.GET("/tickets", Controllers.FetchTickets)
		authorized.POST("/tickets", Controllers.CreateTicket)
		authorized.GET("/tickets/:id", Controllers.GetTicket)
		authorized.POST("/tickets/:id/reply", Controllers.ReplyTicket)

		// Notification-related routes
		authorized.GET("/notifications", Controllers.FetchNotifications)
		authorized.POST("/notifications/:id/read", Controllers.MarkNotificationRead)
		authorized.POST("/notifications/read-all", Controllers.MarkAllNotificationsRead)

		// SSE (Server-Sent Events) route
		authorized.GET("/RequestSSE", SSE.RequestSSE)
	}

	// Admin routes
	admin := router.Group("/admin")
	admin.Use(Middleware.JwtAuthMiddleware())
	admin.Use(Middleware.SetCurrentUser())
	admin.Use(Middleware.PermissionCheckAdmin())
	{
		admin.GET("/dashboard", Controllers.AdminDashboard)
		admin.GET("/analytics", Controllers.AdminAnalytics)

		// Treatment group routes
		admin.GET("/treatment-groups", Controllers.FetchTreatmentGroups)
		admin.POST("/treatment-groups", Controllers.AddTreatmentGroup)
		admin.PUT("/treatment-groups/:id", Controllers.EditTreatmentGroup)
		admin.DELETE("/treatment-groups/:id", Controllers.DeleteTreatmentGroup)

		// Treatment routes
		admin.GET("/treatments", Controllers.FetchTreatments)
		admin.POST("/treatments", Controllers.AddTreatment)
		admin.PUT("/treatments/:id", Controllers.EditTreatment)
		admin.POST("/treatments/:id/toggle", Controllers.ToggleTreatment)

		// CRM name mapping routes
		admin.GET("/treatment-mappings", Controllers.FetchTreatmentMappings)
		admin.POST("/treatment-mappings", Controllers.AddTreatmentMapping)
		admin.DELETE("/treatment-mappings/:id", Controllers.DeleteTreatmentMapping)

		// Referral routes
		admin.GET("/referrals", Controllers.FetchReferrals)
		admin.GET("/referrals/:id", Controllers.GetReferral)
		admin.POST("/referrals/:id/status", Controllers.UpdateReferralStatus)

		// Affiliate routes
		admin.POST("/affiliates/:id/approve", Controllers.ApproveAffiliate)
		admin.POST("/affiliates/:id/reject", Controllers.RejectAffiliate)
		admin.GET("/affiliates/:id", Controllers.AffiliateDetails)
		admin.POST("/affiliates/:id/recompute", Controllers.RecomputeEarnings)

		// API key routes
		admin.GET("/api-keys", Controllers.ListAPIKeys)
		admin.POST("/api-keys", Controllers.CreateAPIKey)
		admin.POST("/api-keys/:id/revoke", Controllers.RevokeAPIKey)

		// Ticket routes
		admin.GET("/tickets", Controllers.FetchTickets)
		admin.PUT("/tickets/:id", Controllers.UpdateTicket)

		// Import/Export routes
		admin.POST("/import/:kind", Controllers.ImportData)
		admin.POST("/export/referrals", Controllers.ExportReferrals)
	}

	// Public API routes
	router.GET("/api/v1/geoip", Controllers.GeoIPLocation)
	router.POST("/api/v1/webhook/treatment-completed", Controllers.TreatmentCompleted)

	// API key routes
	api := router.Group("/api/v1")
	api.Use(Middleware.APIKeyAuth(limiter))
	{
		api.GET("/profile", Controllers.APIProfile)
		api.GET("/treatments", Controllers.APITreatments)
		api.GET("/keys", Controllers.ListAPIKeys)
		api.POST("/keys", Controllers.CreateAPIKey)
		api.DELETE("/keys/:id", Controllers.RevokeAPIKey)

		affiliateAPI := api.Group("")
		affiliateAPI.Use(Middleware.RequireAffiliate())
		{
			affiliateAPI.GET("/referrals", Controllers.APIListReferrals)
			affiliateAPI.POST("/referrals", Controllers.APICreateReferral)
			affiliateAPI.PUT("/referrals/:id/status", Controllers.APIUpdateReferralStatus)
			affiliateAPI.GET("/stats", Controllers.APIStats)
		}
	}
}
