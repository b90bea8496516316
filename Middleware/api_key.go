package Middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const APIKeyHeader = "X-API-Key"

// APIKeyAuth authenticates /api/v1 callers by X-API-Key and applies the per-key rate limit.
func APIKeyAuth(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		rawKey := c.GetHeader(APIKeyHeader)
		if rawKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Authentication failed",
				"message": "API key is required",
				"details": "Include X-API-Key header in your request",
			})
			return
		}

		apiKey, err := Models.FindActiveAPIKey(Models.DB, rawKey)
		if err != nil || apiKey.User == nil {
			Logging.Logger.Info("Rejected API key", zap.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Authentication failed",
				"message": "Invalid or inactive API key",
				"details": "The provided API key is not valid or has been revoked",
			})
			return
		}

		if limiter.Limit(rawKey) {
			Logging.Logger.Warn("API rate limit exceeded", zap.Uint("api_key_id", apiKey.ID))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Maximum %d requests per %d seconds", limiter.limit, int(limiter.window.Seconds())),
				"details": "Please wait before making more requests",
			})
			return
		}

		if err := Models.DB.Model(apiKey).UpdateColumn("last_used_at", time.Now().UTC()).Error; err != nil {
			Logging.Logger.Warn("Failed to update API key usage", zap.Uint("api_key_id", apiKey.ID), zap.Error(err))
		}

		user := apiKey.User
		user.PrepareGive()
		c.Set(ContextAPIKey, apiKey)
		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Next()
	}
}

// RequireAffiliate rejects API callers that are not affiliates with a profile.
func RequireAffiliate() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || user.Role != Models.RoleAffiliate {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Access denied",
				"details": "User must have affiliate role",
			})
			return
		}
		if user.Affiliate == nil {
			Logging.Logger.Error("User has affiliate role but no affiliate record", zap.Uint("user_id", user.ID))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "No affiliate record found",
				"details": "Please contact support",
			})
			return
		}
		c.Next()
	}
}
