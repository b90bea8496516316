package Middleware

import (
	"net/http"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/Token"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ContextUserID = "userID"
	ContextUser   = "user"
	ContextAPIKey = "apiKey"
)

// JwtAuthMiddleware rejects requests without a valid session token and stores
// the user id on the context.
func JwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := Token.ExtractTokenID(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized Token Invalid"})
			return
		}
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// SetCurrentUser loads the authenticated user and records its last activity.
func SetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(ContextUserID)

		user, err := Models.GetUserByID(Models.DB, userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}

		if err := Models.TouchLastSeen(Models.DB, user.ID, time.Now().UTC()); err != nil {
			Logging.Logger.Warn("Failed to update last seen", zap.Uint("user_id", user.ID), zap.Error(err))
		}

		c.Set(ContextUser, &user)
		c.Next()
	}
}

func PermissionCheckAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by SetCurrentUser or APIKeyAuth.
func CurrentUser(c *gin.Context) *Models.User {
	value, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := value.(*Models.User)
	return user
}
