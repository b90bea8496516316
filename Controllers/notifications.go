package Controllers

import (
	"errors"
	"net/http"

	"github.com/mertgercek/AffiliateSystemForClinichub/Middleware"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func FetchNotifications(c *gin.Context) {
	userID := c.GetUint(Middleware.ContextUserID)
	notifications, err := Models.ListNotifications(Models.DB, userID, c.Query("unread") == "true")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	unread, err := Models.CountUnreadNotifications(Models.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "unread": unread})
}

func MarkNotificationRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	err := Models.MarkNotificationRead(Models.DB, c.GetUint(Middleware.ContextUserID), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func MarkAllNotificationsRead(c *gin.Context) {
	if err := Models.MarkAllNotificationsRead(Models.DB, c.GetUint(Middleware.ContextUserID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read"})
}
