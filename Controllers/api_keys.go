package Controllers

import (
	"net/http"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Middleware"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// The key handlers serve both /admin/api-keys and /api/v1/keys; they act on
// the keys of whoever is authenticated.

func ListAPIKeys(c *gin.Context) {
	user := Middleware.CurrentUser(c)
	var keys []Models.APIKey
	if err := Models.DB.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&keys).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, keys)
}

func CreateAPIKey(c *gin.Context) {
	var input struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Key name is required"})
		return
	}

	user := Middleware.CurrentUser(c)
	key, err := Models.GenerateAPIKey(Models.DB, user.ID, input.Name)
	if err != nil {
		Logging.Logger.Error("Error creating API key", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create API key"})
		return
	}
	c.JSON(http.StatusCreated, key)
}

func RevokeAPIKey(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user := Middleware.CurrentUser(c)
	result := Models.DB.Model(&Models.APIKey{}).
		Where("id = ? AND user_id = ?", id, user.ID).
		Update("is_active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
