package Controllers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Middleware"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils"
	"github.com/mertgercek/AffiliateSystemForClinichub/Webhooks"

	"github.com/gin-gonic/gin"
)

type WebhookInput struct {
	Name     string   `json:"name" binding:"required"`
	URL      string   `json:"url" binding:"required"`
	Secret   string   `json:"secret"`
	Events   []string `json:"events" binding:"required,min=1"`
	IsActive *bool    `json:"is_active"`
}

func (input WebhookInput) validate() string {
	parsed, err := url.Parse(input.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "URL must be an absolute http or https address"
	}
	if err := Models.ValidateEvents(input.Events); err != nil {
		return err.Error()
	}
	return ""
}

func FetchWebhooks(c *gin.Context) {
	userID := c.GetUint(Middleware.ContextUserID)
	var webhooks []Models.Webhook
	if err := Models.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&webhooks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": webhooks, "available_events": Models.WebhookEvents})
}

// CreateWebhook registers an endpoint. The secret is only returned here; a
// random one is generated when none is supplied.
func CreateWebhook(c *gin.Context) {
	var input WebhookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := input.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg, "available_events": Models.WebhookEvents})
		return
	}

	secret := input.Secret
	if secret == "" {
		secret = Utils.SecureToken(32)
	}
	webhook := Models.Webhook{
		UserID:   c.GetUint(Middleware.ContextUserID),
		Name:     input.Name,
		URL:      input.URL,
		Secret:   secret,
		IsActive: input.IsActive == nil || *input.IsActive,
	}
	if err := webhook.SetEvents(input.Events); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := Models.DB.Create(&webhook).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"webhook": webhook, "secret": secret})
}

func UpdateWebhook(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	webhook, err := Models.GetUserWebhook(Models.DB, c.GetUint(Middleware.ContextUserID), id)
	if err != nil {
		notFoundOr(c, err, "Webhook")
		return
	}

	var input WebhookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := input.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg, "available_events": Models.WebhookEvents})
		return
	}

	webhook.Name = input.Name
	webhook.URL = input.URL
	if input.Secret != "" {
		webhook.Secret = input.Secret
	}
	if input.IsActive != nil {
		webhook.IsActive = *input.IsActive
	}
	if err := webhook.SetEvents(input.Events); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := Models.DB.Save(webhook).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, webhook)
}

func DeleteWebhook(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	webhook, err := Models.GetUserWebhook(Models.DB, c.GetUint(Middleware.ContextUserID), id)
	if err != nil {
		notFoundOr(c, err, "Webhook")
		return
	}
	if err := Models.DB.Delete(webhook).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Webhook deleted"})
}

// EnableWebhook re-activates a webhook disabled after repeated failures.
func EnableWebhook(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	webhook, err := Models.GetUserWebhook(Models.DB, c.GetUint(Middleware.ContextUserID), id)
	if err != nil {
		notFoundOr(c, err, "Webhook")
		return
	}
	if err := webhook.Enable(Models.DB); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, webhook)
}

// TestWebhook delivers a webhook.test event synchronously and reports the result.
func TestWebhook(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	webhook, err := Models.GetUserWebhook(Models.DB, c.GetUint(Middleware.ContextUserID), id)
	if err != nil {
		notFoundOr(c, err, "Webhook")
		return
	}
	if Webhooks.Default == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Webhook delivery is not running"})
		return
	}

	data := gin.H{"message": "This is a test event", "webhook_id": webhook.ID, "sent_at": time.Now().UTC()}
	if err := Webhooks.Default.Send(c.Request.Context(), webhook, Models.EventWebhookTest, data); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":         "Test delivery failed",
			"details":       err.Error(),
			"failure_count": webhook.FailureCount,
			"is_active":     webhook.IsActive,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test delivery succeeded", "webhook": webhook})
}
