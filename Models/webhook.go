package Models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxWebhookFailures consecutive failed deliveries disable a webhook.
const MaxWebhookFailures = 5

const (
	EventReferralCreated       = "referral.created"
	EventReferralStatusChanged = "referral.status_changed"
	EventReferralCompleted     = "referral.completed"
	EventWebhookTest           = "webhook.test"
)

var WebhookEvents = []string{EventReferralCreated, EventReferralStatusChanged, EventReferralCompleted, EventWebhookTest}

var ErrUnknownEvent = errors.New("Unknown webhook event")

type Webhook struct {
	gorm.Model
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	Name          string         `gorm:"size:100;not null" json:"name"`
	URL           string         `gorm:"size:500;not null" json:"url"`
	Secret        string         `gorm:"size:100;not null" json:"-"`
	Events        datatypes.JSON `json:"events"`
	IsActive      bool           `json:"is_active"`
	LastTriggered *time.Time     `json:"last_triggered"`
	FailureCount  int            `json:"failure_count"`
}

func ValidateEvents(events []string) error {
	for _, event := range events {
		known := false
		for _, e := range WebhookEvents {
			if e == event {
				known = true
				break
			}
		}
		if !known {
			return ErrUnknownEvent
		}
	}
	return nil
}

func (webhook *Webhook) EventList() []string {
	var events []string
	if len(webhook.Events) == 0 {
		return events
	}
	if err := json.Unmarshal(webhook.Events, &events); err != nil {
		return nil
	}
	return events
}

func (webhook *Webhook) SetEvents(events []string) error {
	if events == nil {
		events = []string{}
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return err
	}
	webhook.Events = datatypes.JSON(raw)
	return nil
}

func (webhook *Webhook) Subscribes(event string) bool {
	for _, e := range webhook.EventList() {
		if e == event {
			return true
		}
	}
	return false
}

// ActiveWebhooksFor returns active webhooks subscribed to event, optionally limited to one user.
func ActiveWebhooksFor(db *gorm.DB, event string, userID *uint) ([]Webhook, error) {
	var webhooks []Webhook
	query := db.Where("is_active = ?", true)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if err := query.Find(&webhooks).Error; err != nil {
		return nil, err
	}

	subscribed := webhooks[:0]
	for _, webhook := range webhooks {
		if webhook.Subscribes(event) {
			subscribed = append(subscribed, webhook)
		}
	}
	return subscribed, nil
}

// RecordSuccess resets the failure counter and stamps the delivery time.
func (webhook *Webhook) RecordSuccess(db *gorm.DB, at time.Time) error {
	err := db.Model(&Webhook{}).Where("id = ?", webhook.ID).Updates(map[string]interface{}{
		"failure_count":  0,
		"last_triggered": at,
	}).Error
	if err != nil {
		return err
	}
	webhook.FailureCount = 0
	webhook.LastTriggered = &at
	return nil
}

// RecordFailure increments the failure counter and disables the webhook once it
// reaches MaxWebhookFailures. responded marks that the endpoint answered at all.
func (webhook *Webhook) RecordFailure(db *gorm.DB, at time.Time, responded bool) error {
	return db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"failure_count": gorm.Expr("failure_count + 1")}
		if responded {
			updates["last_triggered"] = at
		}
		if err := tx.Model(&Webhook{}).Where("id = ?", webhook.ID).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Model(&Webhook{}).
			Where("id = ? AND failure_count >= ?", webhook.ID, MaxWebhookFailures).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Select("failure_count", "is_active", "last_triggered").First(webhook, webhook.ID).Error
	})
}

// Enable re-activates a webhook and clears its failure counter.
func (webhook *Webhook) Enable(db *gorm.DB) error {
	err := db.Model(&Webhook{}).Where("id = ?", webhook.ID).Updates(map[string]interface{}{
		"is_active":     true,
		"failure_count": 0,
	}).Error
	if err != nil {
		return err
	}
	webhook.IsActive = true
	webhook.FailureCount = 0
	return nil
}

func GetUserWebhook(db *gorm.DB, userID, webhookID uint) (*Webhook, error) {
	var webhook Webhook
	if err := db.Where("id = ? AND user_id = ?", webhookID, userID).First(&webhook).Error; err != nil {
		return nil, err
	}
	return &webhook, nil
}
