// Package Notifications stores in-app notifications and pushes them to open
// SSE streams and registered devices.
package Notifications

import (
	"encoding/json"

	"github.com/mertgercek/AffiliateSystemForClinichub/FirebaseMessaging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/SSE"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var titles = map[string]string{
	Models.NotificationNewTicket:    "New support ticket",
	Models.NotificationTicketReply:  "New reply to your ticket",
	Models.NotificationPendingReply: "Ticket awaiting your reply",
	Models.NotificationNewReferral:  "New referral",
}

type event struct {
	Notification *Models.Notification `json:"notification"`
	Unread       int64                `json:"unread"`
}

// Notify persists a notification for the user and fans it out. Delivery
// failures are logged; only the database write can fail the call.
func Notify(db *gorm.DB, userID uint, kind, message, link string) (*Models.Notification, error) {
	notification := &Models.Notification{
		UserID:  userID,
		Type:    kind,
		Message: message,
		Link:    link,
	}
	if err := db.Create(notification).Error; err != nil {
		Logging.Logger.Error("Failed to create notification", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	unread, err := Models.CountUnreadNotifications(db, userID)
	if err != nil {
		Logging.Logger.Warn("Failed to count unread notifications", zap.Uint("user_id", userID), zap.Error(err))
	}
	if payload, err := json.Marshal(event{Notification: notification, Unread: unread}); err == nil {
		SSE.Broadcaster.Publish(userID, string(payload))
	}

	if FirebaseMessaging.Enabled() {
		tokens, err := Models.GetFCMsByID(db, userID)
		if err == nil && len(tokens) > 0 {
			req := Models.NotificationRequest{
				Tokens: tokens,
				Title:  titles[kind],
				Body:   message,
				Data:   map[string]string{"type": kind, "link": link},
			}
			go func() {
				if err := FirebaseMessaging.SendMessage(req); err != nil {
					Logging.Logger.Warn("Push notification failed", zap.Uint("user_id", userID), zap.Error(err))
				}
			}()
		}
	}

	return notification, nil
}

// NotifyAdmins sends the same notification to every admin.
func NotifyAdmins(db *gorm.DB, kind, message, link string) error {
	ids, err := Models.GetAdminIDs(db)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := Notify(db, id, kind, message, link); err != nil {
			return err
		}
	}
	return nil
}
