package Models

import (
	"gorm.io/gorm"
)

const (
	NotificationNewTicket    = "new_ticket"
	NotificationTicketReply  = "ticket_reply"
	NotificationPendingReply = "pending_reply"
	NotificationNewReferral  = "new_referral"
)

type Notification struct {
	gorm.Model
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Type    string `gorm:"size:50" json:"type"`
	Message string `gorm:"size:255" json:"message"`
	Link    string `gorm:"size:255" json:"link"`
	Read    bool   `json:"read"`
}

func ListNotifications(db *gorm.DB, userID uint, unreadOnly bool) ([]Notification, error) {
	var notifications []Notification
	query := db.Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	err := query.Order("created_at DESC").Limit(100).Find(&notifications).Error
	return notifications, err
}

func CountUnreadNotifications(db *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := db.Model(&Notification{}).Where("user_id = ? AND read = ?", userID, false).Count(&count).Error
	return count, err
}

// MarkNotificationRead returns gorm.ErrRecordNotFound when the notification is not the user's.
func MarkNotificationRead(db *gorm.DB, userID, notificationID uint) error {
	result := db.Model(&Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func MarkAllNotificationsRead(db *gorm.DB, userID uint) error {
	return db.Model(&Notification{}).Where("user_id = ? AND read = ?", userID, false).Update("read", true).Error
}
