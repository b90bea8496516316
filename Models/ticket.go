package Models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	TicketOpen       = "open"
	TicketInProgress = "in-progress"
	TicketClosed     = "closed"

	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

var (
	ErrInvalidTicketStatus   = errors.New("Invalid ticket status")
	ErrInvalidTicketPriority = errors.New("Invalid ticket priority")
)

type Ticket struct {
	gorm.Model
	Subject         string           `gorm:"size:200;not null" json:"subject"`
	Message         string           `gorm:"not null" json:"message"`
	Status          string           `gorm:"size:20;not null" json:"status"`
	Priority        string           `gorm:"size:20;not null" json:"priority"`
	AffiliateID     uint             `gorm:"not null;index" json:"affiliate_id"`
	Affiliate       *Affiliate       `json:"affiliate,omitempty"`
	AssignedAdminID *uint            `json:"assigned_admin_id"`
	AssignedAdmin   *User            `json:"assigned_admin,omitempty"`
	Responses       []TicketResponse `gorm:"constraint:OnDelete:CASCADE;" json:"responses,omitempty"`
}

type TicketResponse struct {
	gorm.Model
	TicketID uint   `gorm:"not null;index" json:"ticket_id"`
	UserID   uint   `gorm:"not null" json:"user_id"`
	User     *User  `json:"user,omitempty"`
	Message  string `gorm:"not null" json:"message"`
}

func ValidTicketStatus(status string) bool {
	return status == TicketOpen || status == TicketInProgress || status == TicketClosed
}

func ValidTicketPriority(priority string) bool {
	return priority == PriorityLow || priority == PriorityNormal || priority == PriorityHigh
}

func LoadTicket(db *gorm.DB, id uint) (*Ticket, error) {
	var ticket Ticket
	err := db.Preload("Affiliate.User").
		Preload("AssignedAdmin").
		Preload("Responses", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Responses.User").
		First(&ticket, id).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func ListTickets(db *gorm.DB, affiliateID *uint, status string) ([]Ticket, error) {
	var tickets []Ticket
	query := db.Preload("Affiliate.User").Order("updated_at DESC")
	if affiliateID != nil {
		query = query.Where("affiliate_id = ?", *affiliateID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Find(&tickets).Error
	return tickets, err
}

func AddTicketResponse(db *gorm.DB, ticket *Ticket, userID uint, message string) (*TicketResponse, error) {
	response := TicketResponse{TicketID: ticket.ID, UserID: userID, Message: message}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&response).Error; err != nil {
			return err
		}
		// Touch the ticket so it sorts by latest activity.
		return tx.Model(ticket).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// StaleTickets returns open tickets that have an assigned admin and whose latest
// activity is older than the cutoff.
func StaleTickets(db *gorm.DB, cutoff time.Time) ([]Ticket, error) {
	var tickets []Ticket
	err := db.Where("status = ? AND assigned_admin_id IS NOT NULL AND updated_at < ?", TicketOpen, cutoff).
		Find(&tickets).Error
	return tickets, err
}
