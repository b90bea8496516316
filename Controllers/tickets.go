package Controllers

import (
	"fmt"
	"net/http"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Middleware"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Notifications"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func ticketLink(id uint) string {
	return fmt.Sprintf("/tickets/%d", id)
}

type TicketInput struct {
	Subject  string `json:"subject" binding:"required,max=200"`
	Message  string `json:"message" binding:"required"`
	Priority string `json:"priority"`
}

// CreateTicket opens a support ticket for the authenticated affiliate and
// notifies the admins.
func CreateTicket(c *gin.Context) {
	var input TicketInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Priority == "" {
		input.Priority = Models.PriorityNormal
	}
	if !Models.ValidTicketPriority(input.Priority) {
		c.JSON(http.StatusBadRequest, gin.H{"error": Models.ErrInvalidTicketPriority.Error()})
		return
	}

	affiliate, ok := currentAffiliate(c)
	if !ok {
		return
	}
	ticket := Models.Ticket{
		Subject:     input.Subject,
		Message:     input.Message,
		Status:      Models.TicketOpen,
		Priority:    input.Priority,
		AffiliateID: affiliate.ID,
	}
	if err := Models.DB.Create(&ticket).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	message := fmt.Sprintf("New ticket: %s", ticket.Subject)
	if err := Notifications.NotifyAdmins(Models.DB, Models.NotificationNewTicket, message, ticketLink(ticket.ID)); err != nil {
		Logging.Logger.Warn("Failed to notify admins of ticket", zap.Uint("ticket_id", ticket.ID), zap.Error(err))
	}
	c.JSON(http.StatusCreated, ticket)
}

// FetchTickets lists the caller's tickets, or every ticket for an admin.
func FetchTickets(c *gin.Context) {
	user := Middleware.CurrentUser(c)
	var affiliateID *uint
	if !user.IsAdmin() {
		affiliate, ok := currentAffiliate(c)
		if !ok {
			return
		}
		affiliateID = &affiliate.ID
	}

	status := c.Query("status")
	if status != "" && !Models.ValidTicketStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": Models.ErrInvalidTicketStatus.Error()})
		return
	}
	tickets, err := Models.ListTickets(Models.DB, affiliateID, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// loadAccessibleTicket loads the ticket if the caller is an admin or owns it.
func loadAccessibleTicket(c *gin.Context) (*Models.Ticket, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	ticket, err := Models.LoadTicket(Models.DB, id)
	if err != nil {
		notFoundOr(c, err, "Ticket")
		return nil, false
	}
	user := Middleware.CurrentUser(c)
	if user.IsAdmin() {
		return ticket, true
	}
	if ticket.Affiliate == nil || ticket.Affiliate.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil, false
	}
	return ticket, true
}

func GetTicket(c *gin.Context) {
	ticket, ok := loadAccessibleTicket(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// ReplyTicket adds a response. An admin reply notifies the affiliate and takes
// the ticket if nobody has; an affiliate reply notifies the assigned admin.
func ReplyTicket(c *gin.Context) {
	ticket, ok := loadAccessibleTicket(c)
	if !ok {
		return
	}
	var input struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ticket.Status == Models.TicketClosed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ticket is closed"})
		return
	}

	user := Middleware.CurrentUser(c)
	var response *Models.TicketResponse
	err := Models.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if response, err = Models.AddTicketResponse(tx, ticket, user.ID, input.Message); err != nil {
			return err
		}
		if user.IsAdmin() {
			updates := map[string]interface{}{}
			if ticket.AssignedAdminID == nil {
				updates["assigned_admin_id"] = user.ID
				ticket.AssignedAdminID = &user.ID
			}
			if ticket.Status == Models.TicketOpen {
				updates["status"] = Models.TicketInProgress
				ticket.Status = Models.TicketInProgress
			}
			if len(updates) > 0 {
				return tx.Model(&Models.Ticket{}).Where("id = ?", ticket.ID).Updates(updates).Error
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	message := fmt.Sprintf("New reply on ticket: %s", ticket.Subject)
	var recipient uint
	switch {
	case user.IsAdmin() && ticket.Affiliate != nil:
		recipient = ticket.Affiliate.UserID
	case !user.IsAdmin() && ticket.AssignedAdminID != nil:
		recipient = *ticket.AssignedAdminID
	}
	if recipient != 0 {
		if _, err := Notifications.Notify(Models.DB, recipient, Models.NotificationTicketReply, message, ticketLink(ticket.ID)); err != nil {
			Logging.Logger.Warn("Failed to notify ticket reply", zap.Uint("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusCreated, response)
}

// UpdateTicket lets an admin change status, priority or the assignee.
func UpdateTicket(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Status          string `json:"status"`
		Priority        string `json:"priority"`
		AssignedAdminID *uint  `json:"assigned_admin_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if input.Status != "" {
		if !Models.ValidTicketStatus(input.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": Models.ErrInvalidTicketStatus.Error()})
			return
		}
		updates["status"] = input.Status
	}
	if input.Priority != "" {
		if !Models.ValidTicketPriority(input.Priority) {
			c.JSON(http.StatusBadRequest, gin.H{"error": Models.ErrInvalidTicketPriority.Error()})
			return
		}
		updates["priority"] = input.Priority
	}
	if input.AssignedAdminID != nil {
		assignee, err := Models.GetUserByID(Models.DB, *input.AssignedAdminID)
		if err != nil || !assignee.IsAdmin() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Assignee must be an admin"})
			return
		}
		updates["assigned_admin_id"] = assignee.ID
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	var ticket Models.Ticket
	if err := Models.DB.First(&ticket, id).Error; err != nil {
		notFoundOr(c, err, "Ticket")
		return
	}
	if err := Models.DB.Model(&ticket).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	updated, err := Models.LoadTicket(Models.DB, ticket.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}
