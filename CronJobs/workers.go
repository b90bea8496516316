package CronJobs

import (
	"fmt"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Monitoring"
	"github.com/mertgercek/AffiliateSystemForClinichub/Notifications"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StaleTicketAge is how long an open ticket may wait before its admin is reminded.
const StaleTicketAge = 24 * time.Hour

// Maintenance runs the periodic housekeeping jobs.
type Maintenance struct {
	DB                *gorm.DB
	ReconcileInterval time.Duration
}

func NewMaintenance(db *gorm.DB, reconcileInterval time.Duration) *Maintenance {
	if reconcileInterval <= 0 {
		reconcileInterval = time.Hour
	}
	return &Maintenance{
		DB:                db,
		ReconcileInterval: reconcileInterval,
	}
}

// StartCron schedules every job and starts the scheduler in the background.
func (m *Maintenance) StartCron() (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.Local)

	if _, err := scheduler.Every(m.ReconcileInterval).Do(func() {
		if _, err := m.ReconcileEarnings(); err != nil {
			Logging.Logger.Error("Earnings reconciliation failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	if _, err := scheduler.Every(1).Day().At("09:00").Do(func() {
		if _, err := m.RemindStaleTickets(time.Now()); err != nil {
			Logging.Logger.Error("Stale ticket reminder failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	if _, err := scheduler.Every(1).Hour().Do(func() {
		if _, err := m.ClearExpiredTokens(time.Now()); err != nil {
			Logging.Logger.Error("Clearing expired verification tokens failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	scheduler.StartAsync()
	Logging.Logger.Info("Cron jobs started", zap.Duration("reconcile_interval", m.ReconcileInterval))
	return scheduler, nil
}

// ReconcileEarnings recomputes every affiliate's total and reports the ones that drifted.
func (m *Maintenance) ReconcileEarnings() ([]uint, error) {
	drifted, err := Models.ReconcileEarnings(m.DB)
	if err != nil {
		return drifted, fmt.Errorf("failed to reconcile earnings: %w", err)
	}
	if len(drifted) > 0 {
		Monitoring.EarningsDriftCorrections.Add(float64(len(drifted)))
		Logging.Logger.Warn("Corrected drifted affiliate earnings", zap.Uints("affiliate_ids", drifted))
	}
	return drifted, nil
}

// RemindStaleTickets notifies the assigned admin of each open ticket without
// activity for StaleTicketAge.
func (m *Maintenance) RemindStaleTickets(now time.Time) (int, error) {
	tickets, err := Models.StaleTickets(m.DB, now.Add(-StaleTicketAge))
	if err != nil {
		return 0, fmt.Errorf("failed to query stale tickets: %w", err)
	}

	sent := 0
	for _, ticket := range tickets {
		message := fmt.Sprintf("Ticket #%d \"%s\" is waiting for your reply", ticket.ID, ticket.Subject)
		link := fmt.Sprintf("/admin/tickets/%d", ticket.ID)
		if _, err := Notifications.Notify(m.DB, *ticket.AssignedAdminID, Models.NotificationPendingReply, message, link); err != nil {
			Logging.Logger.Error("Failed to send pending reply reminder", zap.Uint("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		Logging.Logger.Info("Stale ticket reminders sent", zap.Int("count", sent))
	}
	return sent, nil
}

func (m *Maintenance) ClearExpiredTokens(now time.Time) (int64, error) {
	cleared, err := Models.ClearExpiredVerificationTokens(m.DB, now)
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		Logging.Logger.Info("Cleared expired verification tokens", zap.Int64("count", cleared))
	}
	return cleared, nil
}
