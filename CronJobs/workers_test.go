package CronJobs

import (
	"testing"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/TestUtil"

	"github.com/shopspring/decimal"
)

func TestReconcileEarnings(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	affiliate := TestUtil.CreateAffiliate(t, db, "alice")
	db.Model(&Models.Affiliate{}).Where("id = ?", affiliate.ID).UpdateColumn("total_earnings", decimal.NewFromInt(12))

	m := NewMaintenance(db, 0)
	drifted, err := m.ReconcileEarnings()
	if err != nil {
		t.Fatal(err)
	}
	if len(drifted) != 1 || drifted[0] != affiliate.ID {
		t.Errorf("drifted = %v", drifted)
	}

	drifted, _ = m.ReconcileEarnings()
	if len(drifted) != 0 {
		t.Errorf("second run still drifted: %v", drifted)
	}
}

func TestRemindStaleTickets(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	admin := TestUtil.CreateUser(t, db, "root", Models.RoleAdmin)
	affiliate := TestUtil.CreateAffiliate(t, db, "alice")

	stale := Models.Ticket{Subject: "Payout", Message: "When?", Status: Models.TicketOpen, Priority: Models.PriorityNormal, AffiliateID: affiliate.ID, AssignedAdminID: &admin.ID}
	fresh := Models.Ticket{Subject: "Hi", Message: "Hello", Status: Models.TicketOpen, Priority: Models.PriorityLow, AffiliateID: affiliate.ID, AssignedAdminID: &admin.ID}
	unassigned := Models.Ticket{Subject: "Old", Message: "Nobody", Status: Models.TicketOpen, Priority: Models.PriorityLow, AffiliateID: affiliate.ID}
	for _, ticket := range []*Models.Ticket{&stale, &fresh, &unassigned} {
		if err := db.Create(ticket).Error; err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	db.Model(&Models.Ticket{}).Where("id IN ?", []uint{stale.ID, unassigned.ID}).UpdateColumn("updated_at", old)

	sent, err := NewMaintenance(db, time.Hour).RemindStaleTickets(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if sent != 1 {
		t.Fatalf("sent %d reminders, want 1", sent)
	}

	list, _ := Models.ListNotifications(db, admin.ID, true)
	if len(list) != 1 || list[0].Type != Models.NotificationPendingReply {
		t.Errorf("admin notifications = %+v", list)
	}
}

func TestClearExpiredTokens(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	user := TestUtil.CreateUser(t, db, "late", Models.RoleAffiliate)
	if _, err := user.IssueVerificationToken(db, -time.Hour); err != nil {
		t.Fatal(err)
	}

	cleared, err := NewMaintenance(db, time.Hour).ClearExpiredTokens(time.Now())
	if err != nil || cleared != 1 {
		t.Fatalf("cleared=%d err=%v", cleared, err)
	}
}
