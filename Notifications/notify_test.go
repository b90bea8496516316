package Notifications

import (
	"encoding/json"
	"testing"

	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/SSE"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/TestUtil"
)

func TestNotifyPersistsAndPublishes(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	user := TestUtil.CreateUser(t, db, "alice", Models.RoleAffiliate)

	stream := SSE.Broadcaster.Register(user.ID)
	defer SSE.Broadcaster.Unregister(stream)

	notification, err := Notify(db, user.ID, Models.NotificationTicketReply, "Admin replied", "/tickets/1")
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if notification.ID == 0 || notification.Read {
		t.Errorf("unexpected notification %+v", notification)
	}

	select {
	case raw := <-stream:
		var got event
		if err := json.Unmarshal([]byte(raw), &got); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if got.Unread != 1 || got.Notification.Type != Models.NotificationTicketReply {
			t.Errorf("event = %+v", got)
		}
	default:
		t.Fatal("nothing published to the user's stream")
	}

	if err := Models.MarkNotificationRead(db, user.ID, notification.ID); err != nil {
		t.Fatal(err)
	}
	unread, _ := Models.CountUnreadNotifications(db, user.ID)
	if unread != 0 {
		t.Errorf("unread = %d after marking read", unread)
	}
}

func TestNotifyAdmins(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	TestUtil.CreateUser(t, db, "root1", Models.RoleAdmin)
	TestUtil.CreateUser(t, db, "root2", Models.RoleAdmin)
	affiliate := TestUtil.CreateUser(t, db, "aff", Models.RoleAffiliate)

	if err := NotifyAdmins(db, Models.NotificationNewTicket, "New ticket: refund", "/admin/tickets/1"); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&Models.Notification{}).Where("type = ?", Models.NotificationNewTicket).Count(&count)
	if count != 2 {
		t.Errorf("admin notifications = %d, want 2", count)
	}
	list, _ := Models.ListNotifications(db, affiliate.ID, false)
	if len(list) != 0 {
		t.Errorf("affiliate received admin notification")
	}
}
