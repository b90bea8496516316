package FirebaseMessaging

import (
	"errors"
	"testing"

	"github.com/mertgercek/AffiliateSystemForClinichub/Config"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
)

func TestSetupDisabled(t *testing.T) {
	if err := Setup(&Config.Config{}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if Enabled() {
		t.Errorf("messaging enabled without FIREBASE_ENABLED")
	}
	err := SendMessage(Models.NotificationRequest{Tokens: []string{"t"}, Title: "x"})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("got %v, want ErrDisabled", err)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(Models.NotificationRequest{
		Title: "New ticket",
		Body:  "Payment question",
		Data:  map[string]string{"link": "/tickets/3"},
	})
	if msg.Notification.Title != "New ticket" || msg.APNS.Payload.Aps.Alert.Body != "Payment question" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Android.Priority != "high" || msg.Data["link"] != "/tickets/3" {
		t.Errorf("android=%+v data=%v", msg.Android, msg.Data)
	}
}
