package Webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/TestUtil"

	"gorm.io/gorm"
)

type received struct {
	body      []byte
	signature string
	event     string
	delivery  string
}

type recorder struct {
	mu       sync.Mutex
	requests []received
	status   int
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, received{
		body:      body,
		signature: req.Header.Get(HeaderSignature),
		event:     req.Header.Get(HeaderEventType),
		delivery:  req.Header.Get(HeaderDelivery),
	})
	status := r.status
	r.mu.Unlock()
	w.WriteHeader(status)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func newWebhook(t *testing.T, db *gorm.DB, userID uint, url string, events ...string) *Models.Webhook {
	t.Helper()
	webhook := &Models.Webhook{UserID: userID, Name: "test", URL: url, Secret: "topsecret", IsActive: true}
	if err := webhook.SetEvents(events); err != nil {
		t.Fatal(err)
	}
	if err := db.Create(webhook).Error; err != nil {
		t.Fatal(err)
	}
	return webhook
}

func TestSignAndVerify(t *testing.T) {
	payload := []byte(`{"event":"referral.created"}`)
	sig := Sign(payload, "k")
	if len(sig) != 64 {
		t.Fatalf("signature length %d", len(sig))
	}
	if !Verify(payload, "k", sig) {
		t.Errorf("valid signature rejected")
	}
	if Verify(payload, "other", sig) {
		t.Errorf("signature accepted with wrong secret")
	}
	if Verify(payload, "k", "not-hex") {
		t.Errorf("malformed signature accepted")
	}
}

func TestDeliverSignsPayload(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	user := TestUtil.CreateUser(t, db, "owner", Models.RoleAffiliate)
	rec := &recorder{status: http.StatusOK}
	server := httptest.NewServer(rec)
	defer server.Close()

	webhook := newWebhook(t, db, user.ID, server.URL, Models.EventReferralCreated)
	d := NewDispatcher(db, 1, 4, time.Second)

	if err := d.Deliver(context.Background(), webhook.ID, Models.EventReferralCreated, map[string]interface{}{"referral_id": 7}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("got %d requests", rec.count())
	}

	got := rec.requests[0]
	if !Verify(got.body, "topsecret", got.signature) {
		t.Errorf("signature does not match body")
	}
	if got.event != Models.EventReferralCreated || got.delivery == "" {
		t.Errorf("headers: event=%q delivery=%q", got.event, got.delivery)
	}

	var payload Payload
	if err := json.Unmarshal(got.body, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Event != Models.EventReferralCreated || payload.Timestamp == "" {
		t.Errorf("unexpected payload %+v", payload)
	}

	var stored Models.Webhook
	db.First(&stored, webhook.ID)
	if stored.LastTriggered == nil || stored.FailureCount != 0 {
		t.Errorf("success not recorded: %+v", stored)
	}
}

func TestDeliverDisablesAfterRepeatedFailures(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	user := TestUtil.CreateUser(t, db, "owner", Models.RoleAffiliate)
	rec := &recorder{status: http.StatusInternalServerError}
	server := httptest.NewServer(rec)
	defer server.Close()

	webhook := newWebhook(t, db, user.ID, server.URL, Models.EventReferralCompleted)
	d := NewDispatcher(db, 1, 4, time.Second)

	for i := 0; i < Models.MaxWebhookFailures; i++ {
		err := d.Deliver(context.Background(), webhook.ID, Models.EventReferralCompleted, nil)
		if !errors.Is(err, ErrDeliveryFailed) {
			t.Fatalf("attempt %d: got %v", i+1, err)
		}
	}

	if err := d.Deliver(context.Background(), webhook.ID, Models.EventReferralCompleted, nil); !errors.Is(err, ErrSkipped) {
		t.Fatalf("disabled webhook delivered: %v", err)
	}
	if rec.count() != Models.MaxWebhookFailures {
		t.Errorf("server saw %d requests, want %d", rec.count(), Models.MaxWebhookFailures)
	}

	var stored Models.Webhook
	db.First(&stored, webhook.ID)
	if stored.IsActive || stored.FailureCount != Models.MaxWebhookFailures {
		t.Errorf("got active=%v count=%d", stored.IsActive, stored.FailureCount)
	}
}

func TestDeliverSkipsUnsubscribedEvent(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	user := TestUtil.CreateUser(t, db, "owner", Models.RoleAffiliate)
	rec := &recorder{status: http.StatusOK}
	server := httptest.NewServer(rec)
	defer server.Close()

	webhook := newWebhook(t, db, user.ID, server.URL, Models.EventReferralCreated)
	d := NewDispatcher(db, 1, 4, time.Second)

	if err := d.Deliver(context.Background(), webhook.ID, Models.EventReferralCompleted, nil); !errors.Is(err, ErrSkipped) {
		t.Fatalf("got %v, want ErrSkipped", err)
	}
	if rec.count() != 0 {
		t.Errorf("unsubscribed event was delivered")
	}
}

func TestTriggerDeliversThroughWorkers(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	alice := TestUtil.CreateUser(t, db, "alice", Models.RoleAffiliate)
	bob := TestUtil.CreateUser(t, db, "bob", Models.RoleAffiliate)
	rec := &recorder{status: http.StatusNoContent}
	server := httptest.NewServer(rec)
	defer server.Close()

	newWebhook(t, db, alice.ID, server.URL, Models.EventReferralCompleted)
	newWebhook(t, db, bob.ID, server.URL, Models.EventReferralCompleted)

	d := NewDispatcher(db, 2, 8, time.Second)
	d.Start(context.Background())

	if n := d.Trigger(Models.EventReferralCompleted, map[string]string{"status": "completed"}, &alice.ID); n != 1 {
		t.Fatalf("queued %d, want 1", n)
	}
	if n := d.Trigger(Models.EventReferralCompleted, nil, nil); n != 2 {
		t.Fatalf("queued %d, want 2", n)
	}
	d.Stop()

	if rec.count() != 3 {
		t.Errorf("server saw %d requests, want 3", rec.count())
	}
	if n := d.Trigger(Models.EventReferralCompleted, nil, nil); n != 0 {
		t.Errorf("stopped dispatcher queued %d", n)
	}
}

func TestTriggerDeliversWhenQueueFull(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	user := TestUtil.CreateUser(t, db, "owner", Models.RoleAffiliate)
	rec := &recorder{status: http.StatusOK}
	server := httptest.NewServer(rec)
	defer server.Close()
	newWebhook(t, db, user.ID, server.URL+"/a", Models.EventReferralCreated)
	newWebhook(t, db, user.ID, server.URL+"/b", Models.EventReferralCreated)

	// Not started yet, so the second job cannot fit in the queue.
	d := NewDispatcher(db, 1, 1, time.Second)
	if n := d.Trigger(Models.EventReferralCreated, nil, nil); n != 2 {
		t.Errorf("scheduled %d, want 2", n)
	}
	d.Start(context.Background())
	d.Stop()

	if rec.count() != 2 {
		t.Errorf("server saw %d requests, want 2", rec.count())
	}
}

func TestShutdownDoesNotCountAsFailure(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	user := TestUtil.CreateUser(t, db, "owner", Models.RoleAffiliate)
	rec := &recorder{status: http.StatusOK}
	server := httptest.NewServer(rec)
	defer server.Close()
	webhook := newWebhook(t, db, user.ID, server.URL, Models.EventReferralCompleted)

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(db, 1, 8, time.Second)
	d.Start(ctx)
	for i := 0; i < Models.MaxWebhookFailures; i++ {
		d.Trigger(Models.EventReferralCompleted, nil, nil)
	}
	cancel()
	d.Stop()

	var stored Models.Webhook
	if err := db.First(&stored, webhook.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.FailureCount != 0 || !stored.IsActive {
		t.Errorf("after shutdown: failure_count=%d is_active=%v", stored.FailureCount, stored.IsActive)
	}
	if rec.count() != Models.MaxWebhookFailures {
		t.Errorf("server saw %d requests, want %d", rec.count(), Models.MaxWebhookFailures)
	}
}

func TestCancelledSendIsNotRecorded(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	user := TestUtil.CreateUser(t, db, "owner", Models.RoleAffiliate)
	rec := &recorder{status: http.StatusOK}
	server := httptest.NewServer(rec)
	defer server.Close()
	webhook := newWebhook(t, db, user.ID, server.URL, Models.EventReferralCompleted)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDispatcher(db, 1, 1, time.Second)
	if err := d.Send(ctx, webhook, Models.EventReferralCompleted, nil); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v", err)
	}

	var stored Models.Webhook
	db.First(&stored, webhook.ID)
	if stored.FailureCount != 0 {
		t.Errorf("failure_count = %d, want 0", stored.FailureCount)
	}
}
