package Webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEventType = "X-Event-Type"
	HeaderDelivery  = "X-Webhook-Delivery"
)

var (
	ErrSkipped        = errors.New("webhook inactive or not subscribed")
	ErrDeliveryFailed = errors.New("webhook delivery failed")
)

// Payload is the JSON body POSTed to subscribers.
type Payload struct {
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type job struct {
	webhookID uint
	event     string
	data      interface{}
}

// Dispatcher delivers webhook events from a bounded queue with a fixed pool of workers.
type Dispatcher struct {
	db      *gorm.DB
	client  *http.Client
	workers int
	jobs    chan job

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewDispatcher(db *gorm.DB, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		db:      db,
		workers: workers,
		jobs:    make(chan job, queueSize),
		client: &http.Client{
			Timeout: timeout,
			// Redirects are reported as non-2xx responses.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Start launches the worker pool. Calling it twice is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	// Deliveries outlive shutdown signals; the client timeout bounds each one.
	ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
	Logging.Logger.Info("Webhook dispatcher started", zap.Int("workers", d.workers), zap.Int("queue", cap(d.jobs)))
}

// Stop stops accepting events and waits for queued deliveries to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for j := range d.jobs {
		d.run(ctx, j)
	}
}

func (d *Dispatcher) run(ctx context.Context, j job) {
	if err := d.Deliver(ctx, j.webhookID, j.event, j.data); err != nil && !errors.Is(err, ErrSkipped) {
		Logging.Logger.Warn("Webhook delivery failed",
			zap.Uint("webhook_id", j.webhookID), zap.String("event", j.event), zap.Error(err))
	}
}

// Trigger enqueues one delivery per active webhook subscribed to event, limited
// to userID's webhooks when given. It never blocks; a job that does not fit in
// the queue is delivered by its own goroutine. It returns the number of
// deliveries scheduled.
func (d *Dispatcher) Trigger(event string, data interface{}, userID *uint) int {
	webhooks, err := Models.ActiveWebhooksFor(d.db, event, userID)
	if err != nil {
		Logging.Logger.Error("Failed to load webhooks", zap.String("event", event), zap.Error(err))
		return 0
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return 0
	}

	queued := 0
	for _, webhook := range webhooks {
		select {
		case d.jobs <- job{webhookID: webhook.ID, event: event, data: data}:
			queued++
		default:
			Monitoring.WebhookQueueOverflow.Inc()
			Logging.Logger.Warn("Webhook queue full, delivering outside the pool",
				zap.Uint("webhook_id", webhook.ID), zap.String("event", event))
			j := job{webhookID: webhook.ID, event: event, data: data}
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.run(context.Background(), j)
			}()
			queued++
		}
	}
	return queued
}

// Deliver reloads the webhook and performs a single signed POST, recording the outcome.
func (d *Dispatcher) Deliver(ctx context.Context, webhookID uint, event string, data interface{}) error {
	var webhook Models.Webhook
	if err := d.db.First(&webhook, webhookID).Error; err != nil {
		return ErrSkipped
	}
	if !webhook.IsActive || !webhook.Subscribes(event) {
		return ErrSkipped
	}
	return d.Send(ctx, &webhook, event, data)
}

// Send POSTs the event to the webhook regardless of its subscriptions and records
// the result on the webhook.
func (d *Dispatcher) Send(ctx context.Context, webhook *Models.Webhook, event string, data interface{}) error {
	log := Logging.Logger.With(zap.Uint("webhook_id", webhook.ID), zap.String("event", event))

	body, err := json.Marshal(Payload{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		d.recordFailure(webhook, event, false, log)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(body, webhook.Secret))
	req.Header.Set(HeaderEventType, event)
	req.Header.Set(HeaderDelivery, uuid.NewString())

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled by the caller, not a failure of the endpoint.
			return fmt.Errorf("%w: %v", ErrDeliveryFailed, ctx.Err())
		}
		d.recordFailure(webhook, event, false, log)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.recordFailure(webhook, event, true, log)
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}

	if err := webhook.RecordSuccess(d.db, time.Now().UTC()); err != nil {
		log.Error("Failed to record webhook success", zap.Error(err))
	}
	Monitoring.WebhookDeliveries.WithLabelValues(event, "success").Inc()
	log.Info("Webhook delivered", zap.Int("status", resp.StatusCode))
	return nil
}

func (d *Dispatcher) recordFailure(webhook *Models.Webhook, event string, responded bool, log *zap.Logger) {
	Monitoring.WebhookDeliveries.WithLabelValues(event, "failure").Inc()
	if err := webhook.RecordFailure(d.db, time.Now().UTC(), responded); err != nil {
		log.Error("Failed to record webhook failure", zap.Error(err))
		return
	}
	if !webhook.IsActive {
		log.Error("Webhook disabled after repeated failures", zap.Int("failure_count", webhook.FailureCount))
	}
}
