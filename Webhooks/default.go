package Webhooks

import (
	"context"

	"github.com/mertgercek/AffiliateSystemForClinichub/Config"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
)

// Default is the process-wide dispatcher used by the HTTP handlers.
var Default *Dispatcher

func Setup(ctx context.Context, cfg *Config.Config) *Dispatcher {
	Default = NewDispatcher(Models.DB, cfg.WebhookWorkers, cfg.WebhookQueueSize, cfg.WebhookTimeout)
	Default.Start(ctx)
	return Default
}

// Trigger fans the event out through Default; it is a no-op before Setup.
func Trigger(event string, data interface{}, userID *uint) int {
	if Default == nil {
		return 0
	}
	return Default.Trigger(event, data, userID)
}
