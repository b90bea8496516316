package FirebaseMessaging

import (
	"context"
	"errors"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Config"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var ErrDisabled = errors.New("firebase messaging is not configured")

var (
	app             *firebase.App
	messagingClient *messaging.Client
)

func Enabled() bool {
	return messagingClient != nil
}

// Setup initialises the FCM client when FIREBASE_ENABLED is set. Without a
// service account file application default credentials are used.
func Setup(cfg *Config.Config) error {
	if !cfg.FirebaseEnabled {
		Logging.Logger.Info("Firebase messaging disabled")
		return nil
	}

	ctx := context.Background()
	var err error

	if cfg.FirebaseServiceAccountPath != "" {
		opt := option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)
		app, err = firebase.NewApp(ctx, nil, opt)
	} else {
		Logging.Logger.Warn("FIREBASE_SERVICE_ACCOUNT_PATH not set, using application default credentials")
		app, err = firebase.NewApp(ctx, nil)
	}
	if err != nil {
		return err
	}

	messagingClient, err = app.Messaging(ctx)
	if err != nil {
		return err
	}

	Logging.Logger.Info("Firebase messaging client initialized successfully")
	return nil
}

// BuildMessage returns the platform-tuned message template for a notification.
func BuildMessage(req Models.NotificationRequest) *messaging.Message {
	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: req.Title,
			Body:  req.Body,
		},
		Data: req.Data,
	}

	message.Android = &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			Sound:    "default",
			Priority: messaging.PriorityHigh,
		},
	}

	message.APNS = &messaging.APNSConfig{
		Headers: map[string]string{
			"apns-priority": "10",
		},
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Alert: &messaging.ApsAlert{
					Title: req.Title,
					Body:  req.Body,
				},
				Sound: "default",
			},
		},
	}
	return message
}

func SendMessage(req Models.NotificationRequest) error {
	if !Enabled() {
		return ErrDisabled
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	message := BuildMessage(req)

	switch {
	case len(req.Tokens) == 1:
		message.Token = req.Tokens[0]
		if _, err := messagingClient.Send(ctx, message); err != nil {
			Logging.Logger.Error("Error sending FCM message", zap.Error(err))
			return err
		}
	case len(req.Tokens) > 1:
		resp, err := messagingClient.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       req.Tokens,
			Notification: message.Notification,
			Data:         message.Data,
			Android:      message.Android,
			APNS:         message.APNS,
		})
		if err != nil {
			Logging.Logger.Error("Error sending FCM multicast message", zap.Error(err))
			return err
		}
		if resp.FailureCount > 0 {
			Logging.Logger.Warn("Some FCM messages failed",
				zap.Int("success", resp.SuccessCount), zap.Int("failure", resp.FailureCount))
		}
	}
	return nil
}
