package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/travel-support/internal/application/dispatcher"
	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/event"
)

// NotificationService tells speakers about review decisions
type NotificationService interface {
	// Register subscribes the service to the events it reports on
	Register(d dispatcher.Dispatcher)
	// HandleEvent formats and sends the message for one event
	HandleEvent(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	notifier port.Notifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{notifier: notifier, logger: logger}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.Subscribe("speaker-notification", s.HandleEvent,
		event.TypeRequestApproved,
		event.TypeRequestRejected,
		event.TypeRequestPaid,
		event.TypeExpenseReviewed,
	)
}

func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	if !evt.Type.NotifiesSpeaker() {
		return nil
	}

	message := buildMessage(evt)
	if err := s.notifier.NotifySpeaker(ctx, evt.SpeakerID, message); err != nil {
		s.logger.Error("Failed to notify speaker", "error", err, "request_id", evt.RequestID, "speaker_id", evt.SpeakerID, "event_type", evt.Type)
		return fmt.Errorf("notify speaker: %w", err)
	}

	s.logger.Info("Speaker notified", "request_id", evt.RequestID, "speaker_id", evt.SpeakerID, "event_type", evt.Type)
	return nil
}

func buildMessage(evt *event.Event) string {
	var b strings.Builder
	notes := evt.GetPayloadString(event.KeyNotes)

	switch evt.Type {
	case event.TypeExpenseReviewed:
		fmt.Fprintf(&b, "Your expense %q was %s.", evt.GetPayloadString(event.KeyDescription), evt.GetPayloadString(event.KeyNewStatus))
	case event.TypeRequestApproved:
		b.WriteString("Your travel support request was approved.")
		if amount := evt.GetPayloadString(event.KeyApprovedAmount); amount != "" {
			fmt.Fprintf(&b, "\nApproved amount: %s %s", amount, evt.GetPayloadString(event.KeyCurrency))
		}
		if date := evt.GetPayloadString(event.KeyExpectedDate); date != "" {
			fmt.Fprintf(&b, "\nExpected payment date: %s", date)
		}
	case event.TypeRequestRejected:
		b.WriteString("Your travel support request was rejected.")
	case event.TypeRequestPaid:
		b.WriteString("Your travel support reimbursement has been paid.")
	}

	if notes != "" {
		fmt.Fprintf(&b, "\nReviewer notes: %s", notes)
	}
	fmt.Fprintf(&b, "\nRequest: %s", evt.RequestID)
	return b.String()
}
