package notifier

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier stands in when no broker is configured (local development);
// events are written to the service log instead of being published.
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) PaymentConfirmed(_ context.Context, evt *PaymentConfirmedEvent) error {
	n.logger.WithFields(logrus.Fields{
		"event":      routingKeyConfirmed,
		"booking_id": evt.Data.BookingID,
		"order_id":   evt.Data.OrderID,
	}).Info("payment confirmation event (no broker configured)")
	return nil
}

func (n *LogNotifier) PaymentFailed(_ context.Context, evt *PaymentFailedEvent) error {
	n.logger.WithFields(logrus.Fields{
		"event":      routingKeyFailed,
		"booking_id": evt.Data.BookingID,
		"order_id":   evt.Data.OrderID,
	}).Info("payment failure event (no broker configured)")
	return nil
}
