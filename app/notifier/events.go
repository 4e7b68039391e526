package notifier

// Event envelopes published to the notification service. The payment
// write never waits on these; delivery is best effort.

type PaymentConfirmedEvent struct {
	Event      string               `json:"event"`
	Version    int                  `json:"version"`
	OccurredAt string               `json:"occurred_at"`
	Data       PaymentConfirmedData `json:"data"`
}

type PaymentConfirmedData struct {
	BookingID   uint64 `json:"booking_id"`
	OrderID     string `json:"order_id"`
	MenteeRef   string `json:"mentee_ref"`
	MentorRef   string `json:"mentor_ref"`
	SessionType string `json:"session_type"`
	GrossAmount string `json:"gross_amount"`
	ScheduledAt string `json:"scheduled_at"`
	MeetingLink string `json:"meeting_link,omitempty"`
	ReceiptPDF  []byte `json:"receipt_pdf,omitempty"`
}

type PaymentFailedEvent struct {
	Event      string            `json:"event"`
	Version    int               `json:"version"`
	OccurredAt string            `json:"occurred_at"`
	Data       PaymentFailedData `json:"data"`
}

type PaymentFailedData struct {
	BookingID uint64 `json:"booking_id"`
	OrderID   string `json:"order_id"`
	MenteeRef string `json:"mentee_ref"`
	Reason    string `json:"reason"`
}

const (
	routingKeyConfirmed = "payment.confirmed"
	routingKeyFailed    = "payment.failed"
)
