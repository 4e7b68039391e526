package entity

import "time"

// PaymentLog rows are append-only: one per reconciliation attempt,
// including convergent repeats. Audit only, never read for decisions.
type PaymentLog struct {
	ID uint64

	BookingID uint64
	OrderID   string

	Source            string
	TransactionStatus string
	PaymentType       string
	GrossAmount       string

	RawPayload string

	CreatedAt time.Time
}

const (
	PaymentLogSourceWebhook = "webhook"
	PaymentLogSourceVerify  = "verify"
	PaymentLogSourceJob     = "job"
	PaymentLogSourceExpire  = "expire"
)
