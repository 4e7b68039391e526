package mapper

import "github.com/sesiku/ms-go-reconciliation/app/entity"

// Outcome is the target state pair computed from a gateway report.
// Unknown marks statuses outside the gateway's documented set; callers
// log a warning and the booking stays in the waiting/pending pair.
type Outcome struct {
	PaymentStatus entity.PaymentStatus
	BookingStatus entity.BookingStatus
	Unknown       bool
}

// MapTransactionStatus encodes the gateway's business rules. "settlement"
// always means paid regardless of the fraud flag; "capture" is paid only
// with an explicit fraud accept.
func MapTransactionStatus(transactionStatus, fraudStatus string) Outcome {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "accept" {
			return Outcome{PaymentStatus: entity.PaymentStatusPaid, BookingStatus: entity.BookingStatusConfirmed}
		}
		return Outcome{PaymentStatus: entity.PaymentStatusWaiting, BookingStatus: entity.BookingStatusPending}
	case "settlement":
		return Outcome{PaymentStatus: entity.PaymentStatusPaid, BookingStatus: entity.BookingStatusConfirmed}
	case "pending":
		return Outcome{PaymentStatus: entity.PaymentStatusWaiting, BookingStatus: entity.BookingStatusPending}
	case "deny", "cancel", "expire":
		return Outcome{PaymentStatus: entity.PaymentStatusFailed, BookingStatus: entity.BookingStatusCancelled}
	case "refund":
		return Outcome{PaymentStatus: entity.PaymentStatusRefunded, BookingStatus: entity.BookingStatusCancelled}
	default:
		return Outcome{PaymentStatus: entity.PaymentStatusWaiting, BookingStatus: entity.BookingStatusPending, Unknown: true}
	}
}
