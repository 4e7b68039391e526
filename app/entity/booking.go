package entity

import "time"

// PaymentStatus mirrors the gateway-authoritative payment lifecycle of a
// booking. waiting -> pending -> paid is the happy path; failed and
// refunded are terminal.
type PaymentStatus string

const (
	PaymentStatusWaiting  PaymentStatus = "waiting"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// BookingStatus is derived from PaymentStatus by the status mapper and is
// never set independently.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID uint64

	// OrderID is assigned once at payment initiation and immutable after.
	OrderID *string

	MenteeRef string
	MentorRef string

	SessionType string

	// GrossAmount keeps the gateway-native numeric string form; the exact
	// rendering is load-bearing for webhook signatures.
	GrossAmount string

	ScheduledAt     time.Time
	DurationMinutes int32

	PaymentStatus PaymentStatus
	Status        BookingStatus

	PaidAt *time.Time

	MeetingLinkID *uint64
	MeetingLink   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval returns the booking's [start, end) session window.
func (b *Booking) Interval() (time.Time, time.Time) {
	start := b.ScheduledAt
	end := start.Add(time.Duration(b.DurationMinutes) * time.Minute)
	return start, end
}

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusRefunded
}
