package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
)

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrOrderIDAlreadyExists = errors.New("order id already exists")
)

const bookingColumns = `
	id, order_id, mentee_ref, mentor_ref, session_type, gross_amount,
	scheduled_at, duration_minutes, payment_status, status, paid_at,
	meeting_link_id, meeting_link, created_at, updated_at
`

// PaymentTransition is a conditional write: the row is updated only if its
// payment_status still equals FromStatus, so of any set of racing callers
// exactly one observes Applied=true for a given transition.
type PaymentTransition struct {
	BookingID     uint64
	FromStatus    entity.PaymentStatus
	ToStatus      entity.PaymentStatus
	BookingStatus entity.BookingStatus
	PaidAt        *time.Time
	Now           time.Time
}

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) FindByID(ctx context.Context, id uint64) (*entity.Booking, error) {
	query := `SELECT` + bookingColumns + `FROM bookings WHERE id = ?`

	booking := &entity.Booking{}
	if err := scanBooking(r.db.QueryRowContext(ctx, query, id), booking); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return booking, nil
}

func (r *BookingRepository) FindByOrderID(ctx context.Context, orderID string) (*entity.Booking, error) {
	query := `SELECT` + bookingColumns + `FROM bookings WHERE order_id = ? LIMIT 1`

	booking := &entity.Booking{}
	if err := scanBooking(r.db.QueryRowContext(ctx, query, orderID), booking); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return booking, nil
}

// AssignOrderID sets the order id only if none was assigned yet. Returns
// false when another caller initiated payment first; the booking keeps the
// original order id either way.
func (r *BookingRepository) AssignOrderID(ctx context.Context, id uint64, orderID string, now time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET order_id = ?, payment_status = ?, updated_at = ?
		WHERE id = ? AND order_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, orderID, entity.PaymentStatusWaiting, now, id)
	if err != nil {
		if isDuplicateEntryError(err) {
			return false, ErrOrderIDAlreadyExists
		}
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ApplyPaymentTransition performs the guarded state write. paid_at is set
// only on the first transition into paid and never overwritten.
func (r *BookingRepository) ApplyPaymentTransition(ctx context.Context, t PaymentTransition) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = ?,
			status = ?,
			paid_at = COALESCE(paid_at, ?),
			updated_at = ?
		WHERE id = ? AND payment_status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		t.ToStatus,
		t.BookingStatus,
		nullableTimeValue(t.PaidAt),
		t.Now,
		t.BookingID,
		t.FromStatus,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ListStalePending returns bookings still awaiting payment whose order id
// exists and which have not been touched since before. Used by the
// backstop reconcile job.
func (r *BookingRepository) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE payment_status IN (?, ?)
		  AND order_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	return r.queryBookings(ctx, query, entity.PaymentStatusWaiting, entity.PaymentStatusPending, before, limit)
}

// ListExpiredUnpaid returns unpaid bookings whose session window has
// already started.
func (r *BookingRepository) ListExpiredUnpaid(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE payment_status IN (?, ?)
		  AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
		LIMIT ?
	`

	return r.queryBookings(ctx, query, entity.PaymentStatusWaiting, entity.PaymentStatusPending, cutoff, limit)
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*entity.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]*entity.Booking, 0)
	for rows.Next() {
		item := &entity.Booking{}
		if err := scanBooking(rows, item); err != nil {
			return nil, err
		}
		bookings = append(bookings, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(scan rowScanner, booking *entity.Booking) error {
	var orderID sql.NullString
	var paidAt sql.NullTime
	var meetingLinkID sql.NullInt64
	var meetingLink sql.NullString

	err := scan.Scan(
		&booking.ID,
		&orderID,
		&booking.MenteeRef,
		&booking.MentorRef,
		&booking.SessionType,
		&booking.GrossAmount,
		&booking.ScheduledAt,
		&booking.DurationMinutes,
		&booking.PaymentStatus,
		&booking.Status,
		&paidAt,
		&meetingLinkID,
		&meetingLink,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return err
	}

	booking.OrderID = stringPtrFromNull(orderID)
	booking.PaidAt = timePtrFromNull(paidAt)
	booking.MeetingLinkID = uint64PtrFromNull(meetingLinkID)
	booking.MeetingLink = stringPtrFromNull(meetingLink)

	return nil
}
