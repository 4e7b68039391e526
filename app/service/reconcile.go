package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
	"github.com/sesiku/ms-go-reconciliation/app/factory"
	"github.com/sesiku/ms-go-reconciliation/app/gateway"
	"github.com/sesiku/ms-go-reconciliation/app/mapper"
	"github.com/sesiku/ms-go-reconciliation/app/notifier"
	"github.com/sesiku/ms-go-reconciliation/app/repository"
	"github.com/sesiku/ms-go-reconciliation/config"
)

type bookingRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Booking, error)
	FindByOrderID(ctx context.Context, orderID string) (*entity.Booking, error)
	AssignOrderID(ctx context.Context, id uint64, orderID string, now time.Time) (bool, error)
	ApplyPaymentTransition(ctx context.Context, t repository.PaymentTransition) (bool, error)
	ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error)
	ListExpiredUnpaid(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Booking, error)
}

type paymentLogRepository interface {
	Create(ctx context.Context, log *entity.PaymentLog) error
	ListByBookingID(ctx context.Context, bookingID uint64, limit int32) ([]*entity.PaymentLog, error)
}

type statusGateway interface {
	GetTransactionStatus(ctx context.Context, orderID string) (*gateway.TransactionStatus, error)
}

type linkAllocator interface {
	Allocate(ctx context.Context, booking *entity.Booking) (*entity.MeetingLink, error)
}

type paymentNotifier interface {
	PaymentConfirmed(ctx context.Context, evt *notifier.PaymentConfirmedEvent) error
	PaymentFailed(ctx context.Context, evt *notifier.PaymentFailedEvent) error
}

type receiptBuilder interface {
	Build(booking *entity.Booking, paidAt time.Time) ([]byte, error)
}

// ReconcileService converges booking payment state with the gateway's
// truth. Three inputs race into it: gateway webhooks, client polls, and
// manual verification; the conditional write in the repository makes sure
// only one of them transitions the booking and triggers side effects.
type ReconcileService struct {
	bookings  bookingRepository
	logs      paymentLogRepository
	gateway   statusGateway
	allocator linkAllocator
	notifier  paymentNotifier
	receipts  receiptBuilder
	reconcile config.ReconcileConfig
	serverKey string
	logger    logrus.FieldLogger
}

func NewReconcileService(
	bookings bookingRepository,
	logs paymentLogRepository,
	statusGw statusGateway,
	allocator linkAllocator,
	paymentNotifier paymentNotifier,
	receipts receiptBuilder,
	reconcile config.ReconcileConfig,
	serverKey string,
) *ReconcileService {
	return &ReconcileService{
		bookings:  bookings,
		logs:      logs,
		gateway:   statusGw,
		allocator: allocator,
		notifier:  paymentNotifier,
		receipts:  receipts,
		reconcile: reconcile,
		serverKey: serverKey,
		logger:    factory.NewModuleLogger("reconcile-service"),
	}
}

// InitiatePayment assigns the booking its gateway order id. The assign is
// conditional on the column still being NULL, so concurrent initiations
// agree on a single order id.
func (s *ReconcileService) InitiatePayment(ctx context.Context, bookingID uint64) (*entity.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.OrderID != nil {
		return booking, nil
	}

	orderID := "MNTR-" + uuid.NewString()
	assigned, err := s.bookings.AssignOrderID(ctx, booking.ID, orderID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !assigned {
		// Lost the race; another caller already assigned one.
		return s.mustReread(ctx, booking.ID)
	}

	booking.OrderID = &orderID
	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"order_id":   orderID,
	}).Info("payment initiated")

	return booking, nil
}

// HandleNotification processes an inbound gateway webhook. A bad
// signature rejects the whole notification before any read or write; a
// rejected notification leaves no trace beyond the warning log.
func (s *ReconcileService) HandleNotification(ctx context.Context, n *GatewayNotificationInput) (*entity.Booking, error) {
	if err := gateway.VerifySignature(n.OrderID, n.TransactionStatus, n.GrossAmount, n.SignatureKey, s.serverKey); err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id":           n.OrderID,
			"transaction_status": n.TransactionStatus,
		}).WithError(err).Warn("rejected gateway notification")
		return nil, fmt.Errorf("%w: %s", ErrSignatureInvalid, err.Error())
	}

	booking, err := s.bookings.FindByOrderID(ctx, n.OrderID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	if !amountsMatch(booking.GrossAmount, n.GrossAmount) {
		s.logger.WithFields(logrus.Fields{
			"order_id":     n.OrderID,
			"booking_id":   booking.ID,
			"expected":     booking.GrossAmount,
			"notification": n.GrossAmount,
		}).Warn("gross amount differs from booking record")
	}

	outcome := s.mapOutcome(booking, n.TransactionStatus, n.FraudStatus)
	return s.apply(ctx, booking, outcome, applyInput{
		Source:            entity.PaymentLogSourceWebhook,
		TransactionStatus: n.TransactionStatus,
		PaymentType:       n.PaymentType,
		GrossAmount:       n.GrossAmount,
		RawPayload:        n.Raw,
	})
}

// GatewayNotificationInput is the verified-webhook payload the engine
// consumes. Raw carries the exact request body for the audit log.
type GatewayNotificationInput struct {
	OrderID           string
	TransactionStatus string
	FraudStatus       string
	PaymentType       string
	GrossAmount       string
	SignatureKey      string
	Raw               string
}

// VerifyByOrderID re-checks a payment against the gateway on demand.
func (s *ReconcileService) VerifyByOrderID(ctx context.Context, orderID string) (*entity.Booking, error) {
	booking, err := s.bookings.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return s.verify(ctx, booking, entity.PaymentLogSourceVerify)
}

func (s *ReconcileService) VerifyByBookingID(ctx context.Context, bookingID uint64) (*entity.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return s.verify(ctx, booking, entity.PaymentLogSourceVerify)
}

// verify pulls the transaction status from the gateway and applies it.
// An order the gateway does not know yet is not an error: the customer
// may simply not have opened the payment page.
func (s *ReconcileService) verify(ctx context.Context, booking *entity.Booking, source string) (*entity.Booking, error) {
	if booking.OrderID == nil {
		return nil, ErrPaymentNotInitiated
	}

	ts, err := s.gateway.GetTransactionStatus(ctx, *booking.OrderID)
	if err != nil {
		if errors.Is(err, gateway.ErrOrderNotFound) {
			s.logger.WithField("order_id", *booking.OrderID).Debug("order not known to gateway yet")
			return booking, nil
		}
		if errors.Is(err, gateway.ErrGatewayUnavailable) {
			return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, err.Error())
		}
		return nil, err
	}

	outcome := s.mapOutcome(booking, ts.TransactionStatus, ts.FraudStatus)
	return s.apply(ctx, booking, outcome, applyInput{
		Source:            source,
		TransactionStatus: ts.TransactionStatus,
		PaymentType:       ts.PaymentType,
		GrossAmount:       ts.GrossAmount,
		RawPayload:        ts.Raw(),
	})
}

func (s *ReconcileService) GetBooking(ctx context.Context, bookingID uint64) (*entity.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

func (s *ReconcileService) ListPaymentLogs(ctx context.Context, bookingID uint64, limit int32) ([]*entity.PaymentLog, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return s.logs.ListByBookingID(ctx, bookingID, limit)
}

// PollPaymentStatus re-verifies the booking against the gateway on a
// bounded loop until the payment settles one way or the other. A gateway
// outage during the loop never fails the payment: the second return value
// reports false and the caller presents the state as still checking.
func (s *ReconcileService) PollPaymentStatus(ctx context.Context, bookingID uint64) (*entity.Booking, bool, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}
	if booking.PaymentStatus == entity.PaymentStatusPaid || booking.PaymentStatus.Terminal() {
		return booking, true, nil
	}
	if booking.OrderID == nil {
		return nil, false, ErrPaymentNotInitiated
	}

	reachable := true
	attempts := s.reconcile.PollMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := int32(0); attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return booking, reachable, ctx.Err()
			case <-time.After(s.reconcile.PollInterval):
			}
		}

		updated, err := s.verify(ctx, booking, entity.PaymentLogSourceVerify)
		if err != nil {
			if errors.Is(err, ErrGatewayUnavailable) {
				reachable = false
				s.logger.WithFields(logrus.Fields{
					"booking_id": bookingID,
					"attempt":    attempt + 1,
				}).WithError(err).Warn("gateway unreachable during poll")
				continue
			}
			return nil, reachable, err
		}

		reachable = true
		booking = updated
		if booking.PaymentStatus == entity.PaymentStatusPaid || booking.PaymentStatus.Terminal() {
			return booking, true, nil
		}
	}

	return booking, reachable, nil
}

type applyInput struct {
	Source            string
	TransactionStatus string
	PaymentType       string
	GrossAmount       string
	RawPayload        string
}

// apply converges the booking toward the mapped outcome. The transition
// is a conditional write keyed on the status this caller observed, so of
// any number of racing callers exactly one transitions the row and owns
// the side effects. Every attempt is logged, winner or not.
func (s *ReconcileService) apply(ctx context.Context, booking *entity.Booking, outcome mapper.Outcome, in applyInput) (*entity.Booking, error) {
	now := time.Now().UTC()
	transitioned := false

	if outcome.PaymentStatus != booking.PaymentStatus {
		if allowedTransition(booking.PaymentStatus, outcome.PaymentStatus) {
			var paidAt *time.Time
			if outcome.PaymentStatus == entity.PaymentStatusPaid {
				paidAt = &now
			}

			applied, err := s.bookings.ApplyPaymentTransition(ctx, repository.PaymentTransition{
				BookingID:     booking.ID,
				FromStatus:    booking.PaymentStatus,
				ToStatus:      outcome.PaymentStatus,
				BookingStatus: outcome.BookingStatus,
				PaidAt:        paidAt,
				Now:           now,
			})
			if err != nil {
				return nil, err
			}

			if applied {
				transitioned = true
				booking.PaymentStatus = outcome.PaymentStatus
				booking.Status = outcome.BookingStatus
				booking.UpdatedAt = now
				if paidAt != nil && booking.PaidAt == nil {
					booking.PaidAt = paidAt
				}
				s.logger.WithFields(logrus.Fields{
					"booking_id":         booking.ID,
					"source":             in.Source,
					"transaction_status": in.TransactionStatus,
					"payment_status":     booking.PaymentStatus,
				}).Info("payment status transitioned")
			} else {
				// A racing caller moved the row first; our view is stale.
				fresh, err := s.mustReread(ctx, booking.ID)
				if err != nil {
					return nil, err
				}
				booking = fresh
			}
		} else {
			s.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"source":     in.Source,
				"from":       booking.PaymentStatus,
				"to":         outcome.PaymentStatus,
			}).Warn("ignoring backward payment transition")
		}
	}

	s.recordLog(ctx, booking, in, now)

	if transitioned {
		switch booking.PaymentStatus {
		case entity.PaymentStatusPaid:
			s.runPaidSideEffects(ctx, booking)
		case entity.PaymentStatusFailed:
			s.publishFailed(ctx, booking, in.TransactionStatus)
		}
	}

	return booking, nil
}

// mapOutcome wraps the status table with the unknown-status warning.
func (s *ReconcileService) mapOutcome(booking *entity.Booking, transactionStatus, fraudStatus string) mapper.Outcome {
	outcome := mapper.MapTransactionStatus(transactionStatus, fraudStatus)
	if outcome.Unknown {
		s.logger.WithFields(logrus.Fields{
			"booking_id":         booking.ID,
			"transaction_status": transactionStatus,
		}).Warn("unrecognized transaction status from gateway")
	}
	return outcome
}

func (s *ReconcileService) recordLog(ctx context.Context, booking *entity.Booking, in applyInput, now time.Time) {
	orderID := ""
	if booking.OrderID != nil {
		orderID = *booking.OrderID
	}
	err := s.logs.Create(ctx, &entity.PaymentLog{
		BookingID:         booking.ID,
		OrderID:           orderID,
		Source:            in.Source,
		TransactionStatus: in.TransactionStatus,
		PaymentType:       in.PaymentType,
		GrossAmount:       in.GrossAmount,
		RawPayload:        in.RawPayload,
		CreatedAt:         now,
	})
	if err != nil {
		s.logger.WithField("booking_id", booking.ID).WithError(err).Warn("failed to append payment log")
	}
}

// runPaidSideEffects allocates the meeting link and publishes the
// confirmation. Only the transition winner reaches this, which is what
// keeps the side effects exactly-once. Pool exhaustion does not undo the
// payment; it pages an operator instead.
func (s *ReconcileService) runPaidSideEffects(ctx context.Context, booking *entity.Booking) {
	if booking.MeetingLinkID == nil {
		link, err := s.allocator.Allocate(ctx, booking)
		switch {
		case err == nil:
			booking.MeetingLinkID = &link.ID
			booking.MeetingLink = &link.URL
		case errors.Is(err, repository.ErrNoLinkAvailable):
			s.logger.WithField("booking_id", booking.ID).
				Error("meeting link pool exhausted, manual assignment required")
		case errors.Is(err, repository.ErrLinkAlreadyAssigned):
			s.logger.WithField("booking_id", booking.ID).Info("meeting link already assigned")
		default:
			s.logger.WithField("booking_id", booking.ID).WithError(err).Error("meeting link allocation failed")
		}
	}

	orderID := ""
	if booking.OrderID != nil {
		orderID = *booking.OrderID
	}

	var receipt []byte
	if s.receipts != nil && booking.PaidAt != nil {
		pdf, err := s.receipts.Build(booking, *booking.PaidAt)
		if err != nil {
			s.logger.WithField("booking_id", booking.ID).WithError(err).Warn("receipt rendering failed")
		} else {
			receipt = pdf
		}
	}

	meetingLink := ""
	if booking.MeetingLink != nil {
		meetingLink = *booking.MeetingLink
	}

	evt := &notifier.PaymentConfirmedEvent{
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
		Data: notifier.PaymentConfirmedData{
			BookingID:   booking.ID,
			OrderID:     orderID,
			MenteeRef:   booking.MenteeRef,
			MentorRef:   booking.MentorRef,
			SessionType: booking.SessionType,
			GrossAmount: booking.GrossAmount,
			ScheduledAt: booking.ScheduledAt.UTC().Format(time.RFC3339),
			MeetingLink: meetingLink,
			ReceiptPDF:  receipt,
		},
	}
	if err := s.notifier.PaymentConfirmed(ctx, evt); err != nil {
		s.logger.WithField("booking_id", booking.ID).WithError(err).Error("failed to publish payment confirmation")
	}
}

func (s *ReconcileService) publishFailed(ctx context.Context, booking *entity.Booking, reason string) {
	orderID := ""
	if booking.OrderID != nil {
		orderID = *booking.OrderID
	}
	evt := &notifier.PaymentFailedEvent{
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
		Data: notifier.PaymentFailedData{
			BookingID: booking.ID,
			OrderID:   orderID,
			MenteeRef: booking.MenteeRef,
			Reason:    reason,
		},
	}
	if err := s.notifier.PaymentFailed(ctx, evt); err != nil {
		s.logger.WithField("booking_id", booking.ID).WithError(err).Error("failed to publish payment failure")
	}
}

func (s *ReconcileService) mustReread(ctx context.Context, bookingID uint64) (*entity.Booking, error) {
	fresh, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, ErrBookingNotFound
	}
	return fresh, nil
}

// allowedTransition encodes the forward-only payment state machine.
// failed and refunded are terminal; a late "pending" webhook can never
// demote a paid booking.
func allowedTransition(from, to entity.PaymentStatus) bool {
	switch from {
	case entity.PaymentStatusWaiting:
		return to == entity.PaymentStatusPending || to == entity.PaymentStatusPaid || to == entity.PaymentStatusFailed
	case entity.PaymentStatusPending:
		return to == entity.PaymentStatusPaid || to == entity.PaymentStatusFailed
	case entity.PaymentStatusPaid:
		return to == entity.PaymentStatusRefunded
	default:
		return false
	}
}

// amountsMatch compares the booking's recorded amount with the gateway's
// rendering, tolerating the trailing ".00" difference.
func amountsMatch(recorded, reported string) bool {
	normalize := func(v string) string {
		v = strings.TrimSpace(v)
		return strings.TrimSuffix(v, ".00")
	}
	return normalize(recorded) == normalize(reported)
}
