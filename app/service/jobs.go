package service

import (
	"context"
	"errors"
	"time"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
	"github.com/sesiku/ms-go-reconciliation/app/mapper"
)

// RunReconcileBatch sweeps bookings stuck in waiting or pending whose
// last update is older than the stale window and re-verifies each against
// the gateway. This is the safety net for webhooks that never arrived.
func (s *ReconcileService) RunReconcileBatch(ctx context.Context) (int, error) {
	before := time.Now().UTC().Add(-s.reconcile.StaleAfter)
	bookings, err := s.bookings.ListStalePending(ctx, before, s.reconcile.JobBatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	var firstErr error
	for _, booking := range bookings {
		if ctx.Err() != nil {
			return processed, keepFirstErr(firstErr, ctx.Err())
		}
		if _, err := s.verify(ctx, booking, entity.PaymentLogSourceJob); err != nil {
			// One unreachable order must not starve the rest of the batch.
			s.logger.WithField("booking_id", booking.ID).WithError(err).Warn("reconcile sweep failed for booking")
			if !errors.Is(err, ErrGatewayUnavailable) && !errors.Is(err, ErrPaymentNotInitiated) {
				firstErr = keepFirstErr(firstErr, err)
			}
			continue
		}
		processed++
	}

	s.logger.WithField("processed", processed).Info("reconcile sweep finished")
	return processed, firstErr
}

// RunExpireUnpaidBatch fails bookings whose session start has passed
// without payment. The transition goes through the same conditional write
// as every other input, so a webhook racing the expiry still wins cleanly.
func (s *ReconcileService) RunExpireUnpaidBatch(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC()
	bookings, err := s.bookings.ListExpiredUnpaid(ctx, cutoff, s.reconcile.JobBatchSize)
	if err != nil {
		return 0, err
	}

	outcome := mapper.MapTransactionStatus("expire", "")
	expired := 0
	var firstErr error
	for _, booking := range bookings {
		if ctx.Err() != nil {
			return expired, keepFirstErr(firstErr, ctx.Err())
		}
		updated, err := s.apply(ctx, booking, outcome, applyInput{
			Source:            entity.PaymentLogSourceExpire,
			TransactionStatus: "expire",
		})
		if err != nil {
			s.logger.WithField("booking_id", booking.ID).WithError(err).Warn("expire sweep failed for booking")
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if updated.PaymentStatus == entity.PaymentStatusFailed {
			expired++
		}
	}

	s.logger.WithField("expired", expired).Info("expire sweep finished")
	return expired, firstErr
}

func keepFirstErr(current, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
