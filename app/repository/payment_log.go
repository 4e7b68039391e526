package repository

import (
	"context"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
)

type PaymentLogRepository struct {
	db DBTX
}

func NewPaymentLogRepository(db DBTX) *PaymentLogRepository {
	return &PaymentLogRepository{db: db}
}

func (r *PaymentLogRepository) Create(ctx context.Context, log *entity.PaymentLog) error {
	query := `
		INSERT INTO payment_logs (
			booking_id, order_id, source, transaction_status, payment_type,
			gross_amount, raw_payload, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		log.BookingID,
		log.OrderID,
		log.Source,
		log.TransactionStatus,
		log.PaymentType,
		log.GrossAmount,
		log.RawPayload,
		log.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	log.ID = uint64(id)
	return nil
}

func (r *PaymentLogRepository) ListByBookingID(ctx context.Context, bookingID uint64, limit int32) ([]*entity.PaymentLog, error) {
	query := `
		SELECT id, booking_id, order_id, source, transaction_status,
			payment_type, gross_amount, raw_payload, created_at
		FROM payment_logs
		WHERE booking_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, bookingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*entity.PaymentLog, 0)
	for rows.Next() {
		item := &entity.PaymentLog{}
		err := rows.Scan(
			&item.ID,
			&item.BookingID,
			&item.OrderID,
			&item.Source,
			&item.TransactionStatus,
			&item.PaymentType,
			&item.GrossAmount,
			&item.RawPayload,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}
