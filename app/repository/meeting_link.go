package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
)

var (
	ErrNoLinkAvailable     = errors.New("no meeting link available")
	ErrLinkAlreadyAssigned = errors.New("meeting link already assigned")
)

type MeetingLinkRepository struct {
	db TxDB
}

func NewMeetingLinkRepository(db TxDB) *MeetingLinkRepository {
	return &MeetingLinkRepository{db: db}
}

// Claim picks the first pool entry with no overlapping holder and assigns
// it to the booking. The overlap check and the assignment run in one
// transaction with the pool row locked, so two racing claims for
// overlapping windows cannot both take the same link.
func (r *MeetingLinkRepository) Claim(ctx context.Context, bookingID uint64, start, end time.Time) (*entity.MeetingLink, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	selectQuery := `
		SELECT ml.id, ml.url
		FROM meeting_links ml
		WHERE NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.meeting_link_id = ml.id
			  AND b.id <> ?
			  AND b.scheduled_at < ?
			  AND DATE_ADD(b.scheduled_at, INTERVAL b.duration_minutes MINUTE) > ?
		)
		ORDER BY ml.id
		LIMIT 1
		FOR UPDATE
	`

	link := &entity.MeetingLink{}
	err = tx.QueryRowContext(ctx, selectQuery, bookingID, end, start).Scan(&link.ID, &link.URL)
	if err == sql.ErrNoRows {
		_ = tx.Rollback()
		return nil, ErrNoLinkAvailable
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	updateQuery := `
		UPDATE bookings
		SET meeting_link_id = ?, meeting_link = ?, updated_at = ?
		WHERE id = ? AND meeting_link_id IS NULL
	`

	result, err := tx.ExecContext(ctx, updateQuery, link.ID, link.URL, time.Now().UTC(), bookingID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if affected == 0 {
		// the booking already holds a link; assignment is set-once
		_ = tx.Rollback()
		return nil, ErrLinkAlreadyAssigned
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return link, nil
}
