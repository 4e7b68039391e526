package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
	"github.com/sesiku/ms-go-reconciliation/app/factory"
	"github.com/sesiku/ms-go-reconciliation/app/repository"
)

type meetingLinkClaimer interface {
	Claim(ctx context.Context, bookingID uint64, start, end time.Time) (*entity.MeetingLink, error)
}

// MeetingLinkAllocator hands out conferencing links from the shared pool.
// A link may serve many bookings as long as their session windows do not
// overlap; the claim itself is atomic in the repository.
type MeetingLinkAllocator struct {
	links  meetingLinkClaimer
	logger logrus.FieldLogger
}

func NewMeetingLinkAllocator(links meetingLinkClaimer) *MeetingLinkAllocator {
	return &MeetingLinkAllocator{
		links:  links,
		logger: factory.NewModuleLogger("meeting-link-allocator"),
	}
}

func (a *MeetingLinkAllocator) Allocate(ctx context.Context, booking *entity.Booking) (*entity.MeetingLink, error) {
	if booking.DurationMinutes <= 0 {
		return nil, errors.New("booking has no duration")
	}

	start, end := booking.Interval()
	link, err := a.links.Claim(ctx, booking.ID, start, end)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"booking_id":      booking.ID,
		"meeting_link_id": link.ID,
	}).Info("meeting link assigned")

	return link, nil
}

// IntervalsOverlap is the availability predicate: two sessions collide iff
// each starts before the other ends. Half-open intervals, so back-to-back
// sessions share a link.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ErrNoLinkAvailable re-exports the repository sentinel so engine callers
// can branch without importing the repository package.
var ErrNoLinkAvailable = repository.ErrNoLinkAvailable
