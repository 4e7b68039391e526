package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
)

func TestReceiptBuild(t *testing.T) {
	orderID := "MNTR-receipt"
	booking := &entity.Booking{
		ID:              42,
		OrderID:         &orderID,
		SessionType:     "mock-interview",
		GrossAmount:     "150000",
		ScheduledAt:     time.Date(2026, 9, 2, 13, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
	}

	pdf, err := NewReceiptService("Sesiku").Build(booking, time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatal("expected PDF magic header in output")
	}
}
