package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
)

// ReceiptService renders the payment receipt PDF attached to the
// confirmation event. Rendering failures are non-fatal to the payment
// flow; the event simply goes out without the attachment.
type ReceiptService struct {
	appName string
}

func NewReceiptService(appName string) *ReceiptService {
	if appName == "" {
		appName = "Sesiku"
	}
	return &ReceiptService{appName: appName}
}

func (s *ReceiptService) Build(booking *entity.Booking, paidAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle("Payment Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, s.appName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, "Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	orderID := ""
	if booking.OrderID != nil {
		orderID = *booking.OrderID
	}

	rows := [][2]string{
		{"Order ID", orderID},
		{"Booking", fmt.Sprintf("#%d", booking.ID)},
		{"Session", booking.SessionType},
		{"Scheduled", booking.ScheduledAt.Format("2006-01-02 15:04")},
		{"Duration", fmt.Sprintf("%d minutes", booking.DurationMinutes)},
		{"Amount", "IDR " + booking.GrossAmount},
		{"Paid at", paidAt.UTC().Format(time.RFC3339)},
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 7, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, row[1], "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 6, "This receipt was generated automatically after payment confirmation.", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
