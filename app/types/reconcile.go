package types

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
)

// GatewayNotification is the strictly-typed form of an inbound webhook.
// Raw keeps the exact body bytes for the audit log; GrossAmount keeps the
// gateway's literal numeric string, which the signature is computed over.
type GatewayNotification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	StatusCode        string `json:"status_code"`

	Raw string `json:"-"`
}

func NewGatewayNotificationFromContext(ctx echo.Context) (*GatewayNotification, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	var body GatewayNotification
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, err
	}

	body.OrderID = strings.TrimSpace(body.OrderID)
	body.TransactionStatus = strings.TrimSpace(body.TransactionStatus)
	body.FraudStatus = strings.TrimSpace(body.FraudStatus)
	body.PaymentType = strings.TrimSpace(body.PaymentType)
	body.SignatureKey = strings.TrimSpace(body.SignatureKey)
	body.Raw = string(rawBody)

	return &body, nil
}

func (n *GatewayNotification) Validate() error {
	if n.OrderID == "" {
		return errors.New("order_id is required")
	}
	if n.TransactionStatus == "" {
		return errors.New("transaction_status is required")
	}
	if strings.TrimSpace(n.GrossAmount) == "" {
		return errors.New("gross_amount is required")
	}
	if n.SignatureKey == "" {
		return errors.New("signature_key is required")
	}
	return nil
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"order_id"`
	BookingID uint64 `json:"booking_id"`
}

func NewVerifyPaymentRequestFromContext(ctx echo.Context) (*VerifyPaymentRequest, error) {
	var body VerifyPaymentRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.OrderID = strings.TrimSpace(body.OrderID)
	return &body, nil
}

func (r *VerifyPaymentRequest) Validate() error {
	if r.OrderID == "" && r.BookingID == 0 {
		return errors.New("order_id or booking_id is required")
	}
	return nil
}

type BookingIDRequest struct {
	BookingID uint64
}

func NewBookingIDRequestFromContext(ctx echo.Context) (*BookingIDRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &BookingIDRequest{BookingID: id}, nil
}

func (r *BookingIDRequest) Validate() error {
	if r.BookingID == 0 {
		return errors.New("invalid booking id")
	}
	return nil
}

type PaymentStatusResponse struct {
	Success       bool   `json:"success"`
	BookingID     uint64 `json:"booking_id"`
	OrderID       string `json:"order_id,omitempty"`
	PaymentStatus string `json:"payment_status"`
	BookingStatus string `json:"booking_status"`
	PaidAt        string `json:"paid_at,omitempty"`
	MeetingLink   string `json:"meeting_link,omitempty"`

	// Checking marks a transient gateway failure during polling: the
	// payment is not confirmed yet, but it has not failed either.
	Checking bool `json:"checking,omitempty"`
}

func NewPaymentStatusResponse(booking *entity.Booking) *PaymentStatusResponse {
	resp := &PaymentStatusResponse{
		Success:       true,
		BookingID:     booking.ID,
		PaymentStatus: string(booking.PaymentStatus),
		BookingStatus: string(booking.Status),
	}
	if booking.OrderID != nil {
		resp.OrderID = *booking.OrderID
	}
	if booking.PaidAt != nil {
		resp.PaidAt = booking.PaidAt.UTC().Format(time.RFC3339)
	}
	if booking.MeetingLink != nil {
		resp.MeetingLink = *booking.MeetingLink
	}
	return resp
}

type PaymentLogView struct {
	ID                uint64 `json:"id"`
	OrderID           string `json:"order_id"`
	Source            string `json:"source"`
	TransactionStatus string `json:"transaction_status"`
	PaymentType       string `json:"payment_type,omitempty"`
	GrossAmount       string `json:"gross_amount,omitempty"`
	CreatedAt         string `json:"created_at"`
}

type PaymentLogsResponse struct {
	Logs []*PaymentLogView `json:"logs"`
}

func NewPaymentLogsResponse(logs []*entity.PaymentLog) *PaymentLogsResponse {
	views := make([]*PaymentLogView, 0, len(logs))
	for _, log := range logs {
		views = append(views, &PaymentLogView{
			ID:                log.ID,
			OrderID:           log.OrderID,
			Source:            log.Source,
			TransactionStatus: log.TransactionStatus,
			PaymentType:       log.PaymentType,
			GrossAmount:       log.GrossAmount,
			CreatedAt:         log.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &PaymentLogsResponse{Logs: views}
}

type InitiatePaymentResponse struct {
	Success   bool   `json:"success"`
	BookingID uint64 `json:"booking_id"`
	OrderID   string `json:"order_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
