package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
	"github.com/sesiku/ms-go-reconciliation/app/gateway"
	"github.com/sesiku/ms-go-reconciliation/app/notifier"
	"github.com/sesiku/ms-go-reconciliation/app/repository"
	"github.com/sesiku/ms-go-reconciliation/app/service"
	"github.com/sesiku/ms-go-reconciliation/config"
)

const controllerServerKey = "controller-test-key"

type controllerBookingRepo struct {
	findByIDFn         func(ctx context.Context, id uint64) (*entity.Booking, error)
	findByOrderIDFn    func(ctx context.Context, orderID string) (*entity.Booking, error)
	assignOrderIDFn    func(ctx context.Context, id uint64, orderID string, now time.Time) (bool, error)
	applyTransitionFn  func(ctx context.Context, t repository.PaymentTransition) (bool, error)
	listStalePendingFn func(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error)
	listExpiredFn      func(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Booking, error)
}

func (r *controllerBookingRepo) FindByID(ctx context.Context, id uint64) (*entity.Booking, error) {
	if r.findByIDFn != nil {
		return r.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (r *controllerBookingRepo) FindByOrderID(ctx context.Context, orderID string) (*entity.Booking, error) {
	if r.findByOrderIDFn != nil {
		return r.findByOrderIDFn(ctx, orderID)
	}
	return nil, nil
}

func (r *controllerBookingRepo) AssignOrderID(ctx context.Context, id uint64, orderID string, now time.Time) (bool, error) {
	if r.assignOrderIDFn != nil {
		return r.assignOrderIDFn(ctx, id, orderID, now)
	}
	return true, nil
}

func (r *controllerBookingRepo) ApplyPaymentTransition(ctx context.Context, t repository.PaymentTransition) (bool, error) {
	if r.applyTransitionFn != nil {
		return r.applyTransitionFn(ctx, t)
	}
	return true, nil
}

func (r *controllerBookingRepo) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Booking, error) {
	if r.listStalePendingFn != nil {
		return r.listStalePendingFn(ctx, before, limit)
	}
	return []*entity.Booking{}, nil
}

func (r *controllerBookingRepo) ListExpiredUnpaid(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Booking, error) {
	if r.listExpiredFn != nil {
		return r.listExpiredFn(ctx, cutoff, limit)
	}
	return []*entity.Booking{}, nil
}

type controllerLogRepo struct {
	listFn func(ctx context.Context, bookingID uint64, limit int32) ([]*entity.PaymentLog, error)
}

func (r *controllerLogRepo) Create(context.Context, *entity.PaymentLog) error { return nil }

func (r *controllerLogRepo) ListByBookingID(ctx context.Context, bookingID uint64, limit int32) ([]*entity.PaymentLog, error) {
	if r.listFn != nil {
		return r.listFn(ctx, bookingID, limit)
	}
	return []*entity.PaymentLog{}, nil
}

type controllerGateway struct {
	statusFn func(ctx context.Context, orderID string) (*gateway.TransactionStatus, error)
}

func (g *controllerGateway) GetTransactionStatus(ctx context.Context, orderID string) (*gateway.TransactionStatus, error) {
	if g.statusFn != nil {
		return g.statusFn(ctx, orderID)
	}
	return nil, gateway.ErrOrderNotFound
}

type controllerAllocator struct{}

func (a *controllerAllocator) Allocate(context.Context, *entity.Booking) (*entity.MeetingLink, error) {
	return &entity.MeetingLink{ID: 1, URL: "https://meet.example.com/room-1"}, nil
}

type controllerNotifier struct{}

func (n *controllerNotifier) PaymentConfirmed(context.Context, *notifier.PaymentConfirmedEvent) error {
	return nil
}

func (n *controllerNotifier) PaymentFailed(context.Context, *notifier.PaymentFailedEvent) error {
	return nil
}

type controllerReceipts struct{}

func (r *controllerReceipts) Build(*entity.Booking, time.Time) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

func newControllerForTest(bookings *controllerBookingRepo, logs *controllerLogRepo, gw *controllerGateway) *PaymentController {
	reconcileService := service.NewReconcileService(
		bookings,
		logs,
		gw,
		&controllerAllocator{},
		&controllerNotifier{},
		&controllerReceipts{},
		config.ReconcileConfig{PollMaxAttempts: 2, PollInterval: time.Millisecond, StaleAfter: 15 * time.Minute, JobBatchSize: 100},
		controllerServerKey,
	)
	return NewPaymentController(reconcileService)
}

func waitingBooking(id uint64, orderID string) *entity.Booking {
	b := &entity.Booking{
		ID:              id,
		MenteeRef:       "mentee-7",
		MentorRef:       "mentor-3",
		SessionType:     "career-review",
		GrossAmount:     "100000",
		ScheduledAt:     time.Now().UTC().Add(24 * time.Hour),
		DurationMinutes: 60,
		PaymentStatus:   entity.PaymentStatusWaiting,
		Status:          entity.BookingStatusPending,
	}
	if orderID != "" {
		b.OrderID = &orderID
	}
	return b
}

func TestHandleGatewayNotificationBadBody(t *testing.T) {
	ctrl := newControllerForTest(&controllerBookingRepo{}, &controllerLogRepo{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/notification", bytes.NewBufferString("{bad"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := ctrl.HandleGatewayNotification(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleGatewayNotificationBadSignature(t *testing.T) {
	booking := waitingBooking(1, "MNTR-a")
	ctrl := newControllerForTest(&controllerBookingRepo{
		findByOrderIDFn: func(context.Context, string) (*entity.Booking, error) { return booking, nil },
	}, &controllerLogRepo{}, &controllerGateway{})
	e := echo.New()

	body := fmt.Sprintf(`{"order_id":"MNTR-a","transaction_status":"settlement","gross_amount":"100000","signature_key":"%s"}`,
		strings.Repeat("0", 128))
	req := httptest.NewRequest(http.MethodPost, "/payments/notification", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.HandleGatewayNotification(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid notification") {
		t.Fatalf("response must stay generic, got %s", rec.Body.String())
	}
}

func TestHandleGatewayNotificationSettlement(t *testing.T) {
	booking := waitingBooking(1, "MNTR-a")
	ctrl := newControllerForTest(&controllerBookingRepo{
		findByOrderIDFn: func(context.Context, string) (*entity.Booking, error) { return booking, nil },
	}, &controllerLogRepo{}, &controllerGateway{})
	e := echo.New()

	signature := gateway.Signature("MNTR-a", "settlement", "100000", controllerServerKey)
	body := fmt.Sprintf(`{"order_id":"MNTR-a","transaction_status":"settlement","gross_amount":"100000","signature_key":"%s"}`, signature)
	req := httptest.NewRequest(http.MethodPost, "/payments/notification", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.HandleGatewayNotification(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload["payment_status"] != "paid" {
		t.Fatalf("expected paid, got %v", payload["payment_status"])
	}
	if payload["success"] != true {
		t.Fatalf("expected success=true, got %v", payload["success"])
	}
}

func TestHandleGatewayNotificationUnknownOrder(t *testing.T) {
	ctrl := newControllerForTest(&controllerBookingRepo{}, &controllerLogRepo{}, &controllerGateway{})
	e := echo.New()

	signature := gateway.Signature("MNTR-x", "settlement", "100000", controllerServerKey)
	body := fmt.Sprintf(`{"order_id":"MNTR-x","transaction_status":"settlement","gross_amount":"100000","signature_key":"%s"}`, signature)
	req := httptest.NewRequest(http.MethodPost, "/payments/notification", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.HandleGatewayNotification(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestVerifyPaymentGatewayDown(t *testing.T) {
	booking := waitingBooking(1, "MNTR-a")
	ctrl := newControllerForTest(&controllerBookingRepo{
		findByOrderIDFn: func(context.Context, string) (*entity.Booking, error) { return booking, nil },
	}, &controllerLogRepo{}, &controllerGateway{
		statusFn: func(context.Context, string) (*gateway.TransactionStatus, error) {
			return nil, gateway.ErrGatewayUnavailable
		},
	})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewBufferString(`{"order_id":"MNTR-a"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.VerifyPayment(ctx)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestVerifyPaymentMissingIdentifiers(t *testing.T) {
	ctrl := newControllerForTest(&controllerBookingRepo{}, &controllerLogRepo{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewBufferString(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.VerifyPayment(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetPaymentStatus(t *testing.T) {
	booking := waitingBooking(9, "MNTR-a")
	ctrl := newControllerForTest(&controllerBookingRepo{
		findByIDFn: func(context.Context, uint64) (*entity.Booking, error) { return booking, nil },
	}, &controllerLogRepo{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/bookings/9/payment-status", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("9")

	_ = ctrl.GetPaymentStatus(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload["payment_status"] != "waiting" {
		t.Fatalf("expected waiting, got %v", payload["payment_status"])
	}
}

func TestGetPaymentStatusNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerBookingRepo{}, &controllerLogRepo{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/bookings/9/payment-status", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("9")

	_ = ctrl.GetPaymentStatus(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetPaymentStatusWaitChecking(t *testing.T) {
	booking := waitingBooking(9, "MNTR-a")
	ctrl := newControllerForTest(&controllerBookingRepo{
		findByIDFn: func(context.Context, uint64) (*entity.Booking, error) { return booking, nil },
	}, &controllerLogRepo{}, &controllerGateway{
		statusFn: func(context.Context, string) (*gateway.TransactionStatus, error) {
			return nil, gateway.ErrGatewayUnavailable
		},
	})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/bookings/9/payment-status?wait=1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("9")

	_ = ctrl.GetPaymentStatus(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload["checking"] != true {
		t.Fatalf("expected checking=true while gateway is down, got %s", rec.Body.String())
	}
}

func TestInitiatePayment(t *testing.T) {
	booking := waitingBooking(3, "")
	ctrl := newControllerForTest(&controllerBookingRepo{
		findByIDFn: func(context.Context, uint64) (*entity.Booking, error) { return booking, nil },
	}, &controllerLogRepo{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/bookings/3/payments", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("3")

	_ = ctrl.InitiatePayment(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	orderID, _ := payload["order_id"].(string)
	if !strings.HasPrefix(orderID, "MNTR-") {
		t.Fatalf("expected MNTR- order id, got %q", orderID)
	}
}

func TestListPaymentLogs(t *testing.T) {
	booking := waitingBooking(5, "MNTR-a")
	now := time.Now().UTC()
	ctrl := newControllerForTest(&controllerBookingRepo{
		findByIDFn: func(context.Context, uint64) (*entity.Booking, error) { return booking, nil },
	}, &controllerLogRepo{
		listFn: func(context.Context, uint64, int32) ([]*entity.PaymentLog, error) {
			return []*entity.PaymentLog{{
				ID:                1,
				BookingID:         5,
				OrderID:           "MNTR-a",
				Source:            entity.PaymentLogSourceWebhook,
				TransactionStatus: "pending",
				CreatedAt:         now,
			}}, nil
		},
	}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/bookings/5/payment-logs", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("5")

	_ = ctrl.ListPaymentLogs(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "MNTR-a") {
		t.Fatalf("expected log row in body, got %s", rec.Body.String())
	}
}
