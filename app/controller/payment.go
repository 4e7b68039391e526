package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sesiku/ms-go-reconciliation/app/entity"
	"github.com/sesiku/ms-go-reconciliation/app/factory"
	"github.com/sesiku/ms-go-reconciliation/app/service"
	"github.com/sesiku/ms-go-reconciliation/app/types"
)

const paymentLogListLimit = 50

type PaymentController struct {
	reconcileService *service.ReconcileService
	logger           logrus.FieldLogger
}

func NewPaymentController(reconcileService *service.ReconcileService) *PaymentController {
	return &PaymentController{
		reconcileService: reconcileService,
		logger:           factory.NewModuleLogger("reconcile-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

// HandleGatewayNotification is the webhook entry point. The signature is
// the authentication; a failed check answers with the same generic 400 as
// a malformed body so probers learn nothing.
func (c *PaymentController) HandleGatewayNotification(ctx echo.Context) error {
	req, err := types.NewGatewayNotificationFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid notification")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	booking, err := c.reconcileService.HandleNotification(ctx.Request().Context(), &service.GatewayNotificationInput{
		OrderID:           req.OrderID,
		TransactionStatus: req.TransactionStatus,
		FraudStatus:       req.FraudStatus,
		PaymentType:       req.PaymentType,
		GrossAmount:       req.GrossAmount,
		SignatureKey:      req.SignatureKey,
		Raw:               req.Raw,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureInvalid):
			return c.writeError(ctx, http.StatusBadRequest, "invalid notification")
		case errors.Is(err, service.ErrBookingNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Handle gateway notification failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, types.NewPaymentStatusResponse(booking))
}

func (c *PaymentController) VerifyPayment(ctx echo.Context) error {
	req, err := types.NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	var booking *entity.Booking
	if req.OrderID != "" {
		booking, err = c.reconcileService.VerifyByOrderID(ctx.Request().Context(), req.OrderID)
	} else {
		booking, err = c.reconcileService.VerifyByBookingID(ctx.Request().Context(), req.BookingID)
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		case errors.Is(err, service.ErrPaymentNotInitiated):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrGatewayUnavailable):
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable, retry later")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Verify payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, types.NewPaymentStatusResponse(booking))
}

// GetPaymentStatus reports the booking's payment state. With ?wait=1 it
// holds the request through the bounded poll loop; a gateway outage during
// the wait is reported as checking, never as a failure.
func (c *PaymentController) GetPaymentStatus(ctx echo.Context) error {
	req, err := types.NewBookingIDRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid booking id")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	wait := ctx.QueryParam("wait")
	if wait != "1" && wait != "true" {
		booking, err := c.reconcileService.GetBooking(ctx.Request().Context(), req.BookingID)
		if err != nil {
			if errors.Is(err, service.ErrBookingNotFound) {
				return c.writeError(ctx, http.StatusNotFound, "booking not found")
			}
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment status failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
		return ctx.JSON(http.StatusOK, types.NewPaymentStatusResponse(booking))
	}

	booking, reachable, err := c.reconcileService.PollPaymentStatus(ctx.Request().Context(), req.BookingID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		case errors.Is(err, service.ErrPaymentNotInitiated):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Poll payment status failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	resp := types.NewPaymentStatusResponse(booking)
	if !reachable {
		resp.Checking = true
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *PaymentController) InitiatePayment(ctx echo.Context) error {
	req, err := types.NewBookingIDRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid booking id")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	booking, err := c.reconcileService.InitiatePayment(ctx.Request().Context(), req.BookingID)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Initiate payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	orderID := ""
	if booking.OrderID != nil {
		orderID = *booking.OrderID
	}
	return ctx.JSON(http.StatusOK, &types.InitiatePaymentResponse{
		Success:   true,
		BookingID: booking.ID,
		OrderID:   orderID,
	})
}

func (c *PaymentController) ListPaymentLogs(ctx echo.Context) error {
	req, err := types.NewBookingIDRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid booking id")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	logs, err := c.reconcileService.ListPaymentLogs(ctx.Request().Context(), req.BookingID, paymentLogListLimit)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "booking not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List payment logs failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, types.NewPaymentLogsResponse(logs))
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
