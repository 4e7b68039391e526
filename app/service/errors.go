package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrPaymentNotInitiated = errors.New("payment not initiated for booking")
	ErrSignatureInvalid    = errors.New("signature verification failed")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
)
