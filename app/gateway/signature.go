package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrSignatureMismatch = errors.New("signature mismatch")

// Signature computes the webhook signature over the gateway's fixed field
// concatenation. The literal string form of grossAmount is part of the
// signed message; "100000" and "100000.00" produce different digests.
func Signature(orderID, transactionStatus, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + transactionStatus + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks an inbound webhook signature in constant time.
// On mismatch it reports whether an alternate rendering of the gross
// amount would have matched, which separates the common amount-formatting
// bug from an actual wrong key.
func VerifySignature(orderID, transactionStatus, grossAmount, provided, serverKey string) error {
	provided = strings.ToLower(strings.TrimSpace(provided))
	if provided == "" {
		return fmt.Errorf("%w: signature is empty", ErrSignatureMismatch)
	}

	expected := Signature(orderID, transactionStatus, grossAmount, serverKey)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1 {
		return nil
	}

	for _, alt := range alternateAmountForms(grossAmount) {
		candidate := Signature(orderID, transactionStatus, alt, serverKey)
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(provided)) == 1 {
			return fmt.Errorf("%w: gross_amount formatting (got %q, signature was computed over %q)",
				ErrSignatureMismatch, grossAmount, alt)
		}
	}

	return fmt.Errorf("%w: digest does not match server key", ErrSignatureMismatch)
}

// alternateAmountForms lists the renderings the gateway is known to emit
// for the same value, e.g. "100000" vs "100000.00".
func alternateAmountForms(amount string) []string {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil
	}
	if strings.HasSuffix(amount, ".00") {
		return []string{strings.TrimSuffix(amount, ".00")}
	}
	if !strings.Contains(amount, ".") {
		return []string{amount + ".00"}
	}
	return nil
}
