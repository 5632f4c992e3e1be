package utils

import (
	"github.com/google/uuid"
)

// GenerateQRCode returns the opaque token printed on a ticket's QR code.
func GenerateQRCode() string {
	return uuid.NewString()
}

// GenerateTransactionReference returns a unique reference for a recorded payment.
func GenerateTransactionReference() string {
	return uuid.NewString()
}
