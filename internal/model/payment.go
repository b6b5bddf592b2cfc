package model

import "time"

// PaymentStatus tracks one STK push attempt.
type PaymentStatus string

const (
    PaymentInitiated PaymentStatus = "initiated"
    PaymentSucceeded PaymentStatus = "succeeded"
    PaymentFailed    PaymentStatus = "failed"
)

// Final reports whether the provider has already reported an outcome.
func (s PaymentStatus) Final() bool { return s == PaymentSucceeded || s == PaymentFailed }

// Payment correlates a provider checkout request with a booking.
// CheckoutRequestID is unique and doubles as the callback dedupe key.
type Payment struct {
    ID                uint64
    BookingID         uint64
    CheckoutRequestID string
    MerchantRequestID string
    Phone             string
    Amount            uint64
    Status            PaymentStatus
    Receipt           *string // M-Pesa receipt number, set on success
    ResultCode        *int
    ResultDesc        *string
    CreatedAt         time.Time
    UpdatedAt         time.Time
}
