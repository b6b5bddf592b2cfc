// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingQueueName is the durable queue carrying booking lifecycle events.
const BookingQueueName = "booking.events"

// Event types carried in BookingEvent.Type.
const (
    EventBookingCreated       = "booking.created"
    EventBookingStatusChanged = "booking.status_changed"
)

// BookingEvent is published when a booking is created or changes status.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type BookingEvent struct {
    Type       string `json:"type"`
    BookingID  uint64 `json:"booking_id"`
    AccountID  uint64 `json:"account_id"`
    CarID      uint64 `json:"car_id"`
    Email      string `json:"email,omitempty"`
    StartDate  string `json:"start_date"`
    EndDate    string `json:"end_date"`
    TotalPrice uint64 `json:"total_price"`
    Status     string `json:"status"`
    Receipt    string `json:"receipt,omitempty"`
    OccurredAt string `json:"occurred_at"`
}
