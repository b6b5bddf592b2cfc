package model

import (
    "errors"
    "time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    BookingPending   BookingStatus = "pending"
    BookingConfirmed BookingStatus = "confirmed"
    BookingCancelled BookingStatus = "cancelled"
)

// ParseBookingStatus validates a status string.
func ParseBookingStatus(s string) (BookingStatus, bool) {
    switch BookingStatus(s) {
    case BookingPending, BookingConfirmed, BookingCancelled:
        return BookingStatus(s), true
    }
    return "", false
}

// Booking reserves one car for one account over [StartDate, EndDate).
// TotalPrice is fixed at creation and never recomputed.
type Booking struct {
    ID         uint64        `json:"id"`
    AccountID  uint64        `json:"account_id"`
    CarID      uint64        `json:"car_id"`
    StartDate  time.Time     `json:"start_date"`
    EndDate    time.Time     `json:"end_date"`
    TotalPrice uint64        `json:"total_price"`
    Status     BookingStatus `json:"status"`
    CreatedAt  time.Time     `json:"created_at"`
}

// ErrInvalidRange is returned when end is not strictly after start.
var ErrInvalidRange = errors.New("end_date must be after start_date")

// RentalDays returns ceil((end-start)/24h).  A partial day is billed as a
// full day.
func RentalDays(start, end time.Time) (uint64, error) {
    if !end.After(start) {
        return 0, ErrInvalidRange
    }
    d := end.Sub(start)
    days := d / (24 * time.Hour)
    if d%(24*time.Hour) != 0 {
        days++
    }
    return uint64(days), nil
}

// TotalPrice is daily × RentalDays(start, end).
func TotalPrice(daily uint64, start, end time.Time) (uint64, error) {
    days, err := RentalDays(start, end)
    if err != nil {
        return 0, err
    }
    return daily * days, nil
}
