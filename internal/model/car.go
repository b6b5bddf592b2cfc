package model

import "time"

// CarStatus controls whether a car may be booked.
type CarStatus string

const (
    CarAvailable   CarStatus = "available"
    CarUnavailable CarStatus = "unavailable"
)

// ParseCarStatus validates a status coming from an admin request.
func ParseCarStatus(s string) (CarStatus, bool) {
    switch CarStatus(s) {
    case CarAvailable, CarUnavailable:
        return CarStatus(s), true
    }
    return "", false
}

// Car is a rentable vehicle.  Price is the daily rate in whole shillings.
type Car struct {
    ID        uint64    `json:"id"`
    Name      string    `json:"name"`
    Price     uint64    `json:"price"`
    Type      string    `json:"type"`
    Image     string    `json:"image"`
    Status    CarStatus `json:"status"`
    CreatedAt time.Time `json:"created_at"`
}
