package handler

import (
    "context"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/car-rental-booking/internal/model"
    "github.com/iliyamo/car-rental-booking/internal/service/booking"
)

// BookingCreator is implemented by *booking.Service.
type BookingCreator interface {
    Create(ctx context.Context, in booking.Input) (*model.Booking, error)
}

type BookingHandler struct {
    Bookings BookingCreator
}

func NewBookingHandler(b BookingCreator) *BookingHandler { return &BookingHandler{Bookings: b} }

type bookingReq struct {
    Name       string   `json:"name" validate:"required"`
    Email      string   `json:"email" validate:"required,email"`
    Phone      string   `json:"phone" validate:"required"`
    CarID      uint64   `json:"car_id" validate:"required"`
    StartDate  string   `json:"start_date" validate:"required"`
    EndDate    string   `json:"end_date" validate:"required"`
    TotalPrice *float64 `json:"total_price"`
    Status     string   `json:"status"`
}

// dateLayouts are tried in order; browsers send Date.toJSON() output.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

func parseDate(field, s string) (time.Time, error) {
    s = strings.TrimSpace(s)
    for _, layout := range dateLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            return t.UTC(), nil
        }
    }
    return time.Time{}, fmt.Errorf("%w: %s must be an ISO-8601 date", errValidation, field)
}

// Create handles POST /bookings.  The booking is stored as pending with a
// server-computed total; the client follows up with POST /pay.
func (h *BookingHandler) Create(c echo.Context) error {
    var req bookingReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err, "")
    }
    start, err := parseDate("start_date", req.StartDate)
    if err != nil {
        return respondError(c, err, "")
    }
    end, err := parseDate("end_date", req.EndDate)
    if err != nil {
        return respondError(c, err, "")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    b, err := h.Bookings.Create(ctx, booking.Input{
        Name:        req.Name,
        Email:       req.Email,
        Phone:       req.Phone,
        CarID:       req.CarID,
        StartDate:   start,
        EndDate:     end,
        ClientTotal: req.TotalPrice,
        Status:      req.Status,
    })
    if err != nil {
        return respondError(c, err, fallbackFor(err, "Car not found", "Failed to create booking"))
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "message":     "Booking created",
        "bookingId":   b.ID,
        "total_price": b.TotalPrice,
        "status":      b.Status,
    })
}
