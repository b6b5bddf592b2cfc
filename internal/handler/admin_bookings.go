package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/car-rental-booking/internal/model"
    "github.com/iliyamo/car-rental-booking/internal/queue"
)

// ListBookings handles GET /admin/bookings, newest first.
func (h *AdminHandler) ListBookings(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    out, err := h.Bookings.ListDetailed(ctx)
    if err != nil {
        return respondError(c, err, "Failed to fetch bookings")
    }
    return c.JSON(http.StatusOK, out)
}

type bookingStatusReq struct {
    Status string `json:"status" validate:"required"`
}

// UpdateBookingStatus handles PUT /admin/bookings/:id/status.  Unlike the
// payment callback this is an unconditional override.
func (h *AdminHandler) UpdateBookingStatus(c echo.Context) error {
    id, err := parseID(c)
    if err != nil {
        return respondError(c, err, "")
    }
    var req bookingStatusReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err, "")
    }
    status, ok := model.ParseBookingStatus(req.Status)
    if !ok {
        return respondError(c, ErrInvalidStatus, "")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Bookings.UpdateStatus(ctx, id, status); err != nil {
        return respondError(c, err, "Booking not found")
    }
    if h.Events != nil {
        ev := queue.BookingEvent{
            Type:       queue.EventBookingStatusChanged,
            BookingID:  id,
            Status:     string(status),
            OccurredAt: time.Now().UTC().Format(time.RFC3339),
        }
        if err := h.Events.Publish(ctx, ev); err != nil {
            c.Logger().Warnf("booking %d: publish %s: %v", id, ev.Type, err)
        }
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "Booking status updated", "bookingId": id, "status": status})
}

// DeleteBooking handles DELETE /admin/bookings/:id.
func (h *AdminHandler) DeleteBooking(c echo.Context) error {
    id, err := parseID(c)
    if err != nil {
        return respondError(c, err, "")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Bookings.Delete(ctx, id); err != nil {
        return respondError(c, err, "Booking not found")
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "Booking deleted successfully"})
}
