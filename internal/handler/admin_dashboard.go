package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Dashboard handles GET /admin/dashboard.  Revenue is the sum of confirmed
// booking totals.
func (h *AdminHandler) Dashboard(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    users, err := h.Accounts.Count(ctx)
    if err != nil {
        return respondError(c, err, "Failed to load dashboard data")
    }
    cars, err := h.Cars.Count(ctx)
    if err != nil {
        return respondError(c, err, "Failed to load dashboard data")
    }
    active, revenue, err := h.Bookings.Stats(ctx)
    if err != nil {
        return respondError(c, err, "Failed to load dashboard data")
    }
    return c.JSON(http.StatusOK, echo.Map{
        "users":    users,
        "cars":     cars,
        "bookings": active,
        "revenue":  revenue,
    })
}
