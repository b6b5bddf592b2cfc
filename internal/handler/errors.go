package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/car-rental-booking/internal/model"
    mpesa "github.com/iliyamo/car-rental-booking/internal/payment"
    "github.com/iliyamo/car-rental-booking/internal/repository"
    "github.com/iliyamo/car-rental-booking/internal/service/booking"
    "github.com/iliyamo/car-rental-booking/internal/service/payment"
)

var (
    // ErrInvalidRole is returned for a role other than user or admin.
    ErrInvalidRole   = errors.New("invalid role specified")
    // ErrInvalidStatus is returned for an unknown booking or car status.
    ErrInvalidStatus = errors.New("invalid status specified")
)

var (
    errInvalidID   = errors.New("invalid id")
    errInvalidBody = errors.New("invalid body")
)

// statusFor maps domain and storage errors onto HTTP status codes.
func statusFor(err error) int {
    switch {
    case errors.Is(err, errValidation),
        errors.Is(err, errInvalidID),
        errors.Is(err, errInvalidBody),
        errors.Is(err, ErrInvalidRole),
        errors.Is(err, ErrInvalidStatus),
        errors.Is(err, booking.ErrValidation),
        errors.Is(err, booking.ErrPriceMismatch),
        errors.Is(err, model.ErrInvalidRange),
        errors.Is(err, payment.ErrValidation),
        errors.Is(err, payment.ErrAmountMismatch):
        return http.StatusBadRequest
    case errors.Is(err, repository.ErrNotFound):
        return http.StatusNotFound
    case errors.Is(err, repository.ErrEmailExists),
        errors.Is(err, repository.ErrConflict),
        errors.Is(err, booking.ErrCarUnavailable),
        errors.Is(err, payment.ErrNotPending):
        return http.StatusConflict
    case errors.Is(err, mpesa.ErrPaymentInitiation):
        return http.StatusBadGateway
    }
    return http.StatusInternalServerError
}

// respondError writes {"error": ...} for err.  Client errors carry the
// error text; server errors are logged and answered with fallback so that
// SQL and provider details do not leak.
func respondError(c echo.Context, err error, fallback string) error {
    status := statusFor(err)
    msg := err.Error()
    switch {
    case status == http.StatusNotFound && errors.Is(err, repository.ErrNotFound):
        msg = fallback
    case status >= http.StatusInternalServerError:
        c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
        msg = fallback
    }
    return c.JSON(status, echo.Map{"error": msg})
}

// fallbackFor picks the response message for an error whose text is not
// shown: notFound when a looked-up row is missing, failed otherwise.
func fallbackFor(err error, notFound, failed string) string {
    if errors.Is(err, repository.ErrNotFound) {
        return notFound
    }
    return failed
}
