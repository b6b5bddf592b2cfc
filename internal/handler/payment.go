package handler

import (
    "context"
    "encoding/json"
    "fmt"
    "math"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    mpesa "github.com/iliyamo/car-rental-booking/internal/payment"
    "github.com/iliyamo/car-rental-booking/internal/service/payment"
)

// PaymentFlow is implemented by *payment.Service.
type PaymentFlow interface {
    Initiate(ctx context.Context, bookingID uint64, phone string, amount *uint64) (*mpesa.STKResponse, error)
    HandleCallback(ctx context.Context, bookingID uint64, cb mpesa.STKCallback) (payment.CallbackResult, error)
}

type PaymentHandler struct {
    Payments PaymentFlow
}

func NewPaymentHandler(p PaymentFlow) *PaymentHandler { return &PaymentHandler{Payments: p} }

type payReq struct {
    Phone     string   `json:"phone" validate:"required"`
    Amount    *float64 `json:"amount"`
    BookingID uint64   `json:"bookingId" validate:"required"`
}

// Pay handles POST /pay and relays the provider acknowledgment verbatim.
func (h *PaymentHandler) Pay(c echo.Context) error {
    var req payReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err, "")
    }
    var amount *uint64
    if req.Amount != nil {
        a := *req.Amount
        if a < 0 || a != math.Trunc(a) {
            return respondError(c, fmt.Errorf("%w: amount must be a whole number of shillings", payment.ErrAmountMismatch), "")
        }
        v := uint64(a)
        amount = &v
    }

    // provider round trip included
    ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
    defer cancel()

    ack, err := h.Payments.Initiate(ctx, req.BookingID, req.Phone, amount)
    if err != nil {
        return respondError(c, err, fallbackFor(err, "Booking not found", "Payment initiation failed"))
    }
    if len(ack.Raw) > 0 {
        return c.JSONBlob(http.StatusOK, ack.Raw)
    }
    return c.JSON(http.StatusOK, ack)
}

// accepted is what Daraja expects back; anything else makes it retry.
var accepted = echo.Map{"ResultCode": 0, "ResultDesc": "Accepted"}

// Callback handles POST /pay/callback/:bookingId.  It always answers 200:
// the outcome is logged, and a rejected callback would only be resent.
func (h *PaymentHandler) Callback(c echo.Context) error {
    bookingID, err := strconv.ParseUint(c.Param("bookingId"), 10, 64)
    if err != nil || bookingID == 0 {
        c.Logger().Warnf("payment callback: bad booking id %q", c.Param("bookingId"))
        return c.JSON(http.StatusOK, accepted)
    }
    var cb mpesa.Callback
    if err := json.NewDecoder(c.Request().Body).Decode(&cb); err != nil {
        c.Logger().Warnf("payment callback for booking %d: undecodable body: %v", bookingID, err)
        return c.JSON(http.StatusOK, accepted)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    res, err := h.Payments.HandleCallback(ctx, bookingID, cb.Body.STKCallback)
    switch {
    case err != nil:
        c.Logger().Errorf("payment callback for booking %d: %v", bookingID, err)
    case res.Unmatched:
        c.Logger().Warnf("payment callback for booking %d: unknown checkout %s", bookingID, cb.Body.STKCallback.CheckoutRequestID)
    case res.Duplicate:
        c.Logger().Infof("payment callback for booking %d: duplicate %s", bookingID, cb.Body.STKCallback.CheckoutRequestID)
    default:
        c.Logger().Infof("payment callback for booking %d: payment %s, booking %q", bookingID, res.Payment, res.Booking)
    }
    return c.JSON(http.StatusOK, accepted)
}
