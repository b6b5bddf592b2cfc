// Package payment sequences the /pay request against a booking and
// reconciles the provider's asynchronous callback with it.
package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental-booking/internal/metrics"
	"github.com/iliyamo/car-rental-booking/internal/model"
	mpesa "github.com/iliyamo/car-rental-booking/internal/payment"
	"github.com/iliyamo/car-rental-booking/internal/queue"
	"github.com/iliyamo/car-rental-booking/internal/repository"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotPending     = errors.New("booking is not pending")
	ErrAmountMismatch = errors.New("amount does not match the booking total")
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type BookingStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	TransitionFromPendingTx(ctx context.Context, tx *sql.Tx, id uint64, to model.BookingStatus) (bool, error)
}

type PaymentStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error
	GetByCheckoutIDForUpdateTx(ctx context.Context, tx *sql.Tx, checkoutID string) (*model.Payment, error)
	CountInitiatedTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error)
	FinalizeTx(ctx context.Context, tx *sql.Tx, id uint64, status model.PaymentStatus, receipt *string, resultCode int, resultDesc string) error
}

// Gateway initiates an STK push; *mpesa.Client satisfies it.
type Gateway interface {
	InitiatePayment(ctx context.Context, phone string, amount, bookingID uint64) (*mpesa.STKResponse, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Service owns the payment side of a booking.
type Service struct {
	tx       TxRunner
	bookings BookingStore
	payments PaymentStore
	gateway  Gateway
	events   EventPublisher
	logger   echo.Logger
}

func NewService(tx TxRunner, bookings BookingStore, payments PaymentStore, gateway Gateway, events EventPublisher, logger echo.Logger) *Service {
	if tx == nil || bookings == nil || payments == nil || gateway == nil || logger == nil {
		panic("nil dependency passed to payment.NewService")
	}
	return &Service{tx: tx, bookings: bookings, payments: payments, gateway: gateway, events: events, logger: logger}
}

// Initiate asks the provider to charge the booking total to phone.  amount
// is optional; when given it must equal the total.  A provider failure
// leaves the booking pending so the customer can retry.
func (s *Service) Initiate(ctx context.Context, bookingID uint64, phone string, amount *uint64) (*mpesa.STKResponse, error) {
	if bookingID == 0 {
		return nil, fmt.Errorf("%w: bookingId is required", ErrValidation)
	}
	msisdn, err := mpesa.NormalizePhone(phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking %d: %w", bookingID, err)
	}
	if b.Status != model.BookingPending {
		return nil, ErrNotPending
	}
	if amount != nil && *amount != b.TotalPrice {
		return nil, fmt.Errorf("%w: expected %d", ErrAmountMismatch, b.TotalPrice)
	}

	ack, err := s.gateway.InitiatePayment(ctx, msisdn, b.TotalPrice, b.ID)
	if err != nil {
		metrics.PaymentsInitiated.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.PaymentsInitiated.WithLabelValues("ok").Inc()

	p := &model.Payment{
		BookingID:         b.ID,
		CheckoutRequestID: ack.CheckoutRequestID,
		MerchantRequestID: ack.MerchantRequestID,
		Phone:             msisdn,
		Amount:            b.TotalPrice,
		Status:            model.PaymentInitiated,
	}
	// Callbacks only act on checkout ids recorded here, so the push is not
	// reported as started unless the row exists.  The booking lock orders
	// the insert against a concurrent callback for an earlier push.
	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.bookings.GetByIDForUpdateTx(ctx, tx, b.ID); err != nil {
			return err
		}
		return s.payments.CreateTx(ctx, tx, p)
	})
	if err != nil {
		s.logger.Errorf("booking %d: push %s sent but not recorded: %v", b.ID, ack.CheckoutRequestID, err)
		return nil, fmt.Errorf("record payment %s: %w", ack.CheckoutRequestID, err)
	}
	return ack, nil
}

// CallbackResult describes what a provider callback did.
type CallbackResult struct {
	Duplicate      bool                // outcome already recorded, nothing changed
	Unmatched      bool                // checkout id was never issued for this service
	AmountMismatch bool                // paid amount differs from the booking total
	Payment        model.PaymentStatus // recorded payment outcome
	Booking        model.BookingStatus // status the booking was moved to, empty if untouched
}

// HandleCallback records the provider outcome for bookingID.  Only checkout
// requests issued by Initiate are honoured.  A payment of exactly the
// booking total confirms a pending booking; a failure cancels it once no
// other push for the booking is outstanding.  Repeated callbacks for the
// same checkout request are no-ops.
func (s *Service) HandleCallback(ctx context.Context, bookingID uint64, cb mpesa.STKCallback) (CallbackResult, error) {
	var res CallbackResult
	if err := cb.Validate(); err != nil {
		return res, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetByIDForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return fmt.Errorf("lock booking %d: %w", bookingID, err)
		}
		p, err := s.payments.GetByCheckoutIDForUpdateTx(ctx, tx, cb.CheckoutRequestID)
		if errors.Is(err, repository.ErrNotFound) {
			res.Unmatched = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock payment: %w", err)
		}
		if p.BookingID != bookingID {
			return fmt.Errorf("%w: checkout %s belongs to booking %d", ErrValidation, cb.CheckoutRequestID, p.BookingID)
		}
		if p.Status.Final() {
			res = CallbackResult{Duplicate: true, Payment: p.Status}
			return nil
		}

		status := model.PaymentFailed
		var (
			receipt *string
			target  model.BookingStatus
		)
		if cb.Succeeded() {
			status = model.PaymentSucceeded
			if r := cb.Receipt(); r != "" {
				receipt = &r
			}
			if paid, ok := cb.Amount(); ok && paid == b.TotalPrice {
				target = model.BookingConfirmed
			} else {
				res.AmountMismatch = true
			}
		}
		if err := s.payments.FinalizeTx(ctx, tx, p.ID, status, receipt, cb.ResultCode, cb.ResultDesc); err != nil {
			return fmt.Errorf("finalize payment: %w", err)
		}
		res.Payment = status

		if !cb.Succeeded() {
			open, err := s.payments.CountInitiatedTx(ctx, tx, bookingID)
			if err != nil {
				return fmt.Errorf("count open payments: %w", err)
			}
			// a retried push may still be paid
			if open == 0 {
				target = model.BookingCancelled
			}
		}
		if target == "" {
			return nil
		}
		moved, err := s.bookings.TransitionFromPendingTx(ctx, tx, bookingID, target)
		if err != nil {
			return fmt.Errorf("transition booking: %w", err)
		}
		if moved {
			res.Booking = target
		}
		return nil
	})
	if err != nil {
		return CallbackResult{}, err
	}

	switch {
	case res.Unmatched:
		metrics.PaymentCallbacks.WithLabelValues("unmatched").Inc()
		s.logger.Warnf("booking %d: callback for unknown checkout %s ignored", bookingID, cb.CheckoutRequestID)
	case res.Duplicate:
		metrics.PaymentCallbacks.WithLabelValues("duplicate").Inc()
	default:
		metrics.PaymentCallbacks.WithLabelValues(string(res.Payment)).Inc()
	}
	if res.AmountMismatch {
		amount, _ := cb.Amount()
		s.logger.Errorf("booking %d: checkout %s paid %d, booking left unconfirmed", bookingID, cb.CheckoutRequestID, amount)
	} else if res.Payment == model.PaymentSucceeded && res.Booking == "" && !res.Duplicate {
		s.logger.Errorf("booking %d: checkout %s paid but booking was no longer pending", bookingID, cb.CheckoutRequestID)
	}
	if res.Booking != "" {
		s.publishStatus(ctx, bookingID, res.Booking, cb.Receipt())
	}
	return res, nil
}

func (s *Service) publishStatus(ctx context.Context, bookingID uint64, status model.BookingStatus, receipt string) {
	if s.events == nil {
		return
	}
	ev := queue.BookingEvent{
		Type:       queue.EventBookingStatusChanged,
		BookingID:  bookingID,
		Status:     string(status),
		Receipt:    receipt,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if b, err := s.bookings.GetByID(ctx, bookingID); err == nil {
		ev.AccountID = b.AccountID
		ev.CarID = b.CarID
		ev.StartDate = b.StartDate.Format(time.RFC3339)
		ev.EndDate = b.EndDate.Format(time.RFC3339)
		ev.TotalPrice = b.TotalPrice
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warnf("booking %d: publish %s: %v", bookingID, ev.Type, err)
	}
}
