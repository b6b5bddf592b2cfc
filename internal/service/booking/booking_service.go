// Package booking is the booking orchestrator: it turns a rental request
// into a customer account (created or reused) and a pending booking whose
// price is computed from the catalogue, all inside one transaction.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-rental-booking/internal/metrics"
	"github.com/iliyamo/car-rental-booking/internal/model"
	"github.com/iliyamo/car-rental-booking/internal/queue"
	"github.com/iliyamo/car-rental-booking/internal/repository"
)

var (
	// ErrValidation wraps missing or malformed input fields.
	ErrValidation = errors.New("validation failed")
	// ErrPriceMismatch means the client's total disagrees with the catalogue.
	ErrPriceMismatch = errors.New("total_price does not match the car price for the requested dates")
	// ErrCarUnavailable means the car exists but is not bookable.
	ErrCarUnavailable = errors.New("car is not available")
)

// TxRunner runs fn inside a transaction; see repository.TxManager.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type CarStore interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Car, error)
}

type AccountStore interface {
	FindIDByEmailTx(ctx context.Context, tx *sql.Tx, email string) (uint64, error)
	CreateGuestTx(ctx context.Context, tx *sql.Tx, name, email, phone string) (uint64, error)
}

type BookingStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
}

// EventPublisher delivers booking events; failures are logged only.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Input is a rental request.  ClientTotal is the price the client showed
// to the customer; nil means it was not sent.  Status is accepted for
// compatibility with older clients and ignored: new bookings are pending.
type Input struct {
	Name        string
	Email       string
	Phone       string
	CarID       uint64
	StartDate   time.Time
	EndDate     time.Time
	ClientTotal *float64
	Status      string
}

// Service is the booking orchestrator.
type Service struct {
	tx       TxRunner
	cars     CarStore
	accounts AccountStore
	bookings BookingStore
	events   EventPublisher
	logger   echo.Logger
}

// NewService wires the orchestrator.  events may be nil.
func NewService(tx TxRunner, cars CarStore, accounts AccountStore, bookings BookingStore, events EventPublisher, logger echo.Logger) *Service {
	if tx == nil || cars == nil || accounts == nil || bookings == nil || logger == nil {
		panic("nil dependency passed to booking.NewService")
	}
	return &Service{tx: tx, cars: cars, accounts: accounts, bookings: bookings, events: events, logger: logger}
}

// Create validates the request, then in one transaction loads the car,
// recomputes the price, resolves or creates the customer and inserts the
// booking as pending.  Nothing is written when any step fails.
func (s *Service) Create(ctx context.Context, in Input) (*model.Booking, error) {
	if err := validate(&in); err != nil {
		metrics.BookingsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	var created *model.Booking
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		car, err := s.cars.GetByIDTx(ctx, tx, in.CarID)
		if err != nil {
			return fmt.Errorf("load car %d: %w", in.CarID, err)
		}
		if car.Status != model.CarAvailable {
			return ErrCarUnavailable
		}
		total, err := model.TotalPrice(car.Price, in.StartDate, in.EndDate)
		if err != nil {
			return err
		}
		if in.ClientTotal != nil && *in.ClientTotal != 0 && *in.ClientTotal != float64(total) {
			return fmt.Errorf("%w: expected %d", ErrPriceMismatch, total)
		}

		customerID, err := s.resolveCustomer(ctx, tx, in)
		if err != nil {
			return err
		}

		b := &model.Booking{
			AccountID:  customerID,
			CarID:      car.ID,
			StartDate:  in.StartDate.UTC(),
			EndDate:    in.EndDate.UTC(),
			TotalPrice: total,
			Status:     model.BookingPending,
		}
		if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		created = b
		return nil
	})
	if err != nil {
		metrics.BookingsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	metrics.BookingsCreated.Inc()
	s.publish(ctx, created, in.Email)
	return created, nil
}

// resolveCustomer reuses the account owning the email or creates a guest.
func (s *Service) resolveCustomer(ctx context.Context, tx *sql.Tx, in Input) (uint64, error) {
	id, err := s.accounts.FindIDByEmailTx(ctx, tx, in.Email)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("lookup customer: %w", err)
	}
	id, err = s.accounts.CreateGuestTx(ctx, tx, in.Name, in.Email, in.Phone)
	if err != nil {
		return 0, fmt.Errorf("create guest customer: %w", err)
	}
	return id, nil
}

func (s *Service) publish(ctx context.Context, b *model.Booking, email string) {
	if s.events == nil {
		return
	}
	ev := queue.BookingEvent{
		Type:       queue.EventBookingCreated,
		BookingID:  b.ID,
		AccountID:  b.AccountID,
		CarID:      b.CarID,
		Email:      repository.NormalizeEmail(email),
		StartDate:  b.StartDate.Format(time.RFC3339),
		EndDate:    b.EndDate.Format(time.RFC3339),
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warnf("booking %d: publish %s: %v", b.ID, ev.Type, err)
	}
}

func validate(in *Input) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Phone == "" {
		missing = append(missing, "phone")
	}
	if in.CarID == 0 {
		missing = append(missing, "car_id")
	}
	if in.StartDate.IsZero() {
		missing = append(missing, "start_date")
	}
	if in.EndDate.IsZero() {
		missing = append(missing, "end_date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if !in.EndDate.After(in.StartDate) {
		return model.ErrInvalidRange
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrPriceMismatch):
		return "price_mismatch"
	case errors.Is(err, ErrCarUnavailable), errors.Is(err, repository.ErrNotFound):
		return "car"
	default:
		return "storage"
	}
}
