package handler

import (
    "context"
    "io"
    "net/http"
    "net/http/httptest"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/mock"

    "github.com/iliyamo/car-rental-booking/internal/model"
    mpesa "github.com/iliyamo/car-rental-booking/internal/payment"
    "github.com/iliyamo/car-rental-booking/internal/queue"
    "github.com/iliyamo/car-rental-booking/internal/repository"
    "github.com/iliyamo/car-rental-booking/internal/service/booking"
    "github.com/iliyamo/car-rental-booking/internal/service/payment"
)

func newEcho() *echo.Echo {
    e := echo.New()
    e.Validator = NewValidator()
    e.Logger.SetOutput(io.Discard)
    return e
}

func jsonRequest(method, target, body string) *http.Request {
    req := httptest.NewRequest(method, target, strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    return req
}

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) CreateRegistered(ctx context.Context, email, password, gender, idNumber string, role model.Role, cost int) (*model.RegisteredAccount, error) {
    args := m.Called(email, password, gender, idNumber, role)
    acc, _ := args.Get(0).(*model.RegisteredAccount)
    return acc, args.Error(1)
}

func (m *mockAccounts) GetByEmail(ctx context.Context, email string) (model.Account, error) {
    args := m.Called(email)
    acc, _ := args.Get(0).(model.Account)
    return acc, args.Error(1)
}

func (m *mockAccounts) List(ctx context.Context) ([]repository.AccountSummary, error) {
    args := m.Called()
    out, _ := args.Get(0).([]repository.AccountSummary)
    return out, args.Error(1)
}

func (m *mockAccounts) UpdateRole(ctx context.Context, id uint64, role model.Role) error {
    return m.Called(id, role).Error(0)
}

func (m *mockAccounts) Delete(ctx context.Context, id uint64) error {
    return m.Called(id).Error(0)
}

func (m *mockAccounts) Count(ctx context.Context) (int64, error) {
    args := m.Called()
    return args.Get(0).(int64), args.Error(1)
}

type mockCars struct{ mock.Mock }

func (m *mockCars) Create(ctx context.Context, c *model.Car) error {
    args := m.Called(c)
    if args.Error(0) == nil {
        c.ID = 9
    }
    return args.Error(0)
}

func (m *mockCars) GetByID(ctx context.Context, id uint64) (*model.Car, error) {
    args := m.Called(id)
    car, _ := args.Get(0).(*model.Car)
    return car, args.Error(1)
}

func (m *mockCars) List(ctx context.Context, status *model.CarStatus) ([]*model.Car, error) {
    args := m.Called(status)
    out, _ := args.Get(0).([]*model.Car)
    return out, args.Error(1)
}

func (m *mockCars) Update(ctx context.Context, id uint64, u repository.CarUpdate) error {
    return m.Called(id, u).Error(0)
}

func (m *mockCars) Delete(ctx context.Context, id uint64) error {
    return m.Called(id).Error(0)
}

func (m *mockCars) Count(ctx context.Context) (int64, error) {
    args := m.Called()
    return args.Get(0).(int64), args.Error(1)
}

type mockBookings struct{ mock.Mock }

func (m *mockBookings) ListDetailed(ctx context.Context) ([]repository.BookingDetail, error) {
    args := m.Called()
    out, _ := args.Get(0).([]repository.BookingDetail)
    return out, args.Error(1)
}

func (m *mockBookings) UpdateStatus(ctx context.Context, id uint64, status model.BookingStatus) error {
    return m.Called(id, status).Error(0)
}

func (m *mockBookings) Delete(ctx context.Context, id uint64) error {
    return m.Called(id).Error(0)
}

func (m *mockBookings) Stats(ctx context.Context) (int64, uint64, error) {
    args := m.Called()
    return args.Get(0).(int64), args.Get(1).(uint64), args.Error(2)
}

type mockBookingCreator struct{ mock.Mock }

func (m *mockBookingCreator) Create(ctx context.Context, in booking.Input) (*model.Booking, error) {
    args := m.Called(in)
    b, _ := args.Get(0).(*model.Booking)
    return b, args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) Initiate(ctx context.Context, bookingID uint64, phone string, amount *uint64) (*mpesa.STKResponse, error) {
    args := m.Called(bookingID, phone, amount)
    ack, _ := args.Get(0).(*mpesa.STKResponse)
    return ack, args.Error(1)
}

func (m *mockPayments) HandleCallback(ctx context.Context, bookingID uint64, cb mpesa.STKCallback) (payment.CallbackResult, error) {
    args := m.Called(bookingID, cb)
    return args.Get(0).(payment.CallbackResult), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, ev queue.BookingEvent) error {
    return m.Called(ev).Error(0)
}
