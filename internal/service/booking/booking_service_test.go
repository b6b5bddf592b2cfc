package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/car-rental-booking/internal/model"
	"github.com/iliyamo/car-rental-booking/internal/queue"
	"github.com/iliyamo/car-rental-booking/internal/repository"
)

// memStore is an in-memory datastore.  WithTx serializes transactions and
// restores the previous state when fn fails.
type memStore struct {
	mu       sync.Mutex
	cars     map[uint64]*model.Car
	accounts map[string]uint64
	bookings []model.Booking
	nextID   uint64
	failOn   string
}

func newMemStore() *memStore {
	return &memStore{
		cars: map[uint64]*model.Car{
			1: {ID: 1, Name: "Axio", Price: 2000, Type: "sedan", Status: model.CarAvailable},
			2: {ID: 2, Name: "Prado", Price: 9000, Type: "suv", Status: model.CarUnavailable},
		},
		accounts: map[string]uint64{},
		nextID:   100,
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	accounts := make(map[string]uint64, len(m.accounts))
	for k, v := range m.accounts {
		accounts[k] = v
	}
	bookings := append([]model.Booking(nil), m.bookings...)
	if err := fn(nil); err != nil {
		m.accounts, m.bookings = accounts, bookings
		return err
	}
	return nil
}

func (m *memStore) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Car, error) {
	c, ok := m.cars[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) FindIDByEmailTx(ctx context.Context, tx *sql.Tx, email string) (uint64, error) {
	if id, ok := m.accounts[repository.NormalizeEmail(email)]; ok {
		return id, nil
	}
	return 0, repository.ErrNotFound
}

func (m *memStore) CreateGuestTx(ctx context.Context, tx *sql.Tx, name, email, phone string) (uint64, error) {
	key := repository.NormalizeEmail(email)
	if id, ok := m.accounts[key]; ok {
		return id, nil
	}
	m.nextID++
	m.accounts[key] = m.nextID
	return m.nextID, nil
}

func (m *memStore) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	if m.failOn == "booking" {
		return errors.New("disk full")
	}
	m.nextID++
	b.ID = m.nextID
	m.bookings = append(m.bookings, *b)
	return nil
}

type mockPublisher struct{ mock.Mock }

func (p *mockPublisher) Publish(ctx context.Context, ev queue.BookingEvent) error {
	return p.Called(ev).Error(0)
}

func quietLogger() echo.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return l
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func validInput() Input {
	return Input{
		Name:      "Jane Wanjiru",
		Email:     "jane@example.com",
		Phone:     "0712345678",
		CarID:     1,
		StartDate: day("2024-01-01"),
		EndDate:   day("2024-01-04"),
	}
}

func ptr(f float64) *float64 { return &f }

func TestCreate_ThreeDaysAtTwoThousand(t *testing.T) {
	st := newMemStore()
	pub := &mockPublisher{}
	pub.On("Publish", mock.MatchedBy(func(ev queue.BookingEvent) bool {
		return ev.Type == queue.EventBookingCreated && ev.TotalPrice == 6000 && ev.Status == "pending"
	})).Return(nil).Once()
	svc := NewService(st, st, st, st, pub, quietLogger())

	in := validInput()
	in.ClientTotal = ptr(6000)
	in.Status = "confirmed"
	b, err := svc.Create(context.Background(), in)

	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, uint64(6000), b.TotalPrice)
	assert.Equal(t, model.BookingPending, b.Status, "client status is ignored")
	require.Len(t, st.bookings, 1)
	assert.Len(t, st.accounts, 1)
	pub.AssertExpectations(t)
}

func TestCreate_PartialDayBilledAsFullDay(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, st, st, st, nil, quietLogger())

	in := validInput()
	in.EndDate = in.StartDate.Add(25 * time.Hour)
	b, err := svc.Create(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, uint64(4000), b.TotalPrice)
}

func TestCreate_RejectsBadInputWithoutWriting(t *testing.T) {
	cases := []struct {
		name string
		edit func(*Input)
		want error
	}{
		{"end equals start", func(in *Input) { in.EndDate = in.StartDate }, model.ErrInvalidRange},
		{"end before start", func(in *Input) { in.StartDate, in.EndDate = in.EndDate, in.StartDate }, model.ErrInvalidRange},
		{"missing email", func(in *Input) { in.Email = "  " }, ErrValidation},
		{"missing car", func(in *Input) { in.CarID = 0 }, ErrValidation},
		{"price tampered", func(in *Input) { in.ClientTotal = ptr(10) }, ErrPriceMismatch},
		{"unknown car", func(in *Input) { in.CarID = 42 }, repository.ErrNotFound},
		{"car unavailable", func(in *Input) { in.CarID = 2 }, ErrCarUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := newMemStore()
			svc := NewService(st, st, st, st, nil, quietLogger())
			in := validInput()
			tc.edit(&in)

			_, err := svc.Create(context.Background(), in)

			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, st.bookings)
			assert.Empty(t, st.accounts)
		})
	}
}

func TestCreate_ZeroClientTotalIsIgnored(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, st, st, st, nil, quietLogger())
	in := validInput()
	in.ClientTotal = ptr(0)

	b, err := svc.Create(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, uint64(6000), b.TotalPrice)
}

func TestCreate_BookingInsertFailureRollsBackGuest(t *testing.T) {
	st := newMemStore()
	st.failOn = "booking"
	svc := NewService(st, st, st, st, nil, quietLogger())

	_, err := svc.Create(context.Background(), validInput())

	require.Error(t, err)
	assert.Empty(t, st.accounts)
	assert.Empty(t, st.bookings)
}

func TestCreate_ReusesExistingAccount(t *testing.T) {
	st := newMemStore()
	st.accounts["jane@example.com"] = 7
	svc := NewService(st, st, st, st, nil, quietLogger())
	in := validInput()
	in.Email = "Jane@Example.com"

	b, err := svc.Create(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, uint64(7), b.AccountID)
	assert.Len(t, st.accounts, 1)
}

func TestCreate_ConcurrentFirstBookingsShareOneAccount(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, st, st, st, nil, quietLogger())

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validInput()
			in.Name = fmt.Sprintf("Jane %d", i)
			in.Email = strings.ToUpper(in.Email)
			_, err := svc.Create(context.Background(), in)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, st.accounts, 1)
	require.Len(t, st.bookings, n)
	owner := st.bookings[0].AccountID
	for _, b := range st.bookings {
		assert.Equal(t, owner, b.AccountID)
	}
}

func TestCreate_PublishFailureDoesNotFailBooking(t *testing.T) {
	st := newMemStore()
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything).Return(errors.New("broker down")).Once()
	svc := NewService(st, st, st, st, pub, quietLogger())

	b, err := svc.Create(context.Background(), validInput())

	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	pub.AssertExpectations(t)
}
