package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/car-rental-booking/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	db, mock := newMock(t)
	tm := NewTxManager(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, tm.WithTx(ctx, func(*sql.Tx) error { return nil }))

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	assert.ErrorIs(t, tm.WithTx(ctx, func(*sql.Tx) error { return boom }), boom)
}

func TestCreateGuestTxConvergesOnExistingRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)")).
		WithArgs(model.KindGuest, "jane@example.com", "Jane", "0712345678").
		WillReturnResult(sqlmock.NewResult(17, 2))
	mock.ExpectCommit()

	var id uint64
	err := NewTxManager(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		var err error
		id, err = repo.CreateGuestTx(context.Background(), tx, " Jane ", " Jane@Example.com", "0712345678")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(17), id)
}

func TestCreateRegisteredDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO accounts (kind, email, password_hash, role, gender, id_number)")).
		WithArgs(model.KindRegistered, "a@example.com", sqlmock.AnyArg(), model.RoleUser, "F", "123").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectExec(q("UPDATE accounts SET kind = ?")).
		WithArgs(model.KindRegistered, sqlmock.AnyArg(), model.RoleUser, "F", "123", "a@example.com", model.KindGuest).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := NewAccountRepo(db).CreateRegistered(context.Background(), "A@example.com", "pw123456", "F", "123", model.RoleUser, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestCreateRegisteredUpgradesGuest(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO accounts (kind, email, password_hash, role, gender, id_number)")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectExec(q("id = LAST_INSERT_ID(id)") + ".*" + q("WHERE email = ? AND kind = ?")).
		WithArgs(model.KindRegistered, sqlmock.AnyArg(), model.RoleUser, "F", "123", "jane@example.com", model.KindGuest).
		WillReturnResult(sqlmock.NewResult(17, 1))

	acc, err := NewAccountRepo(db).CreateRegistered(context.Background(), "jane@example.com", "pw123456", "F", "123", model.RoleUser, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), acc.ID)
	assert.Equal(t, model.RoleUser, acc.Role)
	assert.True(t, strings.HasPrefix(acc.PasswordHash, "$2a$"))
}

func TestGetByEmailVariants(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepo(db)
	cols := []string{"id", "kind", "email", "password_hash", "role", "gender", "id_number", "name", "phone", "created_at"}
	now := time.Now()

	mock.ExpectQuery(q("FROM accounts WHERE email=?")).WithArgs("g@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "guest", "g@example.com", nil, nil, nil, nil, "Guest", "0700", now))
	mock.ExpectQuery(q("FROM accounts WHERE email=?")).WithArgs("r@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(2, "registered", "r@example.com", "$2a$hash", "admin", "M", "99", nil, nil, now))
	mock.ExpectQuery(q("FROM accounts WHERE email=?")).WithArgs("x@example.com").
		WillReturnRows(sqlmock.NewRows(cols))

	a, err := repo.GetByEmail(context.Background(), "g@example.com")
	require.NoError(t, err)
	require.IsType(t, &model.GuestAccount{}, a)
	assert.Equal(t, "Guest", a.(*model.GuestAccount).Name)

	a, err = repo.GetByEmail(context.Background(), "r@example.com")
	require.NoError(t, err)
	reg, ok := a.(*model.RegisteredAccount)
	require.True(t, ok)
	assert.Equal(t, model.RoleAdmin, reg.Role)

	_, err = repo.GetByEmail(context.Background(), "x@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRoleOnlyTouchesRegisteredAccounts(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE accounts SET role=? WHERE id=? AND kind=?")).
		WithArgs(model.RoleAdmin, 5, model.KindRegistered).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewAccountRepo(db).UpdateRole(context.Background(), 5, model.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingCreateTxForeignKey(t *testing.T) {
	db, mock := newMock(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := &model.Booking{AccountID: 1, CarID: 99, StartDate: start, EndDate: start.Add(72 * time.Hour), TotalPrice: 6000, Status: model.BookingPending}

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO bookings")).
		WithArgs(1, 99, start, start.Add(72*time.Hour), 6000, model.BookingPending).
		WillReturnError(&mysql.MySQLError{Number: 1452})
	mock.ExpectRollback()

	err := NewTxManager(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		return NewBookingRepo(db).CreateTx(context.Background(), tx, b)
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Zero(t, b.ID)
}

func TestBookingDeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("DELETE FROM bookings WHERE id = ?")).WithArgs(12345).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, NewBookingRepo(db).Delete(context.Background(), 12345), ErrNotFound)
}

func TestTransitionFromPendingTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE bookings SET status = ? WHERE id = ? AND status = ?")).
		WithArgs(model.BookingConfirmed, 7, model.BookingPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE bookings SET status = ? WHERE id = ? AND status = ?")).
		WithArgs(model.BookingCancelled, 7, model.BookingPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := NewTxManager(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		ok, err := repo.TransitionFromPendingTx(context.Background(), tx, 7, model.BookingConfirmed)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.TransitionFromPendingTx(context.Background(), tx, 7, model.BookingCancelled)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestBookingStats(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"active", "revenue"}).AddRow(3, 12000))

	active, revenue, err := NewBookingRepo(db).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), active)
	assert.Equal(t, uint64(12000), revenue)
}

func TestPaymentCreateTxDuplicateCheckout(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO payments")).
		WithArgs(7, "ws_CO_1", "m-1", "254712345678", 6000, model.PaymentInitiated).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()

	p := &model.Payment{BookingID: 7, CheckoutRequestID: "ws_CO_1", MerchantRequestID: "m-1", Phone: "254712345678", Amount: 6000}
	err := NewTxManager(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		return NewPaymentRepo().CreateTx(context.Background(), tx, p)
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPaymentCountInitiatedTx(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT COUNT(*) FROM payments WHERE booking_id = ? AND status = ?")).
		WithArgs(7, model.PaymentInitiated).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectCommit()

	err := NewTxManager(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		n, err := NewPaymentRepo().CountInitiatedTx(context.Background(), tx, 7)
		assert.Equal(t, int64(2), n)
		return err
	})
	require.NoError(t, err)
}

func TestBookingGetByIDForUpdateTx(t *testing.T) {
	db, mock := newMock(t)
	cols := []string{"id", "account_id", "car_id", "start_date", "end_date", "total_price", "status", "created_at"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM bookings WHERE id = ? FOR UPDATE")).WithArgs(10).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(10, 3, 1, start, start.Add(72*time.Hour), 6000, "pending", start))
	mock.ExpectQuery(q("FROM bookings WHERE id = ? FOR UPDATE")).WithArgs(11).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectCommit()

	repo := NewBookingRepo(db)
	err := NewTxManager(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		b, err := repo.GetByIDForUpdateTx(context.Background(), tx, 10)
		require.NoError(t, err)
		assert.Equal(t, model.BookingPending, b.Status)
		assert.Equal(t, uint64(6000), b.TotalPrice)

		_, err = repo.GetByIDForUpdateTx(context.Background(), tx, 11)
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestPaymentGetByCheckoutIDForUpdateTx(t *testing.T) {
	db, mock := newMock(t)
	cols := []string{"id", "booking_id", "checkout_request_id", "merchant_request_id", "phone", "amount",
		"status", "receipt", "result_code", "result_desc", "created_at", "updated_at"}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(q("WHERE checkout_request_id = ? FOR UPDATE")).WithArgs("ws_CO_1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 7, "ws_CO_1", "m-1", "254712345678", 6000, "succeeded", "NLJ7RT61SV", 0, "ok", now, now))
	mock.ExpectQuery(q("WHERE checkout_request_id = ? FOR UPDATE")).WithArgs("ws_CO_2").
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectCommit()

	repo := NewPaymentRepo()
	err := NewTxManager(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		p, err := repo.GetByCheckoutIDForUpdateTx(context.Background(), tx, "ws_CO_1")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentSucceeded, p.Status)
		require.NotNil(t, p.Receipt)
		assert.Equal(t, "NLJ7RT61SV", *p.Receipt)
		require.NotNil(t, p.ResultCode)
		assert.Equal(t, 0, *p.ResultCode)

		_, err = repo.GetByCheckoutIDForUpdateTx(context.Background(), tx, "ws_CO_2")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestCarUpdateBuildsSetClause(t *testing.T) {
	db, mock := newMock(t)
	price := uint64(3500)
	status := model.CarUnavailable

	mock.ExpectExec(q("UPDATE cars SET price = ?, status = ? WHERE id = ?")).
		WithArgs(price, status, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewCarRepo(db).Update(context.Background(), 4, CarUpdate{Price: &price, Status: &status}))
}

func TestCarUpdateEmptyStillReportsMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM cars WHERE id = ?")).WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "type", "image", "status", "created_at"}))

	assert.ErrorIs(t, NewCarRepo(db).Update(context.Background(), 4, CarUpdate{}), ErrNotFound)
}

func TestCarListFiltersByStatus(t *testing.T) {
	db, mock := newMock(t)
	status := model.CarAvailable
	mock.ExpectQuery(q("FROM cars WHERE status = ? ORDER BY id")).WithArgs(status).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "type", "image", "status", "created_at"}).
			AddRow(1, "Prado", 2000, "SUV", "/images/1.png", "available", time.Now()))

	cars, err := NewCarRepo(db).List(context.Background(), &status)
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Equal(t, uint64(2000), cars[0].Price)
}
