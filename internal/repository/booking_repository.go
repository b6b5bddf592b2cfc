package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/car-rental-booking/internal/model"
)

// BookingRepo provides CRUD operations for bookings.  All timestamps are
// stored in UTC.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = "id, account_id, car_id, start_date, end_date, total_price, status, created_at"

// BookingDetail is a booking joined with its customer and car, used by the
// admin listing.
type BookingDetail struct {
    ID            uint64              `json:"id"`
    CustomerID    uint64              `json:"customer_id"`
    CustomerEmail string              `json:"customer_email"`
    CarID         uint64              `json:"car_id"`
    CarName       string              `json:"car_name"`
    StartDate     time.Time           `json:"start_date"`
    EndDate       time.Time           `json:"end_date"`
    TotalPrice    uint64              `json:"total_price"`
    Status        model.BookingStatus `json:"status"`
    CreatedAt     time.Time           `json:"created_at"`
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates its ID.  The caller must commit or rollback.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    const q = `INSERT INTO bookings (account_id, car_id, start_date, end_date, total_price, status) VALUES (?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, b.AccountID, b.CarID, b.StartDate.UTC(), b.EndDate.UTC(), b.TotalPrice, b.Status)
    if err != nil {
        if isForeignKey(err) {
            return ErrConflict
        }
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    return nil
}

// GetByID loads a booking by id.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
    return scanBooking(r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
}

// GetByIDForUpdateTx loads and row-locks a booking inside tx.
func (r *BookingRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
    return scanBooking(tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ? FOR UPDATE", id))
}

// ListDetailed returns all bookings, newest first, joined with customer
// email and car name.
func (r *BookingRepo) ListDetailed(ctx context.Context) ([]BookingDetail, error) {
    const q = `SELECT b.id, a.id, a.email, c.id, c.name,
                      b.start_date, b.end_date, b.total_price, b.status, b.created_at
               FROM bookings b
               JOIN accounts a ON a.id = b.account_id
               JOIN cars c ON c.id = b.car_id
               ORDER BY b.id DESC`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]BookingDetail, 0)
    for rows.Next() {
        var d BookingDetail
        if err := rows.Scan(&d.ID, &d.CustomerID, &d.CustomerEmail, &d.CarID, &d.CarName,
            &d.StartDate, &d.EndDate, &d.TotalPrice, &d.Status, &d.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

// UpdateStatus sets a booking's status unconditionally (admin override).
// It returns ErrNotFound when the booking does not exist.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, status model.BookingStatus) error {
    res, err := r.db.ExecContext(ctx, "UPDATE bookings SET status = ? WHERE id = ?", status, id)
    if err != nil {
        return err
    }
    return affected(res)
}

// TransitionFromPendingTx moves a booking from pending to the given status.
// It reports false when the booking was no longer pending, which makes
// repeated provider callbacks harmless.
func (r *BookingRepo) TransitionFromPendingTx(ctx context.Context, tx *sql.Tx, id uint64, to model.BookingStatus) (bool, error) {
    res, err := tx.ExecContext(ctx,
        "UPDATE bookings SET status = ? WHERE id = ? AND status = ?", to, id, model.BookingPending)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// Delete removes a booking.  Payments cascade.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
    res, err := r.db.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", id)
    if err != nil {
        return err
    }
    return affected(res)
}

// Stats returns the number of bookings that are not cancelled and the sum
// of total_price over confirmed bookings.
func (r *BookingRepo) Stats(ctx context.Context) (active int64, revenue uint64, err error) {
    const q = `SELECT
                 COALESCE(SUM(status <> 'cancelled'), 0),
                 COALESCE(SUM(CASE WHEN status = 'confirmed' THEN total_price ELSE 0 END), 0)
               FROM bookings`
    err = r.db.QueryRowContext(ctx, q).Scan(&active, &revenue)
    return active, revenue, err
}

func scanBooking(row *sql.Row) (*model.Booking, error) {
    var b model.Booking
    err := row.Scan(&b.ID, &b.AccountID, &b.CarID, &b.StartDate, &b.EndDate, &b.TotalPrice, &b.Status, &b.CreatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrNotFound
        }
        return nil, err
    }
    return &b, nil
}
