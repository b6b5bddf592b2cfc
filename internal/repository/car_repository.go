// Package repository contains data access logic separated from HTTP handlers.
// This file holds the car catalogue queries used by the public listing, the
// booking orchestrator and the admin CRUD handlers.
package repository

import (
	"context"      // context carries deadlines into DB operations
	"database/sql" // sql provides generic database operations
	"errors"
	"strings"

	"github.com/iliyamo/car-rental-booking/internal/model"
)

// CarRepo encapsulates all database queries related to cars.
type CarRepo struct {
	db *sql.DB // db is the underlying connection pool
}

// NewCarRepo constructs a CarRepo with the provided DB handle.
func NewCarRepo(db *sql.DB) *CarRepo {
	return &CarRepo{db: db}
}

const carColumns = "id, name, price, type, image, status, created_at"

// CarUpdate carries the mutable fields of a car.  Nil fields are left
// unchanged.
type CarUpdate struct {
	Name   *string
	Price  *uint64
	Type   *string
	Image  *string
	Status *model.CarStatus
}

// Empty reports whether the update would change nothing.
func (u CarUpdate) Empty() bool {
	return u.Name == nil && u.Price == nil && u.Type == nil && u.Image == nil && u.Status == nil
}

// Create inserts a new car and populates its ID.
func (r *CarRepo) Create(ctx context.Context, c *model.Car) error {
	if c.Status == "" {
		c.Status = model.CarAvailable
	}
	const q = "INSERT INTO cars (name, price, type, image, status) VALUES (?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, c.Name, c.Price, c.Type, c.Image, c.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByID fetches a car by its ID.  It returns ErrNotFound if no row exists.
func (r *CarRepo) GetByID(ctx context.Context, id uint64) (*model.Car, error) {
	return scanCar(r.db.QueryRowContext(ctx, "SELECT "+carColumns+" FROM cars WHERE id = ?", id))
}

// GetByIDTx reads a car inside tx with a shared lock so its price cannot
// change between pricing and inserting the booking.
func (r *CarRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Car, error) {
	return scanCar(tx.QueryRowContext(ctx, "SELECT "+carColumns+" FROM cars WHERE id = ? LOCK IN SHARE MODE", id))
}

// List returns cars ordered by id, optionally filtered by status.
func (r *CarRepo) List(ctx context.Context, status *model.CarStatus) ([]*model.Car, error) {
	q := "SELECT " + carColumns + " FROM cars"
	var args []interface{}
	if status != nil {
		q += " WHERE status = ?"
		args = append(args, *status)
	}
	q += " ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Car, 0)
	for rows.Next() {
		c := new(model.Car)
		if err := rows.Scan(&c.ID, &c.Name, &c.Price, &c.Type, &c.Image, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies the non-nil fields of u.  It returns ErrNotFound when no
// row matches.
func (r *CarRepo) Update(ctx context.Context, id uint64, u CarUpdate) error {
	if u.Empty() {
		// nothing to set; still report a missing car
		_, err := r.GetByID(ctx, id)
		return err
	}
	var (
		sets []string
		args []interface{}
	)
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *u.Price)
	}
	if u.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, *u.Type)
	}
	if u.Image != nil {
		sets = append(sets, "image = ?")
		args = append(args, *u.Image)
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *u.Status)
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, "UPDATE cars SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	return affected(res)
}

// Delete removes a car.  Bookings referencing it cascade.
func (r *CarRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cars WHERE id = ?", id)
	if err != nil {
		if isForeignKey(err) {
			return ErrConflict
		}
		return err
	}
	return affected(res)
}

// Count returns the number of cars.
func (r *CarRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cars").Scan(&n)
	return n, err
}

func scanCar(row *sql.Row) (*model.Car, error) {
	var c model.Car
	if err := row.Scan(&c.ID, &c.Name, &c.Price, &c.Type, &c.Image, &c.Status, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
