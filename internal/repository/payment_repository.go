package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/car-rental-booking/internal/model"
)

// PaymentRepo persists STK push attempts and their provider outcomes.
// Every statement runs in a transaction owned by the caller, which also
// holds the booking row lock.
type PaymentRepo struct{}

func NewPaymentRepo() *PaymentRepo { return &PaymentRepo{} }

const paymentColumns = `id, booking_id, checkout_request_id, merchant_request_id, phone, amount,
	status, receipt, result_code, result_desc, created_at, updated_at`

// CreateTx records an initiated payment inside tx.  A second row for the
// same checkout request id yields ErrConflict.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	if p.Status == "" {
		p.Status = model.PaymentInitiated
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO payments (booking_id, checkout_request_id, merchant_request_id, phone, amount, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.BookingID, p.CheckoutRequestID, p.MerchantRequestID, p.Phone, p.Amount, p.Status)
	if err != nil {
		if isDuplicate(err) || isForeignKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// CountInitiatedTx counts the booking's STK pushes still waiting for a
// provider outcome.
func (r *PaymentRepo) CountInitiatedTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments WHERE booking_id = ? AND status = ?", bookingID, model.PaymentInitiated).Scan(&n)
	return n, err
}

// GetByCheckoutIDForUpdateTx loads and locks the payment for a checkout
// request id.  Concurrent callbacks for the same id serialize on this lock.
func (r *PaymentRepo) GetByCheckoutIDForUpdateTx(ctx context.Context, tx *sql.Tx, checkoutID string) (*model.Payment, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE checkout_request_id = ? FOR UPDATE", checkoutID)
	var (
		p          model.Payment
		receipt    sql.NullString
		resultCode sql.NullInt64
		resultDesc sql.NullString
	)
	err := row.Scan(&p.ID, &p.BookingID, &p.CheckoutRequestID, &p.MerchantRequestID, &p.Phone, &p.Amount,
		&p.Status, &receipt, &resultCode, &resultDesc, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Receipt = nullString(receipt)
	p.ResultDesc = nullString(resultDesc)
	if resultCode.Valid {
		c := int(resultCode.Int64)
		p.ResultCode = &c
	}
	return &p, nil
}

// FinalizeTx stores the provider outcome on a payment.
func (r *PaymentRepo) FinalizeTx(ctx context.Context, tx *sql.Tx, id uint64, status model.PaymentStatus, receipt *string, resultCode int, resultDesc string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = ?, receipt = ?, result_code = ?, result_desc = ? WHERE id = ?",
		status, receipt, resultCode, resultDesc, id)
	if err != nil {
		return err
	}
	return affected(res)
}
