package repository

import (
	"context"
	"database/sql"
)

// TxManager runs functions inside a database transaction.
type TxManager struct{ DB *sql.DB }

func NewTxManager(db *sql.DB) *TxManager { return &TxManager{DB: db} }

// WithTx begins a transaction, calls fn and commits when fn returns nil.
// Any error from fn, or a panic, rolls the transaction back.
func (m *TxManager) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// affected converts a zero RowsAffected into ErrNotFound.
func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
