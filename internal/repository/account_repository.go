package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/car-rental-booking/internal/model"
	"github.com/iliyamo/car-rental-booking/internal/utils"
)

// AccountRepo mirrors the 'accounts' table, which stores both registered
// and guest accounts discriminated by the kind column.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// AccountSummary is the admin listing row.
type AccountSummary struct {
	ID       uint64            `json:"id"`
	Kind     model.AccountKind `json:"kind"`
	Email    string            `json:"email"`
	Name     *string           `json:"name,omitempty"`
	IDNumber *string           `json:"idNumber,omitempty"`
	Role     *string           `json:"role,omitempty"`
}

const accountColumns = "id,kind,email,password_hash,role,gender,id_number,name,phone,created_at"

// NormalizeEmail lower-cases and trims an address before it is stored or
// looked up.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// CreateRegistered hashes the password and inserts a registered account
// with the given role.  A guest account with the same email is upgraded in
// place, keeping its id and bookings; a registered one yields ErrEmailExists.
func (r *AccountRepo) CreateRegistered(ctx context.Context, email, password, gender, idNumber string, role model.Role, cost int) (*model.RegisteredAccount, error) {
	email = NormalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (kind, email, password_hash, role, gender, id_number) VALUES (?,?,?,?,?,?)",
		model.KindRegistered, email, hash, role, gender, idNumber)
	if isDuplicate(err) {
		res, err = r.upgradeGuest(ctx, email, hash, gender, idNumber, role)
	}
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.RegisteredAccount{
		ID:           uint64(id),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Gender:       gender,
		IDNumber:     idNumber,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// upgradeGuest turns the guest row for email into a registered account.
// LAST_INSERT_ID(id) hands the existing id back through the result.
func (r *AccountRepo) upgradeGuest(ctx context.Context, email, hash, gender, idNumber string, role model.Role) (sql.Result, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET kind = ?, password_hash = ?, role = ?, gender = ?, id_number = ?, id = LAST_INSERT_ID(id)
		 WHERE email = ? AND kind = ?`,
		model.KindRegistered, hash, role, gender, idNumber, email, model.KindGuest)
	if err != nil {
		return nil, err
	}
	if err := affected(res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return res, nil
}

// GetByEmail fetches an account of either kind by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", NormalizeEmail(email))
	return scanAccount(row)
}

// GetByID fetches an account of either kind by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id)
	return scanAccount(row)
}

// FindIDByEmailTx returns the id of the account owning email inside tx.
func (r *AccountRepo) FindIDByEmailTx(ctx context.Context, tx *sql.Tx, email string) (uint64, error) {
	var id uint64
	err := tx.QueryRowContext(ctx, "SELECT id FROM accounts WHERE email=? LIMIT 1", NormalizeEmail(email)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// CreateGuestTx inserts a guest account.  If another transaction created
// an account for the same email in the meantime, the unique index turns
// the insert into a no-op update and LAST_INSERT_ID(id) hands back the
// existing row's id, so callers always converge on a single account.
func (r *AccountRepo) CreateGuestTx(ctx context.Context, tx *sql.Tx, name, email, phone string) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (kind, email, name, phone) VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`,
		model.KindGuest, NormalizeEmail(email), strings.TrimSpace(name), strings.TrimSpace(phone))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// List returns all accounts ordered by id.
func (r *AccountRepo) List(ctx context.Context) ([]AccountSummary, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, kind, email, name, id_number, role FROM accounts ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AccountSummary, 0)
	for rows.Next() {
		var (
			a                 AccountSummary
			name, idNum, role sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Kind, &a.Email, &name, &idNum, &role); err != nil {
			return nil, err
		}
		a.Name = nullString(name)
		a.IDNumber = nullString(idNum)
		a.Role = nullString(role)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateRole changes the role of a registered account.  Guest accounts
// carry no role, so they are reported as ErrNotFound like a missing id.
func (r *AccountRepo) UpdateRole(ctx context.Context, id uint64, role model.Role) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET role=? WHERE id=? AND kind=?", role, id, model.KindRegistered)
	if err != nil {
		return err
	}
	return affected(res)
}

// Delete removes an account; its bookings cascade.
func (r *AccountRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM accounts WHERE id=?", id)
	if err != nil {
		return err
	}
	return affected(res)
}

// Count returns the number of accounts of all kinds.
func (r *AccountRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&n)
	return n, err
}

func scanAccount(row *sql.Row) (model.Account, error) {
	var (
		id                                        uint64
		kind                                      model.AccountKind
		email                                     string
		hash, role, gender, idNumber, name, phone sql.NullString
		createdAt                                 time.Time
	)
	if err := row.Scan(&id, &kind, &email, &hash, &role, &gender, &idNumber, &name, &phone, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if kind == model.KindGuest {
		return &model.GuestAccount{ID: id, Email: email, Name: name.String, Phone: phone.String, CreatedAt: createdAt}, nil
	}
	r := model.RoleUser
	if parsed, ok := model.ParseRole(role.String); ok {
		r = parsed
	}
	return &model.RegisteredAccount{
		ID:           id,
		Email:        email,
		PasswordHash: hash.String,
		Role:         r,
		Gender:       gender.String,
		IDNumber:     idNumber.String,
		CreatedAt:    createdAt,
	}, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
