package repository

import (
	"context"
	"database/sql"

	"github.com/toolshare/rental-backend/internal/model"
)

// TransactionRepo persists the financial records of approved rentals.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const txColumns = `id, rent_request_id, listing_id, borrower_id, lender_id, start_time, end_time,
	total_fee_cents, platform_commission_cents, deposit_cents, charge_id, status, created_at, updated_at`

func scanTransaction(s rowScanner) (model.Transaction, error) {
	var (
		t      model.Transaction
		charge sql.NullString
	)
	err := s.Scan(&t.ID, &t.ReservationID, &t.ListingID, &t.BorrowerID, &t.LenderID, &t.StartTime, &t.EndTime,
		&t.TotalFeeCents, &t.PlatformCommissionCents, &t.DepositCents, &charge, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.StartTime, t.EndTime = t.StartTime.UTC(), t.EndTime.UTC()
	t.ChargeID = stringPtr(charge)
	return t, nil
}

// ExistsForReservationTx reports whether rentRequestID has a transaction.
func (r *TransactionRepo) ExistsForReservationTx(ctx context.Context, tx *sql.Tx, rentRequestID uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM transactions WHERE rent_request_id = ? LIMIT 1`, rentRequestID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// CreateTx inserts t.  The unique key on rent_request_id turns a second
// transaction for the same request into ErrTransactionExists.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	const q = `INSERT INTO transactions (rent_request_id, listing_id, borrower_id, lender_id, start_time, end_time,
		total_fee_cents, platform_commission_cents, deposit_cents, charge_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.ReservationID, t.ListingID, t.BorrowerID, t.LenderID, t.StartTime.UTC(),
		t.EndTime.UTC(), t.TotalFeeCents, t.PlatformCommissionCents, t.DepositCents, t.ChargeID, string(t.Status))
	if err != nil {
		if isDuplicate(err) {
			return ErrTransactionExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanTransaction(tx.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*t = created
	return nil
}

// UpdateStatusByReservationTx sets the status of the transaction that
// belongs to rentRequestID.  A request without a transaction is not an
// error.
func (r *TransactionRepo) UpdateStatusByReservationTx(ctx context.Context, tx *sql.Tx, rentRequestID uint64, status model.TransactionStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE transactions SET status = ? WHERE rent_request_id = ?`, string(status), rentRequestID)
	return err
}

// GetByID loads one transaction.
func (r *TransactionRepo) GetByID(ctx context.Context, id uint64) (model.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id))
	return t, notFound(err, "transaction")
}

// ListForUser returns transactions where the user is borrower or lender.
func (r *TransactionRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE borrower_id = ? OR lender_id = ? ORDER BY start_time DESC, id DESC`,
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
