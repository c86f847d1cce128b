package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/toolshare/rental-backend/internal/model"
)

// RentRequestRepo persists reservations (rent requests).  All
// timestamps are stored in UTC.
type RentRequestRepo struct {
	db *sql.DB
}

func NewRentRequestRepo(db *sql.DB) *RentRequestRepo { return &RentRequestRepo{db: db} }

const rentColumns = `id, listing_id, borrower_id, lender_id, pickup_time, drop_off_time, duration_unit,
	duration_value, price_cents, status, actual_pickup_time, actual_drop_off_time, cancellation_reason,
	created_at, updated_at`

func scanReservation(s rowScanner) (model.Reservation, error) {
	var (
		r                      model.Reservation
		actualPickup, actualDO sql.NullTime
		reason                 sql.NullString
	)
	err := s.Scan(&r.ID, &r.ListingID, &r.BorrowerID, &r.LenderID, &r.PickupTime, &r.DropOffTime,
		&r.DurationUnit, &r.DurationValue, &r.PriceCents, &r.Status, &actualPickup, &actualDO, &reason,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.PickupTime, r.DropOffTime = r.PickupTime.UTC(), r.DropOffTime.UTC()
	r.ActualPickupTime = timePtr(actualPickup)
	r.ActualDropOffTime = timePtr(actualDO)
	r.CancellationReason = stringPtr(reason)
	return r, nil
}

// GetByID loads a reservation outside any transaction.
func (r *RentRequestRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+rentColumns+` FROM rent_requests WHERE id = ?`, id))
	return res, notFound(err, "rent request")
}

// GetForUpdateTx loads and locks a reservation row until tx ends.
func (r *RentRequestRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+rentColumns+` FROM rent_requests WHERE id = ? FOR UPDATE`, id))
	return res, notFound(err, "rent request")
}

// HasOverlapTx reports whether a reservation on listingID in one of
// statuses intersects [start, end).  excludeID is skipped so a
// reservation never conflicts with itself; pass 0 on create.  The
// comparison is half-open: back-to-back windows do not overlap.
func (r *RentRequestRepo) HasOverlapTx(ctx context.Context, tx *sql.Tx, listingID uint64, start, end time.Time, statuses []model.RentStatus, excludeID uint64) (bool, error) {
	if len(statuses) == 0 {
		return false, nil
	}
	q := `SELECT 1 FROM rent_requests
		WHERE listing_id = ? AND id <> ? AND status IN (` + placeholders(len(statuses)) + `)
		AND pickup_time < ? AND drop_off_time > ? LIMIT 1`
	args := make([]any, 0, len(statuses)+4)
	args = append(args, listingID, excludeID)
	for _, s := range statuses {
		args = append(args, string(s))
	}
	args = append(args, end.UTC(), start.UTC())

	var one int
	err := tx.QueryRowContext(ctx, q, args...).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// CreateTx inserts res and reads back its generated columns.
func (r *RentRequestRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO rent_requests (listing_id, borrower_id, lender_id, pickup_time, drop_off_time,
		duration_unit, duration_value, price_cents, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.ListingID, res.BorrowerID, res.LenderID, res.PickupTime.UTC(),
		res.DropOffTime.UTC(), string(res.DurationUnit), res.DurationValue, res.PriceCents, string(res.Status))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+rentColumns+` FROM rent_requests WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*res = created
	return nil
}

// UpdateTx writes every mutable column of res.
func (r *RentRequestRepo) UpdateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `UPDATE rent_requests SET pickup_time = ?, drop_off_time = ?, duration_unit = ?, duration_value = ?,
		price_cents = ?, status = ?, actual_pickup_time = ?, actual_drop_off_time = ?, cancellation_reason = ?
		WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, res.PickupTime.UTC(), res.DropOffTime.UTC(), string(res.DurationUnit),
		res.DurationValue, res.PriceCents, string(res.Status), res.ActualPickupTime, res.ActualDropOffTime,
		res.CancellationReason, res.ID)
	if err != nil {
		return err
	}
	fresh, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+rentColumns+` FROM rent_requests WHERE id = ?`, res.ID))
	if err != nil {
		return notFound(err, "rent request")
	}
	*res = fresh
	return nil
}

// DeleteTx removes a reservation row.
func (r *RentRequestRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM rent_requests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(sql.ErrNoRows, "rent request")
	}
	return nil
}

// ListByBorrower returns the user's own requests, newest first.
func (r *RentRequestRepo) ListByBorrower(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+rentColumns+` FROM rent_requests WHERE borrower_id = ? ORDER BY pickup_time DESC, id DESC`, userID)
}

// ListByLender returns requests on the user's listings, newest first.
func (r *RentRequestRepo) ListByLender(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+rentColumns+` FROM rent_requests WHERE lender_id = ? ORDER BY pickup_time DESC, id DESC`, userID)
}

// ListStaleRequested returns Requested reservations whose pickup time
// is before cutoff, oldest first.
func (r *RentRequestRepo) ListStaleRequested(ctx context.Context, cutoff time.Time, limit int) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+rentColumns+` FROM rent_requests WHERE status = ? AND pickup_time < ? ORDER BY pickup_time, id LIMIT ?`,
		string(model.StatusRequested), cutoff.UTC(), limit)
}

func (r *RentRequestRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
