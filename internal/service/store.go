package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/toolshare/rental-backend/internal/model"
	"github.com/toolshare/rental-backend/internal/repository"
)

// RentStore is the persistence RentRequestService needs.  Reads outside
// InTx see committed data only; everything that must be atomic with the
// overlap check happens on the RentTx handed to fn.
type RentStore interface {
	GetListing(ctx context.Context, id uint64) (model.Listing, error)
	GetReservation(ctx context.Context, id uint64) (model.Reservation, error)
	ListByBorrower(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListByLender(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListStaleRequested(ctx context.Context, cutoff time.Time, limit int) ([]model.Reservation, error)
	ListTransactions(ctx context.Context, userID uint64) ([]model.Transaction, error)

	// InTx runs fn in one database transaction, committing when fn
	// returns nil and rolling back otherwise.
	InTx(ctx context.Context, fn func(tx RentTx) error) error
}

// RentTx is the set of operations available inside InTx.  LockListing
// must be called before any other write for that listing; it holds the
// per-listing lock until the transaction ends.
type RentTx interface {
	LockListing(ctx context.Context, id uint64) (model.Listing, error)
	HasOverlap(ctx context.Context, listingID uint64, start, end time.Time, statuses []model.RentStatus, excludeID uint64) (bool, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	GetReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error)
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	DeleteReservation(ctx context.Context, id uint64) error
	TransactionExists(ctx context.Context, reservationID uint64) (bool, error)
	InsertTransaction(ctx context.Context, t *model.Transaction) error
	UpdateTransactionStatus(ctx context.Context, reservationID uint64, status model.TransactionStatus) error
}

// SQLRentStore implements RentStore on MySQL.  Transactions run at READ
// COMMITTED; serialization comes from the listing row lock, so the
// overlap query always sees reservations committed by whoever held the
// lock before.
type SQLRentStore struct {
	db           *sql.DB
	listings     *repository.ListingRepo
	rents        *repository.RentRequestRepo
	transactions *repository.TransactionRepo
}

// NewSQLRentStore wires the repositories sharing db.
func NewSQLRentStore(db *sql.DB, listings *repository.ListingRepo, rents *repository.RentRequestRepo, transactions *repository.TransactionRepo) *SQLRentStore {
	return &SQLRentStore{db: db, listings: listings, rents: rents, transactions: transactions}
}

func (s *SQLRentStore) GetListing(ctx context.Context, id uint64) (model.Listing, error) {
	return s.listings.GetByID(ctx, id)
}

func (s *SQLRentStore) GetReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	return s.rents.GetByID(ctx, id)
}

func (s *SQLRentStore) ListByBorrower(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return s.rents.ListByBorrower(ctx, userID)
}

func (s *SQLRentStore) ListByLender(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return s.rents.ListByLender(ctx, userID)
}

func (s *SQLRentStore) ListStaleRequested(ctx context.Context, cutoff time.Time, limit int) ([]model.Reservation, error) {
	return s.rents.ListStaleRequested(ctx, cutoff, limit)
}

func (s *SQLRentStore) ListTransactions(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	return s.transactions.ListForUser(ctx, userID)
}

func (s *SQLRentStore) InTx(ctx context.Context, fn func(tx RentTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&sqlRentTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type sqlRentTx struct {
	tx *sql.Tx
	s  *SQLRentStore
}

func (t *sqlRentTx) LockListing(ctx context.Context, id uint64) (model.Listing, error) {
	return t.s.listings.LockForUpdateTx(ctx, t.tx, id)
}

func (t *sqlRentTx) HasOverlap(ctx context.Context, listingID uint64, start, end time.Time, statuses []model.RentStatus, excludeID uint64) (bool, error) {
	return t.s.rents.HasOverlapTx(ctx, t.tx, listingID, start, end, statuses, excludeID)
}

func (t *sqlRentTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.rents.CreateTx(ctx, t.tx, r)
}

func (t *sqlRentTx) GetReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	return t.s.rents.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlRentTx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.rents.UpdateTx(ctx, t.tx, r)
}

func (t *sqlRentTx) DeleteReservation(ctx context.Context, id uint64) error {
	return t.s.rents.DeleteTx(ctx, t.tx, id)
}

func (t *sqlRentTx) TransactionExists(ctx context.Context, reservationID uint64) (bool, error) {
	return t.s.transactions.ExistsForReservationTx(ctx, t.tx, reservationID)
}

func (t *sqlRentTx) InsertTransaction(ctx context.Context, tr *model.Transaction) error {
	return t.s.transactions.CreateTx(ctx, t.tx, tr)
}

func (t *sqlRentTx) UpdateTransactionStatus(ctx context.Context, reservationID uint64, status model.TransactionStatus) error {
	return t.s.transactions.UpdateStatusByReservationTx(ctx, t.tx, reservationID, status)
}
