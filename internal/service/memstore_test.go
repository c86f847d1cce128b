package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/toolshare/rental-backend/internal/booking"
	"github.com/toolshare/rental-backend/internal/model"
	"github.com/toolshare/rental-backend/internal/queue"
)

// memStore is an in-memory RentStore.  Writes made inside InTx are
// buffered and applied on commit; LockListing holds a per-listing mutex
// until the transaction ends, mirroring SELECT ... FOR UPDATE.
type memStore struct {
	mu       sync.Mutex
	listings map[uint64]model.Listing
	rents    map[uint64]model.Reservation
	txs      map[uint64]model.Transaction // keyed by reservation id
	nextID   uint64
	locks    map[uint64]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		listings: map[uint64]model.Listing{},
		rents:    map[uint64]model.Reservation{},
		txs:      map[uint64]model.Transaction{},
		locks:    map[uint64]*sync.Mutex{},
	}
}

func (m *memStore) addListing(l model.Listing) model.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	m.listings[l.ID] = l
	return l
}

func (m *memStore) addReservation(r model.Reservation) model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	m.rents[r.ID] = r
	return r
}

func (m *memStore) transactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}

func (m *memStore) transactionFor(rentID uint64) (model.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[rentID]
	return t, ok
}

func (m *memStore) GetListing(_ context.Context, id uint64) (model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return model.Listing{}, fmt.Errorf("%w: listing", model.ErrNotFound)
	}
	return l, nil
}

func (m *memStore) GetReservation(_ context.Context, id uint64) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rents[id]
	if !ok {
		return model.Reservation{}, fmt.Errorf("%w: rent request", model.ErrNotFound)
	}
	return r, nil
}

func (m *memStore) filter(keep func(model.Reservation) bool) []model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range m.rents {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ListByBorrower(_ context.Context, userID uint64) ([]model.Reservation, error) {
	return m.filter(func(r model.Reservation) bool { return r.BorrowerID == userID }), nil
}

func (m *memStore) ListByLender(_ context.Context, userID uint64) ([]model.Reservation, error) {
	return m.filter(func(r model.Reservation) bool { return r.LenderID == userID }), nil
}

func (m *memStore) ListStaleRequested(_ context.Context, cutoff time.Time, limit int) ([]model.Reservation, error) {
	out := m.filter(func(r model.Reservation) bool {
		return r.Status == model.StatusRequested && r.PickupTime.Before(cutoff)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListTransactions(_ context.Context, userID uint64) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Transaction{}
	for _, t := range m.txs {
		if t.BorrowerID == userID || t.LenderID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) listingLock(id uint64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *memStore) InTx(ctx context.Context, fn func(tx RentTx) error) error {
	tx := &memTx{m: m}
	defer tx.release()
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	m        *memStore
	held     []*sync.Mutex
	rents    []model.Reservation
	deletes  []uint64
	inserted []model.Transaction
	statuses map[uint64]model.TransactionStatus
}

func (t *memTx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
}

func (t *memTx) commit() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, r := range t.rents {
		t.m.rents[r.ID] = r
	}
	for _, id := range t.deletes {
		delete(t.m.rents, id)
	}
	for _, tr := range t.inserted {
		t.m.txs[tr.ReservationID] = tr
	}
	for id, s := range t.statuses {
		if tr, ok := t.m.txs[id]; ok {
			tr.Status = s
			t.m.txs[id] = tr
		}
	}
}

func (t *memTx) LockListing(ctx context.Context, id uint64) (model.Listing, error) {
	l := t.m.listingLock(id)
	l.Lock()
	t.held = append(t.held, l)
	return t.m.GetListing(ctx, id)
}

func (t *memTx) HasOverlap(_ context.Context, listingID uint64, start, end time.Time, statuses []model.RentStatus, excludeID uint64) (bool, error) {
	existing := t.m.filter(func(r model.Reservation) bool { return r.ListingID == listingID })
	for _, r := range existing {
		if r.ID == excludeID {
			continue
		}
		blocking := false
		for _, s := range statuses {
			if r.Status == s {
				blocking = true
			}
		}
		if blocking && booking.Overlaps(start, end, r.PickupTime, r.DropOffTime) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertReservation(_ context.Context, r *model.Reservation) error {
	t.m.mu.Lock()
	t.m.nextID++
	r.ID = t.m.nextID
	t.m.mu.Unlock()
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	t.rents = append(t.rents, *r)
	return nil
}

func (t *memTx) GetReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	return t.m.GetReservation(ctx, id)
}

func (t *memTx) UpdateReservation(_ context.Context, r *model.Reservation) error {
	r.UpdatedAt = time.Now().UTC()
	t.rents = append(t.rents, *r)
	return nil
}

func (t *memTx) DeleteReservation(_ context.Context, id uint64) error {
	t.deletes = append(t.deletes, id)
	return nil
}

func (t *memTx) TransactionExists(_ context.Context, reservationID uint64) (bool, error) {
	_, ok := t.m.transactionFor(reservationID)
	return ok, nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr *model.Transaction) error {
	t.m.mu.Lock()
	t.m.nextID++
	tr.ID = t.m.nextID
	t.m.mu.Unlock()
	t.inserted = append(t.inserted, *tr)
	return nil
}

func (t *memTx) UpdateTransactionStatus(_ context.Context, reservationID uint64, status model.TransactionStatus) error {
	if t.statuses == nil {
		t.statuses = map[uint64]model.TransactionStatus{}
	}
	t.statuses[reservationID] = status
	return nil
}

// recorder is a Notifier that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []queue.RentRequestEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, ev queue.RentRequestEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) types() []queue.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func quietLogger() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return l
}
