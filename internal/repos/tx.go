package repos

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"stockhold/internal/domain"
	"stockhold/internal/lock"
	"stockhold/internal/metrics"
)

// TxManager opens transactions that own per-product locks.
type TxManager struct {
	db    *sqlx.DB
	locks *lock.Keyed
}

func NewTxManager(db *sqlx.DB, locks *lock.Keyed) *TxManager {
	return &TxManager{db: db, locks: locks}
}

// DB exposes the pool for read-only queries that need no lock.
func (m *TxManager) DB() *sqlx.DB { return m.db }

// Tx is one unit of work. Its locks are released after Commit or Rollback,
// never before.
type Tx struct {
	tx    *sqlx.Tx
	held  map[string]func()
	order []string
	done  bool

	Products     *ProductRepo
	Reservations *ReservationRepo
}

// BeginLocked takes the locks for productIDs (sorted, duplicates ignored) and
// only then borrows a connection and begins the transaction. Waiting for a
// product never ties up the pool, so work on other products is unaffected,
// and lock contention surfaces as domain.ErrBusy.
func (m *TxManager) BeginLocked(ctx context.Context, productIDs ...string) (*Tx, error) {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make(map[string]func(), len(ids))
	unlock := func() {
		for _, release := range held {
			release()
		}
	}
	for _, id := range ids {
		release, err := m.acquire(ctx, id)
		if err != nil {
			unlock()
			return nil, err
		}
		held[id] = release
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		unlock()
		return nil, errors.Wrap(err, "begin transaction")
	}
	return &Tx{
		tx:           tx,
		held:         held,
		order:        ids,
		Products:     NewProductRepo(tx),
		Reservations: NewReservationRepo(tx),
	}, nil
}

func (m *TxManager) acquire(ctx context.Context, productID string) (func(), error) {
	start := time.Now()
	release, err := m.locks.Acquire(ctx, productID)
	metrics.LockWait.Observe(time.Since(start).Seconds())
	if errors.Is(err, lock.ErrBusy) {
		return nil, errors.Wrapf(domain.ErrBusy, "product %s", productID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lock product %s", productID)
	}
	return release, nil
}

// Holds reports whether the transaction owns the lock for productID.
func (t *Tx) Holds(productID string) bool {
	_, ok := t.held[productID]
	return ok && !t.done
}

// Locked lists the product ids the transaction holds, in acquisition order.
func (t *Tx) Locked() []string { return slices.Clone(t.order) }

// Commit makes the writes durable and then drops the locks.
func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	defer t.unlockAll()
	return errors.Wrap(t.tx.Commit(), "commit")
}

// Rollback is safe to defer unconditionally; after Commit it does nothing.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.unlockAll()
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return errors.Wrap(err, "rollback")
}

func (t *Tx) unlockAll() {
	for id, release := range t.held {
		release()
		delete(t.held, id)
	}
}
