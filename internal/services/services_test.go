package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"stockhold/internal/domain"
	"stockhold/internal/lock"
	"stockhold/internal/notify"
	"stockhold/internal/repos"
	"stockhold/internal/services"
)

var t0 = time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable time source shared by services under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Enqueue(_ context.Context, evt notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db      *sqlx.DB
	locks   *lock.Keyed
	clock   *fakeClock
	events  *recorder
	svc     *services.ReservationService
	sweeper *services.ExpirationSweeper
}

func newFixture(t *testing.T, stock map[string]int) *fixture {
	t.Helper()
	return newFixtureWithLocks(t, stock, lock.NewKeyed(lock.ModeWait, 5*time.Second))
}

func newFixtureWithLocks(t *testing.T, stock map[string]int, locks *lock.Keyed) *fixture {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	pr := repos.NewProductRepo(db)
	for id, n := range stock {
		p, err := domain.NewProduct(id, "Product "+id, n, t0)
		if err != nil {
			t.Fatal(err)
		}
		if err := pr.Insert(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	clock := &fakeClock{now: t0}
	events := &recorder{}
	txm := repos.NewTxManager(db, locks)

	svc := services.NewReservationService(txm, events, 2*time.Minute)
	svc.Now = clock.Now
	sw := services.NewExpirationSweeper(txm, events, time.Hour, 500)
	sw.Now = clock.Now
	return &fixture{db: db, locks: locks, clock: clock, events: events, svc: svc, sweeper: sw}
}

func (f *fixture) stock(t *testing.T, id string) (available, reserved int) {
	t.Helper()
	p, err := f.svc.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return p.AvailableStock, p.ReservedStock
}
