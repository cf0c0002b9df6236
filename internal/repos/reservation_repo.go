package repos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"stockhold/internal/domain"
)

type ReservationRepo struct{ db sqlx.ExtContext }

func NewReservationRepo(db sqlx.ExtContext) *ReservationRepo { return &ReservationRepo{db: db} }

type reservationRow struct {
	ID         string         `db:"id"`
	ProductID  string         `db:"product_id"`
	UserID     string         `db:"user_id"`
	Quantity   int            `db:"quantity"`
	ReservedAt string         `db:"reserved_at"`
	ExpiresAt  string         `db:"expires_at"`
	Released   bool           `db:"released"`
	ReleasedAt sql.NullString `db:"released_at"`
	Confirmed  bool           `db:"confirmed"`
}

func (row reservationRow) toDomain() (*domain.Reservation, error) {
	reservedAt, err := parseTS(row.ReservedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "reservation %s reserved_at", row.ID)
	}
	expiresAt, err := parseTS(row.ExpiresAt)
	if err != nil {
		return nil, errors.Wrapf(err, "reservation %s expires_at", row.ID)
	}
	r := &domain.Reservation{
		ID:         row.ID,
		ProductID:  row.ProductID,
		UserID:     row.UserID,
		Quantity:   row.Quantity,
		ReservedAt: reservedAt,
		ExpiresAt:  expiresAt,
		Released:   row.Released,
		Confirmed:  row.Confirmed,
	}
	if row.ReleasedAt.Valid {
		at, err := parseTS(row.ReleasedAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "reservation %s released_at", row.ID)
		}
		r.ReleasedAt = &at
	}
	return r, nil
}

func toDomainList(rows []reservationRow) ([]domain.Reservation, error) {
	out := make([]domain.Reservation, 0, len(rows))
	for _, row := range rows {
		r, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

const reservationColumns = `id, product_id, user_id, quantity, reserved_at, expires_at, released, released_at, confirmed`

func (r *ReservationRepo) Insert(ctx context.Context, res *domain.Reservation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reservations(`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.ID, res.ProductID, res.UserID, res.Quantity, formatTS(res.ReservedAt), formatTS(res.ExpiresAt),
		res.Released, nullTS(res.ReleasedAt), res.Confirmed)
	return errors.Wrapf(err, "insert reservation %s", res.ID)
}

// Get returns domain.ErrNotFound if the reservation does not exist.
func (r *ReservationRepo) Get(ctx context.Context, id string) (*domain.Reservation, error) {
	var row reservationRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "reservation %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get reservation %s", id)
	}
	return row.toDomain()
}

// MarkReleased persists the release (and confirm) state of res.
func (r *ReservationRepo) MarkReleased(ctx context.Context, res *domain.Reservation) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reservations SET released = ?, released_at = ?, confirmed = ?
		WHERE id = ?
	`, res.Released, nullTS(res.ReleasedAt), res.Confirmed, res.ID)
	return errors.Wrapf(err, "update reservation %s", res.ID)
}

// ListExpired returns unreleased holds whose expiry is at or before now,
// oldest first.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []reservationRow
	err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE released = 0 AND expires_at <= ?
		ORDER BY expires_at
		LIMIT ?
	`, formatTS(now), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list expired reservations")
	}
	return toDomainList(rows)
}

// ReservationFilter narrows audit queries; zero values match everything.
type ReservationFilter struct {
	ProductID string
	UserID    string
	Released  *bool
	Limit     int
}

func (r *ReservationRepo) Search(ctx context.Context, f ReservationFilter) ([]domain.Reservation, error) {
	where := []string{"1 = 1"}
	args := []any{}
	if f.ProductID != "" {
		where = append(where, "product_id = ?")
		args = append(args, f.ProductID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Released != nil {
		where = append(where, "released = ?")
		args = append(args, *f.Released)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)

	var rows []reservationRow
	err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY reserved_at DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "search reservations")
	}
	return toDomainList(rows)
}

// SumActive is the quantity still held for a product according to the
// reservation ledger. It always equals the product's reserved stock.
func (r *ReservationRepo) SumActive(ctx context.Context, productID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `
		SELECT COALESCE(SUM(quantity), 0) FROM reservations
		WHERE product_id = ? AND released = 0
	`, productID)
	return n, errors.Wrapf(err, "sum active reservations for %s", productID)
}

func nullTS(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTS(*t), Valid: true}
}
