package repos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"stockhold/internal/domain"
)

// ErrStaleProduct means the row's version moved under us. It should be
// impossible while the product lock is held; it matches domain.ErrTransaction.
var ErrStaleProduct = errors.Wrap(domain.ErrTransaction, "product version changed concurrently")

// ProductRepo works on either the pool or a transaction.
type ProductRepo struct{ db sqlx.ExtContext }

func NewProductRepo(db sqlx.ExtContext) *ProductRepo { return &ProductRepo{db: db} }

type productRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Available int    `db:"available_stock"`
	Reserved  int    `db:"reserved_stock"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
	Version   int64  `db:"version"`
}

func (row productRow) toDomain() (*domain.Product, error) {
	created, err := parseTS(row.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "product %s created_at", row.ID)
	}
	updated, err := parseTS(row.UpdatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "product %s updated_at", row.ID)
	}
	return &domain.Product{
		ID:             row.ID,
		Name:           row.Name,
		AvailableStock: row.Available,
		ReservedStock:  row.Reserved,
		CreatedAt:      created,
		UpdatedAt:      updated,
		Version:        row.Version,
	}, nil
}

const productColumns = `id, name, available_stock, reserved_stock, created_at, updated_at, version`

// Get returns domain.ErrNotFound if the product does not exist.
func (r *ProductRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "product %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	return row.toDomain()
}

func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `SELECT `+productColumns+` FROM products ORDER BY name, id`); err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *ProductRepo) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM products WHERE id = ?`, id); err != nil {
		return false, errors.Wrapf(err, "check product %s", id)
	}
	return n > 0, nil
}

func (r *ProductRepo) Insert(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products(id, name, available_stock, reserved_stock, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.AvailableStock, p.ReservedStock, formatTS(p.CreatedAt), formatTS(p.UpdatedAt), p.Version)
	return errors.Wrapf(err, "insert product %s", p.ID)
}

// Update writes the stock counts guarded by the version token and bumps it.
func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET available_stock = ?, reserved_stock = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, p.AvailableStock, p.ReservedStock, formatTS(p.UpdatedAt), p.ID, p.Version)
	if err != nil {
		return errors.Wrapf(err, "update product %s", p.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "update product %s", p.ID)
	}
	if n == 0 {
		return errors.Wrapf(ErrStaleProduct, "product %s", p.ID)
	}
	p.Version++
	return nil
}
