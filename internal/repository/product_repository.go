package repository

import (
	"context"
	"database/sql"

	"github.com/albumforge/backoffice/internal/model"
)

// ProductRepo exposes the read-only marketing catalog.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

// ListActive returns every active product ordered by name. The marketing
// site renders these on the landing pages; responses are cached by the
// catalog cache middleware.
func (r *ProductRepo) ListActive(ctx context.Context) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, name, description, price_cents, is_active FROM products WHERE is_active = 1 ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
