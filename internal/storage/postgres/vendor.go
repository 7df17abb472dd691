package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fabricesimpore/zakamall/internal/domain/vendor"
)

const getVendorByIDSQL = `SELECT id, user_id, name, commission_rate
	FROM vendors WHERE id = $1`

var _ vendor.Repository = (*VendorRepository)(nil)

// VendorRepository implements vendor.Repository backed by PostgreSQL.
type VendorRepository struct {
	pool *pgxpool.Pool
}

// NewVendorRepository returns a VendorRepository that uses the given pool.
func NewVendorRepository(pool *pgxpool.Pool) *VendorRepository {
	return &VendorRepository{pool: pool}
}

// GetByID returns a single vendor. A NULL commission_rate column maps to a
// nil rate, meaning the platform default applies.
func (r *VendorRepository) GetByID(ctx context.Context, id string) (*vendor.Vendor, error) {
	var v vendor.Vendor
	err := r.pool.QueryRow(ctx, getVendorByIDSQL, id).
		Scan(&v.ID, &v.UserID, &v.Name, &v.CommissionRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vendor.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting vendor %q", id)
	}
	return &v, nil
}
