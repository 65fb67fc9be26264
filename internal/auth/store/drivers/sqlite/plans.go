package sqlite

import (
	"context"
	"database/sql"

	"github.com/patronhq/patron/internal/auth/domain"
)

type plansRepo struct {
	db *sql.DB
}

const planColumns = `id, creator_id, name, description, price_cents, currency,
	billing_interval, created_at, updated_at`

func scanPlan(scan func(...any) error) (domain.Plan, error) {
	var p domain.Plan
	err := scan(
		&p.ID, &p.CreatorID, &p.Name, &p.Description, &p.PriceCents,
		&p.Currency, &p.Interval, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Plan{}, mapNotFound(err)
	}
	return p, nil
}

func (r *plansRepo) CreatePlan(ctx context.Context, p domain.Plan) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plans (id, creator_id, name, description, price_cents, currency, billing_interval, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CreatorID, p.Name, p.Description, p.PriceCents, p.Currency, p.Interval, p.CreatedAt, p.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *plansRepo) GetPlanByID(ctx context.Context, id string) (domain.Plan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	return scanPlan(row.Scan)
}

func (r *plansRepo) ListPlansByCreator(ctx context.Context, creatorID string) ([]domain.Plan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+planColumns+` FROM plans
		WHERE creator_id = ?
		ORDER BY price_cents ASC`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *plansRepo) UpdatePlan(ctx context.Context, p domain.Plan) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE plans
		SET name = ?, description = ?, price_cents = ?, currency = ?,
			billing_interval = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.PriceCents, p.Currency, p.Interval, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *plansRepo) DeletePlan(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
