package postgres

import (
	"context"
	"database/sql"

	"pet-vaccination-clinic/internal/domain/vaccines"
)

type VaccinesRepo struct {
	db *sql.DB
}

func NewVaccinesRepo(db *sql.DB) *VaccinesRepo {
	return &VaccinesRepo{db: db}
}

const vaccineColumns = `
	id, name, manufacturer, price::float8, dose_interval_days, description,
	created_at, updated_at`

func (r *VaccinesRepo) Create(ctx context.Context, v vaccines.Vaccine) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vaccines (
			id, name, manufacturer, price, dose_interval_days, description,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		v.ID,
		v.Name,
		v.Manufacturer,
		v.Price,
		v.DoseIntervalDays,
		v.Description,
		v.CreatedAt,
		v.UpdatedAt,
	)
	return mapErr(err)
}

func (r *VaccinesRepo) Update(ctx context.Context, v vaccines.Vaccine) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vaccines
		SET
			name = $2,
			manufacturer = $3,
			price = $4,
			dose_interval_days = $5,
			description = $6,
			updated_at = $7
		WHERE id = $1
	`,
		v.ID,
		v.Name,
		v.Manufacturer,
		v.Price,
		v.DoseIntervalDays,
		v.Description,
		v.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *VaccinesRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vaccines WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *VaccinesRepo) GetByID(ctx context.Context, id string) (vaccines.Vaccine, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+vaccineColumns+` FROM vaccines WHERE id = $1`, id)
	v, err := scanVaccine(row)
	if err != nil {
		return vaccines.Vaccine{}, mapErr(err)
	}
	return v, nil
}

func (r *VaccinesRepo) List(ctx context.Context) ([]vaccines.Vaccine, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+vaccineColumns+` FROM vaccines ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]vaccines.Vaccine, 0)
	for rows.Next() {
		v, err := scanVaccine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVaccine(s scanner) (vaccines.Vaccine, error) {
	var v vaccines.Vaccine
	err := s.Scan(
		&v.ID,
		&v.Name,
		&v.Manufacturer,
		&v.Price,
		&v.DoseIntervalDays,
		&v.Description,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}
