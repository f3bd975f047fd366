package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pet-vaccination-clinic/internal/domain/vaccinations"
)

type VaccinationsRepo struct {
	db *sql.DB
}

func NewVaccinationsRepo(db *sql.DB) *VaccinationsRepo {
	return &VaccinationsRepo{db: db}
}

const vaccinationColumns = `
	id, pet_id, vaccine_id, administered_by,
	applied_on, next_dose_on,
	batch, notes,
	created_at, updated_at`

func (r *VaccinationsRepo) Create(ctx context.Context, rec vaccinations.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vaccinations (
			id, pet_id, vaccine_id, administered_by,
			applied_on, next_dose_on,
			batch, notes,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		rec.ID,
		rec.PetID,
		rec.VaccineID,
		rec.AdministeredBy,
		rec.AppliedOn,
		toNullDate(rec.NextDoseOn),
		rec.Batch,
		rec.Notes,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return mapErr(err)
}

// Update no toca pet_id ni vaccine_id: un registro no cambia de mascota ni de vacuna.
func (r *VaccinationsRepo) Update(ctx context.Context, rec vaccinations.Record) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vaccinations
		SET
			administered_by = $2,
			applied_on = $3,
			next_dose_on = $4,
			batch = $5,
			notes = $6,
			updated_at = $7
		WHERE id = $1
	`,
		rec.ID,
		rec.AdministeredBy,
		rec.AppliedOn,
		toNullDate(rec.NextDoseOn),
		rec.Batch,
		rec.Notes,
		rec.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *VaccinationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vaccinations WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *VaccinationsRepo) GetByID(ctx context.Context, id string) (vaccinations.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+vaccinationColumns+` FROM vaccinations WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return vaccinations.Record{}, mapErr(err)
	}
	return rec, nil
}

func (r *VaccinationsRepo) List(ctx context.Context, f vaccinations.Filter) ([]vaccinations.Record, error) {
	if f.PetIDs != nil && len(f.PetIDs) == 0 {
		return []vaccinations.Record{}, nil
	}

	where, args := whereClause(f)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+vaccinationColumns+`
		FROM vaccinations`+where+`
		ORDER BY applied_on DESC, created_at DESC, id ASC
	`, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]vaccinations.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *VaccinationsRepo) Count(ctx context.Context, f vaccinations.Filter) (int, error) {
	if f.PetIDs != nil && len(f.PetIDs) == 0 {
		return 0, nil
	}

	where, args := whereClause(f)
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vaccinations`+where, args...).Scan(&n)
	return n, mapErr(err)
}

// whereClause arma el WHERE con placeholders numerados. Misma semántica que Filter.Match.
func whereClause(f vaccinations.Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.PetIDs != nil {
		add("pet_id = ANY($%d)", f.PetIDs)
	}
	if f.VaccineID != "" {
		add("vaccine_id = $%d", f.VaccineID)
	}
	if f.AdministeredBy != "" {
		add("administered_by = $%d", f.AdministeredBy)
	}
	if f.NextDoseFrom != nil || f.NextDoseTo != nil {
		conds = append(conds, "next_dose_on IS NOT NULL")
	}
	if f.NextDoseFrom != nil {
		add("next_dose_on >= $%d", *f.NextDoseFrom)
	}
	if f.NextDoseTo != nil {
		add("next_dose_on <= $%d", *f.NextDoseTo)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(s scanner) (vaccinations.Record, error) {
	var rec vaccinations.Record
	var next sql.NullTime
	if err := s.Scan(
		&rec.ID,
		&rec.PetID,
		&rec.VaccineID,
		&rec.AdministeredBy,
		&rec.AppliedOn,
		&next,
		&rec.Batch,
		&rec.Notes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return vaccinations.Record{}, err
	}
	rec.AppliedOn = rec.AppliedOn.UTC()
	rec.NextDoseOn = fromNullDate(next)
	return rec, nil
}
