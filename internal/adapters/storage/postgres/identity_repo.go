package postgres

import (
	"context"
	"database/sql"

	"pet-vaccination-clinic/internal/domain/identity"
)

type IdentityRepo struct {
	db *sql.DB
}

func NewIdentityRepo(db *sql.DB) *IdentityRepo {
	return &IdentityRepo{db: db}
}

const userColumns = `id, username, email, password_hash, is_staff, created_at, updated_at`

func (r *IdentityRepo) CreateUser(ctx context.Context, u identity.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.IsStaff, u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (r *IdentityRepo) GetUserByID(ctx context.Context, id string) (identity.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *IdentityRepo) GetUserByUsername(ctx context.Context, username string) (identity.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
}

func (r *IdentityRepo) getUser(ctx context.Context, q string, arg string) (identity.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, q, arg))
}

func scanUser(s scanner) (identity.User, error) {
	var u identity.User
	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsStaff, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return identity.User{}, mapErr(err)
	}
	return u, nil
}

// CreateFirstStaff serializa los bootstraps con un advisory lock de transacción:
// dos sign-ups simultáneos (incluso desde instancias distintas) no pueden ver ambos cero staff.
func (r *IdentityRepo) CreateFirstStaff(ctx context.Context, u identity.User) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('users:staff-bootstrap'))`); err != nil {
		return false, mapErr(err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE is_staff)`).Scan(&exists); err != nil {
		return false, mapErr(err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.IsStaff, u.CreatedAt, u.UpdatedAt); err != nil {
		return false, mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

func (r *IdentityRepo) ListUsers(ctx context.Context) ([]identity.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY LOWER(username) ASC`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]identity.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *IdentityRepo) UpdateUser(ctx context.Context, u identity.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET username = $2, email = $3, password_hash = $4, is_staff = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.IsStaff, u.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *IdentityRepo) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

// ---- owner profiles ----

const ownerColumns = `id, user_id, name, national_id, address, phone, created_at, updated_at`

func (r *IdentityRepo) CreateOwner(ctx context.Context, p identity.OwnerProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO owner_profiles (`+ownerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, p.ID, p.UserID, p.Name, p.NationalID, p.Address, p.Phone, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (r *IdentityRepo) GetOwnerByID(ctx context.Context, id string) (identity.OwnerProfile, error) {
	return scanOwner(r.db.QueryRowContext(ctx, `SELECT `+ownerColumns+` FROM owner_profiles WHERE id = $1`, id))
}

func (r *IdentityRepo) GetOwnerByUserID(ctx context.Context, userID string) (identity.OwnerProfile, error) {
	return scanOwner(r.db.QueryRowContext(ctx, `SELECT `+ownerColumns+` FROM owner_profiles WHERE user_id = $1`, userID))
}

func (r *IdentityRepo) ListOwners(ctx context.Context) ([]identity.OwnerProfile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ownerColumns+` FROM owner_profiles ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]identity.OwnerProfile, 0)
	for rows.Next() {
		p, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *IdentityRepo) UpdateOwner(ctx context.Context, p identity.OwnerProfile) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE owner_profiles
		SET name = $2, national_id = $3, address = $4, phone = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Name, p.NationalID, p.Address, p.Phone, p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *IdentityRepo) DeleteOwner(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM owner_profiles WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func scanOwner(s scanner) (identity.OwnerProfile, error) {
	var p identity.OwnerProfile
	err := s.Scan(&p.ID, &p.UserID, &p.Name, &p.NationalID, &p.Address, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return identity.OwnerProfile{}, mapErr(err)
	}
	return p, nil
}

// ---- staff profiles ----

const staffColumns = `id, user_id, name, national_id, address, phone, job_title, created_at, updated_at`

func (r *IdentityRepo) CreateStaff(ctx context.Context, p identity.StaffProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO staff_profiles (`+staffColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, p.ID, p.UserID, p.Name, p.NationalID, p.Address, p.Phone, p.JobTitle, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (r *IdentityRepo) GetStaffByID(ctx context.Context, id string) (identity.StaffProfile, error) {
	return scanStaff(r.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_profiles WHERE id = $1`, id))
}

func (r *IdentityRepo) GetStaffByUserID(ctx context.Context, userID string) (identity.StaffProfile, error) {
	return scanStaff(r.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_profiles WHERE user_id = $1`, userID))
}

func (r *IdentityRepo) ListStaff(ctx context.Context) ([]identity.StaffProfile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+staffColumns+` FROM staff_profiles ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]identity.StaffProfile, 0)
	for rows.Next() {
		p, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *IdentityRepo) UpdateStaff(ctx context.Context, p identity.StaffProfile) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE staff_profiles
		SET name = $2, national_id = $3, address = $4, phone = $5, job_title = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.Name, p.NationalID, p.Address, p.Phone, p.JobTitle, p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *IdentityRepo) DeleteStaff(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM staff_profiles WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func scanStaff(s scanner) (identity.StaffProfile, error) {
	var p identity.StaffProfile
	err := s.Scan(&p.ID, &p.UserID, &p.Name, &p.NationalID, &p.Address, &p.Phone, &p.JobTitle, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return identity.StaffProfile{}, mapErr(err)
	}
	return p, nil
}
