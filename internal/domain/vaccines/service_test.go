package vaccines

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/ports/storage"
)

type testRepo struct {
	byID map[string]Vaccine
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Vaccine{}}
}

func (r *testRepo) Create(_ context.Context, v Vaccine) error {
	r.byID[v.ID] = v
	return nil
}

func (r *testRepo) Update(_ context.Context, v Vaccine) error {
	if _, ok := r.byID[v.ID]; !ok {
		return storage.ErrNotFound
	}
	r.byID[v.ID] = v
	return nil
}

func (r *testRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *testRepo) GetByID(_ context.Context, id string) (Vaccine, error) {
	v, ok := r.byID[id]
	if !ok {
		return Vaccine{}, storage.ErrNotFound
	}
	return v, nil
}

func (r *testRepo) List(_ context.Context) ([]Vaccine, error) {
	out := make([]Vaccine, 0, len(r.byID))
	for _, v := range r.byID {
		out = append(out, v)
	}
	return out, nil
}

var (
	staff = authz.Caller{UserID: "u-staff", IsStaff: true}
	owner = authz.Caller{UserID: "u-a", OwnerProfileID: "o-a"}
)

func rabies() CreateInput {
	return CreateInput{
		Name:             "Rabies",
		Manufacturer:     "Zoetis",
		Price:            89.9,
		DoseIntervalDays: 365,
		Description:      "Antirrábica anual",
	}
}

func newTestService() (*Service, *testRepo) {
	repo := newTestRepo()
	svc := NewService(repo, authz.NewPolicy(), nil)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestCreate_StaffOnly(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, owner, rabies())
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))
	assert.Empty(t, repo.byID)

	v, err := svc.Create(ctx, staff, rabies())
	require.NoError(t, err)

	got, err := svc.Get(ctx, owner, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v, got)
	assert.Equal(t, 365, got.DoseIntervalDays)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	in := rabies()
	in.Price = 0
	_, err := svc.Create(ctx, staff, in)
	assert.True(t, errors.Is(err, ErrInvalidPrice))

	in = rabies()
	in.Price = -5
	_, err = svc.Create(ctx, staff, in)
	assert.True(t, errors.Is(err, ErrInvalidPrice))

	// NUMERIC(8,2): tope de la columna y 2 decimales
	for _, p := range []float64{MaxPrice + 0.01, 1e9, 10.005} {
		in = rabies()
		in.Price = p
		_, err = svc.Create(ctx, staff, in)
		assert.True(t, errors.Is(err, ErrInvalidPrice), "price %v: got %v", p, err)
	}
	in = rabies()
	in.Price = MaxPrice
	_, err = svc.Create(ctx, staff, in)
	assert.NoError(t, err)

	in = rabies()
	in.DoseIntervalDays = 0
	_, err = svc.Create(ctx, staff, in)
	assert.True(t, errors.Is(err, ErrInvalidInterval))

	in = rabies()
	in.Name = ""
	_, err = svc.Create(ctx, staff, in)
	assert.Error(t, err)
}

func TestUpdateDelete_StaffOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	v, err := svc.Create(ctx, staff, rabies())
	require.NoError(t, err)

	days := 180
	_, err = svc.Update(ctx, owner, v.ID, UpdateInput{DoseIntervalDays: &days})
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))
	assert.True(t, errors.Is(svc.Delete(ctx, owner, v.ID), authz.ErrStaffOnly))

	got, err := svc.Update(ctx, staff, v.ID, UpdateInput{DoseIntervalDays: &days})
	require.NoError(t, err)
	assert.Equal(t, 180, got.DoseIntervalDays)
	assert.Equal(t, "Rabies", got.Name)

	zero := 0
	_, err = svc.Update(ctx, staff, v.ID, UpdateInput{DoseIntervalDays: &zero})
	assert.True(t, errors.Is(err, ErrInvalidInterval))
}

func TestDelete_ProtectedWhileApplied(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	v, err := svc.Create(ctx, staff, rabies())
	require.NoError(t, err)

	applied := true
	svc.SetInUseCheck(func(context.Context, string) (bool, error) { return applied, nil })

	assert.True(t, errors.Is(svc.Delete(ctx, staff, v.ID), ErrProtected))
	assert.Len(t, repo.byID, 1)

	applied = false
	require.NoError(t, svc.Delete(ctx, staff, v.ID))

	_, err = svc.Get(ctx, staff, v.ID)
	assert.True(t, errors.Is(err, ErrVaccineNotFound))
}

type rejectingRepo struct {
	*testRepo
}

func (r rejectingRepo) Update(context.Context, Vaccine) error {
	return fmt.Errorf("%w: numeric field overflow", storage.ErrInvalid)
}

func TestUpdate_StorageRejectsValue(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	v, err := svc.Create(ctx, staff, rabies())
	require.NoError(t, err)

	svc.repo = rejectingRepo{repo}
	price := 120.0
	_, err = svc.Update(ctx, staff, v.ID, UpdateInput{Price: &price})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}
