package pets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/domain/identity"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/ports/storage"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	byID map[string]Pet
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Pet{}}
}

func (r *testRepo) Create(_ context.Context, p Pet) error {
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) Update(_ context.Context, p Pet) error {
	if _, ok := r.byID[p.ID]; !ok {
		return storage.ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *testRepo) GetByID(_ context.Context, id string) (Pet, error) {
	p, ok := r.byID[id]
	if !ok {
		return Pet{}, storage.ErrNotFound
	}
	return p, nil
}

func (r *testRepo) List(_ context.Context) ([]Pet, error) {
	out := make([]Pet, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *testRepo) ListByOwner(ctx context.Context, ownerID string) ([]Pet, error) {
	all, _ := r.List(ctx)
	out := make([]Pet, 0)
	for _, p := range all {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *testRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	items, _ := r.ListByOwner(ctx, ownerID)
	return len(items), nil
}

type testOwners map[string]identity.OwnerProfile

func (o testOwners) OwnerByID(_ context.Context, id string) (identity.OwnerProfile, error) {
	p, ok := o[id]
	if !ok {
		return identity.OwnerProfile{}, identity.ErrOwnerNotFound
	}
	return p, nil
}

// -------------------------
// Fixtures
// -------------------------

var (
	today   = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	staff   = authz.Caller{UserID: "u-staff", IsStaff: true, StaffProfileID: "s-1"}
	ownerA  = authz.Caller{UserID: "u-a", OwnerProfileID: "o-a"}
	ownerB  = authz.Caller{UserID: "u-b", OwnerProfileID: "o-b"}
	noProfs = authz.Caller{UserID: "u-x"}
)

func newTestService(t *testing.T) (*Service, *testRepo) {
	t.Helper()
	repo := newTestRepo()
	owners := testOwners{
		"o-a": {ID: "o-a", UserID: "u-a", Person: identity.Person{Name: "Ana Souza"}},
		"o-b": {ID: "o-b", UserID: "u-b"},
	}
	svc := NewService(repo, owners, authz.NewPolicy(), nil)
	svc.now = func() time.Time { return today.Add(10 * time.Hour) }
	return svc, repo
}

func createFor(t *testing.T, svc *Service, c authz.Caller, ownerID, name string) Pet {
	t.Helper()
	p, err := svc.Create(context.Background(), c, CreateInput{
		OwnerID: ownerID,
		Name:    name,
		Species: "Cachorro",
		Breed:   "SRD",
		Weight:  12.5,
	})
	require.NoError(t, err)
	return p
}

// -------------------------
// Tests
// -------------------------

func TestCreate_OwnerDefaultsToOwnProfile(t *testing.T) {
	svc, _ := newTestService(t)

	p := createFor(t, svc, ownerA, "", "Rex")
	assert.Equal(t, "o-a", p.OwnerID)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	// explícito e igual al propio: ok
	p = createFor(t, svc, ownerA, "o-a", "Luna")
	assert.Equal(t, "o-a", p.OwnerID)
}

func TestCreate_OwnerCannotCreateForSomeoneElse(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.Create(context.Background(), ownerA, CreateInput{OwnerID: "o-b", Name: "Rex", Species: "Cachorro", Breed: "SRD", Weight: 3})
	require.Error(t, err)
	assert.Equal(t, apperror.KindPermissionDenied, apperror.KindOf(err))
	assert.Empty(t, repo.byID)
}

func TestCreate_StaffRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := createFor(t, svc, staff, "o-b", "Tom")
	assert.Equal(t, "o-b", p.OwnerID)

	_, err := svc.Create(ctx, staff, CreateInput{Name: "Tom", Species: "Gato", Breed: "SRD", Weight: 3})
	assert.True(t, errors.Is(err, ErrOwnerRequired))

	_, err = svc.Create(ctx, staff, CreateInput{OwnerID: "o-zzz", Name: "Tom", Species: "Gato", Breed: "SRD", Weight: 3})
	assert.True(t, errors.Is(err, identity.ErrOwnerNotFound))

	// staff que además es dueño: default al propio perfil
	both := authz.Caller{UserID: "u-a", IsStaff: true, OwnerProfileID: "o-a", StaffProfileID: "s-2"}
	p = createFor(t, svc, both, "", "Mimi")
	assert.Equal(t, "o-a", p.OwnerID)
}

func TestCreate_OwnerWithoutProfile(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), noProfs, CreateInput{Name: "Rex", Species: "Cachorro", Breed: "SRD", Weight: 3})
	assert.True(t, errors.Is(err, authz.ErrOwnerProfileNotFound))
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, w := range []float64{0, -1, 0.009, 1000, 12.345} {
		_, err := svc.Create(ctx, ownerA, CreateInput{Name: "Rex", Species: "Cachorro", Breed: "SRD", Weight: w})
		assert.True(t, errors.Is(err, ErrInvalidWeight), "weight %v: got %v", w, err)
	}

	_, err := svc.Create(ctx, ownerA, CreateInput{Name: "Rex", Species: "Cachorro", Breed: "SRD", Weight: MinWeight})
	assert.NoError(t, err)

	_, err = svc.Create(ctx, ownerA, CreateInput{Name: " ", Species: "Cachorro", Breed: "SRD", Weight: 2})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	tomorrow := today.AddDate(0, 0, 1)
	_, err = svc.Create(ctx, ownerA, CreateInput{Name: "Rex", Species: "Cachorro", Breed: "SRD", Weight: 2, BirthDate: &tomorrow})
	assert.True(t, errors.Is(err, ErrFutureBirthDate))
}

func TestList_ScopedByRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	createFor(t, svc, ownerA, "", "Rex")
	createFor(t, svc, ownerA, "", "Luna")
	createFor(t, svc, ownerB, "", "Tom")

	items, err := svc.List(ctx, staff)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	items, err = svc.List(ctx, ownerA)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, p := range items {
		assert.Equal(t, "o-a", p.OwnerID)
	}

	_, err = svc.List(ctx, noProfs)
	assert.True(t, errors.Is(err, authz.ErrOwnerProfileNotFound))
}

func TestForeignPet_AlwaysPermissionDenied(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	p := createFor(t, svc, ownerB, "", "Tom")
	name := "Hacked"

	_, err := svc.Get(ctx, ownerA, p.ID)
	assert.True(t, errors.Is(err, authz.ErrNotOwner))

	_, err = svc.Update(ctx, ownerA, p.ID, UpdateInput{Name: &name})
	assert.True(t, errors.Is(err, authz.ErrNotOwner))

	err = svc.Delete(ctx, ownerA, p.ID)
	assert.True(t, errors.Is(err, authz.ErrNotOwner))

	assert.Equal(t, "Tom", repo.byID[p.ID].Name)
}

func TestUpdate_PartialFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	bd := today.AddDate(-2, 0, 0)
	p, err := svc.Create(ctx, ownerA, CreateInput{Name: "Rex", Species: "Cachorro", Breed: "SRD", Weight: 10, BirthDate: &bd})
	require.NoError(t, err)

	w := 11.2
	got, err := svc.Update(ctx, ownerA, p.ID, UpdateInput{Weight: &w})
	require.NoError(t, err)
	assert.Equal(t, 11.2, got.Weight)
	assert.Equal(t, "Rex", got.Name)
	require.NotNil(t, got.BirthDate)

	got, err = svc.Update(ctx, staff, p.ID, UpdateInput{BirthDate: BirthDatePatch{Present: true}})
	require.NoError(t, err)
	assert.Nil(t, got.BirthDate)

	bad := 0.0
	_, err = svc.Update(ctx, ownerA, p.ID, UpdateInput{Weight: &bad})
	assert.True(t, errors.Is(err, ErrInvalidWeight))

	_, err = svc.Update(ctx, ownerA, "missing", UpdateInput{Weight: &w})
	assert.True(t, errors.Is(err, ErrPetNotFound))
}

func TestDelete_ProtectedWhileVaccinated(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	p := createFor(t, svc, ownerA, "", "Rex")

	vaccinated := true
	svc.SetInUseCheck(func(context.Context, string) (bool, error) { return vaccinated, nil })

	assert.True(t, errors.Is(svc.Delete(ctx, ownerA, p.ID), ErrProtected))
	assert.Len(t, repo.byID, 1)

	vaccinated = false
	require.NoError(t, svc.Delete(ctx, ownerA, p.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, ownerA, p.ID), ErrPetNotFound))
}

func TestAge(t *testing.T) {
	bd := today.AddDate(0, 0, -100)
	p := Pet{BirthDate: &bd}
	require.NotNil(t, p.AgeInDays(today))
	assert.Equal(t, 100, *p.AgeInDays(today))
	assert.Equal(t, 0, *p.AgeInYears(today))

	bd = today.AddDate(0, 0, -800)
	assert.Equal(t, 2, *p.AgeInYears(today))

	assert.Nil(t, Pet{}.AgeInDays(today))
	assert.Nil(t, Pet{}.AgeInYears(today))
}

func TestHasPets(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	used, err := svc.HasPets(ctx, "o-a")
	require.NoError(t, err)
	assert.False(t, used)

	createFor(t, svc, ownerA, "", "Rex")
	used, err = svc.HasPets(ctx, "o-a")
	require.NoError(t, err)
	assert.True(t, used)
}

type rejectingRepo struct {
	*testRepo
}

func (r rejectingRepo) Create(context.Context, Pet) error {
	return fmt.Errorf("%w: value too long for type character varying(100)", storage.ErrInvalid)
}

func TestCreate_StorageRejectsValue(t *testing.T) {
	svc, repo := newTestService(t)
	svc.repo = rejectingRepo{repo}

	_, err := svc.Create(context.Background(), ownerA, CreateInput{Name: "Rex", Species: "Cachorro", Breed: "SRD", Weight: 12.34})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

type fixedDoses map[string]Doses

func (f fixedDoses) DosesFor(_ context.Context, p Pet) (Doses, error) {
	return f[p.ID], nil
}

func TestDescribe_OwnerNameAndDoses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rex := createFor(t, svc, ownerA, "", "Rex")
	tom := createFor(t, svc, staff, "o-b", "Tom")

	// sin DoseReader las listas quedan vacías, no nil
	v, err := svc.Describe(ctx, rex)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", v.OwnerName)
	assert.NotNil(t, v.Upcoming)
	assert.Empty(t, v.Upcoming)
	assert.NotNil(t, v.Overdue)

	next := today.AddDate(0, 0, 3)
	late := today.AddDate(0, 0, -2)
	svc.SetDoseReader(fixedDoses{
		rex.ID: {
			Upcoming: []Dose{{RecordID: "r1", VaccineName: "V10", NextDoseOn: next, Days: 3}},
			Overdue:  []Dose{{RecordID: "r2", VaccineName: "Raiva", NextDoseOn: late, Days: 2}},
		},
	})

	views, err := svc.DescribeAll(ctx, []Pet{rex, tom})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, rex.ID, views[0].ID)
	require.Len(t, views[0].Upcoming, 1)
	assert.Equal(t, 3, views[0].Upcoming[0].Days)
	require.Len(t, views[0].Overdue, 1)
	assert.Equal(t, "Raiva", views[0].Overdue[0].VaccineName)
	assert.Empty(t, views[1].OwnerName)
	assert.Empty(t, views[1].Upcoming)

	// dueño borrado: nombre vacío, sin error
	orphan := rex
	orphan.OwnerID = "o-gone"
	v, err = svc.Describe(ctx, orphan)
	require.NoError(t, err)
	assert.Empty(t, v.OwnerName)
}
