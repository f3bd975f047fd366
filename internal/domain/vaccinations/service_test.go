package vaccinations

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/domain/identity"
	"pet-vaccination-clinic/internal/domain/pets"
	"pet-vaccination-clinic/internal/domain/vaccines"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/ports/storage"
)

// -------------------------
// Fakes
// -------------------------

type testRepo struct {
	byID map[string]Record
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Record{}}
}

func (r *testRepo) Create(_ context.Context, rec Record) error {
	r.byID[rec.ID] = rec
	return nil
}

func (r *testRepo) Update(_ context.Context, rec Record) error {
	if _, ok := r.byID[rec.ID]; !ok {
		return storage.ErrNotFound
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *testRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *testRepo) GetByID(_ context.Context, id string) (Record, error) {
	rec, ok := r.byID[id]
	if !ok {
		return Record{}, storage.ErrNotFound
	}
	return rec, nil
}

func (r *testRepo) List(_ context.Context, f Filter) ([]Record, error) {
	out := make([]Record, 0)
	for _, rec := range r.byID {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedOn.After(out[j].AppliedOn) })
	return out, nil
}

func (r *testRepo) Count(ctx context.Context, f Filter) (int, error) {
	items, _ := r.List(ctx, f)
	return len(items), nil
}

type testPets map[string]pets.Pet

func (p testPets) Lookup(_ context.Context, id string) (pets.Pet, error) {
	pet, ok := p[id]
	if !ok {
		return pets.Pet{}, pets.ErrPetNotFound
	}
	return pet, nil
}

func (p testPets) List(_ context.Context, c authz.Caller) ([]pets.Pet, error) {
	out := make([]pets.Pet, 0)
	for _, pet := range p {
		if c.IsStaff || pet.OwnerID == c.OwnerProfileID {
			out = append(out, pet)
		}
	}
	return out, nil
}

type testCatalog map[string]vaccines.Vaccine

func (c testCatalog) Lookup(_ context.Context, id string) (vaccines.Vaccine, error) {
	v, ok := c[id]
	if !ok {
		return vaccines.Vaccine{}, vaccines.ErrVaccineNotFound
	}
	return v, nil
}

type testPeople struct{}

func (testPeople) OwnerByID(_ context.Context, id string) (identity.OwnerProfile, error) {
	switch id {
	case "o-a":
		return identity.OwnerProfile{ID: id, Person: identity.Person{Name: "Ana"}}, nil
	case "o-b":
		return identity.OwnerProfile{ID: id, Person: identity.Person{Name: "Bruno"}}, nil
	}
	return identity.OwnerProfile{}, identity.ErrOwnerNotFound
}

func (testPeople) StaffByID(_ context.Context, id string) (identity.StaffProfile, error) {
	if id == "s-1" {
		return identity.StaffProfile{ID: id, Person: identity.Person{Name: "Dra. Carla"}}, nil
	}
	return identity.StaffProfile{}, identity.ErrStaffNotFound
}

type countingCounter struct{ n int }

func (c *countingCounter) Inc() { c.n++ }

// -------------------------
// Fixtures
// -------------------------

var (
	staff  = authz.Caller{UserID: "u-staff", IsStaff: true, StaffProfileID: "s-1"}
	ownerA = authz.Caller{UserID: "u-a", OwnerProfileID: "o-a"}
	ownerB = authz.Caller{UserID: "u-b", OwnerProfileID: "o-b"}
)

func newTestService(t *testing.T) (*Service, *testRepo, testCatalog) {
	t.Helper()
	repo := newTestRepo()
	petDir := testPets{
		"p-rex": {ID: "p-rex", OwnerID: "o-a", Name: "Rex"},
		"p-tom": {ID: "p-tom", OwnerID: "o-b", Name: "Tom"},
	}
	catalog := testCatalog{
		"v-rabies": {ID: "v-rabies", Name: "Rabies", DoseIntervalDays: 365},
		"v-v10":    {ID: "v-v10", Name: "V10", DoseIntervalDays: 21},
	}
	svc := NewService(repo, petDir, catalog, testPeople{}, authz.NewPolicy(), nil)
	svc.now = func() time.Time { return today.Add(14 * time.Hour) }
	return svc, repo, catalog
}

func record(t *testing.T, svc *Service, petID, vaccineID string, applied time.Time, next *time.Time) Detail {
	t.Helper()
	d, err := svc.Record(context.Background(), staff, RecordInput{
		PetID:      petID,
		VaccineID:  vaccineID,
		AppliedOn:  applied,
		NextDoseOn: next,
		Batch:      "L-001",
	})
	require.NoError(t, err)
	return d
}

// -------------------------
// Tests
// -------------------------

func TestRecord_ComputesNextDoseOnce(t *testing.T) {
	svc, repo, catalog := newTestService(t)
	counter := &countingCounter{}
	svc.SetRecordedCounter(counter)

	applied := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	d := record(t, svc, "p-rex", "v-rabies", applied, nil)

	require.NotNil(t, d.NextDoseOn)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), *d.NextDoseOn)
	assert.Equal(t, "s-1", d.AdministeredBy)
	assert.Equal(t, "Dra. Carla", d.AdministeredByName)
	assert.Equal(t, "Rabies", d.VaccineName)
	assert.Equal(t, "Rex", d.PetName)
	assert.Equal(t, 1, counter.n)

	// cambiar el intervalo de la vacuna no toca registros existentes
	v := catalog["v-rabies"]
	v.DoseIntervalDays = 30
	catalog["v-rabies"] = v

	got, err := svc.Get(context.Background(), staff, d.ID)
	require.NoError(t, err)
	assert.Equal(t, *d.NextDoseOn, *got.NextDoseOn)
	assert.Equal(t, *d.NextDoseOn, *repo.byID[d.ID].NextDoseOn)
}

func TestRecord_ExplicitNextDose(t *testing.T) {
	svc, _, _ := newTestService(t)

	d := record(t, svc, "p-rex", "v-v10", *day(-2), day(5))
	assert.Equal(t, *day(5), *d.NextDoseOn)
	assert.Equal(t, StatusDueSoon, svc.Status(d.Record))

	_, err := svc.Record(context.Background(), staff, RecordInput{
		PetID: "p-rex", VaccineID: "v-v10", AppliedOn: today, NextDoseOn: day(-1), Batch: "L",
	})
	assert.True(t, errors.Is(err, ErrNextDoseBeforeDose))
}

func TestRecord_StaffOnly(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.Record(context.Background(), ownerA, RecordInput{
		PetID: "p-rex", VaccineID: "v-rabies", AdministeredBy: "s-1", AppliedOn: today, Batch: "L",
	})
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))
	assert.Empty(t, repo.byID)
}

func TestRecord_Validation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	base := RecordInput{PetID: "p-rex", VaccineID: "v-rabies", AppliedOn: today, Batch: "L-1"}

	in := base
	in.AppliedOn = *day(1)
	_, err := svc.Record(ctx, staff, in)
	assert.True(t, errors.Is(err, ErrFutureApplication))

	in = base
	in.AppliedOn = time.Time{}
	_, err = svc.Record(ctx, staff, in)
	assert.True(t, errors.Is(err, ErrAppliedOnRequired))

	in = base
	in.Batch = ""
	_, err = svc.Record(ctx, staff, in)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	for _, mut := range []func(*RecordInput){
		func(i *RecordInput) { i.PetID = "p-ghost" },
		func(i *RecordInput) { i.VaccineID = "v-ghost" },
		func(i *RecordInput) { i.AdministeredBy = "s-ghost" },
	} {
		in = base
		mut(&in)
		_, err = svc.Record(ctx, staff, in)
		assert.True(t, errors.Is(err, ErrInvalidReference), "got %v", err)
	}

	// staff sin perfil y sin administered_by explícito
	_, err = svc.Record(ctx, authz.Caller{UserID: "u-s2", IsStaff: true}, base)
	assert.True(t, errors.Is(err, ErrInvalidReference))

	assert.Empty(t, repo.byID)
}

func TestListAndGet_OwnerScoped(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rex := record(t, svc, "p-rex", "v-rabies", *day(-10), nil)
	tom := record(t, svc, "p-tom", "v-v10", *day(-5), nil)

	all, err := svc.List(ctx, staff)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.List(ctx, ownerA)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, rex.ID, mine[0].ID)
	assert.Equal(t, "Ana", mine[0].OwnerName)

	_, err = svc.Get(ctx, ownerA, tom.ID)
	assert.True(t, errors.Is(err, authz.ErrNotOwner))

	_, err = svc.List(ctx, authz.Caller{UserID: "u-x"})
	assert.True(t, errors.Is(err, authz.ErrOwnerProfileNotFound))
}

func TestUpdateDelete_StaffOnly(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	d := record(t, svc, "p-rex", "v-rabies", *day(-10), nil)
	batch := "L-999"

	_, err := svc.Update(ctx, ownerA, d.ID, UpdateInput{Batch: &batch})
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))
	assert.True(t, errors.Is(svc.Delete(ctx, ownerA, d.ID), authz.ErrStaffOnly))

	got, err := svc.Update(ctx, staff, d.ID, UpdateInput{Batch: &batch, NextDoseOn: NextDosePatch{Present: true}})
	require.NoError(t, err)
	assert.Equal(t, "L-999", got.Batch)
	assert.Nil(t, got.NextDoseOn)
	assert.Equal(t, StatusUndefined, svc.Status(got.Record))

	future := *day(3)
	_, err = svc.Update(ctx, staff, d.ID, UpdateInput{AppliedOn: &future})
	assert.True(t, errors.Is(err, ErrFutureApplication))

	require.NoError(t, svc.Delete(ctx, staff, d.ID))
	assert.Empty(t, repo.byID)
	assert.True(t, errors.Is(svc.Delete(ctx, staff, d.ID), ErrRecordNotFound))
}

func TestPetSubViews(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	record(t, svc, "p-rex", "v-rabies", *day(-400), day(-35))
	record(t, svc, "p-rex", "v-v10", *day(-21), day(0))
	record(t, svc, "p-rex", "v-rabies", *day(-1), day(364))

	hist, err := svc.History(ctx, ownerA, "p-rex")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.True(t, hist[0].AppliedOn.After(hist[1].AppliedOn))

	up, err := svc.Upcoming(ctx, ownerA, "p-rex")
	require.NoError(t, err)
	require.Len(t, up, 2)
	assert.Equal(t, 364, up[0].DaysRemaining)
	assert.Equal(t, 0, up[1].DaysRemaining)

	over, err := svc.Overdue(ctx, staff, "p-rex")
	require.NoError(t, err)
	require.Len(t, over, 1)
	assert.Equal(t, 35, over[0].DaysOverdue)

	_, err = svc.Upcoming(ctx, ownerB, "p-rex")
	assert.True(t, errors.Is(err, authz.ErrNotOwner))

	_, err = svc.Overdue(ctx, ownerA, "p-ghost")
	assert.True(t, errors.Is(err, pets.ErrPetNotFound))
}

func TestDosesFor_MatchesSubViews(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	record(t, svc, "p-rex", "v-rabies", *day(-400), day(-35))
	record(t, svc, "p-rex", "v-v10", *day(-21), day(0))
	record(t, svc, "p-tom", "v-v10", *day(-2), day(19))

	d, err := svc.DosesFor(ctx, pets.Pet{ID: "p-rex", OwnerID: "o-a"})
	require.NoError(t, err)
	require.Len(t, d.Upcoming, 1)
	assert.Equal(t, "V10", d.Upcoming[0].VaccineName)
	assert.Equal(t, 0, d.Upcoming[0].Days)
	require.Len(t, d.Overdue, 1)
	assert.Equal(t, "Rabies", d.Overdue[0].VaccineName)
	assert.Equal(t, 35, d.Overdue[0].Days)

	empty, err := svc.DosesFor(ctx, pets.Pet{ID: "p-none"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Upcoming)
	assert.Empty(t, empty.Upcoming)
	assert.Empty(t, empty.Overdue)
}

func TestSystemReports(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	record(t, svc, "p-rex", "v-v10", *day(-20), day(6))
	record(t, svc, "p-tom", "v-v10", *day(-20), day(2))
	record(t, svc, "p-tom", "v-rabies", *day(-20), day(30))
	record(t, svc, "p-rex", "v-rabies", *day(-400), day(-10))
	record(t, svc, "p-tom", "v-rabies", *day(-400), day(-3))

	_, err := svc.SystemUpcoming(ctx, ownerA, 7)
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))
	_, err = svc.SystemOverdue(ctx, ownerA)
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))

	up, err := svc.SystemUpcoming(ctx, staff, 7)
	require.NoError(t, err)
	require.Len(t, up, 2)
	assert.Equal(t, "Tom", up[0].PetName)
	assert.Equal(t, "Bruno", up[0].OwnerName)
	assert.Equal(t, 2, up[0].Days)
	assert.Equal(t, "Rex", up[1].PetName)
	assert.Equal(t, 6, up[1].Days)

	up, err = svc.SystemUpcoming(ctx, staff, 30)
	require.NoError(t, err)
	assert.Len(t, up, 3)

	_, err = svc.SystemUpcoming(ctx, staff, -1)
	assert.True(t, errors.Is(err, ErrInvalidDays))

	over, err := svc.SystemOverdue(ctx, staff)
	require.NoError(t, err)
	require.Len(t, over, 2)
	assert.Equal(t, 10, over[0].Days)
	assert.Equal(t, "Rabies", over[0].VaccineName)
	assert.Equal(t, "Ana", over[0].OwnerName)
	assert.Equal(t, 3, over[1].Days)
}

func TestReportDays_DoesNotWidenDueSoon(t *testing.T) {
	svc, _, _ := newTestService(t)

	d := record(t, svc, "p-rex", "v-v10", *day(-2), day(10))
	assert.Equal(t, StatusUpToDate, svc.Status(d.Record))

	svc.SetReportDays(30)
	assert.Equal(t, 30, svc.ReportDays())
	assert.Equal(t, StatusUpToDate, svc.Status(d.Record))

	svc.SetReportDays(0)
	assert.Equal(t, 30, svc.ReportDays())
}

func TestInUseChecks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	record(t, svc, "p-rex", "v-v10", *day(-20), nil)

	for _, tc := range []struct {
		fn   func(context.Context, string) (bool, error)
		id   string
		want bool
	}{
		{svc.PetHasRecords, "p-rex", true},
		{svc.PetHasRecords, "p-tom", false},
		{svc.VaccineHasRecords, "v-v10", true},
		{svc.VaccineHasRecords, "v-rabies", false},
		{svc.StaffHasRecords, "s-1", true},
		{svc.StaffHasRecords, "s-2", false},
	} {
		got, err := tc.fn(ctx, tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.id)
	}
}
