package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/ports/storage"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	users  map[string]User
	owners map[string]OwnerProfile
	staff  map[string]StaffProfile
}

func newTestRepo() *testRepo {
	return &testRepo{
		users:  map[string]User{},
		owners: map[string]OwnerProfile{},
		staff:  map[string]StaffProfile{},
	}
}

func (r *testRepo) CreateUser(_ context.Context, u User) error {
	for _, x := range r.users {
		if x.Username == u.Username {
			return storage.ErrDuplicate
		}
	}
	r.users[u.ID] = u
	return nil
}

func (r *testRepo) GetUserByID(_ context.Context, id string) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, storage.ErrNotFound
	}
	return u, nil
}

func (r *testRepo) GetUserByUsername(_ context.Context, username string) (User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, storage.ErrNotFound
}

func (r *testRepo) CreateFirstStaff(ctx context.Context, u User) (bool, error) {
	for _, x := range r.users {
		if x.IsStaff {
			return false, nil
		}
	}
	return true, r.CreateUser(ctx, u)
}

func (r *testRepo) ListUsers(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *testRepo) UpdateUser(_ context.Context, u User) error {
	if _, ok := r.users[u.ID]; !ok {
		return storage.ErrNotFound
	}
	for _, x := range r.users {
		if x.ID != u.ID && x.Username == u.Username {
			return storage.ErrDuplicate
		}
	}
	r.users[u.ID] = u
	return nil
}

func (r *testRepo) DeleteUser(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *testRepo) CreateOwner(_ context.Context, p OwnerProfile) error {
	for _, x := range r.owners {
		if x.NationalID == p.NationalID || x.UserID == p.UserID {
			return storage.ErrDuplicate
		}
	}
	r.owners[p.ID] = p
	return nil
}

func (r *testRepo) GetOwnerByID(_ context.Context, id string) (OwnerProfile, error) {
	p, ok := r.owners[id]
	if !ok {
		return OwnerProfile{}, storage.ErrNotFound
	}
	return p, nil
}

func (r *testRepo) GetOwnerByUserID(_ context.Context, userID string) (OwnerProfile, error) {
	for _, p := range r.owners {
		if p.UserID == userID {
			return p, nil
		}
	}
	return OwnerProfile{}, storage.ErrNotFound
}

func (r *testRepo) ListOwners(_ context.Context) ([]OwnerProfile, error) {
	out := make([]OwnerProfile, 0, len(r.owners))
	for _, p := range r.owners {
		out = append(out, p)
	}
	return out, nil
}

func (r *testRepo) UpdateOwner(_ context.Context, p OwnerProfile) error {
	if _, ok := r.owners[p.ID]; !ok {
		return storage.ErrNotFound
	}
	for _, x := range r.owners {
		if x.ID != p.ID && x.NationalID == p.NationalID {
			return storage.ErrDuplicate
		}
	}
	r.owners[p.ID] = p
	return nil
}

func (r *testRepo) DeleteOwner(_ context.Context, id string) error {
	if _, ok := r.owners[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.owners, id)
	return nil
}

func (r *testRepo) CreateStaff(_ context.Context, p StaffProfile) error {
	for _, x := range r.staff {
		if x.NationalID == p.NationalID || x.UserID == p.UserID {
			return storage.ErrDuplicate
		}
	}
	r.staff[p.ID] = p
	return nil
}

func (r *testRepo) GetStaffByID(_ context.Context, id string) (StaffProfile, error) {
	p, ok := r.staff[id]
	if !ok {
		return StaffProfile{}, storage.ErrNotFound
	}
	return p, nil
}

func (r *testRepo) GetStaffByUserID(_ context.Context, userID string) (StaffProfile, error) {
	for _, p := range r.staff {
		if p.UserID == userID {
			return p, nil
		}
	}
	return StaffProfile{}, storage.ErrNotFound
}

func (r *testRepo) ListStaff(_ context.Context) ([]StaffProfile, error) {
	out := make([]StaffProfile, 0, len(r.staff))
	for _, p := range r.staff {
		out = append(out, p)
	}
	return out, nil
}

func (r *testRepo) UpdateStaff(_ context.Context, p StaffProfile) error {
	if _, ok := r.staff[p.ID]; !ok {
		return storage.ErrNotFound
	}
	r.staff[p.ID] = p
	return nil
}

func (r *testRepo) DeleteStaff(_ context.Context, id string) error {
	if _, ok := r.staff[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.staff, id)
	return nil
}

// -------------------------
// Helpers
// -------------------------

func newTestService(t *testing.T) (*Service, *testRepo) {
	t.Helper()
	repo := newTestRepo()
	svc := NewService(repo, authz.NewPolicy(), nil)
	svc.bcryptCost = bcrypt.MinCost
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func signUp(t *testing.T, svc *Service, caller *authz.Caller, username string, staff bool) User {
	t.Helper()
	u, err := svc.SignUp(context.Background(), caller, SignUpInput{
		Username: username,
		Email:    username + "@clinic.test",
		Password: "s3cret-pass",
		IsStaff:  staff,
	})
	require.NoError(t, err)
	return u
}

func person(nid string) ProfileInput {
	return ProfileInput{Name: "Ana Souza", NationalID: nid, Address: "Rua A, 10", Phone: "5511999"}
}

// -------------------------
// Tests
// -------------------------

func TestSignUp_StaffBootstrapThenStaffOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// primer staff: permitido sin caller
	admin := signUp(t, svc, nil, "admin", true)
	assert.True(t, admin.IsStaff)
	assert.NotEqual(t, "s3cret-pass", admin.PasswordHash)

	// segundo staff anónimo: rechazado
	_, err := svc.SignUp(ctx, nil, SignUpInput{Username: "vet2", Email: "vet2@clinic.test", Password: "s3cret-pass", IsStaff: true})
	assert.True(t, errors.Is(err, ErrStaffSignupForbidden), "got %v", err)

	// creado por staff: ok
	staffCaller := authz.Caller{UserID: admin.ID, IsStaff: true}
	vet := signUp(t, svc, &staffCaller, "vet2", true)
	assert.True(t, vet.IsStaff)
}

func TestSignUp_DuplicateAndValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	signUp(t, svc, nil, "maria", false)

	_, err := svc.SignUp(ctx, nil, SignUpInput{Username: "maria", Email: "m2@clinic.test", Password: "s3cret-pass"})
	assert.True(t, errors.Is(err, ErrUsernameTaken))

	_, err = svc.SignUp(ctx, nil, SignUpInput{Username: "jo", Email: "not-an-email", Password: "short"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u := signUp(t, svc, nil, "maria", false)

	got, err := svc.Authenticate(ctx, "maria", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "maria", "wrong-pass")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = svc.Authenticate(ctx, "nobody", "s3cret-pass")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestResolveCaller_LoadsProfiles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u := signUp(t, svc, nil, "maria", false)

	c, err := svc.ResolveCaller(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "maria", c.Username)
	assert.Empty(t, c.OwnerProfileID)

	p, err := svc.CreateOwnerProfile(ctx, c, person("12345678901"))
	require.NoError(t, err)

	c, err = svc.ResolveCaller(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, c.OwnerProfileID)
	assert.False(t, c.IsStaff)

	_, err = svc.ResolveCaller(ctx, "ghost")
	assert.True(t, errors.Is(err, ErrUnknownCaller))
}

func TestCreateOwnerProfile_Rules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin := signUp(t, svc, nil, "admin", true)
	maria := signUp(t, svc, nil, "maria", false)
	joao := signUp(t, svc, nil, "joao", false)

	mariaC := authz.Caller{UserID: maria.ID}
	staffC := authz.Caller{UserID: admin.ID, IsStaff: true}

	// owner no crea perfil para otro usuario
	in := person("11111111111")
	in.UserID = joao.ID
	_, err := svc.CreateOwnerProfile(ctx, mariaC, in)
	assert.True(t, errors.Is(err, authz.ErrForbidden), "got %v", err)

	// staff sí
	_, err = svc.CreateOwnerProfile(ctx, staffC, in)
	require.NoError(t, err)

	// segundo perfil para el mismo usuario
	in2 := person("22222222222")
	in2.UserID = joao.ID
	_, err = svc.CreateOwnerProfile(ctx, staffC, in2)
	assert.True(t, errors.Is(err, ErrProfileExists))

	// national id repetido
	_, err = svc.CreateOwnerProfile(ctx, mariaC, person("11111111111"))
	assert.True(t, errors.Is(err, ErrNationalIDTaken))

	// usuario inexistente
	in3 := person("33333333333")
	in3.UserID = "ghost"
	_, err = svc.CreateOwnerProfile(ctx, staffC, in3)
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestOwnerProfile_ReadAndListAccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin := signUp(t, svc, nil, "admin", true)
	maria := signUp(t, svc, nil, "maria", false)
	joao := signUp(t, svc, nil, "joao", false)

	mp, err := svc.CreateOwnerProfile(ctx, authz.Caller{UserID: maria.ID}, person("11111111111"))
	require.NoError(t, err)

	_, err = svc.GetOwnerProfile(ctx, authz.Caller{UserID: maria.ID, OwnerProfileID: mp.ID}, mp.ID)
	assert.NoError(t, err)

	_, err = svc.GetOwnerProfile(ctx, authz.Caller{UserID: joao.ID}, mp.ID)
	assert.Error(t, err)
	assert.Equal(t, apperror.KindPermissionDenied, apperror.KindOf(err))

	_, err = svc.ListOwnerProfiles(ctx, authz.Caller{UserID: maria.ID, OwnerProfileID: mp.ID})
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))

	items, err := svc.ListOwnerProfiles(ctx, authz.Caller{UserID: admin.ID, IsStaff: true})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCreateStaffProfile_RequiresStaffUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin := signUp(t, svc, nil, "admin", true)
	maria := signUp(t, svc, nil, "maria", false)
	staffC := authz.Caller{UserID: admin.ID, IsStaff: true}

	in := StaffProfileInput{ProfileInput: person("99999999999"), JobTitle: "Veterinarian"}
	in.UserID = maria.ID
	_, err := svc.CreateStaffProfile(ctx, staffC, in)
	assert.True(t, errors.Is(err, ErrUserNotStaff))

	in.UserID = ""
	sp, err := svc.CreateStaffProfile(ctx, staffC, in)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, sp.UserID)
	assert.Equal(t, "Veterinarian", sp.JobTitle)

	_, err = svc.CreateStaffProfile(ctx, authz.Caller{UserID: maria.ID}, in)
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))
}

func TestDeleteProfiles_ProtectedWhileReferenced(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	admin := signUp(t, svc, nil, "admin", true)
	maria := signUp(t, svc, nil, "maria", false)
	staffC := authz.Caller{UserID: admin.ID, IsStaff: true}

	op, err := svc.CreateOwnerProfile(ctx, authz.Caller{UserID: maria.ID}, person("11111111111"))
	require.NoError(t, err)
	sp, err := svc.CreateStaffProfile(ctx, staffC, StaffProfileInput{ProfileInput: person("22222222222"), JobTitle: "Vet"})
	require.NoError(t, err)

	referenced := true
	inUse := func(context.Context, string) (bool, error) { return referenced, nil }
	svc.SetInUseChecks(inUse, inUse)

	assert.True(t, errors.Is(svc.DeleteOwnerProfile(ctx, staffC, op.ID), ErrProtected))
	assert.True(t, errors.Is(svc.DeleteStaffProfile(ctx, staffC, sp.ID), ErrProtected))
	assert.Len(t, repo.owners, 1)

	referenced = false
	require.NoError(t, svc.DeleteOwnerProfile(ctx, staffC, op.ID))
	require.NoError(t, svc.DeleteStaffProfile(ctx, staffC, sp.ID))

	assert.True(t, errors.Is(svc.DeleteOwnerProfile(ctx, staffC, op.ID), ErrOwnerNotFound))
}

type invalidValueRepo struct {
	*testRepo
}

func (r invalidValueRepo) CreateUser(context.Context, User) error {
	return fmt.Errorf("%w: value too long for type character varying(150)", storage.ErrInvalid)
}

type staffExistsRepo struct {
	*testRepo
}

// simula que otro sign-up ganó la carrera entre validación e insert
func (r staffExistsRepo) CreateFirstStaff(context.Context, User) (bool, error) {
	return false, nil
}

func TestSignUp_PasswordLimits(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, nil, SignUpInput{Username: "maria", Email: "m@clinic.test", Password: strings.Repeat("a", 80)})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	// 40 runas, 80 bytes: pasa el tag pero no bcrypt
	_, err = svc.SignUp(ctx, nil, SignUpInput{Username: "maria", Email: "m@clinic.test", Password: strings.Repeat("é", 40)})
	assert.True(t, errors.Is(err, ErrPasswordTooLong), "got %v", err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Empty(t, repo.users)
}

func TestSignUp_StorageRejectsValue(t *testing.T) {
	svc, repo := newTestService(t)
	svc.repo = invalidValueRepo{repo}

	_, err := svc.SignUp(context.Background(), nil, SignUpInput{Username: "maria", Email: "m@clinic.test", Password: "s3cret-pass"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestSignUp_StaffBootstrapIsDecidedByStorage(t *testing.T) {
	svc, repo := newTestService(t)
	svc.repo = staffExistsRepo{repo}

	_, err := svc.SignUp(context.Background(), nil, SignUpInput{Username: "admin", Email: "a@clinic.test", Password: "s3cret-pass", IsStaff: true})
	assert.True(t, errors.Is(err, ErrStaffSignupForbidden), "got %v", err)
	assert.Empty(t, repo.users)
}

func TestUsers_ReadUpdateDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin := signUp(t, svc, nil, "admin", true)
	maria := signUp(t, svc, nil, "maria", false)
	joao := signUp(t, svc, nil, "joao", false)
	staffC := authz.Caller{UserID: admin.ID, IsStaff: true}
	mariaC := authz.Caller{UserID: maria.ID}

	_, err := svc.ListUsers(ctx, mariaC)
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))
	users, err := svc.ListUsers(ctx, staffC)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	got, err := svc.GetUser(ctx, mariaC, maria.ID)
	require.NoError(t, err)
	assert.Equal(t, "maria", got.Username)
	_, err = svc.GetUser(ctx, mariaC, joao.ID)
	assert.True(t, errors.Is(err, authz.ErrForbidden), "got %v", err)

	email, pw := "maria@home.test", "otra-clave-123"
	updated, err := svc.UpdateUser(ctx, mariaC, maria.ID, UserPatch{Email: &email, Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
	_, err = svc.Authenticate(ctx, "maria", pw)
	assert.NoError(t, err)

	promote := true
	_, err = svc.UpdateUser(ctx, mariaC, maria.ID, UserPatch{IsStaff: &promote})
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))

	taken := "joao"
	_, err = svc.UpdateUser(ctx, mariaC, maria.ID, UserPatch{Username: &taken})
	assert.True(t, errors.Is(err, ErrUsernameTaken))

	// con perfil no se borra
	_, err = svc.CreateOwnerProfile(ctx, mariaC, person("11111111111"))
	require.NoError(t, err)
	assert.True(t, errors.Is(svc.DeleteUser(ctx, staffC, maria.ID), ErrUserHasProfiles))
	assert.True(t, errors.Is(svc.DeleteUser(ctx, mariaC, joao.ID), authz.ErrStaffOnly))

	require.NoError(t, svc.DeleteUser(ctx, staffC, joao.ID))
	_, err = svc.RefreshUser(ctx, joao.ID)
	assert.True(t, errors.Is(err, ErrInvalidRefreshToken))
	_, err = svc.RefreshUser(ctx, maria.ID)
	assert.NoError(t, err)
}

func TestUpdateProfiles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin := signUp(t, svc, nil, "admin", true)
	maria := signUp(t, svc, nil, "maria", false)
	joao := signUp(t, svc, nil, "joao", false)
	staffC := authz.Caller{UserID: admin.ID, IsStaff: true}

	mp, err := svc.CreateOwnerProfile(ctx, authz.Caller{UserID: maria.ID}, person("11111111111"))
	require.NoError(t, err)
	jp, err := svc.CreateOwnerProfile(ctx, authz.Caller{UserID: joao.ID}, person("22222222222"))
	require.NoError(t, err)
	mariaC := authz.Caller{UserID: maria.ID, OwnerProfileID: mp.ID}

	addr := "  Rua B, 20 "
	got, err := svc.UpdateOwnerProfile(ctx, mariaC, mp.ID, ProfilePatch{Address: &addr})
	require.NoError(t, err)
	assert.Equal(t, "Rua B, 20", got.Address)
	assert.Equal(t, mp.Name, got.Name)
	assert.Equal(t, mp.UserID, got.UserID)

	_, err = svc.UpdateOwnerProfile(ctx, mariaC, jp.ID, ProfilePatch{Address: &addr})
	assert.True(t, errors.Is(err, authz.ErrNotOwner), "got %v", err)

	nid := "22222222222"
	_, err = svc.UpdateOwnerProfile(ctx, mariaC, mp.ID, ProfilePatch{NationalID: &nid})
	assert.True(t, errors.Is(err, ErrNationalIDTaken))

	long := strings.Repeat("x", 151)
	_, err = svc.UpdateOwnerProfile(ctx, staffC, mp.ID, ProfilePatch{Name: &long})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	sp, err := svc.CreateStaffProfile(ctx, staffC, StaffProfileInput{ProfileInput: person("33333333333"), JobTitle: "Vet"})
	require.NoError(t, err)

	title := "Chief Veterinarian"
	gotStaff, err := svc.UpdateStaffProfile(ctx, staffC, sp.ID, StaffProfilePatch{JobTitle: &title})
	require.NoError(t, err)
	assert.Equal(t, title, gotStaff.JobTitle)
	assert.Equal(t, sp.NationalID, gotStaff.NationalID)

	_, err = svc.UpdateStaffProfile(ctx, mariaC, sp.ID, StaffProfilePatch{JobTitle: &title})
	assert.True(t, errors.Is(err, authz.ErrStaffOnly))
}
