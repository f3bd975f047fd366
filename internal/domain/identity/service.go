package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/platform/logger"
	"pet-vaccination-clinic/internal/platform/validation"
	"pet-vaccination-clinic/internal/ports/storage"
)

var (
	ErrUserNotFound         = apperror.NotFound("user_not_found", "user not found")
	ErrOwnerNotFound        = apperror.NotFound("owner_not_found", "owner profile not found")
	ErrStaffNotFound        = apperror.NotFound("staff_not_found", "staff profile not found")
	ErrUsernameTaken        = apperror.Conflict("username_taken", "username already in use")
	ErrProfileExists        = apperror.Conflict("profile_exists", "user already has a profile of this kind")
	ErrNationalIDTaken      = apperror.Conflict("national_id_taken", "national id already registered")
	ErrProtected            = apperror.Conflict("protected_reference", "profile is still referenced and cannot be deleted")
	ErrInvalidCredentials   = apperror.Unauthorized("invalid_credentials", "invalid username or password")
	ErrUnknownCaller        = apperror.Unauthorized("unknown_user", "authenticated user does not exist")
	ErrStaffSignupForbidden = apperror.PermissionDenied("staff_only", "only staff members can create staff users")
	ErrUserNotStaff         = apperror.Validation("user_not_staff", "staff profiles can only be created for staff users")
)

type Service struct {
	repo   Repository
	policy *authz.Policy
	valid  *validation.Validator
	log    logger.Logger
	now    func() time.Time

	bcryptCost int
	ownerInUse InUseFunc
	staffInUse InUseFunc
}

func NewService(repo Repository, policy *authz.Policy, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:       repo,
		policy:     policy,
		valid:      validation.New(),
		log:        log.With(map[string]any{"component": "identity"}),
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// SetInUseChecks conecta las verificaciones de integridad referencial para deletes.
func (s *Service) SetInUseChecks(owner, staff InUseFunc) {
	s.ownerInUse = owner
	s.staffInUse = staff
}

type SignUpInput struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	IsStaff  bool   `json:"is_staff"`
}

// SignUp crea un usuario. caller puede ser nil (registro anónimo).
// Usuarios staff solo los crea otro staff, salvo el primero (bootstrap de la clínica).
func (s *Service) SignUp(ctx context.Context, caller *authz.Caller, in SignUpInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.valid.Struct(in); err != nil {
		return User{}, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	now := s.now()
	u := User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsStaff:      in.IsStaff,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// sin caller staff, un usuario staff solo entra si es el primero (bootstrap)
	if in.IsStaff && (caller == nil || !caller.IsStaff) {
		created, err := s.repo.CreateFirstStaff(ctx, u)
		if err != nil {
			return User{}, mapUserErr(err)
		}
		if !created {
			s.log.Warn("staff sign-up rejected", map[string]any{"username": in.Username})
			return User{}, ErrStaffSignupForbidden
		}
	} else if err := s.repo.CreateUser(ctx, u); err != nil {
		return User{}, mapUserErr(err)
	}

	s.log.Info("user created", map[string]any{"user_id": u.ID, "is_staff": u.IsStaff})
	return u, nil
}

// Authenticate valida credenciales. No distingue usuario inexistente de password incorrecta.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("login failed", map[string]any{"username": u.Username})
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// ResolveCaller arma el authz.Caller a partir del userID autenticado.
func (s *Service) ResolveCaller(ctx context.Context, userID string) (authz.Caller, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return authz.Caller{}, authz.ErrUnauthenticatedCaller
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return authz.Caller{}, ErrUnknownCaller
		}
		return authz.Caller{}, err
	}

	c := authz.Caller{UserID: u.ID, Username: u.Username, IsStaff: u.IsStaff}

	if op, err := s.repo.GetOwnerByUserID(ctx, u.ID); err == nil {
		c.OwnerProfileID = op.ID
	} else if !errors.Is(err, storage.ErrNotFound) {
		return authz.Caller{}, err
	}

	if sp, err := s.repo.GetStaffByUserID(ctx, u.ID); err == nil {
		c.StaffProfileID = sp.ID
	} else if !errors.Is(err, storage.ErrNotFound) {
		return authz.Caller{}, err
	}

	return c, nil
}

type ProfileInput struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name" validate:"required,max=150"`
	NationalID string `json:"national_id" validate:"required,max=11,numeric"`
	Address    string `json:"address" validate:"required,max=255"`
	Phone      string `json:"phone" validate:"required,max=15"`
}

type StaffProfileInput struct {
	ProfileInput
	JobTitle string `json:"job_title" validate:"required,max=100"`
}

// CreateOwnerProfile: un usuario crea su propio perfil; staff puede crearlo para cualquiera.
// UserID vacío = el propio caller.
func (s *Service) CreateOwnerProfile(ctx context.Context, c authz.Caller, in ProfileInput) (OwnerProfile, error) {
	in = trimProfile(in)
	if in.UserID == "" {
		in.UserID = c.UserID
	}
	if err := s.policy.Authorize(c, authz.ResourceOwnerProfile, authz.ActionCreate, authz.Ownership{UserID: in.UserID}); err != nil {
		return OwnerProfile{}, err
	}
	if err := s.valid.Struct(in); err != nil {
		return OwnerProfile{}, err
	}
	if _, err := s.getUser(ctx, in.UserID); err != nil {
		return OwnerProfile{}, err
	}

	now := s.now()
	p := OwnerProfile{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Person:    in.person(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.repo.GetOwnerByUserID(ctx, in.UserID); err == nil {
		return OwnerProfile{}, ErrProfileExists
	}
	if err := s.repo.CreateOwner(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return OwnerProfile{}, ErrNationalIDTaken
		}
		return OwnerProfile{}, validation.FromStorage(err)
	}

	s.log.Info("owner profile created", map[string]any{"owner_id": p.ID, "user_id": p.UserID, "by": c.UserID})
	return p, nil
}

func (s *Service) GetOwnerProfile(ctx context.Context, c authz.Caller, id string) (OwnerProfile, error) {
	p, err := s.OwnerByID(ctx, id)
	if err != nil {
		return OwnerProfile{}, err
	}
	own := authz.Ownership{OwnerProfileID: p.ID, UserID: p.UserID}
	if err := s.policy.Authorize(c, authz.ResourceOwnerProfile, authz.ActionRead, own); err != nil {
		return OwnerProfile{}, err
	}
	return p, nil
}

func (s *Service) ListOwnerProfiles(ctx context.Context, c authz.Caller) ([]OwnerProfile, error) {
	if err := s.policy.Authorize(c, authz.ResourceOwnerProfile, authz.ActionList, authz.Ownership{}); err != nil {
		return nil, err
	}
	return s.repo.ListOwners(ctx)
}

// ProfilePatch: campos nil quedan como están. user_id no se puede cambiar.
type ProfilePatch struct {
	Name       *string `json:"name"`
	NationalID *string `json:"national_id"`
	Address    *string `json:"address"`
	Phone      *string `json:"phone"`
}

type StaffProfilePatch struct {
	ProfilePatch
	JobTitle *string `json:"job_title"`
}

// UpdateOwnerProfile: el dueño edita su perfil; staff edita cualquiera.
func (s *Service) UpdateOwnerProfile(ctx context.Context, c authz.Caller, id string, in ProfilePatch) (OwnerProfile, error) {
	p, err := s.OwnerByID(ctx, id)
	if err != nil {
		return OwnerProfile{}, err
	}
	own := authz.Ownership{OwnerProfileID: p.ID, UserID: p.UserID}
	if err := s.policy.Authorize(c, authz.ResourceOwnerProfile, authz.ActionUpdate, own); err != nil {
		return OwnerProfile{}, err
	}

	p.Person = in.apply(p.Person)
	if err := s.valid.Struct(profileInput(p.UserID, p.Person)); err != nil {
		return OwnerProfile{}, err
	}

	p.UpdatedAt = s.now()
	if err := s.repo.UpdateOwner(ctx, p); err != nil {
		return OwnerProfile{}, mapProfileErr(err, ErrOwnerNotFound)
	}
	s.log.Info("owner profile updated", map[string]any{"owner_id": p.ID, "by": c.UserID})
	return p, nil
}

func (s *Service) DeleteOwnerProfile(ctx context.Context, c authz.Caller, id string) error {
	if err := s.policy.Authorize(c, authz.ResourceOwnerProfile, authz.ActionDelete, authz.Ownership{}); err != nil {
		return err
	}
	p, err := s.OwnerByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard(ctx, s.ownerInUse, p.ID); err != nil {
		return err
	}
	if err := s.repo.DeleteOwner(ctx, p.ID); err != nil {
		return s.mapDeleteErr(err, ErrOwnerNotFound)
	}
	s.log.Info("owner profile deleted", map[string]any{"owner_id": p.ID, "by": c.UserID})
	return nil
}

// CreateStaffProfile es solo para staff y el usuario destino debe ser staff.
func (s *Service) CreateStaffProfile(ctx context.Context, c authz.Caller, in StaffProfileInput) (StaffProfile, error) {
	in.ProfileInput = trimProfile(in.ProfileInput)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	if in.UserID == "" {
		in.UserID = c.UserID
	}
	if err := s.policy.Authorize(c, authz.ResourceStaffProfile, authz.ActionCreate, authz.Ownership{UserID: in.UserID}); err != nil {
		return StaffProfile{}, err
	}
	if err := s.valid.Struct(in); err != nil {
		return StaffProfile{}, err
	}
	u, err := s.getUser(ctx, in.UserID)
	if err != nil {
		return StaffProfile{}, err
	}
	if !u.IsStaff {
		return StaffProfile{}, ErrUserNotStaff
	}

	now := s.now()
	p := StaffProfile{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Person:    in.person(),
		JobTitle:  in.JobTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.repo.GetStaffByUserID(ctx, in.UserID); err == nil {
		return StaffProfile{}, ErrProfileExists
	}
	if err := s.repo.CreateStaff(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return StaffProfile{}, ErrNationalIDTaken
		}
		return StaffProfile{}, validation.FromStorage(err)
	}

	s.log.Info("staff profile created", map[string]any{"staff_id": p.ID, "user_id": p.UserID, "by": c.UserID})
	return p, nil
}

func (s *Service) GetStaffProfile(ctx context.Context, c authz.Caller, id string) (StaffProfile, error) {
	if err := s.policy.Authorize(c, authz.ResourceStaffProfile, authz.ActionRead, authz.Ownership{}); err != nil {
		return StaffProfile{}, err
	}
	return s.StaffByID(ctx, id)
}

func (s *Service) ListStaffProfiles(ctx context.Context, c authz.Caller) ([]StaffProfile, error) {
	if err := s.policy.Authorize(c, authz.ResourceStaffProfile, authz.ActionList, authz.Ownership{}); err != nil {
		return nil, err
	}
	return s.repo.ListStaff(ctx)
}

func (s *Service) UpdateStaffProfile(ctx context.Context, c authz.Caller, id string, in StaffProfilePatch) (StaffProfile, error) {
	if err := s.policy.Authorize(c, authz.ResourceStaffProfile, authz.ActionUpdate, authz.Ownership{}); err != nil {
		return StaffProfile{}, err
	}
	p, err := s.StaffByID(ctx, id)
	if err != nil {
		return StaffProfile{}, err
	}

	p.Person = in.apply(p.Person)
	if in.JobTitle != nil {
		p.JobTitle = strings.TrimSpace(*in.JobTitle)
	}
	if err := s.valid.Struct(StaffProfileInput{ProfileInput: profileInput(p.UserID, p.Person), JobTitle: p.JobTitle}); err != nil {
		return StaffProfile{}, err
	}

	p.UpdatedAt = s.now()
	if err := s.repo.UpdateStaff(ctx, p); err != nil {
		return StaffProfile{}, mapProfileErr(err, ErrStaffNotFound)
	}
	s.log.Info("staff profile updated", map[string]any{"staff_id": p.ID, "by": c.UserID})
	return p, nil
}

func (s *Service) DeleteStaffProfile(ctx context.Context, c authz.Caller, id string) error {
	if err := s.policy.Authorize(c, authz.ResourceStaffProfile, authz.ActionDelete, authz.Ownership{}); err != nil {
		return err
	}
	p, err := s.StaffByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard(ctx, s.staffInUse, p.ID); err != nil {
		return err
	}
	if err := s.repo.DeleteStaff(ctx, p.ID); err != nil {
		return s.mapDeleteErr(err, ErrStaffNotFound)
	}
	s.log.Info("staff profile deleted", map[string]any{"staff_id": p.ID, "by": c.UserID})
	return nil
}

// OwnerByID es el lookup interno (sin authz) que usan pets y vaccinations.
func (s *Service) OwnerByID(ctx context.Context, id string) (OwnerProfile, error) {
	p, err := s.repo.GetOwnerByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return OwnerProfile{}, ErrOwnerNotFound.WithMessage("owner profile %s not found", id)
		}
		return OwnerProfile{}, err
	}
	return p, nil
}

// StaffByID es el lookup interno (sin authz) que usa vaccinations.
func (s *Service) StaffByID(ctx context.Context, id string) (StaffProfile, error) {
	p, err := s.repo.GetStaffByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return StaffProfile{}, ErrStaffNotFound.WithMessage("staff profile %s not found", id)
		}
		return StaffProfile{}, err
	}
	return p, nil
}

func (s *Service) getUser(ctx context.Context, id string) (User, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return User{}, ErrUserNotFound.WithMessage("user %s not found", id)
		}
		return User{}, err
	}
	return u, nil
}

func (s *Service) guard(ctx context.Context, inUse InUseFunc, id string) error {
	if inUse == nil {
		return nil
	}
	used, err := inUse(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrProtected
	}
	return nil
}

func (s *Service) mapDeleteErr(err error, notFound *apperror.Error) error {
	switch {
	case errors.Is(err, storage.ErrReferenced):
		return ErrProtected
	case errors.Is(err, storage.ErrNotFound):
		return notFound
	default:
		return err
	}
}

func trimProfile(in ProfileInput) ProfileInput {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Name = strings.TrimSpace(in.Name)
	in.NationalID = strings.TrimSpace(in.NationalID)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

func (in ProfileInput) person() Person {
	return Person{Name: in.Name, NationalID: in.NationalID, Address: in.Address, Phone: in.Phone}
}

func profileInput(userID string, p Person) ProfileInput {
	return ProfileInput{UserID: userID, Name: p.Name, NationalID: p.NationalID, Address: p.Address, Phone: p.Phone}
}

func (in ProfilePatch) apply(p Person) Person {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.NationalID != nil {
		p.NationalID = strings.TrimSpace(*in.NationalID)
	}
	if in.Address != nil {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if in.Phone != nil {
		p.Phone = strings.TrimSpace(*in.Phone)
	}
	return p
}

func mapProfileErr(err error, notFound *apperror.Error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return notFound
	case errors.Is(err, storage.ErrDuplicate):
		return ErrNationalIDTaken
	default:
		return validation.FromStorage(err)
	}
}
