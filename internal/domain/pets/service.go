package pets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/domain/identity"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/platform/dates"
	"pet-vaccination-clinic/internal/platform/logger"
	"pet-vaccination-clinic/internal/platform/validation"
	"pet-vaccination-clinic/internal/ports/storage"
)

var (
	ErrPetNotFound      = apperror.NotFound("pet_not_found", "pet not found")
	ErrInvalidWeight    = apperror.Validation("invalid_weight", "weight must be between 0.01 and 999.99 with at most 2 decimals")
	ErrFutureBirthDate  = apperror.Validation("future_birth_date", "birth_date cannot be in the future")
	ErrProtected        = apperror.Conflict("protected_reference", "pet has vaccination records and cannot be deleted")
	ErrOwnerRequired    = apperror.Validation("owner_required", "owner_id is required")
	ErrOwnerDoesntExist = apperror.NotFound("owner_not_found", "owner profile not found")
)

// OwnerDirectory resuelve perfiles de dueño (implementado por identity.Service).
type OwnerDirectory interface {
	OwnerByID(ctx context.Context, id string) (identity.OwnerProfile, error)
}

// InUseFunc informa si la mascota tiene registros de vacunación.
type InUseFunc func(ctx context.Context, petID string) (bool, error)

type Service struct {
	repo   Repository
	owners OwnerDirectory
	policy *authz.Policy
	valid  *validation.Validator
	log    logger.Logger
	now    func() time.Time

	inUse InUseFunc
	doses DoseReader
}

func NewService(repo Repository, owners OwnerDirectory, policy *authz.Policy, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:   repo,
		owners: owners,
		policy: policy,
		valid:  validation.New(),
		log:    log.With(map[string]any{"component": "pets"}),
		now:    time.Now,
	}
}

func (s *Service) SetInUseCheck(fn InUseFunc) {
	s.inUse = fn
}

// Today es la fecha civil actual según el reloj del service.
func (s *Service) Today() time.Time {
	return dates.Day(s.now())
}

type CreateInput struct {
	OwnerID   string
	Name      string `validate:"required,max=100"`
	Species   string `validate:"required,max=100"`
	Breed     string `validate:"required,max=100"`
	Weight    float64
	BirthDate *time.Time
}

// Create: un owner solo crea mascotas para sí mismo; OwnerID vacío = perfil del caller.
// Staff puede indicar cualquier OwnerProfile existente.
func (s *Service) Create(ctx context.Context, c authz.Caller, in CreateInput) (Pet, error) {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Name = strings.TrimSpace(in.Name)
	in.Species = strings.TrimSpace(in.Species)
	in.Breed = strings.TrimSpace(in.Breed)

	if in.OwnerID == "" {
		if c.OwnerProfileID == "" {
			if c.IsStaff {
				return Pet{}, ErrOwnerRequired
			}
			return Pet{}, authz.ErrOwnerProfileNotFound
		}
		in.OwnerID = c.OwnerProfileID
	}

	if err := s.policy.Authorize(c, authz.ResourcePet, authz.ActionCreate, authz.Ownership{OwnerProfileID: in.OwnerID}); err != nil {
		return Pet{}, err
	}
	if err := s.validate(in.Weight, in.BirthDate); err != nil {
		return Pet{}, err
	}
	if err := s.valid.Struct(in); err != nil {
		return Pet{}, err
	}

	if _, err := s.owners.OwnerByID(ctx, in.OwnerID); err != nil {
		return Pet{}, err
	}

	now := s.now()
	p := Pet{
		ID:        uuid.NewString(),
		OwnerID:   in.OwnerID,
		Name:      in.Name,
		Species:   in.Species,
		Breed:     in.Breed,
		Weight:    in.Weight,
		BirthDate: dayPtr(in.BirthDate),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, storage.ErrReferenced) {
			return Pet{}, ErrOwnerDoesntExist
		}
		return Pet{}, validation.FromStorage(err)
	}

	s.log.Info("pet created", map[string]any{"pet_id": p.ID, "owner_id": p.OwnerID, "by": c.UserID})
	return p, nil
}

// List: staff ve todas; un owner solo las de su perfil.
func (s *Service) List(ctx context.Context, c authz.Caller) ([]Pet, error) {
	all, ownerID, err := s.policy.ListScope(c, authz.ResourcePet)
	if err != nil {
		return nil, err
	}
	if all {
		return s.repo.List(ctx)
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *Service) Get(ctx context.Context, c authz.Caller, id string) (Pet, error) {
	p, err := s.Lookup(ctx, id)
	if err != nil {
		return Pet{}, err
	}
	if err := s.authorize(c, authz.ActionRead, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

// BirthDatePatch distingue "no enviado" de "enviado null" en un PATCH.
type BirthDatePatch struct {
	Present bool
	Value   *time.Time
}

// UpdateInput usa punteros: nil = no tocar.
type UpdateInput struct {
	Name      *string
	Species   *string
	Breed     *string
	Weight    *float64
	BirthDate BirthDatePatch
}

func (s *Service) Update(ctx context.Context, c authz.Caller, id string, in UpdateInput) (Pet, error) {
	p, err := s.Lookup(ctx, id)
	if err != nil {
		return Pet{}, err
	}
	if err := s.authorize(c, authz.ActionUpdate, p); err != nil {
		return Pet{}, err
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Species != nil {
		p.Species = strings.TrimSpace(*in.Species)
	}
	if in.Breed != nil {
		p.Breed = strings.TrimSpace(*in.Breed)
	}
	if in.Weight != nil {
		p.Weight = *in.Weight
	}
	if in.BirthDate.Present {
		p.BirthDate = dayPtr(in.BirthDate.Value)
	}

	if err := s.validate(p.Weight, p.BirthDate); err != nil {
		return Pet{}, err
	}
	if err := s.valid.Struct(CreateInput{Name: p.Name, Species: p.Species, Breed: p.Breed}); err != nil {
		return Pet{}, err
	}

	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Pet{}, ErrPetNotFound
		}
		return Pet{}, validation.FromStorage(err)
	}

	s.log.Info("pet updated", map[string]any{"pet_id": p.ID, "by": c.UserID})
	return p, nil
}

// Delete queda bloqueado mientras existan registros de vacunación de la mascota.
func (s *Service) Delete(ctx context.Context, c authz.Caller, id string) error {
	p, err := s.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(c, authz.ActionDelete, p); err != nil {
		return err
	}

	if s.inUse != nil {
		used, err := s.inUse(ctx, p.ID)
		if err != nil {
			return err
		}
		if used {
			return ErrProtected
		}
	}

	if err := s.repo.Delete(ctx, p.ID); err != nil {
		switch {
		case errors.Is(err, storage.ErrReferenced):
			return ErrProtected
		case errors.Is(err, storage.ErrNotFound):
			return ErrPetNotFound
		default:
			return err
		}
	}

	s.log.Info("pet deleted", map[string]any{"pet_id": p.ID, "by": c.UserID})
	return nil
}

// Lookup busca sin autorizar (uso interno entre módulos).
func (s *Service) Lookup(ctx context.Context, id string) (Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Pet{}, ErrPetNotFound
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Pet{}, ErrPetNotFound.WithMessage("pet %s not found", id)
		}
		return Pet{}, err
	}
	return p, nil
}

func (s *Service) authorize(c authz.Caller, act authz.Action, p Pet) error {
	return s.policy.Authorize(c, authz.ResourcePet, act, authz.Ownership{OwnerProfileID: p.OwnerID})
}

func (s *Service) validate(weight float64, birth *time.Time) error {
	if weight < MinWeight || weight > MaxWeight || !validation.MaxDecimals(weight, 2) {
		return ErrInvalidWeight
	}
	if birth != nil && dates.Day(*birth).After(s.Today()) {
		return ErrFutureBirthDate
	}
	return nil
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := dates.Day(*t)
	return &d
}
