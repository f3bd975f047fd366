package vaccines

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/platform/logger"
	"pet-vaccination-clinic/internal/platform/validation"
	"pet-vaccination-clinic/internal/ports/storage"
)

var (
	ErrVaccineNotFound = apperror.NotFound("vaccine_not_found", "vaccine not found")
	ErrInvalidPrice    = apperror.Validation("invalid_price", "price must be between 0.01 and 999999.99 with at most 2 decimals")
	ErrInvalidInterval = apperror.Validation("invalid_dose_interval", "dose_interval_days must be greater than zero")
	ErrProtected       = apperror.Conflict("protected_reference", "vaccine has vaccination records and cannot be deleted")
)

// InUseFunc informa si la vacuna ya fue aplicada alguna vez.
type InUseFunc func(ctx context.Context, vaccineID string) (bool, error)

type Service struct {
	repo   Repository
	policy *authz.Policy
	valid  *validation.Validator
	log    logger.Logger
	now    func() time.Time

	inUse InUseFunc
}

func NewService(repo Repository, policy *authz.Policy, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:   repo,
		policy: policy,
		valid:  validation.New(),
		log:    log.With(map[string]any{"component": "vaccines"}),
		now:    time.Now,
	}
}

func (s *Service) SetInUseCheck(fn InUseFunc) {
	s.inUse = fn
}

type CreateInput struct {
	Name             string  `json:"name" validate:"required,max=100"`
	Manufacturer     string  `json:"manufacturer" validate:"required,max=100"`
	Price            float64 `json:"price"`
	DoseIntervalDays int     `json:"dose_interval_days"`
	Description      string  `json:"description" validate:"required"`
}

// Create es solo para staff.
func (s *Service) Create(ctx context.Context, c authz.Caller, in CreateInput) (Vaccine, error) {
	if err := s.policy.Authorize(c, authz.ResourceVaccine, authz.ActionCreate, authz.Ownership{}); err != nil {
		return Vaccine{}, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Manufacturer = strings.TrimSpace(in.Manufacturer)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validate(in); err != nil {
		return Vaccine{}, err
	}

	now := s.now()
	v := Vaccine{
		ID:               uuid.NewString(),
		Name:             in.Name,
		Manufacturer:     in.Manufacturer,
		Price:            in.Price,
		DoseIntervalDays: in.DoseIntervalDays,
		Description:      in.Description,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return Vaccine{}, validation.FromStorage(err)
	}

	s.log.Info("vaccine created", map[string]any{"vaccine_id": v.ID, "name": v.Name, "by": c.UserID})
	return v, nil
}

// List y Get están abiertos a cualquier usuario autenticado.
func (s *Service) List(ctx context.Context, c authz.Caller) ([]Vaccine, error) {
	if err := s.policy.Authorize(c, authz.ResourceVaccine, authz.ActionList, authz.Ownership{}); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, c authz.Caller, id string) (Vaccine, error) {
	if err := s.policy.Authorize(c, authz.ResourceVaccine, authz.ActionRead, authz.Ownership{}); err != nil {
		return Vaccine{}, err
	}
	return s.Lookup(ctx, id)
}

type UpdateInput struct {
	Name             *string
	Manufacturer     *string
	Price            *float64
	DoseIntervalDays *int
	Description      *string
}

// Update no recalcula next_dose de registros existentes: ese valor quedó fijo al crearlos.
func (s *Service) Update(ctx context.Context, c authz.Caller, id string, in UpdateInput) (Vaccine, error) {
	if err := s.policy.Authorize(c, authz.ResourceVaccine, authz.ActionUpdate, authz.Ownership{}); err != nil {
		return Vaccine{}, err
	}
	v, err := s.Lookup(ctx, id)
	if err != nil {
		return Vaccine{}, err
	}

	if in.Name != nil {
		v.Name = strings.TrimSpace(*in.Name)
	}
	if in.Manufacturer != nil {
		v.Manufacturer = strings.TrimSpace(*in.Manufacturer)
	}
	if in.Price != nil {
		v.Price = *in.Price
	}
	if in.DoseIntervalDays != nil {
		v.DoseIntervalDays = *in.DoseIntervalDays
	}
	if in.Description != nil {
		v.Description = strings.TrimSpace(*in.Description)
	}

	if err := s.validate(CreateInput{
		Name:             v.Name,
		Manufacturer:     v.Manufacturer,
		Price:            v.Price,
		DoseIntervalDays: v.DoseIntervalDays,
		Description:      v.Description,
	}); err != nil {
		return Vaccine{}, err
	}

	v.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, v); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Vaccine{}, ErrVaccineNotFound
		}
		return Vaccine{}, validation.FromStorage(err)
	}

	s.log.Info("vaccine updated", map[string]any{"vaccine_id": v.ID, "by": c.UserID})
	return v, nil
}

func (s *Service) Delete(ctx context.Context, c authz.Caller, id string) error {
	if err := s.policy.Authorize(c, authz.ResourceVaccine, authz.ActionDelete, authz.Ownership{}); err != nil {
		return err
	}
	v, err := s.Lookup(ctx, id)
	if err != nil {
		return err
	}

	if s.inUse != nil {
		used, err := s.inUse(ctx, v.ID)
		if err != nil {
			return err
		}
		if used {
			return ErrProtected
		}
	}

	if err := s.repo.Delete(ctx, v.ID); err != nil {
		switch {
		case errors.Is(err, storage.ErrReferenced):
			return ErrProtected
		case errors.Is(err, storage.ErrNotFound):
			return ErrVaccineNotFound
		default:
			return err
		}
	}

	s.log.Info("vaccine deleted", map[string]any{"vaccine_id": v.ID, "by": c.UserID})
	return nil
}

// Lookup busca sin autorizar (uso interno de vaccinations).
func (s *Service) Lookup(ctx context.Context, id string) (Vaccine, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Vaccine{}, ErrVaccineNotFound
	}
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Vaccine{}, ErrVaccineNotFound.WithMessage("vaccine %s not found", id)
		}
		return Vaccine{}, err
	}
	return v, nil
}

func (s *Service) validate(in CreateInput) error {
	if in.Price < MinPrice || in.Price > MaxPrice || !validation.MaxDecimals(in.Price, 2) {
		return ErrInvalidPrice
	}
	if in.DoseIntervalDays <= 0 {
		return ErrInvalidInterval
	}
	return s.valid.Struct(in)
}
