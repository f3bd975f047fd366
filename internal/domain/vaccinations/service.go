package vaccinations

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/domain/identity"
	"pet-vaccination-clinic/internal/domain/pets"
	"pet-vaccination-clinic/internal/domain/vaccines"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/platform/dates"
	"pet-vaccination-clinic/internal/platform/logger"
	"pet-vaccination-clinic/internal/platform/validation"
	"pet-vaccination-clinic/internal/ports/storage"
)

var (
	ErrRecordNotFound     = apperror.NotFound("vaccination_not_found", "vaccination record not found")
	ErrInvalidReference   = apperror.Validation("invalid_reference", "referenced row does not exist")
	ErrFutureApplication  = apperror.Validation("future_application_date", "applied_on cannot be in the future")
	ErrAppliedOnRequired  = apperror.Validation("applied_on_required", "applied_on is required")
	ErrNextDoseBeforeDose = apperror.Validation("next_dose_before_application", "next_dose_on cannot be before applied_on")
	ErrInvalidDays        = apperror.Validation("invalid_days", "days must be zero or greater")
)

// PetDirectory es la parte de pets.Service que usa este módulo.
type PetDirectory interface {
	Lookup(ctx context.Context, id string) (pets.Pet, error)
	List(ctx context.Context, c authz.Caller) ([]pets.Pet, error)
}

type VaccineCatalog interface {
	Lookup(ctx context.Context, id string) (vaccines.Vaccine, error)
}

// People resuelve perfiles (implementado por identity.Service).
type People interface {
	OwnerByID(ctx context.Context, id string) (identity.OwnerProfile, error)
	StaffByID(ctx context.Context, id string) (identity.StaffProfile, error)
}

// Counter es el contador de vacunaciones registradas (prometheus.Counter lo cumple).
type Counter interface {
	Inc()
}

type Service struct {
	repo     Repository
	pets     PetDirectory
	vaccines VaccineCatalog
	people   People
	policy   *authz.Policy
	valid    *validation.Validator
	log      logger.Logger
	now      func() time.Time

	reportDays int
	recorded   Counter
}

func NewService(repo Repository, petDir PetDirectory, catalog VaccineCatalog, people People, policy *authz.Policy, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:       repo,
		pets:       petDir,
		vaccines:   catalog,
		people:     people,
		policy:     policy,
		valid:      validation.New(),
		log:        log.With(map[string]any{"component": "vaccinations"}),
		now:        time.Now,
		reportDays: DueSoonDays,
	}
}

// SetReportDays cambia el default de SystemUpcoming. No toca la ventana de due_soon.
func (s *Service) SetReportDays(days int) {
	if days > 0 {
		s.reportDays = days
	}
}

func (s *Service) ReportDays() int {
	return s.reportDays
}

func (s *Service) SetRecordedCounter(c Counter) {
	s.recorded = c
}

func (s *Service) Today() time.Time {
	return dates.Day(s.now())
}

// Status es vaccination_status evaluado hoy.
func (s *Service) Status(r Record) Status {
	return StatusAt(r, s.Today())
}

type RecordInput struct {
	PetID          string
	VaccineID      string
	AdministeredBy string // vacío = perfil staff del caller
	AppliedOn      time.Time
	NextDoseOn     *time.Time
	Batch          string `validate:"required,max=50"`
	Notes          string
}

// Record registra una aplicación. Solo staff; pet, vacuna y aplicador deben existir.
func (s *Service) Record(ctx context.Context, c authz.Caller, in RecordInput) (Detail, error) {
	if err := s.policy.Authorize(c, authz.ResourceVaccination, authz.ActionCreate, authz.Ownership{}); err != nil {
		return Detail{}, err
	}

	in.PetID = strings.TrimSpace(in.PetID)
	in.VaccineID = strings.TrimSpace(in.VaccineID)
	in.AdministeredBy = strings.TrimSpace(in.AdministeredBy)
	in.Batch = strings.TrimSpace(in.Batch)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.AdministeredBy == "" {
		in.AdministeredBy = c.StaffProfileID
	}

	if err := s.valid.Struct(in); err != nil {
		return Detail{}, err
	}
	if err := s.validateDates(in.AppliedOn, in.NextDoseOn); err != nil {
		return Detail{}, err
	}

	pet, err := s.pets.Lookup(ctx, in.PetID)
	if err != nil {
		return Detail{}, asReference(err, "pet %q does not exist", in.PetID)
	}
	vac, err := s.vaccines.Lookup(ctx, in.VaccineID)
	if err != nil {
		return Detail{}, asReference(err, "vaccine %q does not exist", in.VaccineID)
	}
	if in.AdministeredBy == "" {
		return Detail{}, ErrInvalidReference.WithMessage("administered_by is required")
	}
	staff, err := s.people.StaffByID(ctx, in.AdministeredBy)
	if err != nil {
		return Detail{}, asReference(err, "staff profile %q does not exist", in.AdministeredBy)
	}

	applied := dates.Day(in.AppliedOn)
	next := NextDose(applied, vac.DoseIntervalDays)
	if in.NextDoseOn != nil {
		next = dates.Day(*in.NextDoseOn)
	}

	now := s.now()
	rec := Record{
		ID:             uuid.NewString(),
		PetID:          pet.ID,
		VaccineID:      vac.ID,
		AdministeredBy: staff.ID,
		AppliedOn:      applied,
		NextDoseOn:     &next,
		Batch:          in.Batch,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrReferenced) {
			return Detail{}, ErrInvalidReference
		}
		return Detail{}, validation.FromStorage(err)
	}
	if s.recorded != nil {
		s.recorded.Inc()
	}

	s.log.Info("vaccination recorded", map[string]any{
		"record_id":  rec.ID,
		"pet_id":     pet.ID,
		"vaccine_id": vac.ID,
		"next_dose":  next.Format(dates.Layout),
		"by":         c.UserID,
	})

	owner := s.ownerName(ctx, pet.OwnerID)
	return Detail{
		Record:             rec,
		PetName:            pet.Name,
		OwnerID:            pet.OwnerID,
		OwnerName:          owner,
		VaccineName:        vac.Name,
		AdministeredByName: staff.Name,
	}, nil
}

// List: staff ve todos; un owner solo los de sus mascotas.
func (s *Service) List(ctx context.Context, c authz.Caller) ([]Detail, error) {
	all, _, err := s.policy.ListScope(c, authz.ResourceVaccination)
	if err != nil {
		return nil, err
	}

	var f Filter
	if !all {
		owned, err := s.pets.List(ctx, c)
		if err != nil {
			return nil, err
		}
		f.PetIDs = make([]string, 0, len(owned))
		for _, p := range owned {
			f.PetIDs = append(f.PetIDs, p.ID)
		}
	}

	records, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, records)
}

func (s *Service) Get(ctx context.Context, c authz.Caller, id string) (Detail, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	pet, err := s.pets.Lookup(ctx, rec.PetID)
	if err != nil {
		return Detail{}, err
	}
	if err := s.policy.Authorize(c, authz.ResourceVaccination, authz.ActionRead, authz.Ownership{OwnerProfileID: pet.OwnerID}); err != nil {
		return Detail{}, err
	}

	out, err := s.enrich(ctx, []Record{rec})
	if err != nil {
		return Detail{}, err
	}
	return out[0], nil
}

// NextDosePatch distingue "no enviado" de "null" (null = sin próxima dosis).
type NextDosePatch struct {
	Present bool
	Value   *time.Time
}

type UpdateInput struct {
	AppliedOn  *time.Time
	NextDoseOn NextDosePatch
	Batch      *string
	Notes      *string
}

// Update es solo staff. Cambiar applied_on no recalcula next_dose_on.
func (s *Service) Update(ctx context.Context, c authz.Caller, id string, in UpdateInput) (Detail, error) {
	if err := s.policy.Authorize(c, authz.ResourceVaccination, authz.ActionUpdate, authz.Ownership{}); err != nil {
		return Detail{}, err
	}
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	if in.AppliedOn != nil {
		rec.AppliedOn = dates.Day(*in.AppliedOn)
	}
	if in.NextDoseOn.Present {
		rec.NextDoseOn = nil
		if in.NextDoseOn.Value != nil {
			d := dates.Day(*in.NextDoseOn.Value)
			rec.NextDoseOn = &d
		}
	}
	if in.Batch != nil {
		rec.Batch = strings.TrimSpace(*in.Batch)
	}
	if in.Notes != nil {
		rec.Notes = strings.TrimSpace(*in.Notes)
	}

	if err := s.valid.Struct(RecordInput{Batch: rec.Batch}); err != nil {
		return Detail{}, err
	}
	if err := s.validateDates(rec.AppliedOn, rec.NextDoseOn); err != nil {
		return Detail{}, err
	}

	rec.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Detail{}, ErrRecordNotFound
		}
		return Detail{}, validation.FromStorage(err)
	}

	s.log.Info("vaccination updated", map[string]any{"record_id": rec.ID, "by": c.UserID})
	out, err := s.enrich(ctx, []Record{rec})
	if err != nil {
		return Detail{}, err
	}
	return out[0], nil
}

func (s *Service) Delete(ctx context.Context, c authz.Caller, id string) error {
	if err := s.policy.Authorize(c, authz.ResourceVaccination, authz.ActionDelete, authz.Ownership{}); err != nil {
		return err
	}
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	s.log.Info("vaccination deleted", map[string]any{"record_id": rec.ID, "pet_id": rec.PetID, "by": c.UserID})
	return nil
}

// History devuelve todos los registros de la mascota, aplicación más reciente primero.
func (s *Service) History(ctx context.Context, c authz.Caller, petID string) ([]Detail, error) {
	pet, err := s.pets.Lookup(ctx, petID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(c, authz.ResourcePetHistory, authz.ActionRead, authz.Ownership{OwnerProfileID: pet.OwnerID}); err != nil {
		return nil, err
	}

	records, err := s.repo.List(ctx, Filter{PetIDs: []string{pet.ID}})
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, records)
}

// Upcoming es upcoming_doses(pet).
func (s *Service) Upcoming(ctx context.Context, c authz.Caller, petID string) ([]UpcomingDose, error) {
	history, err := s.History(ctx, c, petID)
	if err != nil {
		return nil, err
	}
	return UpcomingDoses(history, s.Today()), nil
}

// Overdue es overdue_doses(pet).
func (s *Service) Overdue(ctx context.Context, c authz.Caller, petID string) ([]OverdueDose, error) {
	history, err := s.History(ctx, c, petID)
	if err != nil {
		return nil, err
	}
	return OverdueDoses(history, s.Today()), nil
}

// DosesFor arma upcoming y overdue de una mascota ya autorizada, para su read model.
func (s *Service) DosesFor(ctx context.Context, pet pets.Pet) (pets.Doses, error) {
	records, err := s.repo.List(ctx, Filter{PetIDs: []string{pet.ID}})
	if err != nil {
		return pets.Doses{}, err
	}
	history, err := s.enrich(ctx, records)
	if err != nil {
		return pets.Doses{}, err
	}

	today := s.Today()
	out := pets.Doses{Upcoming: []pets.Dose{}, Overdue: []pets.Dose{}}
	for _, u := range UpcomingDoses(history, today) {
		out.Upcoming = append(out.Upcoming, pets.Dose{RecordID: u.RecordID, VaccineName: u.VaccineName, NextDoseOn: u.NextDoseOn, Days: u.DaysRemaining})
	}
	for _, o := range OverdueDoses(history, today) {
		out.Overdue = append(out.Overdue, pets.Dose{RecordID: o.RecordID, VaccineName: o.VaccineName, NextDoseOn: o.NextDoseOn, Days: o.DaysOverdue})
	}
	return out, nil
}

// SystemUpcoming lista (solo staff) las próximas dosis en [today, today+days], por fecha ascendente.
func (s *Service) SystemUpcoming(ctx context.Context, c authz.Caller, days int) ([]ReportEntry, error) {
	if err := s.policy.Authorize(c, authz.ResourceReport, authz.ActionList, authz.Ownership{}); err != nil {
		return nil, err
	}
	if days < 0 {
		return nil, ErrInvalidDays
	}

	today := s.Today()
	to := dates.AddDays(today, days)
	records, err := s.repo.List(ctx, Filter{NextDoseFrom: &today, NextDoseTo: &to})
	if err != nil {
		return nil, err
	}
	return s.report(ctx, records, func(next time.Time) int { return dates.DaysBetween(today, next) })
}

// SystemOverdue lista (solo staff) todas las dosis vencidas, por fecha ascendente.
func (s *Service) SystemOverdue(ctx context.Context, c authz.Caller) ([]ReportEntry, error) {
	if err := s.policy.Authorize(c, authz.ResourceReport, authz.ActionList, authz.Ownership{}); err != nil {
		return nil, err
	}

	today := s.Today()
	yesterday := dates.AddDays(today, -1)
	records, err := s.repo.List(ctx, Filter{NextDoseTo: &yesterday})
	if err != nil {
		return nil, err
	}
	return s.report(ctx, records, func(next time.Time) int { return dates.DaysBetween(next, today) })
}

// InUse checks para los deletes protegidos de pets, vaccines y staff.

func (s *Service) PetHasRecords(ctx context.Context, petID string) (bool, error) {
	return s.exists(ctx, Filter{PetIDs: []string{petID}})
}

func (s *Service) VaccineHasRecords(ctx context.Context, vaccineID string) (bool, error) {
	return s.exists(ctx, Filter{VaccineID: vaccineID})
}

func (s *Service) StaffHasRecords(ctx context.Context, staffID string) (bool, error) {
	return s.exists(ctx, Filter{AdministeredBy: staffID})
}

func (s *Service) exists(ctx context.Context, f Filter) (bool, error) {
	n, err := s.repo.Count(ctx, f)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) lookup(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrRecordNotFound
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Record{}, ErrRecordNotFound.WithMessage("vaccination record %s not found", id)
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) validateDates(applied time.Time, next *time.Time) error {
	if applied.IsZero() {
		return ErrAppliedOnRequired
	}
	if dates.Day(applied).After(s.Today()) {
		return ErrFutureApplication
	}
	if next != nil && dates.Day(*next).Before(dates.Day(applied)) {
		return ErrNextDoseBeforeDose
	}
	return nil
}

func (s *Service) report(ctx context.Context, records []Record, days func(time.Time) int) ([]ReportEntry, error) {
	details, err := s.enrich(ctx, records)
	if err != nil {
		return nil, err
	}

	out := make([]ReportEntry, 0, len(details))
	for _, d := range details {
		if d.NextDoseOn == nil {
			continue
		}
		out = append(out, ReportEntry{
			RecordID:    d.ID,
			PetID:       d.PetID,
			PetName:     d.PetName,
			OwnerID:     d.OwnerID,
			OwnerName:   d.OwnerName,
			VaccineName: d.VaccineName,
			NextDoseOn:  *d.NextDoseOn,
			Days:        days(*d.NextDoseOn),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextDoseOn.Before(out[j].NextDoseOn) })
	return out, nil
}

// enrich resuelve nombres con memo por llamada. Las referencias están protegidas contra delete,
// así que un NotFound aquí indica datos inconsistentes: se loguea y se deja el nombre vacío.
func (s *Service) enrich(ctx context.Context, records []Record) ([]Detail, error) {
	petsByID := map[string]pets.Pet{}
	vacNames := map[string]string{}
	staffNames := map[string]string{}
	ownerNames := map[string]string{}

	out := make([]Detail, 0, len(records))
	for _, r := range records {
		d := Detail{Record: r}

		p, ok := petsByID[r.PetID]
		if !ok {
			got, err := s.pets.Lookup(ctx, r.PetID)
			if err := s.tolerateMissing(err, "pet", r.PetID); err != nil {
				return nil, err
			}
			p = got
			petsByID[r.PetID] = p
		}
		d.PetName = p.Name
		d.OwnerID = p.OwnerID

		if _, ok := vacNames[r.VaccineID]; !ok {
			v, err := s.vaccines.Lookup(ctx, r.VaccineID)
			if err := s.tolerateMissing(err, "vaccine", r.VaccineID); err != nil {
				return nil, err
			}
			vacNames[r.VaccineID] = v.Name
		}
		d.VaccineName = vacNames[r.VaccineID]

		if _, ok := staffNames[r.AdministeredBy]; !ok {
			sp, err := s.people.StaffByID(ctx, r.AdministeredBy)
			if err := s.tolerateMissing(err, "staff", r.AdministeredBy); err != nil {
				return nil, err
			}
			staffNames[r.AdministeredBy] = sp.Name
		}
		d.AdministeredByName = staffNames[r.AdministeredBy]

		if p.OwnerID != "" {
			if _, ok := ownerNames[p.OwnerID]; !ok {
				ownerNames[p.OwnerID] = s.ownerName(ctx, p.OwnerID)
			}
			d.OwnerName = ownerNames[p.OwnerID]
		}

		out = append(out, d)
	}
	return out, nil
}

func (s *Service) ownerName(ctx context.Context, ownerID string) string {
	op, err := s.people.OwnerByID(ctx, ownerID)
	if err != nil {
		s.log.Warn("owner lookup failed", map[string]any{"owner_id": ownerID, "error": err})
		return ""
	}
	return op.Name
}

func (s *Service) tolerateMissing(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	if apperror.KindOf(err) == apperror.KindNotFound {
		s.log.Warn("dangling reference in vaccination record", map[string]any{"kind": kind, "id": id})
		return nil
	}
	return err
}

// asReference convierte un NotFound de otra entidad en ValidationError (referencia inválida).
func asReference(err error, format string, args ...any) error {
	if apperror.KindOf(err) == apperror.KindNotFound {
		return ErrInvalidReference.WithMessage(format, args...)
	}
	return err
}
