package vaccinations

import (
	"context"
	"time"
)

// Filter acota List/Count. Campos vacíos no filtran.
// NextDoseFrom/NextDoseTo son inclusivos y excluyen registros sin próxima dosis.
type Filter struct {
	PetIDs         []string // nil = todas; slice vacío = ninguna
	VaccineID      string
	AdministeredBy string

	NextDoseFrom *time.Time
	NextDoseTo   *time.Time
}

// Repository devuelve listas ordenadas por applied_on desc (y created_at desc en empate).
type Repository interface {
	Create(ctx context.Context, r Record) error
	Update(ctx context.Context, r Record) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, f Filter) ([]Record, error)
	Count(ctx context.Context, f Filter) (int, error)
}

// Match evalúa el filtro en memoria (adapter memory y tests).
func (f Filter) Match(r Record) bool {
	if f.PetIDs != nil && !contains(f.PetIDs, r.PetID) {
		return false
	}
	if f.VaccineID != "" && r.VaccineID != f.VaccineID {
		return false
	}
	if f.AdministeredBy != "" && r.AdministeredBy != f.AdministeredBy {
		return false
	}
	if f.NextDoseFrom != nil || f.NextDoseTo != nil {
		if r.NextDoseOn == nil {
			return false
		}
		if f.NextDoseFrom != nil && r.NextDoseOn.Before(*f.NextDoseFrom) {
			return false
		}
		if f.NextDoseTo != nil && r.NextDoseOn.After(*f.NextDoseTo) {
			return false
		}
	}
	return true
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
