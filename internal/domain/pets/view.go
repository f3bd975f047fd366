package pets

import (
	"context"
	"time"

	"pet-vaccination-clinic/internal/platform/apperror"
)

// Dose es una próxima dosis vista desde la mascota.
// Days es days_remaining en Upcoming y days_overdue en Overdue.
type Dose struct {
	RecordID    string
	VaccineName string
	NextDoseOn  time.Time
	Days        int
}

type Doses struct {
	Upcoming []Dose
	Overdue  []Dose
}

// DoseReader resuelve las dosis pendientes de una mascota (implementado por vaccinations.Service).
type DoseReader interface {
	DosesFor(ctx context.Context, p Pet) (Doses, error)
}

// View es el read model de la mascota: nombre del dueño y dosis pendientes.
type View struct {
	Pet

	OwnerName string
	Upcoming  []Dose
	Overdue   []Dose
}

func (s *Service) SetDoseReader(r DoseReader) {
	s.doses = r
}

// Describe arma la vista de una mascota ya autorizada.
func (s *Service) Describe(ctx context.Context, p Pet) (View, error) {
	views, err := s.DescribeAll(ctx, []Pet{p})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// DescribeAll memoiza el nombre del dueño por llamada; las dosis se leen por mascota.
func (s *Service) DescribeAll(ctx context.Context, items []Pet) ([]View, error) {
	names := map[string]string{}
	out := make([]View, 0, len(items))
	for _, p := range items {
		v := View{Pet: p, Upcoming: []Dose{}, Overdue: []Dose{}}

		name, ok := names[p.OwnerID]
		if !ok {
			var err error
			if name, err = s.ownerName(ctx, p.OwnerID); err != nil {
				return nil, err
			}
			names[p.OwnerID] = name
		}
		v.OwnerName = name

		if s.doses != nil {
			d, err := s.doses.DosesFor(ctx, p)
			if err != nil {
				return nil, err
			}
			if d.Upcoming != nil {
				v.Upcoming = d.Upcoming
			}
			if d.Overdue != nil {
				v.Overdue = d.Overdue
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) ownerName(ctx context.Context, ownerID string) (string, error) {
	op, err := s.owners.OwnerByID(ctx, ownerID)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			s.log.Warn("pet owner not found", map[string]any{"owner_id": ownerID})
			return "", nil
		}
		return "", err
	}
	return op.Name, nil
}
