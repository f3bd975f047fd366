package vaccinations

import (
	"time"

	"pet-vaccination-clinic/internal/platform/dates"
)

type Status string

const (
	StatusUpToDate  Status = "up_to_date"
	StatusDueSoon   Status = "due_soon"
	StatusOverdue   Status = "overdue"
	StatusUndefined Status = "undefined"
)

// DueSoonDays es la ventana por defecto (inclusive) de "próxima en breve".
const DueSoonDays = 7

// NextDose = fecha de aplicación + intervalo en días calendario.
func NextDose(appliedOn time.Time, intervalDays int) time.Time {
	return dates.AddDays(appliedOn, intervalDays)
}

// IsOverdue: vencida solo si next_dose < today. Sin próxima dosis nunca está vencida.
func IsOverdue(r Record, today time.Time) bool {
	if r.NextDoseOn == nil {
		return false
	}
	return dates.DaysBetween(today, *r.NextDoseOn) < 0
}

// StatusAt clasifica con la ventana por defecto.
func StatusAt(r Record, today time.Time) Status {
	return Classify(r, today, DueSoonDays)
}

// Classify usa la misma regla de borde que IsOverdue: next_dose == today es due_soon
// (0 días restantes), nunca overdue.
func Classify(r Record, today time.Time, window int) Status {
	if r.NextDoseOn == nil {
		return StatusUndefined
	}
	days := dates.DaysBetween(today, *r.NextDoseOn)
	switch {
	case days < 0:
		return StatusOverdue
	case days <= window:
		return StatusDueSoon
	default:
		return StatusUpToDate
	}
}

type UpcomingDose struct {
	RecordID      string
	VaccineName   string
	NextDoseOn    time.Time
	DaysRemaining int
}

type OverdueDose struct {
	RecordID    string
	VaccineName string
	NextDoseOn  time.Time
	DaysOverdue int
}

// UpcomingDoses filtra el historial (ya ordenado por aplicación descendente)
// quedándose con next_dose >= today. Mantiene el orden del historial.
func UpcomingDoses(history []Detail, today time.Time) []UpcomingDose {
	out := make([]UpcomingDose, 0)
	for _, d := range history {
		if d.NextDoseOn == nil || IsOverdue(d.Record, today) {
			continue
		}
		out = append(out, UpcomingDose{
			RecordID:      d.ID,
			VaccineName:   d.VaccineName,
			NextDoseOn:    *d.NextDoseOn,
			DaysRemaining: dates.DaysBetween(today, *d.NextDoseOn),
		})
	}
	return out
}

// OverdueDoses es el complemento de UpcomingDoses sobre los registros con próxima dosis.
func OverdueDoses(history []Detail, today time.Time) []OverdueDose {
	out := make([]OverdueDose, 0)
	for _, d := range history {
		if !IsOverdue(d.Record, today) {
			continue
		}
		out = append(out, OverdueDose{
			RecordID:    d.ID,
			VaccineName: d.VaccineName,
			NextDoseOn:  *d.NextDoseOn,
			DaysOverdue: dates.DaysBetween(*d.NextDoseOn, today),
		})
	}
	return out
}
