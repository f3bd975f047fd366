package pets

import (
	"time"

	"pet-vaccination-clinic/internal/platform/dates"
)

const (
	// MinWeight y MaxWeight en kg (peso con 2 decimales, hasta 999.99).
	MinWeight = 0.01
	MaxWeight = 999.99
)

// Pet es una mascota registrada. Pertenece a exactamente un OwnerProfile.
type Pet struct {
	ID      string
	OwnerID string // OwnerProfile.ID

	Name    string
	Species string
	Breed   string
	Weight  float64

	BirthDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AgeInDays devuelve nil si no hay fecha de nacimiento.
func (p Pet) AgeInDays(today time.Time) *int {
	if p.BirthDate == nil {
		return nil
	}
	d := dates.DaysBetween(*p.BirthDate, today)
	return &d
}

// AgeInYears es AgeInDays / 365 (sin corrección por bisiestos).
func (p Pet) AgeInYears(today time.Time) *int {
	d := p.AgeInDays(today)
	if d == nil {
		return nil
	}
	y := *d / 365
	return &y
}
