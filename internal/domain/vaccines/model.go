package vaccines

import "time"

// Precio con 2 decimales, hasta 999999.99.
const (
	MinPrice = 0.01
	MaxPrice = 999999.99
)

// Vaccine es una entrada del catálogo de vacunas.
type Vaccine struct {
	ID               string
	Name             string
	Manufacturer     string
	Price            float64
	DoseIntervalDays int
	Description      string

	CreatedAt time.Time
	UpdatedAt time.Time
}
