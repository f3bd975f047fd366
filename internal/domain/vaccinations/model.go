package vaccinations

import "time"

// Record es una aplicación de una vacuna a una mascota.
// NextDoseOn se calcula una sola vez al crear el registro (si no viene explícito)
// y no se recalcula aunque cambie el intervalo de la vacuna.
type Record struct {
	ID             string
	PetID          string
	VaccineID      string
	AdministeredBy string // StaffProfile.ID

	AppliedOn  time.Time
	NextDoseOn *time.Time

	Batch string
	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Detail es el read model: el registro más los nombres de lo que referencia.
type Detail struct {
	Record

	PetName            string
	OwnerID            string
	OwnerName          string
	VaccineName        string
	AdministeredByName string
}

// ReportEntry es una fila de los reportes globales (upcoming / overdue).
// Days es days_remaining en upcoming y days_overdue en overdue.
type ReportEntry struct {
	RecordID    string
	PetID       string
	PetName     string
	OwnerID     string
	OwnerName   string
	VaccineName string
	NextDoseOn  time.Time
	Days        int
}
