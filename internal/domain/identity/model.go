package identity

import "time"

// User es la cuenta de acceso. IsStaff separa funcionarios/veterinarios de dueños.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsStaff      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Person son los datos personales comunes a ambos perfiles.
type Person struct {
	Name       string
	NationalID string
	Address    string
	Phone      string
}

// OwnerProfile es el perfil de dueño de mascotas (1:1 con User).
type OwnerProfile struct {
	ID     string
	UserID string
	Person

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StaffProfile es el perfil de funcionario (1:1 con User). Es quien aplica vacunas.
type StaffProfile struct {
	ID     string
	UserID string
	Person
	JobTitle string

	CreatedAt time.Time
	UpdatedAt time.Time
}
