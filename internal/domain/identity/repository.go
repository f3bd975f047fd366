package identity

import "context"

type Repository interface {
	CreateUser(ctx context.Context, u User) error
	// CreateFirstStaff inserta u solo si no existe ningún usuario staff; el chequeo y el
	// insert son atómicos. created=false si ya había staff.
	CreateFirstStaff(ctx context.Context, u User) (created bool, err error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id string) error

	CreateOwner(ctx context.Context, p OwnerProfile) error
	GetOwnerByID(ctx context.Context, id string) (OwnerProfile, error)
	GetOwnerByUserID(ctx context.Context, userID string) (OwnerProfile, error)
	ListOwners(ctx context.Context) ([]OwnerProfile, error)
	UpdateOwner(ctx context.Context, p OwnerProfile) error
	DeleteOwner(ctx context.Context, id string) error

	CreateStaff(ctx context.Context, p StaffProfile) error
	GetStaffByID(ctx context.Context, id string) (StaffProfile, error)
	GetStaffByUserID(ctx context.Context, userID string) (StaffProfile, error)
	ListStaff(ctx context.Context) ([]StaffProfile, error)
	UpdateStaff(ctx context.Context, p StaffProfile) error
	DeleteStaff(ctx context.Context, id string) error
}

// InUseFunc informa si existen filas que referencian al perfil (pets para owners,
// registros de vacunación para staff). Se inyecta desde el router para evitar ciclos de imports.
type InUseFunc func(ctx context.Context, profileID string) (bool, error)
