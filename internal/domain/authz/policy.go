package authz

import (
	"strings"

	"pet-vaccination-clinic/internal/platform/apperror"
)

type Resource string

const (
	ResourcePet          Resource = "pet"
	ResourcePetHistory   Resource = "pet_history"
	ResourceVaccine      Resource = "vaccine"
	ResourceVaccination  Resource = "vaccination"
	ResourceReport       Resource = "report"
	ResourceOwnerProfile Resource = "owner_profile"
	ResourceStaffProfile Resource = "staff_profile"
	ResourceUser         Resource = "user"
)

type Action string

const (
	ActionList   Action = "list"
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Role string

const (
	RoleStaff Role = "staff"
	RoleOwner Role = "owner"
)

// Rule es el resultado de la tabla para (recurso, acción, rol).
type Rule int

const (
	Deny Rule = iota
	Allow
	// Own permite solo si el caller es dueño del recurso (ver Ownership).
	Own
)

// Caller es la identidad resuelta del usuario que hace la request.
// OwnerProfileID / StaffProfileID vacíos = el usuario no tiene ese perfil.
type Caller struct {
	UserID         string
	Username       string
	IsStaff        bool
	OwnerProfileID string
	StaffProfileID string
}

func (c Caller) Role() Role {
	if c.IsStaff {
		return RoleStaff
	}
	return RoleOwner
}

// Ownership describe a quién pertenece el recurso evaluado.
// Basta con que coincida uno de los dos campos no vacíos.
type Ownership struct {
	OwnerProfileID string
	UserID         string
}

var (
	ErrStaffOnly             = apperror.PermissionDenied("staff_only", "only staff members can perform this action")
	ErrNotOwner              = apperror.PermissionDenied("not_owner", "you can only access your own pets")
	ErrOwnerProfileNotFound  = apperror.PermissionDenied("owner_profile_not_found", "user does not have an owner profile")
	ErrStaffProfileNotFound  = apperror.PermissionDenied("staff_profile_not_found", "user does not have a staff profile")
	ErrForbidden             = apperror.PermissionDenied("forbidden", "you do not have permission to access this resource")
	ErrUnauthenticatedCaller = apperror.Unauthorized("unauthorized", "authentication required")
)

type key struct {
	res Resource
	act Action
}

type entry struct {
	staff Rule
	owner Rule
}

// defaultTable es la política de la clínica: staff sin restricciones,
// owners limitados a lo propio y fuera de catálogo/registros/reportes.
var defaultTable = map[key]entry{
	{ResourcePet, ActionList}:   {Allow, Own},
	{ResourcePet, ActionRead}:   {Allow, Own},
	{ResourcePet, ActionCreate}: {Allow, Own},
	{ResourcePet, ActionUpdate}: {Allow, Own},
	{ResourcePet, ActionDelete}: {Allow, Own},

	{ResourcePetHistory, ActionRead}: {Allow, Own},

	{ResourceVaccine, ActionList}:   {Allow, Allow},
	{ResourceVaccine, ActionRead}:   {Allow, Allow},
	{ResourceVaccine, ActionCreate}: {Allow, Deny},
	{ResourceVaccine, ActionUpdate}: {Allow, Deny},
	{ResourceVaccine, ActionDelete}: {Allow, Deny},

	{ResourceVaccination, ActionList}:   {Allow, Own},
	{ResourceVaccination, ActionRead}:   {Allow, Own},
	{ResourceVaccination, ActionCreate}: {Allow, Deny},
	{ResourceVaccination, ActionUpdate}: {Allow, Deny},
	{ResourceVaccination, ActionDelete}: {Allow, Deny},

	{ResourceReport, ActionList}: {Allow, Deny},

	{ResourceOwnerProfile, ActionCreate}: {Allow, Own},
	{ResourceOwnerProfile, ActionRead}:   {Allow, Own},
	{ResourceOwnerProfile, ActionUpdate}: {Allow, Own},
	{ResourceOwnerProfile, ActionList}:   {Allow, Deny},
	{ResourceOwnerProfile, ActionDelete}: {Allow, Deny},

	{ResourceStaffProfile, ActionCreate}: {Allow, Deny},
	{ResourceStaffProfile, ActionRead}:   {Allow, Deny},
	{ResourceStaffProfile, ActionUpdate}: {Allow, Deny},
	{ResourceStaffProfile, ActionList}:   {Allow, Deny},
	{ResourceStaffProfile, ActionDelete}: {Allow, Deny},

	// cuentas: cada usuario ve y edita la suya
	{ResourceUser, ActionList}:   {Allow, Deny},
	{ResourceUser, ActionRead}:   {Allow, Own},
	{ResourceUser, ActionUpdate}: {Allow, Own},
	{ResourceUser, ActionDelete}: {Allow, Deny},
}

type Policy struct {
	table map[key]entry

	// OnDeny se invoca en cada rechazo (métricas). Opcional.
	OnDeny func(res Resource, act Action)
}

func NewPolicy() *Policy {
	return &Policy{table: defaultTable}
}

// RuleFor expone la regla de la tabla. Combinaciones no declaradas = Deny.
func (p *Policy) RuleFor(res Resource, act Action, role Role) Rule {
	e, ok := p.table[key{res, act}]
	if !ok {
		return Deny
	}
	if role == RoleStaff {
		return e.staff
	}
	return e.owner
}

// Authorize evalúa la tabla y, para reglas Own, el predicado de ownership.
func (p *Policy) Authorize(c Caller, res Resource, act Action, own Ownership) error {
	err := p.evaluate(c, res, act, own)
	if err != nil && p.OnDeny != nil {
		p.OnDeny(res, act)
	}
	return err
}

// ListScope resuelve qué puede listar el caller: todo (all=true) o solo lo de su OwnerProfile.
// Un owner sin perfil recibe ErrOwnerProfileNotFound (no una lista vacía).
func (p *Policy) ListScope(c Caller, res Resource) (all bool, ownerProfileID string, err error) {
	if strings.TrimSpace(c.UserID) == "" {
		return false, "", ErrUnauthenticatedCaller
	}
	switch p.RuleFor(res, ActionList, c.Role()) {
	case Allow:
		return true, "", nil
	case Own:
		if c.OwnerProfileID == "" {
			p.denied(res, ActionList)
			return false, "", ErrOwnerProfileNotFound
		}
		return false, c.OwnerProfileID, nil
	default:
		p.denied(res, ActionList)
		return false, "", denyError(c)
	}
}

func (p *Policy) evaluate(c Caller, res Resource, act Action, own Ownership) error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrUnauthenticatedCaller
	}

	switch p.RuleFor(res, act, c.Role()) {
	case Allow:
		return nil
	case Own:
		if own.UserID != "" && own.UserID == c.UserID {
			return nil
		}
		if own.OwnerProfileID == "" {
			if own.UserID != "" {
				return ErrForbidden
			}
			return ErrNotOwner
		}
		if c.OwnerProfileID == "" {
			return ErrOwnerProfileNotFound
		}
		if own.OwnerProfileID != c.OwnerProfileID {
			return ErrNotOwner
		}
		return nil
	default:
		return denyError(c)
	}
}

func (p *Policy) denied(res Resource, act Action) {
	if p.OnDeny != nil {
		p.OnDeny(res, act)
	}
}

func denyError(c Caller) error {
	if !c.IsStaff {
		return ErrStaffOnly
	}
	return ErrForbidden
}
