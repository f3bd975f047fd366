package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"pet-vaccination-clinic/internal/domain/identity"
	"pet-vaccination-clinic/internal/ports/storage"
)

// identityRepo guarda usuarios y perfiles. Replica los UNIQUE del esquema
// (username, user_id por tipo de perfil, national_id por tipo de perfil).
type identityRepo struct {
	mu     sync.RWMutex
	users  map[string]identity.User
	owners map[string]identity.OwnerProfile
	staff  map[string]identity.StaffProfile
}

func NewIdentityRepo() identity.Repository {
	return &identityRepo{
		users:  make(map[string]identity.User),
		owners: make(map[string]identity.OwnerProfile),
		staff:  make(map[string]identity.StaffProfile),
	}
}

func (r *identityRepo) CreateUser(ctx context.Context, u identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.insertUser(u)
}

// CreateFirstStaff chequea e inserta bajo el mismo lock de escritura.
func (r *identityRepo) CreateFirstStaff(ctx context.Context, u identity.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, x := range r.users {
		if x.IsStaff {
			return false, nil
		}
	}
	if err := r.insertUser(u); err != nil {
		return false, err
	}
	return true, nil
}

func (r *identityRepo) insertUser(u identity.User) error {
	if _, exists := r.users[u.ID]; exists {
		return storage.ErrDuplicate
	}
	if r.usernameTaken(u.Username, u.ID) {
		return storage.ErrDuplicate
	}
	r.users[u.ID] = u
	return nil
}

func (r *identityRepo) usernameTaken(username, exceptID string) bool {
	for _, x := range r.users {
		if x.ID != exceptID && strings.EqualFold(x.Username, username) {
			return true
		}
	}
	return false
}

func (r *identityRepo) GetUserByID(ctx context.Context, id string) (identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return identity.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (r *identityRepo) GetUserByUsername(ctx context.Context, username string) (identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return identity.User{}, storage.ErrNotFound
}

func (r *identityRepo) ListUsers(ctx context.Context) ([]identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]identity.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username) })
	return out, nil
}

func (r *identityRepo) UpdateUser(ctx context.Context, u identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; !ok {
		return storage.ErrNotFound
	}
	if r.usernameTaken(u.Username, u.ID) {
		return storage.ErrDuplicate
	}
	r.users[u.ID] = u
	return nil
}

// DeleteUser replica el ON DELETE RESTRICT de los perfiles.
func (r *identityRepo) DeleteUser(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return storage.ErrNotFound
	}
	for _, p := range r.owners {
		if p.UserID == id {
			return storage.ErrReferenced
		}
	}
	for _, p := range r.staff {
		if p.UserID == id {
			return storage.ErrReferenced
		}
	}
	delete(r.users, id)
	return nil
}

func (r *identityRepo) CreateOwner(ctx context.Context, p identity.OwnerProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[p.UserID]; !ok {
		return storage.ErrReferenced
	}
	for _, x := range r.owners {
		if x.ID == p.ID || x.UserID == p.UserID || x.NationalID == p.NationalID {
			return storage.ErrDuplicate
		}
	}
	r.owners[p.ID] = p
	return nil
}

func (r *identityRepo) GetOwnerByID(ctx context.Context, id string) (identity.OwnerProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.owners[id]
	if !ok {
		return identity.OwnerProfile{}, storage.ErrNotFound
	}
	return p, nil
}

func (r *identityRepo) GetOwnerByUserID(ctx context.Context, userID string) (identity.OwnerProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.owners {
		if p.UserID == userID {
			return p, nil
		}
	}
	return identity.OwnerProfile{}, storage.ErrNotFound
}

func (r *identityRepo) ListOwners(ctx context.Context) ([]identity.OwnerProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]identity.OwnerProfile, 0, len(r.owners))
	for _, p := range r.owners {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *identityRepo) UpdateOwner(ctx context.Context, p identity.OwnerProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[p.ID]; !ok {
		return storage.ErrNotFound
	}
	for _, x := range r.owners {
		if x.ID != p.ID && x.NationalID == p.NationalID {
			return storage.ErrDuplicate
		}
	}
	r.owners[p.ID] = p
	return nil
}

func (r *identityRepo) DeleteOwner(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.owners, id)
	return nil
}

func (r *identityRepo) CreateStaff(ctx context.Context, p identity.StaffProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[p.UserID]; !ok {
		return storage.ErrReferenced
	}
	for _, x := range r.staff {
		if x.ID == p.ID || x.UserID == p.UserID || x.NationalID == p.NationalID {
			return storage.ErrDuplicate
		}
	}
	r.staff[p.ID] = p
	return nil
}

func (r *identityRepo) GetStaffByID(ctx context.Context, id string) (identity.StaffProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.staff[id]
	if !ok {
		return identity.StaffProfile{}, storage.ErrNotFound
	}
	return p, nil
}

func (r *identityRepo) GetStaffByUserID(ctx context.Context, userID string) (identity.StaffProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.staff {
		if p.UserID == userID {
			return p, nil
		}
	}
	return identity.StaffProfile{}, storage.ErrNotFound
}

func (r *identityRepo) ListStaff(ctx context.Context) ([]identity.StaffProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]identity.StaffProfile, 0, len(r.staff))
	for _, p := range r.staff {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *identityRepo) UpdateStaff(ctx context.Context, p identity.StaffProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.staff[p.ID]; !ok {
		return storage.ErrNotFound
	}
	for _, x := range r.staff {
		if x.ID != p.ID && x.NationalID == p.NationalID {
			return storage.ErrDuplicate
		}
	}
	r.staff[p.ID] = p
	return nil
}

func (r *identityRepo) DeleteStaff(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.staff[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.staff, id)
	return nil
}
