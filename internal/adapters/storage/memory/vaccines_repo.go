package memory

import (
	"context"
	"sort"
	"sync"

	"pet-vaccination-clinic/internal/domain/vaccines"
	"pet-vaccination-clinic/internal/ports/storage"
)

type vaccineRepo struct {
	mu   sync.RWMutex
	byID map[string]vaccines.Vaccine
}

func NewVaccineRepo() vaccines.Repository {
	return &vaccineRepo{byID: make(map[string]vaccines.Vaccine)}
}

func (r *vaccineRepo) Create(ctx context.Context, v vaccines.Vaccine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[v.ID]; exists {
		return storage.ErrDuplicate
	}
	r.byID[v.ID] = v
	return nil
}

func (r *vaccineRepo) Update(ctx context.Context, v vaccines.Vaccine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[v.ID]; !exists {
		return storage.ErrNotFound
	}
	r.byID[v.ID] = v
	return nil
}

func (r *vaccineRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return storage.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *vaccineRepo) GetByID(ctx context.Context, id string) (vaccines.Vaccine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.byID[id]
	if !ok {
		return vaccines.Vaccine{}, storage.ErrNotFound
	}
	return v, nil
}

// List ordena por nombre (catálogo).
func (r *vaccineRepo) List(ctx context.Context) ([]vaccines.Vaccine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]vaccines.Vaccine, 0, len(r.byID))
	for _, v := range r.byID {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
