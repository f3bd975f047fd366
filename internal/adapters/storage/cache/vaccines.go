// Package cache envuelve repositorios con un cache en memoria (go-cache).
package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"pet-vaccination-clinic/internal/domain/vaccines"
)

const listKey = "vaccines:list"

// VaccineRepo cachea lecturas del catálogo. Cualquier escritura invalida el listado
// y la entrada de la vacuna afectada.
//
// gen cuenta escrituras: una lectura solo se guarda si no hubo escrituras mientras
// iba al repo de abajo, así un valor viejo no vuelve al cache después de invalidarlo.
type VaccineRepo struct {
	next  vaccines.Repository
	cache *gocache.Cache

	mu  sync.Mutex
	gen uint64
}

// NewVaccineRepo devuelve next sin envolver si ttl <= 0.
func NewVaccineRepo(next vaccines.Repository, ttl time.Duration) vaccines.Repository {
	if ttl <= 0 {
		return next
	}
	return &VaccineRepo{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (r *VaccineRepo) Create(ctx context.Context, v vaccines.Vaccine) error {
	if err := r.next.Create(ctx, v); err != nil {
		return err
	}
	r.mu.Lock()
	r.gen++
	r.cache.Delete(listKey)
	r.mu.Unlock()
	return nil
}

func (r *VaccineRepo) Update(ctx context.Context, v vaccines.Vaccine) error {
	err := r.next.Update(ctx, v)
	r.invalidate(v.ID)
	return err
}

func (r *VaccineRepo) Delete(ctx context.Context, id string) error {
	err := r.next.Delete(ctx, id)
	r.invalidate(id)
	return err
}

func (r *VaccineRepo) GetByID(ctx context.Context, id string) (vaccines.Vaccine, error) {
	if v, found := r.cache.Get(itemKey(id)); found {
		return v.(vaccines.Vaccine), nil
	}

	gen := r.generation()
	v, err := r.next.GetByID(ctx, id)
	if err != nil {
		return vaccines.Vaccine{}, err
	}
	r.store(gen, itemKey(id), v)
	return v, nil
}

func (r *VaccineRepo) List(ctx context.Context) ([]vaccines.Vaccine, error) {
	if cached, found := r.cache.Get(listKey); found {
		return clone(cached.([]vaccines.Vaccine)), nil
	}

	gen := r.generation()
	items, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	r.store(gen, listKey, clone(items))
	return items, nil
}

func (r *VaccineRepo) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// store descarta el valor si hubo una escritura desde gen.
func (r *VaccineRepo) store(gen uint64, key string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return
	}
	r.cache.Set(key, v, gocache.DefaultExpiration)
}

func (r *VaccineRepo) invalidate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.cache.Delete(itemKey(id))
	r.cache.Delete(listKey)
}

func itemKey(id string) string { return "vaccines:id:" + id }

// el caller puede modificar el slice devuelto
func clone(items []vaccines.Vaccine) []vaccines.Vaccine {
	out := make([]vaccines.Vaccine, len(items))
	copy(out, items)
	return out
}
