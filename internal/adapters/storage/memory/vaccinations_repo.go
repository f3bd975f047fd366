package memory

import (
	"context"
	"sort"
	"sync"

	"pet-vaccination-clinic/internal/domain/vaccinations"
	"pet-vaccination-clinic/internal/ports/storage"
)

type vaccinationRepo struct {
	mu   sync.RWMutex
	byID map[string]vaccinations.Record
}

func NewVaccinationRepo() vaccinations.Repository {
	return &vaccinationRepo{byID: make(map[string]vaccinations.Record)}
}

func (r *vaccinationRepo) Create(ctx context.Context, rec vaccinations.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[rec.ID]; exists {
		return storage.ErrDuplicate
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *vaccinationRepo) Update(ctx context.Context, rec vaccinations.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[rec.ID]; !exists {
		return storage.ErrNotFound
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *vaccinationRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return storage.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *vaccinationRepo) GetByID(ctx context.Context, id string) (vaccinations.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return vaccinations.Record{}, storage.ErrNotFound
	}
	return rec, nil
}

// List: applied_on desc, created_at desc en empate.
func (r *vaccinationRepo) List(ctx context.Context, f vaccinations.Filter) ([]vaccinations.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]vaccinations.Record, 0)
	for _, rec := range r.byID {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedOn.Equal(out[j].AppliedOn) {
			return out[i].AppliedOn.After(out[j].AppliedOn)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *vaccinationRepo) Count(ctx context.Context, f vaccinations.Filter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.byID {
		if f.Match(rec) {
			n++
		}
	}
	return n, nil
}
