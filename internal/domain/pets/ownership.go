package pets

import "context"

// HasPets se inyecta como InUseFunc del perfil de dueño (delete protegido).
func (s *Service) HasPets(ctx context.Context, ownerID string) (bool, error) {
	n, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
