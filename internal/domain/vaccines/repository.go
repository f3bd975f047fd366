package vaccines

import "context"

type Repository interface {
	Create(ctx context.Context, v Vaccine) error
	Update(ctx context.Context, v Vaccine) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Vaccine, error)
	List(ctx context.Context) ([]Vaccine, error)
}
