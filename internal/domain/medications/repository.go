package medications

import "context"

type Repository interface {
	Create(ctx context.Context, m Medication) error
	Update(ctx context.Context, m Medication) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Medication, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Medication, error)

	// ListAll se usa por el matcher de recordatorios (recorre todos los owners).
	ListAll(ctx context.Context) ([]Medication, error)
}
