package patient

import (
	"context"
)

// Repository persists patients. Implementations return apperr domain errors
// for missing rows and duplicate identifiers.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, patientID string) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, patientID string, u Update) (*Patient, error)
	Delete(ctx context.Context, patientID string) error
}
