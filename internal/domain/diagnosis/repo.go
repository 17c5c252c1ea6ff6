package diagnosis

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, d *Diagnosis) error
	Get(ctx context.Context, id string) (*Diagnosis, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Diagnosis, int, error)
	Update(ctx context.Context, id string, u Update) (*Diagnosis, error)
	Delete(ctx context.Context, id string) error
}
