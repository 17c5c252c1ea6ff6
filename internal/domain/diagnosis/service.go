package diagnosis

import (
	"context"
	"strings"

	"github.com/lesionscan/lesionscan/internal/platform/apperr"
	"github.com/lesionscan/lesionscan/internal/platform/metrics"
)

type Service struct {
	repo    Repository
	metrics *metrics.Collector
}

func NewService(repo Repository, m *metrics.Collector) *Service {
	return &Service{repo: repo, metrics: m}
}

// Validate checks the fields required before a diagnosis is written. Score
// ranges are enforced by the repository.
func Validate(d *Diagnosis) error {
	if strings.TrimSpace(d.PatientID) == "" {
		return apperr.Invalid("patient_id is required")
	}
	if !d.Type.Valid() {
		return apperr.Invalid("type must be one of %q, %q", TypeOral, TypeGastric)
	}
	if strings.TrimSpace(d.ImageURL) == "" {
		return apperr.Invalid("image_url is required")
	}
	if d.Severity != nil && !d.Severity.Valid() {
		return apperr.Invalid("invalid severity %q", *d.Severity)
	}
	return nil
}

func (s *Service) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	if err := Validate(d); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return err
	}
	s.metrics.DiagnosisCreated(string(d.Type))
	return nil
}

func (s *Service) GetDiagnosis(ctx context.Context, id string) (*Diagnosis, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListDiagnosesByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Diagnosis, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) UpdateDiagnosis(ctx context.Context, id string, u Update) (*Diagnosis, error) {
	if u.Severity != nil && !u.Severity.Valid() {
		return nil, apperr.Invalid("invalid severity %q", *u.Severity)
	}
	return s.repo.Update(ctx, id, u)
}

func (s *Service) DeleteDiagnosis(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
