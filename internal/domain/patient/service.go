package patient

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/lesionscan/lesionscan/internal/platform/apperr"
	"github.com/lesionscan/lesionscan/internal/platform/metrics"
)

var errNameRequired = apperr.Invalid("name is required")

type Service struct {
	repo    Repository
	metrics *metrics.Collector
	now     func() time.Time
}

func NewService(repo Repository, m *metrics.Collector) *Service {
	return &Service{repo: repo, metrics: m, now: time.Now}
}

// NewPatientID derives an identifier from the creation time in milliseconds.
// Two patients created within the same millisecond get the same id.
func NewPatientID(t time.Time) string {
	return "P" + strconv.FormatInt(t.UnixMilli(), 10)
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errNameRequired
	}
	p.PatientID = strings.TrimSpace(p.PatientID)
	if p.PatientID == "" {
		p.PatientID = NewPatientID(s.now())
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.metrics.PatientCreated()
	return nil
}

func (s *Service) GetPatient(ctx context.Context, patientID string) (*Patient, error) {
	return s.repo.Get(ctx, patientID)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// UpdatePatient applies a partial update and returns the stored record.
func (s *Service) UpdatePatient(ctx context.Context, patientID string, u Update) (*Patient, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
	return s.repo.Update(ctx, patientID, u)
}

func (s *Service) DeletePatient(ctx context.Context, patientID string) error {
	if err := s.repo.Delete(ctx, patientID); err != nil {
		return err
	}
	s.metrics.PatientDeleted()
	return nil
}
