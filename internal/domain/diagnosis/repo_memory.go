package diagnosis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lesionscan/lesionscan/internal/platform/apperr"
	"github.com/lesionscan/lesionscan/pkg/pagination"
)

// PatientGuard lets the memory repository check that a patient exists and
// keep it from being deleted while a diagnosis is inserted.
type PatientGuard interface {
	WithExisting(patientID string, fn func() error) error
}

// MemoryRepo keeps diagnoses in a process-wide map keyed by id. Lock order
// is patient store first, then this repository, matching the cascade run
// from patient deletion.
type MemoryRepo struct {
	mu        sync.RWMutex
	diagnoses map[string]*Diagnosis
	patients  PatientGuard
	now       func() time.Time
}

func NewMemoryRepo(patients PatientGuard) *MemoryRepo {
	return &MemoryRepo{
		diagnoses: make(map[string]*Diagnosis),
		patients:  patients,
		now:       time.Now,
	}
}

func (r *MemoryRepo) Create(_ context.Context, d *Diagnosis) error {
	if err := checkRanges(d); err != nil {
		return err
	}
	return r.patients.WithExisting(d.PatientID, func() error {
		r.mu.Lock()
		defer r.mu.Unlock()

		now := r.now().UTC()
		d.ID = uuid.NewString()
		d.CreatedAt = now
		d.UpdatedAt = now
		r.diagnoses[d.ID] = d.clone()
		return nil
	})
}

func (r *MemoryRepo) Get(_ context.Context, id string) (*Diagnosis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.diagnoses[id]
	if !ok {
		return nil, apperr.NotFound("diagnosis %s not found", id)
	}
	return d.clone(), nil
}

// ListByPatient returns the patient's diagnoses newest first.
func (r *MemoryRepo) ListByPatient(_ context.Context, patientID string, limit, offset int) ([]*Diagnosis, int, error) {
	r.mu.RLock()
	var all []*Diagnosis
	for _, d := range r.diagnoses {
		if d.PatientID == patientID {
			all = append(all, d.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(all))
	return append([]*Diagnosis{}, all[start:end]...), len(all), nil
}

func (r *MemoryRepo) Update(_ context.Context, id string, u Update) (*Diagnosis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.diagnoses[id]
	if !ok {
		return nil, apperr.NotFound("diagnosis %s not found", id)
	}
	u.ApplyTo(d)
	d.UpdatedAt = r.now().UTC()
	return d.clone(), nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.diagnoses[id]; !ok {
		return apperr.NotFound("diagnosis %s not found", id)
	}
	delete(r.diagnoses, id)
	return nil
}

// DeleteByPatient drops every diagnosis of the patient. Registered as the
// patient store's delete hook.
func (r *MemoryRepo) DeleteByPatient(patientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, d := range r.diagnoses {
		if d.PatientID == patientID {
			delete(r.diagnoses, id)
		}
	}
}

// checkRanges mirrors the CHECK constraints of the diagnoses table.
func checkRanges(d *Diagnosis) error {
	if !inUnitRange(d.Confidence) {
		return apperr.Unprocessable(nil, "confidence must be between 0 and 1, got %v", d.Confidence)
	}
	if d.Scores == nil {
		return nil
	}
	named := []struct {
		name string
		v    *float64
	}{
		{"normal", d.Scores.Normal},
		{"benign", d.Scores.Benign},
		{"opmd", d.Scores.OPMD},
		{"malignant", d.Scores.Malignant},
	}
	for _, s := range named {
		if s.v != nil && !inUnitRange(*s.v) {
			return apperr.Unprocessable(nil, "%s score must be between 0 and 1, got %v", s.name, *s.v)
		}
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
