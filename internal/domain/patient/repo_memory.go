package patient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lesionscan/lesionscan/internal/platform/apperr"
	"github.com/lesionscan/lesionscan/pkg/pagination"
)

// MemoryRepo keeps patients in a process-wide map keyed by patient_id.
// Records are lost on restart.
type MemoryRepo struct {
	mu       sync.RWMutex
	patients map[string]*Patient
	onDelete []func(patientID string)
	now      func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		patients: make(map[string]*Patient),
		now:      time.Now,
	}
}

// OnDelete registers fn to run, under the repository lock, whenever a
// patient is deleted. Used to cascade to dependent in-memory records.
func (r *MemoryRepo) OnDelete(fn func(patientID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDelete = append(r.onDelete, fn)
}

// WithExisting runs fn while holding a read lock, provided the patient
// exists. The patient cannot be deleted while fn runs.
func (r *MemoryRepo) WithExisting(patientID string, fn func() error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.patients[patientID]; !ok {
		return apperr.NotFound("patient %s not found", patientID)
	}
	return fn()
}

// Create stores p. A record with the same patient_id is replaced, and the
// delete hooks run first so records owned by the old patient go with it.
func (r *MemoryRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[p.PatientID]; ok {
		for _, fn := range r.onDelete {
			fn(p.PatientID)
		}
	}

	now := r.now().UTC()
	p.ID = p.PatientID
	p.CreatedAt = now
	p.UpdatedAt = now
	r.patients[p.PatientID] = p.clone()
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, patientID string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[patientID]
	if !ok {
		return nil, apperr.NotFound("patient %s not found", patientID)
	}
	return p.clone(), nil
}

// List returns patients newest first.
func (r *MemoryRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	all := make([]*Patient, 0, len(r.patients))
	for _, p := range r.patients {
		all = append(all, p.clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].PatientID > all[j].PatientID
	})

	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(all))
	return all[start:end], len(all), nil
}

func (r *MemoryRepo) Update(_ context.Context, patientID string, u Update) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[patientID]
	if !ok {
		return nil, apperr.NotFound("patient %s not found", patientID)
	}
	u.ApplyTo(p)
	p.UpdatedAt = r.now().UTC()
	return p.clone(), nil
}

func (r *MemoryRepo) Delete(_ context.Context, patientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[patientID]; !ok {
		return apperr.NotFound("patient %s not found", patientID)
	}
	delete(r.patients, patientID)
	for _, fn := range r.onDelete {
		fn(patientID)
	}
	return nil
}
