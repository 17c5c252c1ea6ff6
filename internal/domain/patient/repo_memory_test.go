package patient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lesionscan/lesionscan/internal/platform/apperr"
)

func TestMemoryRepo_CreateReplacesSameID(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()

	r.Create(ctx, &Patient{PatientID: "P1", Name: "first"})
	r.Create(ctx, &Patient{PatientID: "P1", Name: "second"})

	got, err := r.Get(ctx, "P1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "second" {
		t.Errorf("expected later write to win, got %s", got.Name)
	}
	if got.ID != "P1" {
		t.Errorf("expected row id to equal patient id, got %s", got.ID)
	}
}

func TestMemoryRepo_CreateReplacingRunsDeleteHooks(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	var dropped []string
	r.OnDelete(func(patientID string) { dropped = append(dropped, patientID) })

	r.Create(ctx, &Patient{PatientID: "P1", Name: "first"})
	if len(dropped) != 0 {
		t.Fatalf("expected no hooks on first create, got %v", dropped)
	}
	r.Create(ctx, &Patient{PatientID: "P1", Name: "second"})
	if len(dropped) != 1 || dropped[0] != "P1" {
		t.Errorf("expected hook for replaced P1, got %v", dropped)
	}
}

func TestMemoryRepo_GetReturnsCopy(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	r.Create(ctx, &Patient{PatientID: "P1", Name: "A", DoctorName: strPtr("Dr. A")})

	got, _ := r.Get(ctx, "P1")
	got.Name = "mutated"
	*got.DoctorName = "mutated"

	again, _ := r.Get(ctx, "P1")
	if again.Name != "A" || *again.DoctorName != "Dr. A" {
		t.Errorf("expected stored record to be isolated from callers, got %+v", again)
	}
}

func TestMemoryRepo_ListNewestFirstWithPaging(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		r.now = func() time.Time { return at }
		r.Create(ctx, &Patient{PatientID: fmt.Sprintf("P%d", i), Name: "x"})
	}

	page, total, err := r.List(ctx, 2, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(page) != 2 || page[0].PatientID != "P3" || page[1].PatientID != "P2" {
		t.Errorf("unexpected page order: %v, %v", page[0].PatientID, page[1].PatientID)
	}

	page, _, _ = r.List(ctx, 10, 10)
	if len(page) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(page))
	}
}

func TestMemoryRepo_DeleteRunsCascadeHooks(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	r.Create(ctx, &Patient{PatientID: "P1", Name: "A"})

	var cascaded []string
	r.OnDelete(func(id string) { cascaded = append(cascaded, id) })

	if err := r.Delete(ctx, "P1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(cascaded) != 1 || cascaded[0] != "P1" {
		t.Errorf("expected cascade for P1, got %v", cascaded)
	}
	if err := r.Delete(ctx, "P1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
	if len(cascaded) != 1 {
		t.Error("cascade must not run for a missing patient")
	}
}

func TestMemoryRepo_WithExisting(t *testing.T) {
	r := NewMemoryRepo()
	r.Create(context.Background(), &Patient{PatientID: "P1", Name: "A"})

	called := false
	if err := r.WithExisting("P1", func() error { called = true; return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to run for an existing patient")
	}

	err := r.WithExisting("missing", func() error {
		t.Error("fn must not run for a missing patient")
		return nil
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemoryRepo_ConcurrentUpdatesAreAtomic(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	r.Create(ctx, &Patient{PatientID: "P1", Name: "A", History: "h"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Update(ctx, "P1", Update{Name: strPtr(fmt.Sprintf("name-%d", i))})
		}(i)
		go func(i int) {
			defer wg.Done()
			r.Update(ctx, "P1", Update{Date: strPtr(fmt.Sprintf("date-%d", i))})
		}(i)
	}
	wg.Wait()

	got, _ := r.Get(ctx, "P1")
	if got.History != "h" {
		t.Errorf("expected untouched field preserved, got %q", got.History)
	}
	if got.Name == "A" || got.Date == "" {
		t.Errorf("expected both update kinds applied, got %+v", got)
	}
}
