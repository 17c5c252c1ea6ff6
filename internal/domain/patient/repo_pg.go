package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lesionscan/lesionscan/internal/platform/apperr"
	"github.com/lesionscan/lesionscan/internal/platform/db"
)

var tracer = otel.Tracer("github.com/lesionscan/lesionscan/internal/domain/patient")

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func startSpan(ctx context.Context, op, patientID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "patient.repo."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("patient.id", patientID),
		))
}

const patientCols = `id::text, patient_id, name, history, date, "index", biopsy_confirmed, doctor_name, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	ctx, span := startSpan(ctx, "Create", p.PatientID)
	defer span.End()

	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (patient_id, name, history, date, "index", biopsy_confirmed, doctor_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text, created_at, updated_at`,
		p.PatientID, p.Name, p.History, p.Date, p.Index, p.BiopsyConfirmed, p.DoctorName,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.Conflict(err, "patient %s already exists", p.PatientID)
		}
		span.RecordError(err)
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, patientID string) (*Patient, error) {
	ctx, span := startSpan(ctx, "Get", patientID)
	defer span.End()

	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE patient_id = $1`, patientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("patient %s not found", patientID)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	ctx, span := startSpan(ctx, "List", "")
	defer span.End()

	var (
		patients []*Patient
		total    int
	)
	err := db.ReadSnapshot(ctx, r.pool, func(ctx context.Context) error {
		if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
			return fmt.Errorf("count patients: %w", err)
		}
		rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients
			ORDER BY created_at DESC, patient_id DESC LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return fmt.Errorf("list patients: %w", err)
		}
		defer rows.Close()

		patients = make([]*Patient, 0)
		for rows.Next() {
			p, err := scanPatient(rows)
			if err != nil {
				return fmt.Errorf("scan patient: %w", err)
			}
			patients = append(patients, p)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("list patients: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	return patients, total, nil
}

// Update applies only the fields present in u. Absent fields keep their
// stored value through COALESCE, so nullable columns cannot be cleared here.
func (r *repoPG) Update(ctx context.Context, patientID string, u Update) (*Patient, error) {
	ctx, span := startSpan(ctx, "Update", patientID)
	defer span.End()

	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			name             = COALESCE($2, name),
			history          = COALESCE($3, history),
			date             = COALESCE($4, date),
			"index"          = COALESCE($5, "index"),
			biopsy_confirmed = COALESCE($6, biopsy_confirmed),
			doctor_name      = COALESCE($7, doctor_name)
		WHERE patient_id = $1
		RETURNING `+patientCols,
		patientID, u.Name, u.History, u.Date, u.Index, u.BiopsyConfirmed, u.DoctorName,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("patient %s not found", patientID)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return p, nil
}

// Delete removes the patient; diagnoses go with it through ON DELETE CASCADE.
func (r *repoPG) Delete(ctx context.Context, patientID string) error {
	ctx, span := startSpan(ctx, "Delete", patientID)
	defer span.End()

	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE patient_id = $1`, patientID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient %s not found", patientID)
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.PatientID, &p.Name, &p.History, &p.Date, &p.Index,
		&p.BiopsyConfirmed, &p.DoctorName, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
