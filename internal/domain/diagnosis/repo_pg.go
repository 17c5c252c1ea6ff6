package diagnosis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lesionscan/lesionscan/internal/platform/apperr"
	"github.com/lesionscan/lesionscan/internal/platform/db"
)

var tracer = otel.Tracer("github.com/lesionscan/lesionscan/internal/domain/diagnosis")

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "diagnosis.repo."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String("db.system", "postgresql"))...))
}

const diagnosisCols = `id::text, patient_id, type::text, image_url, confidence, finding, recommendation,
	severity::text, recommendation_text, status_code,
	normal_score, benign_score, opmd_score, malignant_score,
	knowledge, annotated_image_url, detections, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, d *Diagnosis) error {
	ctx, span := startSpan(ctx, "Create", attribute.String("patient.id", d.PatientID))
	defer span.End()

	rw, err := toRow(d)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnoses (
			patient_id, type, image_url, confidence, finding, recommendation,
			severity, recommendation_text, status_code,
			normal_score, benign_score, opmd_score, malignant_score,
			knowledge, annotated_image_url, detections
		) VALUES (
			$1, $2::text::diagnosis_type, $3, $4, $5, $6,
			$7::text::severity_level, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16
		)
		RETURNING id::text, created_at, updated_at`,
		rw.PatientID, rw.Type, rw.ImageURL, rw.Confidence, rw.Finding, rw.Recommendation,
		rw.Severity, rw.RecommendationText, rw.StatusCode,
		rw.NormalScore, rw.BenignScore, rw.OPMDScore, rw.MalignantScore,
		rw.Knowledge, rw.AnnotatedImageURL, rw.Detections,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return translate(err, d.PatientID)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, id string) (*Diagnosis, error) {
	ctx, span := startSpan(ctx, "Get", attribute.String("diagnosis.id", id))
	defer span.End()

	uid, ok := parseID(id)
	if !ok {
		return nil, apperr.NotFound("diagnosis %s not found", id)
	}
	d, err := scanDiagnosis(r.conn(ctx).QueryRow(ctx, `SELECT `+diagnosisCols+` FROM diagnoses WHERE id = $1`, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("diagnosis %s not found", id)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("get diagnosis: %w", err)
	}
	return d, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Diagnosis, int, error) {
	ctx, span := startSpan(ctx, "ListByPatient", attribute.String("patient.id", patientID))
	defer span.End()

	var (
		items []*Diagnosis
		total int
	)
	err := db.ReadSnapshot(ctx, r.pool, func(ctx context.Context) error {
		if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM diagnoses WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
			return fmt.Errorf("count diagnoses: %w", err)
		}
		rows, err := r.conn(ctx).Query(ctx, `SELECT `+diagnosisCols+` FROM diagnoses
			WHERE patient_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
		if err != nil {
			return fmt.Errorf("list diagnoses: %w", err)
		}
		defer rows.Close()

		items = make([]*Diagnosis, 0)
		for rows.Next() {
			d, err := scanDiagnosis(rows)
			if err != nil {
				return fmt.Errorf("scan diagnosis: %w", err)
			}
			items = append(items, d)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("list diagnoses: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	return items, total, nil
}

// Update applies only the fields present in u.
func (r *repoPG) Update(ctx context.Context, id string, u Update) (*Diagnosis, error) {
	ctx, span := startSpan(ctx, "Update", attribute.String("diagnosis.id", id))
	defer span.End()

	uid, ok := parseID(id)
	if !ok {
		return nil, apperr.NotFound("diagnosis %s not found", id)
	}

	var severity *string
	if u.Severity != nil {
		s := string(*u.Severity)
		severity = &s
	}

	d, err := scanDiagnosis(r.conn(ctx).QueryRow(ctx, `
		UPDATE diagnoses SET
			finding             = COALESCE($2, finding),
			recommendation      = COALESCE($3, recommendation),
			severity            = COALESCE($4::text::severity_level, severity),
			recommendation_text = COALESCE($5, recommendation_text),
			status_code         = COALESCE($6, status_code),
			knowledge           = COALESCE($7, knowledge),
			annotated_image_url = COALESCE($8, annotated_image_url)
		WHERE id = $1
		RETURNING `+diagnosisCols,
		uid, u.Finding, u.Recommendation, severity, u.RecommendationDetail,
		u.StatusCode, u.Knowledge, u.AnnotatedImageURL,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("diagnosis %s not found", id)
		}
		span.RecordError(err)
		return nil, translate(err, "")
	}
	return d, nil
}

func (r *repoPG) Delete(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "Delete", attribute.String("diagnosis.id", id))
	defer span.End()

	uid, ok := parseID(id)
	if !ok {
		return apperr.NotFound("diagnosis %s not found", id)
	}
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM diagnoses WHERE id = $1`, uid)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete diagnosis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("diagnosis %s not found", id)
	}
	return nil
}

// parseID converts a route id to the primary key type. Anything that is not
// a UUID cannot match a row.
func parseID(id string) (uuid.UUID, bool) {
	uid, err := uuid.Parse(id)
	return uid, err == nil
}

// translate maps constraint violations to domain errors.
func translate(err error, patientID string) error {
	switch db.PgErrorCode(err) {
	case db.CodeForeignKeyViolation:
		return apperr.NotFound("patient %s not found", patientID)
	case db.CodeCheckViolation:
		return apperr.Unprocessable(err, "value out of range (%s)", db.ConstraintName(err))
	case db.CodeInvalidEnumValue:
		return apperr.Unprocessable(err, "invalid enumerated value")
	}
	return fmt.Errorf("write diagnosis: %w", err)
}

func scanDiagnosis(src pgx.Row) (*Diagnosis, error) {
	var r row
	err := src.Scan(
		&r.ID, &r.PatientID, &r.Type, &r.ImageURL, &r.Confidence, &r.Finding, &r.Recommendation,
		&r.Severity, &r.RecommendationText, &r.StatusCode,
		&r.NormalScore, &r.BenignScore, &r.OPMDScore, &r.MalignantScore,
		&r.Knowledge, &r.AnnotatedImageURL, &r.Detections, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.toDiagnosis()
}
