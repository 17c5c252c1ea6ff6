package diagnosis

import (
	"encoding/json"
	"fmt"
	"time"
)

// row is the storage shape of a diagnosis: the named scores live in four
// nullable columns and detections in a JSON document.
type row struct {
	ID                   string
	PatientID            string
	Type                 string
	ImageURL             string
	Confidence           float64
	Finding              string
	Recommendation       string
	Severity             *string
	RecommendationText   *string
	StatusCode           *string
	NormalScore          *float64
	BenignScore          *float64
	OPMDScore            *float64
	MalignantScore       *float64
	Knowledge            *string
	AnnotatedImageURL    *string
	Detections           []byte
	CreatedAt, UpdatedAt time.Time
}

func toRow(d *Diagnosis) (*row, error) {
	r := &row{
		ID:                 d.ID,
		PatientID:          d.PatientID,
		Type:               string(d.Type),
		ImageURL:           d.ImageURL,
		Confidence:         d.Confidence,
		Finding:            d.Finding,
		Recommendation:     d.Recommendation,
		RecommendationText: d.RecommendationDetail,
		StatusCode:         d.StatusCode,
		Knowledge:          d.Knowledge,
		AnnotatedImageURL:  d.AnnotatedImageURL,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.Severity != nil {
		s := string(*d.Severity)
		r.Severity = &s
	}
	if d.Scores != nil {
		r.NormalScore = d.Scores.Normal
		r.BenignScore = d.Scores.Benign
		r.OPMDScore = d.Scores.OPMD
		r.MalignantScore = d.Scores.Malignant
	}
	// An explicit empty list is stored as [] so it reads back as one; only a
	// nil slice becomes NULL.
	if d.Detections != nil {
		b, err := json.Marshal(d.Detections)
		if err != nil {
			return nil, fmt.Errorf("encode detections: %w", err)
		}
		r.Detections = b
	}
	return r, nil
}

func (r *row) toDiagnosis() (*Diagnosis, error) {
	d := &Diagnosis{
		ID:                   r.ID,
		PatientID:            r.PatientID,
		Type:                 Type(r.Type),
		ImageURL:             r.ImageURL,
		Confidence:           r.Confidence,
		Finding:              r.Finding,
		Recommendation:       r.Recommendation,
		RecommendationDetail: r.RecommendationText,
		StatusCode:           r.StatusCode,
		Knowledge:            r.Knowledge,
		AnnotatedImageURL:    r.AnnotatedImageURL,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.Severity != nil {
		s := Severity(*r.Severity)
		d.Severity = &s
	}
	scores := &ConditionScores{
		Normal:    r.NormalScore,
		Benign:    r.BenignScore,
		OPMD:      r.OPMDScore,
		Malignant: r.MalignantScore,
	}
	if !scores.empty() {
		d.Scores = scores
	}
	if len(r.Detections) > 0 && string(r.Detections) != "null" {
		if err := json.Unmarshal(r.Detections, &d.Detections); err != nil {
			return nil, fmt.Errorf("decode detections: %w", err)
		}
	}
	return d, nil
}
