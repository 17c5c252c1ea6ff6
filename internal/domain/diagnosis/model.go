package diagnosis

import (
	"time"
)

// Type is the screening modality that produced a diagnosis.
type Type string

const (
	TypeOral    Type = "oral"
	TypeGastric Type = "gastric"
)

func (t Type) Valid() bool {
	return t == TypeOral || t == TypeGastric
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Status codes of the oral potentially malignant disorder (OPMD) taxonomy.
// Codes outside this list are stored as given.
const (
	StatusNormal       = "NORMAL"
	StatusBenign       = "BENIGN"
	StatusOPMDLow      = "OPMD_LOW"
	StatusOPMDHigh     = "OPMD_HIGH"
	StatusMalignant    = "MALIGNANT"
	StatusInconclusive = "INCONCLUSIVE"
)

// ConditionScores are per-class probabilities from the classifier.
type ConditionScores struct {
	Normal    *float64 `json:"normal,omitempty"`
	Benign    *float64 `json:"benign,omitempty"`
	OPMD      *float64 `json:"opmd,omitempty"`
	Malignant *float64 `json:"malignant,omitempty"`
}

func (s *ConditionScores) empty() bool {
	return s == nil || (s.Normal == nil && s.Benign == nil && s.OPMD == nil && s.Malignant == nil)
}

type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection is one object found by the detector. It is stored verbatim.
type Detection struct {
	ClassName  string      `json:"class_name"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

type Diagnosis struct {
	ID                   string           `json:"id"`
	PatientID            string           `json:"patient_id"`
	Type                 Type             `json:"type"`
	ImageURL             string           `json:"image_url"`
	Confidence           float64          `json:"confidence"`
	Finding              string           `json:"finding"`
	Recommendation       string           `json:"recommendation"`
	Severity             *Severity        `json:"severity,omitempty"`
	RecommendationDetail *string          `json:"recommendation_detail,omitempty"`
	StatusCode           *string          `json:"status_code,omitempty"`
	Scores               *ConditionScores `json:"scores,omitempty"`
	Knowledge            *string          `json:"knowledge,omitempty"`
	AnnotatedImageURL    *string          `json:"annotated_image_url,omitempty"`
	Detections           []Detection      `json:"detections"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Update is a partial diagnosis update. Nil fields are left untouched.
type Update struct {
	Finding              *string   `json:"finding,omitempty"`
	Recommendation       *string   `json:"recommendation,omitempty"`
	Severity             *Severity `json:"severity,omitempty"`
	RecommendationDetail *string   `json:"recommendation_detail,omitempty"`
	StatusCode           *string   `json:"status_code,omitempty"`
	Knowledge            *string   `json:"knowledge,omitempty"`
	AnnotatedImageURL    *string   `json:"annotated_image_url,omitempty"`
}

func (u Update) ApplyTo(d *Diagnosis) {
	if u.Finding != nil {
		d.Finding = *u.Finding
	}
	if u.Recommendation != nil {
		d.Recommendation = *u.Recommendation
	}
	if u.Severity != nil {
		v := *u.Severity
		d.Severity = &v
	}
	if u.RecommendationDetail != nil {
		d.RecommendationDetail = copyStr(u.RecommendationDetail)
	}
	if u.StatusCode != nil {
		d.StatusCode = copyStr(u.StatusCode)
	}
	if u.Knowledge != nil {
		d.Knowledge = copyStr(u.Knowledge)
	}
	if u.AnnotatedImageURL != nil {
		d.AnnotatedImageURL = copyStr(u.AnnotatedImageURL)
	}
}

func (d *Diagnosis) clone() *Diagnosis {
	c := *d
	if d.Severity != nil {
		v := *d.Severity
		c.Severity = &v
	}
	c.RecommendationDetail = copyStr(d.RecommendationDetail)
	c.StatusCode = copyStr(d.StatusCode)
	c.Knowledge = copyStr(d.Knowledge)
	c.AnnotatedImageURL = copyStr(d.AnnotatedImageURL)
	if d.Scores != nil {
		s := ConditionScores{
			Normal:    copyFloat(d.Scores.Normal),
			Benign:    copyFloat(d.Scores.Benign),
			OPMD:      copyFloat(d.Scores.OPMD),
			Malignant: copyFloat(d.Scores.Malignant),
		}
		c.Scores = &s
	}
	if d.Detections != nil {
		c.Detections = make([]Detection, len(d.Detections))
		copy(c.Detections, d.Detections)
	}
	return &c
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
