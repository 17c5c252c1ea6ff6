package patient

import (
	"strings"
	"time"
)

// Patient is a screened person. PatientID is the public identifier used in
// routes and by diagnoses; ID is the storage row id.
type Patient struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id"`
	Name            string    `json:"name"`
	History         string    `json:"history"`
	Date            string    `json:"date"`
	Index           string    `json:"index"`
	BiopsyConfirmed *bool     `json:"biopsy_confirmed,omitempty"`
	DoctorName      *string   `json:"doctor_name,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Update is a partial patient update. Nil fields are left untouched.
type Update struct {
	Name            *string `json:"name,omitempty"`
	History         *string `json:"history,omitempty"`
	Date            *string `json:"date,omitempty"`
	Index           *string `json:"index,omitempty"`
	BiopsyConfirmed *bool   `json:"biopsy_confirmed,omitempty"`
	DoctorName      *string `json:"doctor_name,omitempty"`
}

// ApplyTo copies the set fields of u onto p.
func (u Update) ApplyTo(p *Patient) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.History != nil {
		p.History = *u.History
	}
	if u.Date != nil {
		p.Date = *u.Date
	}
	if u.Index != nil {
		p.Index = *u.Index
	}
	if u.BiopsyConfirmed != nil {
		v := *u.BiopsyConfirmed
		p.BiopsyConfirmed = &v
	}
	if u.DoctorName != nil {
		v := *u.DoctorName
		p.DoctorName = &v
	}
}

func (u Update) validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return errNameRequired
	}
	return nil
}

// clone returns a deep copy so callers never share pointers with a store.
func (p *Patient) clone() *Patient {
	c := *p
	if p.BiopsyConfirmed != nil {
		v := *p.BiopsyConfirmed
		c.BiopsyConfirmed = &v
	}
	if p.DoctorName != nil {
		v := *p.DoctorName
		c.DoctorName = &v
	}
	return &c
}
