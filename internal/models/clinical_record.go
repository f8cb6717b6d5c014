package models

import "time"

// ClinicalRecord is one entry of a student's clinical file ("expediente").
type ClinicalRecord struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"estudiante_id"`
	Reason    string    `db:"reason" json:"motivo"`
	History   string    `db:"history" json:"antecedentes"`
	Diagnosis string    `db:"diagnosis" json:"diagnostico"`
	Treatment string    `db:"treatment" json:"tratamiento"`
	Notes     string    `db:"notes" json:"observaciones"`
	CreatedBy *string   `db:"created_by" json:"creado_por,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateClinicalRecordRequest is the payload for adding a clinical record.
type CreateClinicalRecordRequest struct {
	StudentID string `json:"estudiante_id" validate:"required,uuid"`
	Reason    string `json:"motivo" validate:"required,max=500"`
	History   string `json:"antecedentes" validate:"max=2000"`
	Diagnosis string `json:"diagnostico" validate:"max=2000"`
	Treatment string `json:"tratamiento" validate:"max=2000"`
	Notes     string `json:"observaciones" validate:"max=2000"`
}
