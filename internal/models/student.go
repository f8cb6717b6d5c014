package models

import "time"

// Student is a patient of the infirmary, registered once and never deleted.
type Student struct {
	ID         string    `db:"id" json:"id"`
	FullName   string    `db:"full_name" json:"nombre"`
	DocumentID string    `db:"document_id" json:"documento"`
	Career     string    `db:"career" json:"carrera"`
	PhotoPath  *string   `db:"photo_path" json:"foto,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Page     int
	PageSize int
}

// CreateStudentRequest is the registration payload.
type CreateStudentRequest struct {
	FullName   string `json:"nombre" validate:"required,min=3,max=120"`
	DocumentID string `json:"documento" validate:"required,alphanum,min=5,max=20"`
	Career     string `json:"carrera" validate:"required,max=80"`
}
