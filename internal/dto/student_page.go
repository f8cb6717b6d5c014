package dto

import "github.com/noah-isme/enfermeria-api/internal/models"

// StudentPage is one page of the student search, shaped as the dashboard expects it.
type StudentPage struct {
	Students   []models.Student `json:"estudiantes"`
	TotalPages int              `json:"totalPaginas"`
	Page       int              `json:"pagina"`
	PageSize   int              `json:"filas"`
	Total      int              `json:"total"`
}

// NewStudentPage computes totalPaginas as ceil(total/size).
func NewStudentPage(students []models.Student, page, size, total int) *StudentPage {
	if students == nil {
		students = []models.Student{}
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return &StudentPage{Students: students, TotalPages: pages, Page: page, PageSize: size, Total: total}
}
