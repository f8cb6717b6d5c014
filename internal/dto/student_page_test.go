package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/enfermeria-api/internal/models"
)

func TestNewStudentPageCeil(t *testing.T) {
	page := NewStudentPage(nil, 1, 10, 21)
	assert.Equal(t, 3, page.TotalPages)
	assert.NotNil(t, page.Students)

	assert.Equal(t, 2, NewStudentPage([]models.Student{{ID: "1"}}, 1, 10, 20).TotalPages)
	assert.Equal(t, 0, NewStudentPage(nil, 1, 10, 0).TotalPages)
}
