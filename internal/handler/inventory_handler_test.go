package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enfermeria-api/internal/models"
	"github.com/noah-isme/enfermeria-api/internal/service"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

type inventoryServiceMock struct {
	updated models.UpdateInventoryItemRequest
	deleted string
}

func (m *inventoryServiceMock) List(context.Context) ([]models.InventoryItem, error) {
	return []models.InventoryItem{
		{ID: "i1", Quantity: 2, MinStock: 5},
		{ID: "i2", Quantity: 20, MinStock: 5},
	}, nil
}

func (m *inventoryServiceMock) Get(_ context.Context, id string) (*models.InventoryItem, error) {
	return &models.InventoryItem{ID: id}, nil
}

func (m *inventoryServiceMock) Create(_ context.Context, req models.CreateInventoryItemRequest, _ service.AuditMeta) (*models.InventoryItem, error) {
	return &models.InventoryItem{ID: "i3", Name: req.Name, Quantity: req.Quantity}, nil
}

func (m *inventoryServiceMock) Update(_ context.Context, id string, req models.UpdateInventoryItemRequest, _ service.AuditMeta) (*models.InventoryItem, error) {
	m.updated = req
	return &models.InventoryItem{ID: id, Quantity: *req.Quantity}, nil
}

func (m *inventoryServiceMock) Delete(_ context.Context, id string, _ service.AuditMeta) error {
	if id != "i1" {
		return appErrors.Clone(appErrors.ErrNotFound, "inventory item not found")
	}
	m.deleted = id
	return nil
}

func TestInventoryHandlerListCountsLowStock(t *testing.T) {
	h := NewInventoryHandler(&inventoryServiceMock{})
	c, w := newGinContext(http.MethodGet, "/inventario", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.EqualValues(t, 1, env.Meta["bajo_stock"])
	assert.EqualValues(t, 2, env.Meta["total"])
}

func TestInventoryHandlerUpdate(t *testing.T) {
	mock := &inventoryServiceMock{}
	h := NewInventoryHandler(mock)

	qty := 12
	body, _ := json.Marshal(models.UpdateInventoryItemRequest{Quantity: &qty, Reason: "compra"})
	c, w := newGinContext(http.MethodPut, "/inventario/i1", body)
	c.Params = gin.Params{{Key: "id", Value: "i1"}}
	h.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.updated.Quantity)
	assert.Equal(t, 12, *mock.updated.Quantity)
	assert.Equal(t, "compra", mock.updated.Reason)
}

func TestInventoryHandlerDelete(t *testing.T) {
	mock := &inventoryServiceMock{}
	h := NewInventoryHandler(mock)

	c, w := newGinContext(http.MethodDelete, "/inventario/i1", nil)
	c.Params = gin.Params{{Key: "id", Value: "i1"}}
	h.Delete(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "i1", mock.deleted)

	c, w = newGinContext(http.MethodDelete, "/inventario/zz", nil)
	c.Params = gin.Params{{Key: "id", Value: "zz"}}
	h.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
